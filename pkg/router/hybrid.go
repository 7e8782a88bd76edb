package router

import (
	"context"
	"log"
	"math"

	"github.com/zen-systems/intentgate/pkg/adapter"
	"github.com/zen-systems/intentgate/pkg/catalog"
	"github.com/zen-systems/intentgate/pkg/config"
)

// HybridTier blends BM25 keyword matching with embedding similarity.
//
// Both signals are rescaled to [0,1] and merged as
// alpha*bm25 + (1-alpha)*embedding. The tier is decisive only when the top
// merged score clears the confidence threshold AND leads the runner-up by at
// least the configured margin. Score maps are always computed for every
// enabled agent so inconclusive runs still leave a full audit trail.
type HybridTier struct {
	embedder adapter.EmbeddingProvider
	cfg      *config.RouterConfig
}

// NewHybridTier creates the tier-2 scorer. embedder may be nil, which forces
// permanent lexical-only operation.
func NewHybridTier(embedder adapter.EmbeddingProvider, cfg *config.RouterConfig) *HybridTier {
	return &HybridTier{embedder: embedder, cfg: cfg}
}

// Name returns the tier identifier.
func (t *HybridTier) Name() string { return "hybrid" }

// Number returns the tier's position in the pipeline.
func (t *HybridTier) Number() int { return 2 }

// Attempt scores the message against every agent and applies the
// decisiveness test. Embedding failures degrade to lexical-only scoring with
// a raised threshold; they never propagate.
func (t *HybridTier) Attempt(ctx context.Context, message string, agents []*catalog.Agent) Result {
	if len(agents) == 0 {
		return inconclusive()
	}

	bm25 := normalizeScores(newBM25Index(agents, t.cfg.BM25.K1, t.cfg.BM25.B).Score(message))
	embed, degraded := t.embeddingScores(ctx, message, agents)

	threshold := t.cfg.ConfidenceThreshold
	if degraded {
		threshold += t.cfg.DegradedPenalty
		if maxScore(bm25) == 0 {
			// Nothing to go on at all.
			return inconclusive()
		}
	}

	merged := make(map[string]float64, len(agents))
	for _, agent := range agents {
		if degraded {
			merged[agent.Name] = bm25[agent.Name]
		} else {
			merged[agent.Name] = t.cfg.Alpha*bm25[agent.Name] + (1-t.cfg.Alpha)*embed[agent.Name]
		}
	}

	// Agents arrive sorted by priority ascending, so keeping the first of
	// any strictly-equal pair resolves merged-score ties toward the lower
	// priority value.
	var top, runnerUp float64
	var topAgent string
	for _, agent := range agents {
		score := merged[agent.Name]
		if score > top {
			runnerUp = top
			top = score
			topAgent = agent.Name
		} else if score > runnerUp {
			runnerUp = score
		}
	}

	// The top score must strictly exceed the threshold; sitting exactly on
	// it is not decisive.
	result := Result{BM25Scores: bm25, EmbedScores: embed}
	if topAgent != "" && top > threshold && top-runnerUp >= t.cfg.MinMargin {
		result.Decisive = true
		result.Agent = topAgent
		result.Confidence = top
	}
	return result
}

// embeddingScores computes rescaled cosine similarities for every agent with
// a stored vector. Returns degraded=true when the provider is missing or the
// message embedding fails; the caller then runs lexical-only.
func (t *HybridTier) embeddingScores(ctx context.Context, message string, agents []*catalog.Agent) (map[string]float64, bool) {
	if t.embedder == nil {
		return map[string]float64{}, true
	}

	query, err := t.embedder.Embed(ctx, message)
	if err != nil {
		log.Printf("[router] embedding unavailable, falling back to lexical-only: %v", err)
		return map[string]float64{}, true
	}

	scores := make(map[string]float64, len(agents))
	for _, agent := range agents {
		if len(agent.Embedding) != len(query) || len(agent.Embedding) == 0 {
			scores[agent.Name] = 0
			continue
		}
		// Cosine lands in [-1,1]; rescale to [0,1] so it blends with BM25.
		scores[agent.Name] = (cosineSimilarity(query, agent.Embedding) + 1) / 2
	}
	return scores, false
}

func maxScore(scores map[string]float64) float64 {
	max := 0.0
	for _, s := range scores {
		if s > max {
			max = s
		}
	}
	return max
}

// cosineSimilarity computes the cosine of the angle between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
