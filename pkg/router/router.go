package router

import (
	"context"
	"log"
	"time"

	"github.com/zen-systems/intentgate/pkg/adapter"
	"github.com/zen-systems/intentgate/pkg/catalog"
	"github.com/zen-systems/intentgate/pkg/config"
)

// Recorder receives finished routing decisions. Implementations must not
// block: a slow or failing log store never adds latency to routing.
type Recorder interface {
	Record(decision *Decision)
}

// Router walks the tier pipeline for each inbound message: regex first,
// hybrid scoring second, LLM classification last. Each tier's decisiveness
// rule is the sole authority on whether the pipeline stops early; tiers
// never run concurrently, preserving cost ordering.
type Router struct {
	catalog  *catalog.Catalog
	tiers    []Tier
	recorder Recorder
	cfg      *config.RouterConfig
	debug    bool
}

// Option configures a Router.
type Option func(*Router)

// WithRecorder attaches a decision recorder.
func WithRecorder(rec Recorder) Option {
	return func(r *Router) {
		r.recorder = rec
	}
}

// WithDebug enables per-tier debug logging.
func WithDebug(debug bool) Option {
	return func(r *Router) {
		r.debug = debug
	}
}

// New assembles the standard three-tier pipeline. embedder and llm may each
// be nil; the affected tier then degrades (lexical-only scoring, or the
// classifier reporting inconclusive).
func New(cat *catalog.Catalog, embedder adapter.EmbeddingProvider, llm adapter.Adapter, cfg *config.RouterConfig, opts ...Option) *Router {
	r := &Router{
		catalog: cat,
		cfg:     cfg,
		tiers: []Tier{
			NewRegexTier(),
			NewHybridTier(embedder, cfg),
			NewLLMTier(llm, cfg.ClassifierModel, cfg),
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewWithTiers assembles a router over an explicit tier list, mainly for
// tests that exercise the orchestration in isolation.
func NewWithTiers(cat *catalog.Catalog, cfg *config.RouterConfig, tiers []Tier, opts ...Option) *Router {
	r := &Router{catalog: cat, cfg: cfg, tiers: tiers}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route runs the message through the pipeline and returns the decision.
//
// Route never fails: every tier converts its internal errors into an
// inconclusive result, so the worst case is the default-agent fallback with
// confidence zero. The decision is handed to the recorder before returning;
// recording is fire-and-forget.
func (r *Router) Route(ctx context.Context, contextID, message string) *Decision {
	start := time.Now()
	decision := newDecision(contextID, message)
	agents := r.catalog.Snapshot()

	for _, tier := range r.tiers {
		result := tier.Attempt(ctx, message, agents)

		// The hybrid tier computes full score maps whether or not it is
		// decisive; keep them for offline tuning either way.
		if result.BM25Scores != nil {
			decision.BM25Scores = result.BM25Scores
		}
		if result.EmbedScores != nil {
			decision.EmbedScores = result.EmbedScores
		}

		if r.debug {
			log.Printf("[router] tier %d (%s): decisive=%v agent=%q confidence=%.3f",
				tier.Number(), tier.Name(), result.Decisive, result.Agent, result.Confidence)
		}

		if result.Decisive {
			decision.TierUsed = tier.Number()
			decision.SelectedAgent = result.Agent
			decision.Confidence = result.Confidence
			break
		}
		decision.TierUsed = tier.Number()
	}

	// If every tier was inconclusive, SelectedAgent stays empty and
	// confidence zero: the dispatcher falls back to DefaultAgent (or answers
	// directly when none is configured). The decision records the fallback
	// as no selection, not as the default agent's name.

	decision.LatencyMs = time.Since(start).Milliseconds()

	if r.recorder != nil {
		r.recorder.Record(decision)
	}
	return decision
}
