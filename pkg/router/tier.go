package router

import (
	"context"

	"github.com/zen-systems/intentgate/pkg/catalog"
)

// Result is the outcome of one tier's attempt at routing a message.
//
// A tier is either decisive (Agent and Confidence are set) or inconclusive.
// Tiers never return errors: every internal failure degrades to an
// inconclusive result so the pipeline always terminates with a decision.
type Result struct {
	Decisive   bool
	Agent      string
	Confidence float64

	// Score maps are populated by the hybrid tier regardless of
	// decisiveness, for logging and offline tuning. Other tiers leave them
	// nil.
	BM25Scores  map[string]float64
	EmbedScores map[string]float64
}

func inconclusive() Result {
	return Result{}
}

// Tier is one ordered stage of the routing pipeline. The router walks tiers
// in order and stops at the first decisive result.
type Tier interface {
	Name() string
	Number() int
	Attempt(ctx context.Context, message string, agents []*catalog.Agent) Result
}
