package router

import (
	"context"

	"github.com/zen-systems/intentgate/pkg/catalog"
)

// RegexTier is the deterministic fast path. Agents arrive ordered by
// priority; the first agent with any matching pattern wins with confidence
// 1.0. No scores are computed for the other agents.
//
// Patterns are meant for near-unambiguous trigger words only. The tier is
// intentionally blunt; restraint in authoring pattern lists is what keeps it
// safe.
type RegexTier struct{}

// NewRegexTier creates the tier-1 matcher.
func NewRegexTier() *RegexTier {
	return &RegexTier{}
}

// Name returns the tier identifier.
func (t *RegexTier) Name() string { return "regex" }

// Number returns the tier's position in the pipeline.
func (t *RegexTier) Number() int { return 1 }

// Attempt evaluates each agent's precompiled patterns against the message.
func (t *RegexTier) Attempt(_ context.Context, message string, agents []*catalog.Agent) Result {
	for _, agent := range agents {
		if agent.MatchesPattern(message) {
			return Result{Decisive: true, Agent: agent.Name, Confidence: 1.0}
		}
	}
	return inconclusive()
}
