package router

import (
	"context"
	"testing"

	"github.com/zen-systems/intentgate/pkg/catalog"
)

func mustAgent(t *testing.T, name string, priority int, patterns []string, keywords []string) *catalog.Agent {
	t.Helper()
	agent := &catalog.Agent{
		Name:          name,
		Description:   name + " agent",
		Keywords:      keywords,
		RegexPatterns: patterns,
		Priority:      priority,
		Enabled:       true,
	}
	if err := agent.Validate(); err != nil {
		t.Fatalf("failed to build agent %s: %v", name, err)
	}
	return agent
}

func TestRegexTierMatch(t *testing.T) {
	agents := []*catalog.Agent{
		mustAgent(t, "github", 10, []string{`\bgithub\b`}, nil),
		mustAgent(t, "email", 20, []string{`\bemail\b`, `\binbox\b`}, nil),
	}
	tier := NewRegexTier()

	tests := []struct {
		name     string
		message  string
		decisive bool
		agent    string
	}{
		{
			name:     "exact trigger word",
			message:  "open a github issue for this bug",
			decisive: true,
			agent:    "github",
		},
		{
			name:     "case insensitive",
			message:  "check my GitHub notifications",
			decisive: true,
			agent:    "github",
		},
		{
			name:     "second pattern of an agent",
			message:  "anything new in my inbox?",
			decisive: true,
			agent:    "email",
		},
		{
			name:     "word boundary respected",
			message:  "githubby is not a trigger",
			decisive: false,
		},
		{
			name:     "no trigger",
			message:  "what's the weather like",
			decisive: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tier.Attempt(context.Background(), tt.message, agents)
			if result.Decisive != tt.decisive {
				t.Fatalf("decisive = %v, want %v", result.Decisive, tt.decisive)
			}
			if !tt.decisive {
				return
			}
			if result.Agent != tt.agent {
				t.Errorf("agent = %q, want %q", result.Agent, tt.agent)
			}
			if result.Confidence != 1.0 {
				t.Errorf("confidence = %f, want 1.0", result.Confidence)
			}
			if result.BM25Scores != nil || result.EmbedScores != nil {
				t.Errorf("regex tier must not compute score maps")
			}
		})
	}
}

func TestRegexTierPriorityOrder(t *testing.T) {
	// Both agents match; the first in priority order wins.
	agents := []*catalog.Agent{
		mustAgent(t, "first", 10, []string{`ticket`}, nil),
		mustAgent(t, "second", 20, []string{`ticket`}, nil),
	}

	result := NewRegexTier().Attempt(context.Background(), "file a ticket", agents)
	if !result.Decisive || result.Agent != "first" {
		t.Fatalf("expected first agent by priority, got %+v", result)
	}
}

func TestRegexTierNoAgents(t *testing.T) {
	result := NewRegexTier().Attempt(context.Background(), "anything", nil)
	if result.Decisive {
		t.Fatal("empty catalog must be inconclusive")
	}
}
