package config

import (
	"testing"
)

func TestAliasResolve(t *testing.T) {
	aliases := DefaultAliases()

	tests := []struct {
		input    string
		expected string
	}{
		{"fast", "claude-haiku-4-5-20251001"},
		{"cheap", "deepseek-chat"},
		{"claude-sonnet-4-20250514", "claude-sonnet-4-20250514"},
		{"not-an-alias", "not-an-alias"},
	}
	for _, tt := range tests {
		if got := aliases.Resolve(tt.input); got != tt.expected {
			t.Errorf("Resolve(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestValidateModel(t *testing.T) {
	aliases := DefaultAliases()

	if err := aliases.ValidateModel("anthropic", "claude-haiku-4-5-20251001"); err != nil {
		t.Errorf("valid model rejected: %v", err)
	}
	if err := aliases.ValidateModel("anthropic", "gpt-5.2-instant"); err == nil {
		t.Error("model from wrong provider accepted")
	}
	if err := aliases.ValidateModel("nonexistent", "anything"); err == nil {
		t.Error("unknown provider accepted")
	}
}

func TestGetProviderForModel(t *testing.T) {
	aliases := DefaultAliases()

	if got := aliases.GetProviderForModel("gemini-2.0-flash"); got != "google" {
		t.Errorf("provider = %q, want google", got)
	}
	if got := aliases.GetProviderForModel("unknown-model"); got != "" {
		t.Errorf("provider = %q, want empty", got)
	}
}

func TestResolveRouterModels(t *testing.T) {
	aliases := DefaultAliases()

	cfg := DefaultRouterConfig()
	cfg.ClassifierModel = "fast"
	aliases.ResolveRouterModels(cfg)
	if cfg.ClassifierModel != "claude-haiku-4-5-20251001" {
		t.Errorf("classifier model = %q, want the canonical name", cfg.ClassifierModel)
	}

	// Canonical names and the embedding model pass through unchanged.
	if cfg.EmbeddingModel != "text-embedding-3-small" {
		t.Errorf("embedding model = %q, want text-embedding-3-small", cfg.EmbeddingModel)
	}
	aliases.ResolveRouterModels(cfg)
	if cfg.ClassifierModel != "claude-haiku-4-5-20251001" {
		t.Errorf("resolution must be idempotent, got %q", cfg.ClassifierModel)
	}
}

func TestValidateRouterConfig(t *testing.T) {
	aliases := DefaultAliases()

	good := DefaultRouterConfig()
	if errs := aliases.ValidateRouterConfig(good); len(errs) != 0 {
		t.Errorf("default config should validate, got %v", errs)
	}

	good.ClassifierModel = "fast"
	if errs := aliases.ValidateRouterConfig(good); len(errs) != 0 {
		t.Errorf("aliased model should validate, got %v", errs)
	}

	bad := DefaultRouterConfig()
	bad.ClassifierModel = "made-up-model"
	if errs := aliases.ValidateRouterConfig(bad); len(errs) == 0 {
		t.Error("unknown classifier model should fail validation")
	}
}
