package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// RouterConfig holds the routing pipeline tuning knobs.
//
// The defaults are starting points, not calibrated values; they are meant to
// be re-tuned from the decision log once real traffic has accumulated.
type RouterConfig struct {
	// Alpha is the lexical weight in the tier-2 merge:
	// merged = alpha*bm25 + (1-alpha)*embedding.
	Alpha float64 `yaml:"alpha,omitempty"`

	// ConfidenceThreshold is the minimum merged score for tier 2 to decide.
	ConfidenceThreshold float64 `yaml:"confidence_threshold,omitempty"`

	// MinMargin is the minimum lead over the runner-up for tier 2 to decide.
	MinMargin float64 `yaml:"min_margin,omitempty"`

	// DegradedPenalty is added to ConfidenceThreshold when the embedding
	// provider is unavailable and tier 2 runs lexical-only.
	DegradedPenalty float64 `yaml:"degraded_penalty,omitempty"`

	// BM25 parameterization for the tier-2 lexical scorer.
	BM25 BM25Config `yaml:"bm25,omitempty"`

	// ClassifierAdapter/ClassifierModel select the tier-3 model.
	ClassifierAdapter string `yaml:"classifier_adapter,omitempty"`
	ClassifierModel   string `yaml:"classifier_model,omitempty"`

	// ClassifierTimeoutMs bounds the tier-3 call; it sits on the user-facing
	// response path.
	ClassifierTimeoutMs int `yaml:"classifier_timeout_ms,omitempty"`

	// ClassifierConfidence is the fixed confidence reported when tier 3
	// selects an agent. The model exposes no calibrated probability here.
	ClassifierConfidence float64 `yaml:"classifier_confidence,omitempty"`

	// DefaultAgent is the fallback when every tier is inconclusive. Empty
	// means "no agent": the dispatcher answers directly.
	DefaultAgent string `yaml:"default_agent,omitempty"`

	// EmbeddingModel/EmbeddingDimension select the embedding space. All
	// stored agent embeddings must come from this model.
	EmbeddingModel     string `yaml:"embedding_model,omitempty"`
	EmbeddingDimension int    `yaml:"embedding_dimension,omitempty"`
}

// BM25Config holds the BM25 saturation parameters.
type BM25Config struct {
	K1 float64 `yaml:"k1,omitempty"`
	B  float64 `yaml:"b,omitempty"`
}

// LoadRouterConfig reads router configuration from a YAML file.
func LoadRouterConfig(path string) (*RouterConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg RouterConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyRouterDefaults(&cfg)
	return &cfg, nil
}

// DefaultRouterConfig returns the default router configuration.
func DefaultRouterConfig() *RouterConfig {
	cfg := &RouterConfig{}
	applyRouterDefaults(cfg)
	return cfg
}

func applyRouterDefaults(cfg *RouterConfig) {
	if cfg == nil {
		return
	}
	if cfg.Alpha <= 0 || cfg.Alpha > 1 {
		cfg.Alpha = 0.5
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = 0.6
	}
	if cfg.MinMargin <= 0 {
		cfg.MinMargin = 0.15
	}
	if cfg.DegradedPenalty <= 0 {
		cfg.DegradedPenalty = 0.2
	}
	if cfg.BM25.K1 <= 0 {
		cfg.BM25.K1 = 1.2
	}
	if cfg.BM25.B <= 0 {
		cfg.BM25.B = 0.75
	}
	if cfg.ClassifierAdapter == "" {
		cfg.ClassifierAdapter = "anthropic"
	}
	if cfg.ClassifierModel == "" {
		cfg.ClassifierModel = "claude-haiku-4-5-20251001"
	}
	if cfg.ClassifierTimeoutMs <= 0 {
		cfg.ClassifierTimeoutMs = 5000
	}
	if cfg.ClassifierConfidence <= 0 {
		cfg.ClassifierConfidence = 0.5
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.EmbeddingDimension <= 0 {
		cfg.EmbeddingDimension = 1536
	}
}
