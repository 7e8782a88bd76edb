package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// ModelAliases manages model alias resolution and validation for the tier-3
// classifier and the embedding model.
type ModelAliases struct {
	Aliases   map[string]string   `yaml:"aliases"`
	Providers map[string][]string `yaml:"providers"`
}

// LoadAliases reads model aliases from a YAML file.
func LoadAliases(path string) (*ModelAliases, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var aliases ModelAliases
	if err := yaml.Unmarshal(data, &aliases); err != nil {
		return nil, err
	}

	if aliases.Aliases == nil {
		aliases.Aliases = make(map[string]string)
	}
	if aliases.Providers == nil {
		aliases.Providers = make(map[string][]string)
	}

	return &aliases, nil
}

// LoadAliasesWithFallback loads aliases from the user config dir, falling back
// to built-in defaults if no file exists.
func LoadAliasesWithFallback() (*ModelAliases, error) {
	home, err := os.UserHomeDir()
	if err == nil {
		userPath := filepath.Join(home, ".intentgate", "models.yaml")
		if _, err := os.Stat(userPath); err == nil {
			return LoadAliases(userPath)
		}
	}
	return DefaultAliases(), nil
}

// Resolve returns the canonical model name for an alias.
// If the input is not an alias, it returns the input unchanged.
func (a *ModelAliases) Resolve(modelOrAlias string) string {
	if a == nil || a.Aliases == nil {
		return modelOrAlias
	}
	if canonical, ok := a.Aliases[modelOrAlias]; ok {
		return canonical
	}
	return modelOrAlias
}

// ValidateModel checks if a model exists in the provider's list.
func (a *ModelAliases) ValidateModel(adapter, model string) error {
	if a == nil || a.Providers == nil {
		return nil // No validation possible without provider info
	}

	models, ok := a.Providers[adapter]
	if !ok {
		return fmt.Errorf("unknown adapter %q", adapter)
	}

	for _, m := range models {
		if m == model {
			return nil
		}
	}

	return fmt.Errorf("model %q not in %s provider list", model, adapter)
}

// ListAliases returns a copy of the aliases map.
func (a *ModelAliases) ListAliases() map[string]string {
	if a == nil || a.Aliases == nil {
		return make(map[string]string)
	}
	result := make(map[string]string, len(a.Aliases))
	for k, v := range a.Aliases {
		result[k] = v
	}
	return result
}

// ListProviders returns a sorted list of provider names.
func (a *ModelAliases) ListProviders() []string {
	if a == nil || a.Providers == nil {
		return nil
	}
	providers := make([]string, 0, len(a.Providers))
	for p := range a.Providers {
		providers = append(providers, p)
	}
	sort.Strings(providers)
	return providers
}

// GetProviderForModel returns which provider serves the given model, or ""
// if no provider lists it.
func (a *ModelAliases) GetProviderForModel(model string) string {
	if a == nil || a.Providers == nil {
		return ""
	}
	for provider, models := range a.Providers {
		for _, m := range models {
			if m == model {
				return provider
			}
		}
	}
	return ""
}

// GetProviderModels returns the models for a given provider.
func (a *ModelAliases) GetProviderModels(provider string) []string {
	if a == nil || a.Providers == nil {
		return nil
	}
	return a.Providers[provider]
}

// ResolveRouterModels rewrites aliased model names in a router config to
// their canonical forms, so providers only ever see real model identifiers.
func (a *ModelAliases) ResolveRouterModels(cfg *RouterConfig) {
	if a == nil || cfg == nil {
		return
	}
	cfg.ClassifierModel = a.Resolve(cfg.ClassifierModel)
	cfg.EmbeddingModel = a.Resolve(cfg.EmbeddingModel)
}

// ValidateRouterConfig checks that the classifier model in a router config is
// valid. Returns a slice of validation errors (empty if all valid).
func (a *ModelAliases) ValidateRouterConfig(cfg *RouterConfig) []error {
	if a == nil || cfg == nil {
		return nil
	}

	var errors []error

	model := a.Resolve(cfg.ClassifierModel)
	if err := a.ValidateModel(cfg.ClassifierAdapter, model); err != nil {
		errors = append(errors, fmt.Errorf("classifier: %w", err))
	}

	return errors
}

// DefaultAliases returns the default model aliases configuration.
func DefaultAliases() *ModelAliases {
	return &ModelAliases{
		Aliases: map[string]string{
			// Anthropic
			"fast":    "claude-haiku-4-5-20251001",
			"quality": "claude-sonnet-4-20250514",
			// OpenAI
			"instant":  "gpt-5.2-instant",
			"thinking": "gpt-5.2-thinking",
			// Google
			"flash": "gemini-2.0-flash",
			// DeepSeek
			"cheap": "deepseek-chat",
		},
		Providers: map[string][]string{
			"anthropic": {"claude-haiku-4-5-20251001", "claude-sonnet-4-20250514"},
			"openai":    {"gpt-5.2-instant", "gpt-5.2-thinking"},
			"google":    {"gemini-2.0-flash"},
			"deepseek":  {"deepseek-chat"},
			"mock":      {"mock-1"},
		},
	}
}
