package config

import (
	"github.com/zen-systems/switchboard/pkg/adapter"
	"github.com/zen-systems/switchboard/pkg/catalog"
)

// DefaultWeight applies to backends whose weight is unset.
const DefaultWeight = 50

// BackendConfig describes one backend in the config file.
type BackendConfig struct {
	ID      string `yaml:"id"`
	Adapter string `yaml:"adapter"`
	Model   string `yaml:"model"`
	// Weight is a pointer so an explicit 0 (disabled) differs from unset.
	Weight     *int           `yaml:"weight,omitempty"`
	Tags       []string       `yaml:"tags,omitempty"`
	APIKeyEnv  string         `yaml:"api_key_env,omitempty"`
	BaseURL    string         `yaml:"base_url,omitempty"`
	BaseURLEnv string         `yaml:"base_url_env,omitempty"`
	Pricing    *PricingConfig `yaml:"pricing,omitempty"`
	Disabled   bool           `yaml:"disabled,omitempty"`
}

// PricingConfig defines per-1k token pricing.
type PricingConfig struct {
	PromptPer1K     float64 `yaml:"prompt_per_1k,omitempty"`
	CompletionPer1K float64 `yaml:"completion_per_1k,omitempty"`
}

// EffectiveWeight returns the configured weight, DefaultWeight when unset.
func (b BackendConfig) EffectiveWeight() int {
	if b.Weight == nil {
		return DefaultWeight
	}
	return *b.Weight
}

type adapterEnv struct {
	keyEnv  string
	baseEnv string
}

var adapterEnvDefaults = map[string]adapterEnv{
	adapter.KindOpenAI:    {keyEnv: "OPENAI_API_KEY", baseEnv: "OPENAI_API_BASE"},
	adapter.KindAnthropic: {keyEnv: "ANTHROPIC_API_KEY", baseEnv: "ANTHROPIC_API_BASE"},
	adapter.KindGoogle:    {keyEnv: "GEMINI_API_KEY", baseEnv: "GEMINI_API_BASE"},
	adapter.KindDeepSeek:  {keyEnv: "DEEPSEEK_API_KEY", baseEnv: "DEEPSEEK_API_BASE"},
	adapter.KindOllama:    {baseEnv: "OLLAMA_API_BASE"},
}

func adapterKinds() []string {
	return append(adapter.Kinds(), "gemini")
}

func applyBackendDefaults(b *BackendConfig) {
	kind := adapter.NormalizeKind(b.Adapter)
	env := adapterEnvDefaults[kind]
	if b.APIKeyEnv == "" && adapter.RequiresKey(kind) {
		b.APIKeyEnv = env.keyEnv
	}
	if b.BaseURLEnv == "" {
		b.BaseURLEnv = env.baseEnv
	}
	if b.Weight == nil {
		w := DefaultWeight
		b.Weight = &w
	}
}

func (b BackendConfig) pricing() *adapter.Pricing {
	if b.Pricing == nil {
		return nil
	}
	return &adapter.Pricing{
		PromptPer1K:     b.Pricing.PromptPer1K,
		CompletionPer1K: b.Pricing.CompletionPer1K,
	}
}

func weight(w int) *int {
	return &w
}

// DefaultBackends returns one backend per supported vendor.
func DefaultBackends() []BackendConfig {
	return []BackendConfig{
		{
			ID:      "openai",
			Adapter: adapter.KindOpenAI,
			Model:   "gpt-4o",
			Weight:  weight(60),
			Tags:    []string{catalog.TagCode, catalog.TagMath, catalog.TagComplex},
			Pricing: &PricingConfig{PromptPer1K: 0.0025, CompletionPer1K: 0.01},
		},
		{
			ID:      "anthropic",
			Adapter: adapter.KindAnthropic,
			Model:   "claude-sonnet-4-20250514",
			Weight:  weight(60),
			Tags:    []string{catalog.TagCode, catalog.TagCreative, catalog.TagComplex},
			Pricing: &PricingConfig{PromptPer1K: 0.003, CompletionPer1K: 0.015},
		},
		{
			ID:      "gemini",
			Adapter: adapter.KindGoogle,
			Model:   "gemini-2.0-flash",
			Weight:  weight(50),
			Tags:    []string{catalog.TagTranslation, catalog.TagNonLatin, catalog.TagSimple},
			Pricing: &PricingConfig{PromptPer1K: 0.0001, CompletionPer1K: 0.0004},
		},
		{
			ID:      "deepseek",
			Adapter: adapter.KindDeepSeek,
			Model:   "deepseek-chat",
			Weight:  weight(50),
			Tags:    []string{catalog.TagCode, catalog.TagMath, catalog.TagNonLatin},
			Pricing: &PricingConfig{PromptPer1K: 0.00027, CompletionPer1K: 0.0011},
		},
		{
			ID:      "ollama",
			Adapter: adapter.KindOllama,
			Model:   "llama3",
			Weight:  weight(20),
			Tags:    []string{catalog.TagSimple},
		},
	}
}
