package core

import (
	"fmt"

	"dario.cat/mergo"
)

// ProviderName identifies an LLM or embedding backend.
type ProviderName string

const (
	ProviderOpenAI    ProviderName = "openai"
	ProviderGroq      ProviderName = "groq"
	ProviderAnthropic ProviderName = "anthropic"
	ProviderGoogle    ProviderName = "google"
	ProviderOllama    ProviderName = "ollama"
	ProviderDeepSeek  ProviderName = "deepseek"
	ProviderMock      ProviderName = "mock" // Mock provider for testing
)

type PromptParams struct {
	MaxTokens   int32    `json:"max_tokens,omitempty"  yaml:"max_tokens,omitempty"  mapstructure:"max_tokens,omitempty"`
	Temperature float64  `json:"temperature,omitempty" yaml:"temperature,omitempty" mapstructure:"temperature,omitempty"`
	StopWords   []string `json:"stop_words,omitempty"  yaml:"stop_words,omitempty"  mapstructure:"stop_words,omitempty"`
}

// ProviderConfig represents provider-specific configuration options
type ProviderConfig struct {
	Provider ProviderName `json:"provider" yaml:"provider" mapstructure:"provider"`
	Model    string       `json:"model"    yaml:"model"    mapstructure:"model"`
	APIKey   string       `json:"-"        yaml:"-"        mapstructure:"api_key"`
	APIURL   string       `json:"api_url"  yaml:"api_url"  mapstructure:"api_url"`
	Params   PromptParams `json:"params"   yaml:"params"   mapstructure:"params"`
}

// NewProviderConfig creates a new ProviderConfig
func NewProviderConfig(provider ProviderName, model string, apiKey string) *ProviderConfig {
	return &ProviderConfig{
		Provider: provider,
		Model:    model,
		APIKey:   apiKey,
	}
}

// WithOverrides returns a copy of p where every non-zero field of override wins.
// Switching provider without a new key drops the inherited key.
func (p *ProviderConfig) WithOverrides(override *ProviderConfig) (*ProviderConfig, error) {
	merged := *p
	merged.Params.StopWords = append([]string(nil), p.Params.StopWords...)
	if override == nil {
		return &merged, nil
	}
	if err := mergo.Merge(&merged, override, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge provider config: %w", err)
	}
	if override.Provider != "" && override.Provider != p.Provider && override.APIKey == "" {
		merged.APIKey = ""
		if override.APIURL == "" {
			merged.APIURL = ""
		}
	}
	return &merged, nil
}

// String hides the API key.
func (p *ProviderConfig) String() string {
	if p == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s/%s", p.Provider, p.Model)
}
