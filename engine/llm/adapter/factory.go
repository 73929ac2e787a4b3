package llmadapter

import (
	"context"
	"fmt"

	"github.com/compozy/arag/engine/core"
)

// DefaultFactory is a default implementation of the Factory interface
type DefaultFactory struct{}

// NewDefaultFactory creates a new DefaultFactory
func NewDefaultFactory() Factory {
	return &DefaultFactory{}
}

// CreateClient creates a new LLMClient for the given provider. Providers that
// need an API key fail with ErrProviderUnconfigured when none is set.
func (f *DefaultFactory) CreateClient(ctx context.Context, config *core.ProviderConfig) (LLMClient, error) {
	if config == nil {
		return nil, fmt.Errorf("provider config must not be nil")
	}
	switch config.Provider {
	case core.ProviderOpenAI, core.ProviderAnthropic, core.ProviderGroq,
		core.ProviderMock, core.ProviderOllama, core.ProviderGoogle,
		core.ProviderDeepSeek:
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", config.Provider)
	}
	if RequiresAPIKey(config.Provider) && config.APIKey == "" {
		return nil, fmt.Errorf("%w: %s requires an API key", ErrProviderUnconfigured, config.Provider)
	}
	return NewLangChainAdapter(ctx, config)
}

// NewClient creates a client with the default factory.
func NewClient(ctx context.Context, config *core.ProviderConfig) (LLMClient, error) {
	return NewDefaultFactory().CreateClient(ctx, config)
}
