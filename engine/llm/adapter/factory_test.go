package llmadapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compozy/arag/engine/core"
)

func TestDefaultFactory_CreateClient(t *testing.T) {
	ctx := context.Background()
	factory := NewDefaultFactory()

	t.Run("Should create a mock client without an API key", func(t *testing.T) {
		client, err := factory.CreateClient(ctx, core.NewProviderConfig(core.ProviderMock, "mock-model", ""))
		require.NoError(t, err)
		require.NotNil(t, client)
		assert.NoError(t, client.Close())
	})

	t.Run("Should create an ollama client without an API key", func(t *testing.T) {
		cfg := core.NewProviderConfig(core.ProviderOllama, "llama3", "")
		cfg.APIURL = "http://localhost:11434"
		client, err := factory.CreateClient(ctx, cfg)
		require.NoError(t, err)
		assert.NotNil(t, client)
	})

	t.Run("Should report unconfigured providers that need a key", func(t *testing.T) {
		for _, provider := range []core.ProviderName{
			core.ProviderGoogle, core.ProviderOpenAI, core.ProviderAnthropic,
			core.ProviderGroq, core.ProviderDeepSeek,
		} {
			_, err := factory.CreateClient(ctx, core.NewProviderConfig(provider, "m", ""))
			assert.ErrorIs(t, err, ErrProviderUnconfigured, string(provider))
		}
	})

	t.Run("Should reject unknown providers", func(t *testing.T) {
		_, err := factory.CreateClient(ctx, core.NewProviderConfig("xai", "grok", "key"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported LLM provider")
	})

	t.Run("Should reject nil config", func(t *testing.T) {
		_, err := NewClient(ctx, nil)
		assert.Error(t, err)
	})

	t.Run("Should create an openai compatible client for groq", func(t *testing.T) {
		client, err := NewClient(ctx, core.NewProviderConfig(core.ProviderGroq, "llama-3.1-8b-instant", "gsk_test"))
		require.NoError(t, err)
		assert.NotNil(t, client)
	})
}
