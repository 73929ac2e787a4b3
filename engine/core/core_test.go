package core_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/compozy/arag/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewError(t *testing.T) {
	t.Run("Should wrap the cause and expose the code", func(t *testing.T) {
		cause := errors.New("boom")
		err := core.NewError(cause, "RETRIEVAL_FAILED", map[string]any{"k": 3})
		assert.Equal(t, "RETRIEVAL_FAILED: boom", err.Error())
		assert.ErrorIs(t, err, cause)
		var coreErr *core.Error
		require.True(t, errors.As(error(err), &coreErr))
		assert.Equal(t, "RETRIEVAL_FAILED", coreErr.Code)
	})
	t.Run("Should use the code as message without a cause", func(t *testing.T) {
		err := core.NewError(nil, "RATE_LIMITED", nil)
		assert.Equal(t, "RATE_LIMITED", err.Error())
		assert.Equal(t, map[string]any{"message": "RATE_LIMITED", "code": "RATE_LIMITED"}, err.AsMap())
	})
}

func TestProviderConfig_WithOverrides(t *testing.T) {
	base := core.NewProviderConfig(core.ProviderGoogle, "gemini-2.0-flash-lite", "base-key")
	base.Params.Temperature = 0.2

	t.Run("Should keep base values for empty override fields", func(t *testing.T) {
		merged, err := base.WithOverrides(&core.ProviderConfig{Model: "gemini-1.5-pro"})
		require.NoError(t, err)
		assert.Equal(t, core.ProviderGoogle, merged.Provider)
		assert.Equal(t, "gemini-1.5-pro", merged.Model)
		assert.Equal(t, "base-key", merged.APIKey)
		assert.InDelta(t, 0.2, merged.Params.Temperature, 1e-9)
		assert.Equal(t, "gemini-2.0-flash-lite", base.Model)
	})
	t.Run("Should drop the inherited key when switching provider", func(t *testing.T) {
		merged, err := base.WithOverrides(&core.ProviderConfig{Provider: core.ProviderOpenAI, Model: "gpt-4o-mini"})
		require.NoError(t, err)
		assert.Equal(t, core.ProviderOpenAI, merged.Provider)
		assert.Empty(t, merged.APIKey)
	})
	t.Run("Should return a copy for nil override", func(t *testing.T) {
		merged, err := base.WithOverrides(nil)
		require.NoError(t, err)
		assert.NotSame(t, base, merged)
		assert.Equal(t, "google/gemini-2.0-flash-lite", merged.String())
	})
}

func TestBuildProblemBody(t *testing.T) {
	t.Run("Should normalize and include extras", func(t *testing.T) {
		problem := core.NormalizeProblem(&core.Problem{
			Status: http.StatusBadRequest,
			Detail: "question is required",
			Extras: map[string]any{"code": "BAD_REQUEST", "field": "question"},
		})
		body := core.BuildProblemBody(problem)
		assert.Equal(t, "Bad Request", body["error"])
		assert.Equal(t, "BAD_REQUEST", body["code"])
		assert.Equal(t, "question", body["field"])
		assert.Equal(t, "about:blank", body["type"])
	})
}
