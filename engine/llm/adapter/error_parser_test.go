package llmadapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorParser_ParseError(t *testing.T) {
	parser := NewErrorParser("google")

	t.Run("Should return nil for nil error", func(t *testing.T) {
		assert.Nil(t, parser.ParseError(nil))
	})

	t.Run("Should extract status codes from provider messages", func(t *testing.T) {
		cases := []struct {
			msg    string
			status int
			code   string
		}{
			{"googleapi: Error 429: Resource has been exhausted", http.StatusTooManyRequests, ErrCodeRateLimit},
			{"API returned unexpected status code: 401", http.StatusUnauthorized, ErrCodeUnauthorized},
			{"status 503 from upstream", http.StatusServiceUnavailable, ErrCodeUnavailable},
			{"HTTP 500 internal", http.StatusInternalServerError, ErrCodeInternal},
		}
		for _, tc := range cases {
			parsed := parser.ParseError(errors.New(tc.msg))
			require.NotNil(t, parsed, tc.msg)
			assert.Equal(t, tc.status, parsed.StatusCode, tc.msg)
			assert.Equal(t, tc.code, parsed.Code, tc.msg)
			assert.Equal(t, "google", parsed.Provider)
		}
	})

	t.Run("Should classify messages without status codes", func(t *testing.T) {
		cases := map[string]string{
			"you are being rate limited":               ErrCodeRateLimit,
			"insufficient_quota for this organization": ErrCodeQuotaExceeded,
			"the model is overloaded":                  ErrCodeUnavailable,
			"API key not valid. Please pass a valid":   ErrCodeUnauthorized,
			"model not found: gemini-x":                ErrCodeInvalidModel,
			"dial tcp: i/o timeout":                    ErrCodeTimeout,
			"read: connection reset by peer":           ErrCodeConnectionReset,
			"dial tcp: connect: connection refused":    ErrCodeConnectionRefused,
		}
		for msg, code := range cases {
			parsed := parser.ParseError(errors.New(msg))
			require.NotNil(t, parsed, msg)
			assert.Equal(t, code, parsed.Code, msg)
		}
	})

	t.Run("Should map deadline exceeded to timeout", func(t *testing.T) {
		parsed := parser.ParseError(fmt.Errorf("call: %w", context.DeadlineExceeded))
		require.NotNil(t, parsed)
		assert.Equal(t, ErrCodeTimeout, parsed.Code)
		assert.True(t, parsed.IsRetryable())
	})

	t.Run("Should keep an already classified error", func(t *testing.T) {
		original := NewErrorWithCode(ErrCodeContentPolicy, "blocked", "openai", nil)
		parsed := parser.ParseError(fmt.Errorf("wrapped: %w", original))
		assert.Same(t, original, parsed)
	})

	t.Run("Should return nil when nothing matches", func(t *testing.T) {
		assert.Nil(t, parser.ParseError(errors.New("something odd")))
	})
}

func TestErrorParser_Wrap(t *testing.T) {
	parser := NewErrorParser("openai")

	t.Run("Should pass context cancellation through", func(t *testing.T) {
		err := parser.Wrap(context.Canceled)
		assert.ErrorIs(t, err, context.Canceled)
		var llmErr *Error
		assert.False(t, errors.As(err, &llmErr))
	})

	t.Run("Should wrap unknown errors as bad request", func(t *testing.T) {
		cause := errors.New("something odd")
		err := parser.Wrap(cause)
		var llmErr *Error
		require.ErrorAs(t, err, &llmErr)
		assert.Equal(t, ErrCodeBadRequest, llmErr.Code)
		assert.ErrorIs(t, err, cause)
		assert.False(t, IsRetryable(err))
	})

	t.Run("Should mark rate limits retryable", func(t *testing.T) {
		err := parser.Wrap(errors.New("429 Too Many Requests"))
		assert.True(t, IsRetryable(err))
		assert.Contains(t, err.Error(), "openai error (429 RATE_LIMIT)")
	})
}
