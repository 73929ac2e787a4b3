package llmadapter

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrProviderUnconfigured is returned when a provider needs credentials that
// are not set.
var ErrProviderUnconfigured = errors.New("llm provider is not configured")

// Error codes for failures that do not map to an HTTP status.
const (
	ErrCodeRateLimit         = "RATE_LIMIT"
	ErrCodeUnavailable       = "SERVICE_UNAVAILABLE"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeBadRequest        = "BAD_REQUEST"
	ErrCodeInternal          = "INTERNAL"
	ErrCodeInvalidModel      = "INVALID_MODEL"
	ErrCodeContentPolicy     = "CONTENT_POLICY"
	ErrCodeQuotaExceeded     = "QUOTA_EXCEEDED"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeConnectionReset   = "CONNECTION_RESET"
	ErrCodeConnectionRefused = "CONNECTION_REFUSED"
	ErrCodeEmptyResponse     = "EMPTY_RESPONSE"
)

// Error is a classified provider failure.
type Error struct {
	StatusCode int
	Code       string
	Message    string
	Provider   string
	Err        error
}

// NewError classifies a failure by HTTP status.
func NewError(statusCode int, message, provider string, err error) *Error {
	return &Error{
		StatusCode: statusCode,
		Code:       codeForStatus(statusCode),
		Message:    message,
		Provider:   provider,
		Err:        err,
	}
}

// NewErrorWithCode classifies a failure by code.
func NewErrorWithCode(code, message, provider string, err error) *Error {
	return &Error{Code: code, Message: message, Provider: provider, Err: err}
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s error (%d %s): %s", e.Provider, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error (%s): %s", e.Provider, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether a later attempt may succeed.
func (e *Error) IsRetryable() bool {
	switch e.Code {
	case ErrCodeRateLimit, ErrCodeUnavailable, ErrCodeTimeout,
		ErrCodeConnectionReset, ErrCodeConnectionRefused, ErrCodeInternal, ErrCodeEmptyResponse:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether err is a retryable provider error.
func IsRetryable(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.IsRetryable()
	}
	return false
}

func codeForStatus(status int) string {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrCodeRateLimit
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrCodeUnauthorized
	case status == http.StatusServiceUnavailable || status == http.StatusBadGateway:
		return ErrCodeUnavailable
	case status == http.StatusGatewayTimeout || status == http.StatusRequestTimeout:
		return ErrCodeTimeout
	case status >= 500:
		return ErrCodeInternal
	default:
		return ErrCodeBadRequest
	}
}
