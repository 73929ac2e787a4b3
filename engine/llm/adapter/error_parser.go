package llmadapter

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

var (
	statusPrefixRe = regexp.MustCompile(`(?i)(?:status(?:\s*code)?[:=]?\s*|http\s+|error\s+|code\s*[:=]?\s*)([1-5]\d\d)\b`)
	bareStatusRe   = regexp.MustCompile(`\b(400|401|403|404|408|429|500|502|503|504)\b`)
)

type errorPattern struct {
	needles []string
	status  int
	code    string
}

var providerPatterns = []errorPattern{
	{
		needles: []string{
			"rate limit", "rate-limit", "ratelimit", "too many requests",
			"throttled", "throttling", "resource_exhausted", "resource exhausted",
		},
		status: http.StatusTooManyRequests,
	},
	{
		needles: []string{"insufficient_quota", "quota exceeded", "quota_exceeded"},
		code:    ErrCodeQuotaExceeded,
	},
	{
		needles: []string{
			"service unavailable", "service_unavailable", "temporarily unavailable",
			"overloaded", "try again later",
		},
		status: http.StatusServiceUnavailable,
	},
	{
		needles: []string{
			"unauthorized", "invalid api key", "invalid_api_key", "api key not valid",
			"permission denied", "permission_denied", "authentication",
		},
		status: http.StatusUnauthorized,
	},
	{needles: []string{"invalid model", "model not found", "unknown model"}, code: ErrCodeInvalidModel},
	{needles: []string{"content policy", "safety", "blocked"}, code: ErrCodeContentPolicy},
}

var networkPatterns = []errorPattern{
	{needles: []string{"timeout", "timed out", "deadline exceeded"}, code: ErrCodeTimeout},
	{needles: []string{"connection reset", "broken pipe", "unexpected eof"}, code: ErrCodeConnectionReset},
	{
		needles: []string{"connection refused", "connection failed", "no such host", "network is unreachable"},
		code:    ErrCodeConnectionRefused,
	},
}

// ErrorParser classifies raw provider errors.
type ErrorParser struct {
	provider string
}

// NewErrorParser creates a new error parser for the given provider
func NewErrorParser(provider string) *ErrorParser {
	return &ErrorParser{provider: provider}
}

// ParseError returns a classified *Error, or nil when nothing matched.
func (p *ErrorParser) ParseError(err error) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return existing
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewErrorWithCode(ErrCodeTimeout, err.Error(), p.provider, err)
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	if status := extractHTTPStatusCode(msg); status > 0 {
		return NewError(status, msg, p.provider, err)
	}
	if matched := matchPatterns(providerPatterns, lower, msg, p.provider, err); matched != nil {
		return matched
	}
	return matchPatterns(networkPatterns, lower, msg, p.provider, err)
}

// Wrap classifies err or wraps it as an internal provider error.
func (p *ErrorParser) Wrap(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if parsed := p.ParseError(err); parsed != nil {
		return parsed
	}
	return NewErrorWithCode(ErrCodeBadRequest, err.Error(), p.provider, err)
}

func extractHTTPStatusCode(msg string) int {
	if m := statusPrefixRe.FindStringSubmatch(msg); len(m) == 2 {
		if code, err := strconv.Atoi(m[1]); err == nil && code >= 400 {
			return code
		}
	}
	if m := bareStatusRe.FindStringSubmatch(msg); len(m) == 2 {
		code, err := strconv.Atoi(m[1])
		if err == nil {
			return code
		}
	}
	return 0
}

func matchPatterns(patterns []errorPattern, lower, msg, provider string, err error) *Error {
	for _, pattern := range patterns {
		for _, needle := range pattern.needles {
			if !strings.Contains(lower, needle) {
				continue
			}
			if pattern.status > 0 {
				return NewError(pattern.status, msg, provider, err)
			}
			return NewErrorWithCode(pattern.code, msg, provider, err)
		}
	}
	return nil
}
