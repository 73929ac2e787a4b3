package chains

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	llmadapter "github.com/compozy/arag/engine/llm/adapter"
	"github.com/compozy/arag/pkg/logger"
)

const (
	defaultMaxAttempts = 3
	defaultBackoffBase = 500 * time.Millisecond
	defaultBackoffMax  = 10 * time.Second
)

type settings struct {
	timeout     time.Duration
	maxAttempts int
	backoffBase time.Duration
	backoffMax  time.Duration
	temperature float64
	usage       llmadapter.UsageMetrics
	provider    string
	model       string
}

func defaultSettings() settings {
	return settings{
		maxAttempts: defaultMaxAttempts,
		backoffBase: defaultBackoffBase,
		backoffMax:  defaultBackoffMax,
	}
}

// Option tunes how a chain calls its model.
type Option func(*settings)

// WithTimeout bounds every attempt.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithMaxAttempts sets the total number of calls made for one request.
func WithMaxAttempts(n int) Option {
	return func(s *settings) {
		if n > 0 && n <= 10 {
			s.maxAttempts = n
		}
	}
}

// WithBackoff sets the exponential backoff between attempts.
func WithBackoff(base, maxDuration time.Duration) Option {
	return func(s *settings) {
		if base > 0 {
			s.backoffBase = base
		}
		if maxDuration > 0 {
			s.backoffMax = maxDuration
		}
	}
}

// WithTemperature sets the sampling temperature. Graders ignore it.
func WithTemperature(t float64) Option {
	return func(s *settings) {
		if t >= 0 {
			s.temperature = t
		}
	}
}

// WithUsageMetrics reports token usage of every call, labelled with the
// provider and model the client was built for.
func WithUsageMetrics(m llmadapter.UsageMetrics, provider, model string) Option {
	return func(s *settings) {
		s.usage = m
		s.provider = provider
		s.model = model
	}
}

func (s settings) recordCall(ctx context.Context, chain string, resp *llmadapter.LLMResponse, err error, took time.Duration) {
	if s.usage == nil {
		return
	}
	if err != nil {
		s.usage.RecordFailure(ctx, chain, s.provider, s.model, took)
		return
	}
	var prompt, completion int
	if resp != nil && resp.Usage != nil {
		prompt, completion = resp.Usage.PromptTokens, resp.Usage.CompletionTokens
	}
	s.usage.RecordSuccess(ctx, chain, s.provider, s.model, prompt, completion, took)
}

func newSettings(opts []Option) settings {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// invoke calls the model and parses its answer, retrying transient provider
// errors and unparseable replies.
func invoke[T any](
	ctx context.Context,
	client llmadapter.LLMClient,
	cfg settings,
	chain string,
	req *llmadapter.LLMRequest,
	parse func(content string) (T, error),
) (T, error) {
	var result T
	backoff := retry.WithMaxRetries(
		uint64(cfg.maxAttempts-1), // #nosec G115 -- bounded by WithMaxAttempts
		retry.WithMaxDuration(cfg.backoffMax, retry.NewExponential(cfg.backoffBase)),
	)
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		callCtx := ctx
		if cfg.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, cfg.timeout)
			defer cancel()
		}
		start := time.Now()
		resp, err := client.GenerateContent(callCtx, req)
		cfg.recordCall(ctx, chain, resp, err, time.Since(start))
		if err != nil {
			if llmadapter.IsRetryable(err) {
				logger.FromContext(ctx).Debug("Retrying LLM call", "chain", chain, "attempt", attempt, "error", err)
				return retry.RetryableError(err)
			}
			return err
		}
		parsed, err := parse(resp.Content)
		if err != nil {
			logger.FromContext(ctx).Debug("Retrying unparseable LLM reply", "chain", chain, "attempt", attempt)
			return retry.RetryableError(err)
		}
		result = parsed
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("%s: %w", chain, err)
	}
	return result, nil
}
