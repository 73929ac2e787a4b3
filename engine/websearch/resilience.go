package websearch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/slok/goresilience"
	"github.com/slok/goresilience/circuitbreaker"
	gerrors "github.com/slok/goresilience/errors"
	"github.com/slok/goresilience/timeout"

	"github.com/compozy/arag/engine/pipeline"
)

// ResilienceConfig holds configuration for resilience patterns
type ResilienceConfig struct {
	TimeoutDuration             time.Duration
	ErrorPercentThresholdToOpen int
	MinimumRequestToOpen        int
	WaitDurationInOpenState     time.Duration
}

// DefaultResilienceConfig returns default resilience configuration
func DefaultResilienceConfig() *ResilienceConfig {
	return &ResilienceConfig{
		TimeoutDuration:             20 * time.Second,
		ErrorPercentThresholdToOpen: 50,
		MinimumRequestToOpen:        5,
		WaitDurationInOpenState:     30 * time.Second,
	}
}

// ResilientSearcher guards a searcher with a timeout and a circuit breaker so
// a failing backend is skipped quickly instead of stalling every question.
type ResilientSearcher struct {
	searcher pipeline.WebSearcher
	runner   goresilience.Runner
}

var _ pipeline.WebSearcher = (*ResilientSearcher)(nil)

func NewResilientSearcher(searcher pipeline.WebSearcher, config *ResilienceConfig) *ResilientSearcher {
	if config == nil {
		config = DefaultResilienceConfig()
	}
	cbMiddleware := circuitbreaker.NewMiddleware(circuitbreaker.Config{
		ErrorPercentThresholdToOpen:        config.ErrorPercentThresholdToOpen,
		MinimumRequestToOpen:               config.MinimumRequestToOpen,
		SuccessfulRequiredOnHalfOpen:       1,
		WaitDurationInOpenState:            config.WaitDurationInOpenState,
		MetricsSlidingWindowBucketQuantity: 10,
		MetricsBucketDuration:              1 * time.Second,
	})
	timeoutMiddleware := timeout.NewMiddleware(timeout.Config{
		Timeout: config.TimeoutDuration,
	})
	runner := goresilience.RunnerChain(
		timeoutMiddleware,
		cbMiddleware,
	)
	return &ResilientSearcher{searcher: searcher, runner: runner}
}

func (r *ResilientSearcher) Search(ctx context.Context, query string) ([]pipeline.SearchHit, error) {
	if r.searcher == nil {
		return nil, ErrUnconfigured
	}
	start := time.Now()
	var hits []pipeline.SearchHit
	err := r.runner.Run(ctx, func(ctx context.Context) (runErr error) {
		defer func() {
			if rec := recover(); rec != nil {
				runErr = fmt.Errorf("panic recovered: %v", rec)
			}
		}()
		result, err := r.searcher.Search(ctx, query)
		if err != nil {
			return err
		}
		hits = result
		return nil
	})
	recordSearch(ctx, searchStatus(err), time.Since(start))
	if err != nil {
		return nil, err
	}
	return hits, nil
}

func searchStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, gerrors.ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, gerrors.ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrUnconfigured):
		return "unconfigured"
	default:
		return "error"
	}
}
