package pipeline

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/compozy/arag/engine/infra/monitoring/metrics"
)

type instruments struct {
	route      metric.Int64Counter
	relevance  metric.Int64Counter
	webSearch  metric.Int64Counter
	generation metric.Int64Counter
	outcome    metric.Int64Counter
	failure    metric.Int64Counter
	duration   metric.Float64Histogram
}

var (
	metricsMu     sync.Mutex
	metricsLoaded bool
	loaded        *instruments
)

// loadInstruments returns the instrument set, building it on first use. The
// returned set is never mutated, so callers record without holding the lock.
func loadInstruments() *instruments {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	if !metricsLoaded {
		metricsLoaded = true
		meter := otel.GetMeterProvider().Meter("arag.pipeline")
		if inst, err := initMetrics(meter); err == nil {
			loaded = inst
		}
	}
	return loaded
}

func recordRoute(ctx context.Context, route Route) {
	inst := loadInstruments()
	if inst == nil {
		return
	}
	inst.route.Add(ctx, 1, metric.WithAttributes(attribute.String("route", string(route))))
}

func recordRelevance(ctx context.Context, verdict string) {
	inst := loadInstruments()
	if inst == nil {
		return
	}
	inst.relevance.Add(ctx, 1, metric.WithAttributes(attribute.String("verdict", verdict)))
}

func recordWebSearch(ctx context.Context, status string) {
	inst := loadInstruments()
	if inst == nil {
		return
	}
	inst.webSearch.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func recordGenerationAttempt(ctx context.Context, attempt int) {
	inst := loadInstruments()
	if inst == nil {
		return
	}
	inst.generation.Add(ctx, 1, metric.WithAttributes(attribute.String("attempt", strconv.Itoa(attempt))))
}

func recordOutcome(ctx context.Context, terminal string, state *State, d time.Duration) {
	inst := loadInstruments()
	if inst == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("state", terminal),
		attribute.String("route", string(state.Route)),
		attribute.Bool("web_search", state.WebSearch),
		attribute.Bool("low_confidence", state.LowConfidence),
	)
	inst.outcome.Add(ctx, 1, attrs)
	inst.duration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("state", terminal)))
	for _, f := range state.Failures {
		inst.failure.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(f.Kind))))
	}
}

// ResetMetricsForTesting drops the cached instruments so a test meter provider
// can be installed. Runs already in flight keep recording on the old set.
func ResetMetricsForTesting() {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	metricsLoaded = false
	loaded = nil
}

func initMetrics(meter metric.Meter) (*instruments, error) {
	inst := &instruments{}
	var err error
	inst.route, err = meter.Int64Counter(
		metrics.MetricNameWithSubsystem("pipeline", "route_decisions_total"),
		metric.WithDescription("Router decisions by route"),
	)
	if err != nil {
		return nil, err
	}
	inst.relevance, err = meter.Int64Counter(
		metrics.MetricNameWithSubsystem("pipeline", "relevance_verdicts_total"),
		metric.WithDescription("Document relevance verdicts"),
	)
	if err != nil {
		return nil, err
	}
	inst.webSearch, err = meter.Int64Counter(
		metrics.MetricNameWithSubsystem("pipeline", "web_searches_total"),
		metric.WithDescription("Web search augmentations by status"),
	)
	if err != nil {
		return nil, err
	}
	inst.generation, err = meter.Int64Counter(
		metrics.MetricNameWithSubsystem("pipeline", "generation_attempts_total"),
		metric.WithDescription("Answer generation attempts"),
	)
	if err != nil {
		return nil, err
	}
	inst.outcome, err = meter.Int64Counter(
		metrics.MetricNameWithSubsystem("pipeline", "runs_total"),
		metric.WithDescription("Completed pipeline runs by terminal state"),
	)
	if err != nil {
		return nil, err
	}
	inst.failure, err = meter.Int64Counter(
		metrics.MetricNameWithSubsystem("pipeline", "failures_total"),
		metric.WithDescription("Collaborator failures observed by kind"),
	)
	if err != nil {
		return nil, err
	}
	inst.duration, err = meter.Float64Histogram(
		metrics.MetricNameWithSubsystem("pipeline", "duration_seconds"),
		metric.WithDescription("End to end question latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(metrics.PipelineDurationBuckets...),
	)
	if err != nil {
		return nil, err
	}
	return inst, nil
}
