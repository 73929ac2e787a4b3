package websearch

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/compozy/arag/engine/infra/monitoring/metrics"
)

var (
	metricsOnce    sync.Once
	metricsInitErr error
	searchCounter  metric.Int64Counter
	searchLatency  metric.Float64Histogram
	cacheCounter   metric.Int64Counter
)

func ensureMetrics() error {
	metricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("arag.websearch")
		searchCounter, metricsInitErr = meter.Int64Counter(
			metrics.MetricNameWithSubsystem("websearch", "requests_total"),
			metric.WithDescription("Web search backend calls by outcome"),
		)
		if metricsInitErr != nil {
			return
		}
		searchLatency, metricsInitErr = meter.Float64Histogram(
			metrics.MetricNameWithSubsystem("websearch", "request_seconds"),
			metric.WithDescription("Web search backend latency"),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(metrics.CollaboratorDurationBuckets...),
		)
		if metricsInitErr != nil {
			return
		}
		cacheCounter, metricsInitErr = meter.Int64Counter(
			metrics.MetricNameWithSubsystem("websearch", "cache_lookups_total"),
			metric.WithDescription("Web search cache lookups by result"),
		)
	})
	return metricsInitErr
}

func recordSearch(ctx context.Context, status string, took time.Duration) {
	if err := ensureMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	searchCounter.Add(ctx, 1, attrs)
	searchLatency.Record(ctx, took.Seconds(), attrs)
}

func recordCacheLookup(ctx context.Context, hit bool) {
	if err := ensureMetrics(); err != nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
