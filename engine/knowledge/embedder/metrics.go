package embedder

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	monitoringmetrics "github.com/compozy/arag/engine/infra/monitoring/metrics"
)

const (
	opDocuments = "documents"
	opQuery     = "query"
)

var (
	embedMetricsOnce sync.Once
	embedMetricsErr  error
	embedLatency     metric.Float64Histogram
	embedTexts       metric.Int64Counter
	embedErrors      metric.Int64Counter
	embedCache       metric.Int64Counter
)

func ensureEmbedMetrics() error {
	embedMetricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("arag.knowledge.embedder")
		embedLatency, embedMetricsErr = meter.Float64Histogram(
			monitoringmetrics.MetricNameWithSubsystem("embedder", "request_seconds"),
			metric.WithDescription("Embedding request latency"),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(monitoringmetrics.CollaboratorDurationBuckets...),
		)
		if embedMetricsErr != nil {
			return
		}
		embedTexts, embedMetricsErr = meter.Int64Counter(
			monitoringmetrics.MetricNameWithSubsystem("embedder", "texts_total"),
			metric.WithDescription("Texts embedded"),
		)
		if embedMetricsErr != nil {
			return
		}
		embedErrors, embedMetricsErr = meter.Int64Counter(
			monitoringmetrics.MetricNameWithSubsystem("embedder", "errors_total"),
			metric.WithDescription("Embedding failures"),
		)
		if embedMetricsErr != nil {
			return
		}
		embedCache, embedMetricsErr = meter.Int64Counter(
			monitoringmetrics.MetricNameWithSubsystem("embedder", "cache_lookups_total"),
			metric.WithDescription("Query embedding cache lookups by result"),
		)
	})
	return embedMetricsErr
}

func recordEmbedding(ctx context.Context, provider Provider, operation string, texts int, took time.Duration) {
	if ensureEmbedMetrics() != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("provider", string(provider)),
		attribute.String("operation", operation),
	)
	embedLatency.Record(ctx, took.Seconds(), attrs)
	embedTexts.Add(ctx, int64(texts), attrs)
}

func recordEmbedError(ctx context.Context, provider Provider, operation string) {
	if ensureEmbedMetrics() != nil {
		return
	}
	embedErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", string(provider)),
		attribute.String("operation", operation),
	))
}

func recordCacheLookup(ctx context.Context, provider Provider, hit bool) {
	if ensureEmbedMetrics() != nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	embedCache.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", string(provider)),
		attribute.String("result", result),
	))
}
