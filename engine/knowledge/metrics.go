package knowledge

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
	metricsOnce             sync.Once
	metricsMu               sync.Mutex
	metricsInitErr          error
	ingestDurationHist      metric.Float64Histogram
	chunkCounter            metric.Int64Counter
	documentCounter         metric.Int64Counter
	ingestFailureCounter    metric.Int64Counter
	queryLatencyHist        metric.Float64Histogram
	retrievalAttemptCounter metric.Int64Counter
	retrievalEmptyCounter   metric.Int64Counter
)

func RecordIngestDuration(ctx context.Context, strategy string, d time.Duration) {
	if err := ensureMetrics(); err != nil || ingestDurationHist == nil {
		return
	}
	ingestDurationHist.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("strategy", strategy)))
}

func RecordIngestChunks(ctx context.Context, strategy string, chunks int) {
	if chunks <= 0 {
		return
	}
	if err := ensureMetrics(); err != nil || chunkCounter == nil {
		return
	}
	chunkCounter.Add(ctx, int64(chunks), metric.WithAttributes(attribute.String("strategy", strategy)))
}

// RecordIngestDocument counts one loaded source document by kind ("url" or "file").
func RecordIngestDocument(ctx context.Context, kind string) {
	if err := ensureMetrics(); err != nil || documentCounter == nil {
		return
	}
	documentCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func RecordIngestFailure(ctx context.Context, kind string) {
	if err := ensureMetrics(); err != nil || ingestFailureCounter == nil {
		return
	}
	ingestFailureCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func RecordQueryLatency(ctx context.Context, store string, d time.Duration) {
	if err := ensureMetrics(); err != nil || queryLatencyHist == nil {
		return
	}
	queryLatencyHist.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("store", store)))
}

func RecordRetrievalAttempt(ctx context.Context, store string, stage string) {
	if err := ensureMetrics(); err != nil || retrievalAttemptCounter == nil {
		return
	}
	retrievalAttemptCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("store", store),
		attribute.String("stage", stage),
	))
}

func RecordRetrievalEmpty(ctx context.Context, store string) {
	if err := ensureMetrics(); err != nil || retrievalEmptyCounter == nil {
		return
	}
	retrievalEmptyCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("store", store)))
}

func ResetMetricsForTesting() {
	metricsMu.Lock()
	metricsOnce = sync.Once{}
	metricsInitErr = nil
	ingestDurationHist = nil
	chunkCounter = nil
	documentCounter = nil
	ingestFailureCounter = nil
	queryLatencyHist = nil
	retrievalAttemptCounter = nil
	retrievalEmptyCounter = nil
	metricsMu.Unlock()
}

func ensureMetrics() error {
	metricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("arag.knowledge")
		if err := initIngestMetrics(meter); err != nil {
			metricsInitErr = err
			return
		}
		if err := initRetrievalMetrics(meter); err != nil {
			metricsInitErr = err
		}
	})
	return metricsInitErr
}

func initIngestMetrics(meter metric.Meter) error {
	var err error
	ingestDurationHist, err = meter.Float64Histogram(
		metrics.MetricNameWithSubsystem("knowledge", "ingest_duration_seconds"),
		metric.WithDescription("Latency of knowledge base ingestion runs"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120),
	)
	if err != nil {
		return err
	}
	chunkCounter, err = meter.Int64Counter(
		metrics.MetricNameWithSubsystem("knowledge", "chunks_total"),
		metric.WithDescription("Number of chunks persisted by knowledge base ingestion"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}
	documentCounter, err = meter.Int64Counter(
		metrics.MetricNameWithSubsystem("knowledge", "documents_total"),
		metric.WithDescription("Number of source documents loaded for ingestion"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}
	ingestFailureCounter, err = meter.Int64Counter(
		metrics.MetricNameWithSubsystem("knowledge", "source_failures_total"),
		metric.WithDescription("Number of sources that could not be loaded"),
		metric.WithUnit("1"),
	)
	return err
}

func initRetrievalMetrics(meter metric.Meter) error {
	var err error
	queryLatencyHist, err = meter.Float64Histogram(
		metrics.MetricNameWithSubsystem("knowledge", "query_latency_seconds"),
		metric.WithDescription("Latency of knowledge base retrieval queries"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5),
	)
	if err != nil {
		return err
	}
	retrievalAttemptCounter, err = meter.Int64Counter(
		metrics.MetricNameWithSubsystem("knowledge", "retrieval_attempt_total"),
		metric.WithDescription("Number of retrieval attempts performed by stage"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}
	retrievalEmptyCounter, err = meter.Int64Counter(
		metrics.MetricNameWithSubsystem("knowledge", "retrieval_empty_total"),
		metric.WithDescription("Number of retrieval attempts that returned no contexts"),
		metric.WithUnit("1"),
	)
	return err
}
