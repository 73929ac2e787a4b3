package vectordb

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	monitoringmetrics "github.com/compozy/arag/engine/infra/monitoring/metrics"
)

var (
	vectorMetricsOnce   sync.Once
	vectorMetricsErr    error
	vectorSearchLatency metric.Float64Histogram
	vectorResultsCount  metric.Float64Histogram
	vectorTopScore      metric.Float64Histogram
	vectorUpserted      metric.Int64Counter
	vectorErrorsTotal   metric.Int64Counter
)

func ensureVectorMetrics() error {
	vectorMetricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("arag.knowledge.vector")
		vectorMetricsErr = initVectorInstruments(meter)
	})
	return vectorMetricsErr
}

func initVectorInstruments(meter metric.Meter) error {
	var err error
	vectorSearchLatency, err = meter.Float64Histogram(
		monitoringmetrics.MetricNameWithSubsystem("vectordb", "similarity_search_seconds"),
		metric.WithDescription("Vector similarity search latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2),
	)
	if err != nil {
		return err
	}
	vectorResultsCount, err = meter.Float64Histogram(
		monitoringmetrics.MetricNameWithSubsystem("vectordb", "similarity_results_per_search"),
		metric.WithDescription("Number of results returned per search"),
		metric.WithExplicitBucketBoundaries(0, 1, 2, 3, 5, 10, 25, 50),
	)
	if err != nil {
		return err
	}
	vectorTopScore, err = meter.Float64Histogram(
		monitoringmetrics.MetricNameWithSubsystem("vectordb", "similarity_score_max"),
		metric.WithDescription("Cosine similarity of the best match"),
		metric.WithExplicitBucketBoundaries(0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0),
	)
	if err != nil {
		return err
	}
	vectorUpserted, err = meter.Int64Counter(
		monitoringmetrics.MetricNameWithSubsystem("vectordb", "records_upserted_total"),
		metric.WithDescription("Records written to the vector store"),
	)
	if err != nil {
		return err
	}
	vectorErrorsTotal, err = meter.Int64Counter(
		monitoringmetrics.MetricNameWithSubsystem("vectordb", "store_errors_total"),
		metric.WithDescription("Vector store operation errors"),
	)
	return err
}

// instrumentedStore records metrics around another Store.
type instrumentedStore struct {
	Store
	provider attribute.KeyValue
}

// Instrument wraps store so its operations are measured under provider.
func Instrument(store Store, provider Provider) Store {
	return &instrumentedStore{Store: store, provider: attribute.String("provider", string(provider))}
}

func (s *instrumentedStore) Upsert(ctx context.Context, records []Record) error {
	err := s.Store.Upsert(ctx, records)
	if ensureVectorMetrics() != nil {
		return err
	}
	if err != nil {
		s.recordError(ctx, "upsert")
		return err
	}
	vectorUpserted.Add(ctx, int64(len(records)), metric.WithAttributes(s.provider))
	return nil
}

func (s *instrumentedStore) Search(ctx context.Context, query []float32, opts SearchOptions) ([]Match, error) {
	start := time.Now()
	matches, err := s.Store.Search(ctx, query, opts)
	if ensureVectorMetrics() != nil {
		return matches, err
	}
	if err != nil {
		s.recordError(ctx, "search")
		return nil, err
	}
	attrs := metric.WithAttributes(s.provider)
	vectorSearchLatency.Record(ctx, time.Since(start).Seconds(), attrs)
	vectorResultsCount.Record(ctx, float64(len(matches)), attrs)
	if len(matches) > 0 {
		vectorTopScore.Record(ctx, matches[0].Score, attrs)
	}
	return matches, nil
}

func (s *instrumentedStore) Delete(ctx context.Context, filter Filter) error {
	err := s.Store.Delete(ctx, filter)
	if err != nil && ensureVectorMetrics() == nil {
		s.recordError(ctx, "delete")
	}
	return err
}

// Count delegates when the wrapped store can count.
func (s *instrumentedStore) Count(ctx context.Context) (int, error) {
	counter, ok := s.Store.(Counter)
	if !ok {
		return 0, ErrCountUnsupported
	}
	return counter.Count(ctx)
}

func (s *instrumentedStore) recordError(ctx context.Context, operation string) {
	vectorErrorsTotal.Add(ctx, 1, metric.WithAttributes(s.provider, attribute.String("operation", operation)))
}
