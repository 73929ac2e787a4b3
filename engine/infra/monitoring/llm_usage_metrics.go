package monitoring

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/compozy/arag/engine/infra/monitoring/metrics"
	llmadapter "github.com/compozy/arag/engine/llm/adapter"
)

const (
	labelValueUnknown = "unknown"

	labelComponent = "component"
	labelProvider  = "provider"
	labelModel     = "model"
	labelOutcome   = "outcome"

	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

type llmUsageMetrics struct {
	promptTokens     metric.Int64Counter
	completionTokens metric.Int64Counter
	calls            metric.Int64Counter
	latency          metric.Float64Histogram
}

var _ llmadapter.UsageMetrics = (*llmUsageMetrics)(nil)

func createInt64Counter(meter metric.Meter, name, description string) (metric.Int64Counter, error) {
	counter, err := meter.Int64Counter(
		name,
		metric.WithDescription(description),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create counter %q: %w", name, err)
	}
	return counter, nil
}

func newLLMUsageMetrics(meter metric.Meter) (*llmUsageMetrics, error) {
	promptTokens, err := createInt64Counter(
		meter,
		metrics.MetricNameWithSubsystem("llm", "prompt_tokens_total"),
		"Total prompt tokens sent to the model",
	)
	if err != nil {
		return nil, err
	}
	completionTokens, err := createInt64Counter(
		meter,
		metrics.MetricNameWithSubsystem("llm", "completion_tokens_total"),
		"Total completion tokens returned by the model",
	)
	if err != nil {
		return nil, err
	}
	calls, err := createInt64Counter(
		meter,
		metrics.MetricNameWithSubsystem("llm", "calls_total"),
		"Total model calls by chain and outcome",
	)
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram(
		metrics.MetricNameWithSubsystem("llm", "call_seconds"),
		metric.WithDescription("Latency of single model calls"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(metrics.CollaboratorDurationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("create llm latency histogram: %w", err)
	}
	return &llmUsageMetrics{
		promptTokens:     promptTokens,
		completionTokens: completionTokens,
		calls:            calls,
		latency:          latency,
	}, nil
}

func (m *llmUsageMetrics) RecordSuccess(
	ctx context.Context,
	component string,
	provider string,
	model string,
	promptTokens int,
	completionTokens int,
	latency time.Duration,
) {
	if m == nil {
		return
	}
	attrs := usageAttributes(component, provider, model)
	if promptTokens > 0 {
		m.promptTokens.Add(ctx, int64(promptTokens), metric.WithAttributes(attrs...))
	}
	if completionTokens > 0 {
		m.completionTokens.Add(ctx, int64(completionTokens), metric.WithAttributes(attrs...))
	}
	m.recordOutcome(ctx, attrs, outcomeSuccess, latency)
}

func (m *llmUsageMetrics) RecordFailure(
	ctx context.Context,
	component string,
	provider string,
	model string,
	latency time.Duration,
) {
	if m == nil {
		return
	}
	m.recordOutcome(ctx, usageAttributes(component, provider, model), outcomeFailure, latency)
}

func (m *llmUsageMetrics) recordOutcome(
	ctx context.Context,
	attrs []attribute.KeyValue,
	outcome string,
	latency time.Duration,
) {
	outcomeAttrs := make([]attribute.KeyValue, 0, len(attrs)+1)
	outcomeAttrs = append(outcomeAttrs, attrs...)
	outcomeAttrs = append(outcomeAttrs, attribute.String(labelOutcome, outcome))
	m.calls.Add(ctx, 1, metric.WithAttributes(outcomeAttrs...))
	m.latency.Record(ctx, latency.Seconds(), metric.WithAttributes(outcomeAttrs...))
}

func usageAttributes(component, provider, model string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(labelComponent, normalizeLabelValue(component)),
		attribute.String(labelProvider, normalizeLabelValue(provider)),
		attribute.String(labelModel, normalizeLabelValue(model)),
	}
}

func normalizeLabelValue(value string) string {
	if value == "" {
		return labelValueUnknown
	}
	return value
}
