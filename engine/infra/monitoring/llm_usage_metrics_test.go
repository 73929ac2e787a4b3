package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestLLMUsageMetrics(t *testing.T) {
	ctx := context.Background()

	t.Run("Should count tokens and calls per chain", func(t *testing.T) {
		reader := sdkmetric.NewManualReader()
		provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		m, err := newLLMUsageMetrics(provider.Meter("test"))
		require.NoError(t, err)
		m.RecordSuccess(ctx, "retrieval grader", "google", "", 12, 4, 50*time.Millisecond)
		m.RecordFailure(ctx, "retrieval grader", "google", "", 10*time.Millisecond)

		got := collect(t, reader)
		prompt, ok := got["arag_llm_prompt_tokens_total"].Data.(metricdata.Sum[int64])
		require.True(t, ok)
		require.Len(t, prompt.DataPoints, 1)
		assert.Equal(t, int64(12), prompt.DataPoints[0].Value)
		assert.Equal(t, "retrieval grader", attrString(t, prompt.DataPoints[0].Attributes, labelComponent))
		assert.Equal(t, labelValueUnknown, attrString(t, prompt.DataPoints[0].Attributes, labelModel))

		calls, ok := got["arag_llm_calls_total"].Data.(metricdata.Sum[int64])
		require.True(t, ok)
		outcomes := map[string]int64{}
		for _, dp := range calls.DataPoints {
			outcomes[attrString(t, dp.Attributes, labelOutcome)] += dp.Value
		}
		assert.Equal(t, map[string]int64{outcomeSuccess: 1, outcomeFailure: 1}, outcomes)
	})

	t.Run("Should tolerate a nil receiver", func(t *testing.T) {
		var m *llmUsageMetrics
		m.RecordSuccess(ctx, "c", "p", "m", 1, 1, time.Millisecond)
		m.RecordFailure(ctx, "c", "p", "m", time.Millisecond)
	})
}
