package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricNames(t *testing.T) {
	t.Run("Should prefix with the namespace", func(t *testing.T) {
		assert.Equal(t, "arag_http_requests_total", MetricName("http_requests_total"))
	})
	t.Run("Should include the subsystem and sanitize", func(t *testing.T) {
		assert.Equal(t, "arag_pipeline_generation_attempts_total", MetricNameWithSubsystem("pipeline", "generation-attempts_total"))
		assert.Equal(t, "arag_x", MetricNameWithSubsystem("", "x"))
	})
}
