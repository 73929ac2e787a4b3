package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/compozy/arag/pkg/logger"
)

func init() {
	logger.InitForTests()
	gin.SetMode(gin.TestMode)
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestHTTPMetrics(t *testing.T) {
	t.Run("Should record route template method and status", func(t *testing.T) {
		ResetMetricsForTesting()
		t.Cleanup(ResetMetricsForTesting)
		reader := sdkmetric.NewManualReader()
		provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		router := gin.New()
		router.Use(HTTPMetrics(provider.Meter("test")))
		router.POST("/api/v1/ask", func(c *gin.Context) {
			c.JSON(http.StatusCreated, gin.H{"ok": true})
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/ask", http.NoBody))
		require.Equal(t, http.StatusCreated, w.Code)

		got := collectMetrics(t, reader)
		total, ok := got["arag_http_requests_total"].Data.(metricdata.Sum[int64])
		require.True(t, ok)
		require.Len(t, total.DataPoints, 1)
		attrs := total.DataPoints[0].Attributes.ToSlice()
		assert.Contains(t, attrs, attribute.String("method", http.MethodPost))
		assert.Contains(t, attrs, attribute.String("path", "/api/v1/ask"))
		assert.Contains(t, attrs, attribute.String("status_code", "201"))
		assert.Equal(t, int64(1), total.DataPoints[0].Value)

		duration, ok := got["arag_http_request_duration_seconds"].Data.(metricdata.Histogram[float64])
		require.True(t, ok)
		require.Len(t, duration.DataPoints, 1)
		assert.Equal(t, uint64(1), duration.DataPoints[0].Count)
		_, ok = got["arag_http_requests_in_flight"]
		assert.True(t, ok)
	})

	t.Run("Should label unmatched routes", func(t *testing.T) {
		ResetMetricsForTesting()
		t.Cleanup(ResetMetricsForTesting)
		reader := sdkmetric.NewManualReader()
		provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		router := gin.New()
		router.Use(HTTPMetrics(provider.Meter("test")))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", http.NoBody))
		require.Equal(t, http.StatusNotFound, w.Code)

		total, ok := collectMetrics(t, reader)["arag_http_requests_total"].Data.(metricdata.Sum[int64])
		require.True(t, ok)
		require.Len(t, total.DataPoints, 1)
		assert.Contains(t, total.DataPoints[0].Attributes.ToSlice(), attribute.String("path", "unmatched"))
	})

	t.Run("Should pass through without a meter", func(t *testing.T) {
		ResetMetricsForTesting()
		t.Cleanup(ResetMetricsForTesting)
		router := gin.New()
		router.Use(HTTPMetrics(nil))
		router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusNoContent) })
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", http.NoBody))
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("Should work with a noop meter", func(t *testing.T) {
		ResetMetricsForTesting()
		t.Cleanup(ResetMetricsForTesting)
		router := gin.New()
		router.Use(HTTPMetrics(noop.NewMeterProvider().Meter("noop")))
		router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", http.NoBody))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
