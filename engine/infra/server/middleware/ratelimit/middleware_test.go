package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func buildRouterForTest(t *testing.T, cfg *Config, client *redis.Client) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	m, err := NewManager(cfg, client)
	require.NoError(t, err)
	r.Use(m.Middleware())
	r.GET("/t", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func doReq(r *gin.Engine, ip string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/t", http.NoBody)
	if ip != "" {
		req.Header.Set("X-Real-IP", ip)
	}
	r.ServeHTTP(w, req)
	return w
}

func testConfig(limit int64, period time.Duration) *Config {
	return &Config{
		GlobalRate: RateConfig{Limit: limit, Period: period},
		Prefix:     "test:ratelimit:",
		MaxRetry:   1,
	}
}

func TestManager_Memory(t *testing.T) {
	t.Run("Should block the second request in the window", func(t *testing.T) {
		r := buildRouterForTest(t, testConfig(1, time.Second), nil)
		require.Equal(t, http.StatusOK, doReq(r, "1.2.3.4").Code)
		res := doReq(r, "1.2.3.4")
		require.Equal(t, http.StatusTooManyRequests, res.Code)
		assert.Contains(t, res.Body.String(), "TOO_MANY_REQUESTS")
	})

	t.Run("Should refill after the period", func(t *testing.T) {
		r := buildRouterForTest(t, testConfig(1, 100*time.Millisecond), nil)
		require.Equal(t, http.StatusOK, doReq(r, "5.6.7.8").Code)
		require.Equal(t, http.StatusTooManyRequests, doReq(r, "5.6.7.8").Code)
		time.Sleep(150 * time.Millisecond)
		require.Equal(t, http.StatusOK, doReq(r, "5.6.7.8").Code)
	})

	t.Run("Should set rate limit headers", func(t *testing.T) {
		r := buildRouterForTest(t, testConfig(2, time.Minute), nil)
		res := doReq(r, "9.9.9.9")
		require.Equal(t, http.StatusOK, res.Code)
		assert.Equal(t, "2", res.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "1", res.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, res.Header().Get("X-RateLimit-Reset"))
	})

	t.Run("Should skip excluded addresses", func(t *testing.T) {
		cfg := testConfig(1, time.Minute)
		cfg.ExcludedIPs = []string{"10.0.0.1"}
		r := buildRouterForTest(t, cfg, nil)
		for range 3 {
			require.Equal(t, http.StatusOK, doReq(r, "10.0.0.1").Code)
		}
	})

	t.Run("Should pass everything when disabled", func(t *testing.T) {
		r := buildRouterForTest(t, &Config{GlobalRate: RateConfig{Disabled: true}}, nil)
		for range 3 {
			require.Equal(t, http.StatusOK, doReq(r, "1.1.1.1").Code)
		}
	})
}

func TestManager_Redis(t *testing.T) {
	t.Run("Should share counters through redis", func(t *testing.T) {
		s := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: s.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		m, err := NewManagerWithMetrics(
			context.Background(),
			testConfig(1, time.Minute),
			client,
			sdkmetric.NewMeterProvider().Meter("test"),
		)
		require.NoError(t, err)
		assert.Equal(t, DriverRedis, m.Driver())

		gin.SetMode(gin.TestMode)
		r := gin.New()
		r.Use(m.Middleware())
		r.GET("/t", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
		require.Equal(t, http.StatusOK, doReq(r, "2.2.2.2").Code)
		require.Equal(t, http.StatusTooManyRequests, doReq(r, "2.2.2.2").Code)
		assert.NotEmpty(t, s.Keys())
	})
}

func TestParseRate(t *testing.T) {
	t.Run("Should parse the formatted notation", func(t *testing.T) {
		rate, err := ParseRate("60-M")
		require.NoError(t, err)
		assert.Equal(t, int64(60), rate.Limit)
		assert.Equal(t, time.Minute, rate.Period)
	})

	t.Run("Should disable on empty or off", func(t *testing.T) {
		for _, raw := range []string{"", " off "} {
			rate, err := ParseRate(raw)
			require.NoError(t, err)
			assert.True(t, rate.Disabled)
		}
	})

	t.Run("Should reject malformed rates", func(t *testing.T) {
		_, err := ParseRate("sixty")
		require.Error(t, err)
	})
}
