package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.opentelemetry.io/otel/metric"

	"github.com/compozy/arag/engine/infra/server/router"
	"github.com/compozy/arag/pkg/logger"
)

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// Manager limits requests per client IP. Counters live in redis when a
// client is supplied so replicas share them, in memory otherwise.
type Manager struct {
	config  *Config
	limiter *limiter.Limiter
	driver  string
}

func NewManager(config *Config, client *redis.Client) (*Manager, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	options := limiter.StoreOptions{
		Prefix:          config.Prefix,
		MaxRetry:        config.MaxRetry,
		CleanUpInterval: time.Minute,
	}
	var store limiter.Store
	driver := DriverMemory
	if client != nil {
		var err error
		store, err = sredis.NewStoreWithOptions(client, options)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis rate limit store: %w", err)
		}
		driver = DriverRedis
	} else {
		store = memory.NewStoreWithOptions(options)
	}
	return &Manager{
		config:  config,
		limiter: limiter.New(store, config.GlobalRate.ToLimiterRate()),
		driver:  driver,
	}, nil
}

// NewManagerWithMetrics also counts blocked requests on meter.
func NewManagerWithMetrics(
	ctx context.Context,
	config *Config,
	client *redis.Client,
	meter metric.Meter,
) (*Manager, error) {
	if meter != nil {
		if err := InitMetrics(meter); err != nil {
			logger.FromContext(ctx).Warn("Failed to initialize rate limit metrics", "error", err)
		}
	}
	return NewManager(config, client)
}

// Driver names the counter store.
func (m *Manager) Driver() string {
	return m.driver
}

// Middleware returns the gin handler enforcing the limit. It sets the
// X-RateLimit-* headers and answers 429 once the limit is reached.
func (m *Manager) Middleware() gin.HandlerFunc {
	if m.config.GlobalRate.Disabled {
		return func(c *gin.Context) { c.Next() }
	}
	excluded := m.config.ExcludedIPs
	return mgin.NewMiddleware(
		m.limiter,
		mgin.WithLimitReachedHandler(limitReached),
		mgin.WithErrorHandler(storeError),
		mgin.WithExcludedKey(func(key string) bool {
			return slices.Contains(excluded, key)
		}),
	)
}

func limitReached(c *gin.Context) {
	route := c.FullPath()
	IncrementBlockedRequests(c.Request.Context(), route)
	router.RespondProblemWithCode(
		c,
		http.StatusTooManyRequests,
		router.ErrTooManyRequestsCode,
		"rate limit exceeded, retry after the window resets",
	)
}

// storeError fails open: a broken counter store must not take the API down.
func storeError(c *gin.Context, err error) {
	logger.FromContext(c.Request.Context()).Error("Rate limit store failed", "error", err)
	c.Next()
}
