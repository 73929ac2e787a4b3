package cache

import (
	"context"
	"fmt"
)

type Cache struct {
	Redis   *Redis
	Adapter *RedisAdapter
}

// SetupCache connects to Redis and builds the key/value adapter.
func SetupCache(ctx context.Context, config *Config) (*Cache, error) {
	if config == nil {
		return nil, fmt.Errorf("cache config cannot be nil")
	}
	redis, err := NewRedis(ctx, config)
	if err != nil {
		return nil, err
	}
	adapter, err := NewRedisAdapter(redis, config.KeyPrefix)
	if err != nil {
		_ = redis.Close()
		return nil, err
	}
	return &Cache{
		Redis:   redis,
		Adapter: adapter,
	}, nil
}

// Close gracefully shuts down the cache
func (c *Cache) Close() error {
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			return fmt.Errorf("failed to close Redis: %w", err)
		}
	}
	return nil
}

// HealthCheck performs a health check on all cache components
func (c *Cache) HealthCheck(ctx context.Context) error {
	if c.Redis != nil {
		return c.Redis.HealthCheck(ctx)
	}
	return nil
}
