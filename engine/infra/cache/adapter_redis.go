package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisAdapter exposes namespaced key/value operations on top of a
// RedisInterface-compatible client.
type RedisAdapter struct {
	client RedisInterface
	prefix string
}

func NewRedisAdapter(client RedisInterface, prefix string) (*RedisAdapter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	return &RedisAdapter{client: client, prefix: prefix}, nil
}

func (a *RedisAdapter) key(k string) string {
	return a.prefix + k
}

func (a *RedisAdapter) Get(ctx context.Context, key string) (string, error) {
	v, err := a.client.Get(ctx, a.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

// Set stores value. A zero ttl keeps the key until it is deleted.
func (a *RedisAdapter) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return a.client.Set(ctx, a.key(key), value, ttl).Err()
}

func (a *RedisAdapter) Del(ctx context.Context, keys ...string) (int64, error) {
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = a.key(k)
	}
	n, err := a.client.Del(ctx, prefixed...).Result()
	if err != nil {
		return 0, err
	}
	return n, nil
}

// TTL reports the remaining lifetime of key. It returns ErrNotFound for
// missing keys and a negative duration for keys without expiry.
func (a *RedisAdapter) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := a.client.TTL(ctx, a.key(key)).Result()
	if err != nil {
		return 0, err
	}
	if d == -2 || d == -2*time.Second {
		return 0, ErrNotFound
	}
	return d, nil
}
