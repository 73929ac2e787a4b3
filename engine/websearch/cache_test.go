package websearch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compozy/arag/engine/infra/cache"
	"github.com/compozy/arag/engine/pipeline"
)

var sampleHits = []pipeline.SearchHit{
	{Title: "Match report", Content: "Team A won 2-1.", URL: "https://a.example"},
}

func newRedisKV(t *testing.T) (*cache.RedisAdapter, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	kv, err := cache.NewRedisAdapter(client, "arag:")
	require.NoError(t, err)
	return kv, s
}

func TestCacheKey(t *testing.T) {
	t.Run("Should normalize case and whitespace", func(t *testing.T) {
		assert.Equal(t, CacheKey("Who won  the match?"), CacheKey("  who won the MATCH? "))
		assert.NotEqual(t, CacheKey("who won"), CacheKey("who lost"))
	})
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()

	t.Run("Should store and return copies", func(t *testing.T) {
		c, err := NewMemoryCache(10, time.Minute)
		require.NoError(t, err)
		defer c.Close()
		c.Set(ctx, "k", sampleHits)
		got, ok := c.Get(ctx, "k")
		require.True(t, ok)
		assert.Equal(t, sampleHits, got)
		got[0].Title = "mutated"
		again, ok := c.Get(ctx, "k")
		require.True(t, ok)
		assert.Equal(t, "Match report", again[0].Title)
	})

	t.Run("Should miss unknown keys", func(t *testing.T) {
		c, err := NewMemoryCache(10, time.Minute)
		require.NoError(t, err)
		defer c.Close()
		_, ok := c.Get(ctx, "missing")
		assert.False(t, ok)
	})

	t.Run("Should reject a non positive size", func(t *testing.T) {
		_, err := NewMemoryCache(0, time.Minute)
		require.Error(t, err)
	})
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()

	t.Run("Should round trip hits with a ttl", func(t *testing.T) {
		kv, s := newRedisKV(t)
		c, err := NewRedisCache(kv, time.Minute)
		require.NoError(t, err)
		c.Set(ctx, "k", sampleHits)
		got, ok := c.Get(ctx, "k")
		require.True(t, ok)
		assert.Equal(t, sampleHits, got)
		assert.Equal(t, time.Minute, s.TTL("arag:k"))

		s.FastForward(2 * time.Minute)
		_, ok = c.Get(ctx, "k")
		assert.False(t, ok)
	})

	t.Run("Should treat corrupt entries as misses", func(t *testing.T) {
		kv, s := newRedisKV(t)
		require.NoError(t, s.Set("arag:k", "{not json"))
		c, err := NewRedisCache(kv, time.Minute)
		require.NoError(t, err)
		_, ok := c.Get(ctx, "k")
		assert.False(t, ok)
	})

	t.Run("Should treat backend errors as misses", func(t *testing.T) {
		kv, s := newRedisKV(t)
		c, err := NewRedisCache(kv, time.Minute)
		require.NoError(t, err)
		s.Close()
		_, ok := c.Get(ctx, "k")
		assert.False(t, ok)
		c.Set(ctx, "k", sampleHits)
	})

	t.Run("Should require a client", func(t *testing.T) {
		_, err := NewRedisCache(nil, time.Minute)
		require.Error(t, err)
	})
}

func TestCachedSearcher(t *testing.T) {
	ctx := context.Background()

	t.Run("Should serve repeated queries from the cache", func(t *testing.T) {
		inner := &stubSearcher{hits: sampleHits}
		c, err := NewMemoryCache(10, time.Minute)
		require.NoError(t, err)
		defer c.Close()
		s := NewCachedSearcher(inner, c)
		for range 3 {
			hits, err := s.Search(ctx, "Who won the match")
			require.NoError(t, err)
			assert.Equal(t, sampleHits, hits)
		}
		assert.Equal(t, int32(1), inner.calls.Load())
	})

	t.Run("Should not cache failures or empty results", func(t *testing.T) {
		inner := &stubSearcher{err: errors.New("down")}
		c, err := NewMemoryCache(10, time.Minute)
		require.NoError(t, err)
		defer c.Close()
		s := NewCachedSearcher(inner, c)
		_, err = s.Search(ctx, "q")
		require.Error(t, err)
		inner.err = nil
		_, err = s.Search(ctx, "q")
		require.NoError(t, err)
		_, err = s.Search(ctx, "q")
		require.NoError(t, err)
		assert.Equal(t, int32(3), inner.calls.Load())
	})
}
