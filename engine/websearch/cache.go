package websearch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/compozy/arag/engine/infra/cache"
	"github.com/compozy/arag/engine/pipeline"
	"github.com/compozy/arag/pkg/logger"
)

// Cache stores search results by key. Lookups never fail; backend errors
// count as misses.
type Cache interface {
	Get(ctx context.Context, key string) ([]pipeline.SearchHit, bool)
	Set(ctx context.Context, key string, hits []pipeline.SearchHit)
	Close()
}

// KV is the slice of the redis adapter the shared cache needs.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

type memoryCache struct {
	cache *ristretto.Cache[string, []pipeline.SearchHit]
	ttl   time.Duration
}

// NewMemoryCache keeps up to maxItems results in process for ttl.
func NewMemoryCache(maxItems int64, ttl time.Duration) (Cache, error) {
	if maxItems <= 0 {
		return nil, fmt.Errorf("websearch: cache size must be greater than zero")
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, []pipeline.SearchHit]{
		NumCounters: maxItems * 10,
		MaxCost:     maxItems,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create web search cache: %w", err)
	}
	return &memoryCache{cache: c, ttl: ttl}, nil
}

func (m *memoryCache) Get(_ context.Context, key string) ([]pipeline.SearchHit, bool) {
	hits, ok := m.cache.Get(key)
	if !ok {
		return nil, false
	}
	return cloneHits(hits), true
}

func (m *memoryCache) Set(_ context.Context, key string, hits []pipeline.SearchHit) {
	m.cache.SetWithTTL(key, cloneHits(hits), 1, m.ttl)
	m.cache.Wait()
}

func (m *memoryCache) Close() {
	m.cache.Close()
}

type redisCache struct {
	kv  KV
	ttl time.Duration
}

// NewRedisCache shares results between processes through redis.
func NewRedisCache(kv KV, ttl time.Duration) (Cache, error) {
	if kv == nil {
		return nil, errors.New("websearch: redis client is required for the redis cache")
	}
	return &redisCache{kv: kv, ttl: ttl}, nil
}

func (r *redisCache) Get(ctx context.Context, key string) ([]pipeline.SearchHit, bool) {
	raw, err := r.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			logger.FromContext(ctx).Warn("Web search cache read failed", "error", err)
		}
		return nil, false
	}
	var hits []pipeline.SearchHit
	if err := json.Unmarshal([]byte(raw), &hits); err != nil {
		logger.FromContext(ctx).Warn("Discarding undecodable web search cache entry", "error", err)
		return nil, false
	}
	return hits, true
}

func (r *redisCache) Set(ctx context.Context, key string, hits []pipeline.SearchHit) {
	data, err := json.Marshal(hits)
	if err != nil {
		return
	}
	if err := r.kv.Set(ctx, key, string(data), r.ttl); err != nil {
		logger.FromContext(ctx).Warn("Web search cache write failed", "error", err)
	}
}

func (r *redisCache) Close() {}

// CacheKey normalizes query so trivially different spellings share an entry.
func CacheKey(query string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return "websearch:" + hex.EncodeToString(sum[:16])
}

func cloneHits(hits []pipeline.SearchHit) []pipeline.SearchHit {
	out := make([]pipeline.SearchHit, len(hits))
	copy(out, hits)
	return out
}

// CachedSearcher serves repeated queries from a Cache. Failures and empty
// results are not cached.
type CachedSearcher struct {
	searcher pipeline.WebSearcher
	cache    Cache
}

var _ pipeline.WebSearcher = (*CachedSearcher)(nil)

func NewCachedSearcher(searcher pipeline.WebSearcher, c Cache) *CachedSearcher {
	return &CachedSearcher{searcher: searcher, cache: c}
}

func (s *CachedSearcher) Search(ctx context.Context, query string) ([]pipeline.SearchHit, error) {
	key := CacheKey(query)
	if hits, ok := s.cache.Get(ctx, key); ok {
		recordCacheLookup(ctx, true)
		logger.FromContext(ctx).Debug("Web search served from cache", "results", len(hits))
		return hits, nil
	}
	recordCacheLookup(ctx, false)
	hits, err := s.searcher.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(hits) > 0 {
		s.cache.Set(ctx, key, hits)
	}
	return hits, nil
}
