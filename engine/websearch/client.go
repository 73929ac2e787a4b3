package websearch

import (
	"context"
	"fmt"
	"time"

	"github.com/compozy/arag/engine/pipeline"
	"github.com/compozy/arag/pkg/config"
)

// Cache backends.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Client is the configured web search stack: backend, resilience guard and
// optional cache.
type Client struct {
	searcher pipeline.WebSearcher
	cache    Cache
}

var _ pipeline.WebSearcher = (*Client)(nil)

// Options assemble a Client. KV is required for the redis cache backend.
type Options struct {
	Tavily       TavilyConfig
	Resilience   *ResilienceConfig
	CacheBackend string
	CacheTTL     time.Duration
	CacheSize    int64
	KV           KV
}

// OptionsFromConfig maps the application configuration.
func OptionsFromConfig(cfg *config.WebSearchConfig, kv KV) Options {
	resilience := DefaultResilienceConfig()
	if cfg.Timeout > 0 {
		resilience.TimeoutDuration = cfg.Timeout + 5*time.Second
	}
	return Options{
		Tavily: TavilyConfig{
			APIKey:      cfg.APIKey.Value(),
			BaseURL:     cfg.BaseURL,
			MaxResults:  cfg.MaxResults,
			SearchDepth: cfg.SearchDepth,
			Timeout:     cfg.Timeout,
		},
		Resilience:   resilience,
		CacheBackend: cfg.Cache.Backend,
		CacheTTL:     cfg.Cache.TTL,
		CacheSize:    cfg.Cache.MaxItems,
		KV:           kv,
	}
}

// New builds the search stack. Without an API key the client still works and
// reports ErrUnconfigured from every search.
func New(opts Options) (*Client, error) {
	var searcher pipeline.WebSearcher = NewResilientSearcher(NewTavilyClient(opts.Tavily), opts.Resilience)
	var c Cache
	var err error
	switch opts.CacheBackend {
	case "", CacheNone:
	case CacheMemory:
		c, err = NewMemoryCache(opts.CacheSize, opts.CacheTTL)
	case CacheRedis:
		c, err = NewRedisCache(opts.KV, opts.CacheTTL)
	default:
		err = fmt.Errorf("websearch: unknown cache backend %q", opts.CacheBackend)
	}
	if err != nil {
		return nil, err
	}
	if c != nil {
		searcher = NewCachedSearcher(searcher, c)
	}
	return &Client{searcher: searcher, cache: c}, nil
}

func (c *Client) Search(ctx context.Context, query string) ([]pipeline.SearchHit, error) {
	return c.searcher.Search(ctx, query)
}

func (c *Client) Close() {
	if c.cache != nil {
		c.cache.Close()
	}
}
