package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder turns text into vectors.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Adapter wraps a langchaingo embedder, checks vector dimensions and caches
// query embeddings.
type Adapter struct {
	provider  Provider
	model     string
	dimension int
	impl      embeddings.Embedder
	cacheMu   sync.Mutex
	cache     *lru.Cache[string, []float32]
}

var _ Embedder = (*Adapter)(nil)

var (
	errMissingProvider  = errors.New("embedder provider is required")
	errMissingModel     = errors.New("embedder model is required")
	errMissingAPIKey    = errors.New("embedder api key is required")
	errInvalidDimension = errors.New("embedder dimension must be greater than zero")
	errInvalidBatchSize = errors.New("embedder batch size must be greater than zero")
)

// New constructs a provider-backed embedder adapter.
func New(ctx context.Context, cfg *Config) (*Adapter, error) {
	if cfg == nil {
		return nil, errors.New("embedder config is required")
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	client, err := buildClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return Wrap(cfg, client)
}

// Wrap constructs an adapter around an existing embedding client.
func Wrap(cfg *Config, client embeddings.EmbedderClient) (*Adapter, error) {
	if cfg == nil {
		return nil, errors.New("embedder config is required")
	}
	if client == nil {
		return nil, fmt.Errorf("embedder %s: client is required", cfg.Provider)
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	impl, err := embeddings.NewEmbedder(
		client,
		embeddings.WithBatchSize(cfg.BatchSize),
		embeddings.WithStripNewLines(cfg.StripNewLines),
	)
	if err != nil {
		return nil, fmt.Errorf("embedder %s: failed to construct embedder: %w", cfg.Provider, err)
	}
	adapter := &Adapter{
		provider:  cfg.Provider,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		impl:      impl,
	}
	if cfg.CacheSize > 0 {
		if err := adapter.EnableCache(cfg.CacheSize); err != nil {
			return nil, err
		}
	}
	return adapter, nil
}

// Dimension returns the configured vector dimension.
func (a *Adapter) Dimension() int {
	return a.dimension
}

// EnableCache initializes an LRU cache for query embeddings.
func (a *Adapter) EnableCache(size int) error {
	if size <= 0 {
		return fmt.Errorf("embedder %s: cache size must be greater than zero", a.provider)
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return fmt.Errorf("embedder %s: init cache: %w", a.provider, err)
	}
	a.cacheMu.Lock()
	a.cache = cache
	a.cacheMu.Unlock()
	return nil
}

// EmbedDocuments embeds texts in batches. Documents are not cached since each
// chunk is embedded once per ingestion.
func (a *Adapter) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	start := time.Now()
	vectors, err := a.impl.EmbedDocuments(ctx, texts)
	if err != nil {
		recordEmbedError(ctx, a.provider, opDocuments)
		return nil, a.withContext(err)
	}
	if len(vectors) != len(texts) {
		recordEmbedError(ctx, a.provider, opDocuments)
		return nil, a.withContext(fmt.Errorf("received %d embeddings for %d texts", len(vectors), len(texts)))
	}
	for i := range vectors {
		if err := a.checkDimension(vectors[i]); err != nil {
			recordEmbedError(ctx, a.provider, opDocuments)
			return nil, err
		}
	}
	recordEmbedding(ctx, a.provider, opDocuments, len(texts), time.Since(start))
	return vectors, nil
}

// EmbedQuery embeds one query, serving repeats from the cache.
func (a *Adapter) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	cache := a.getCache()
	if cache != nil {
		if vector, ok := a.lookupCache(cache, text); ok {
			recordCacheLookup(ctx, a.provider, true)
			return vector, nil
		}
		recordCacheLookup(ctx, a.provider, false)
	}
	start := time.Now()
	vector, err := a.impl.EmbedQuery(ctx, text)
	if err != nil {
		recordEmbedError(ctx, a.provider, opQuery)
		return nil, a.withContext(err)
	}
	if err := a.checkDimension(vector); err != nil {
		recordEmbedError(ctx, a.provider, opQuery)
		return nil, err
	}
	recordEmbedding(ctx, a.provider, opQuery, 1, time.Since(start))
	a.storeCache(cache, text, vector)
	return cloneVector(vector), nil
}

func (a *Adapter) checkDimension(vector []float32) error {
	if len(vector) != a.dimension {
		return a.withContext(fmt.Errorf("model %q returned %d dimensions, configured %d", a.model, len(vector), a.dimension))
	}
	return nil
}

func (a *Adapter) getCache() *lru.Cache[string, []float32] {
	a.cacheMu.Lock()
	defer a.cacheMu.Unlock()
	return a.cache
}

func (a *Adapter) lookupCache(cache *lru.Cache[string, []float32], text string) ([]float32, bool) {
	value, ok := cache.Get(cacheKey(text))
	if !ok {
		return nil, false
	}
	return cloneVector(value), true
}

func (a *Adapter) storeCache(cache *lru.Cache[string, []float32], text string, vector []float32) {
	if cache == nil || len(vector) == 0 {
		return
	}
	cache.Add(cacheKey(text), cloneVector(vector))
}

func (a *Adapter) withContext(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("embedder %s: %w", a.provider, err)
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func cloneVector(src []float32) []float32 {
	if len(src) == 0 {
		return nil
	}
	dst := make([]float32, len(src))
	copy(dst, src)
	return dst
}

func validateConfig(cfg *Config) error {
	if strings.TrimSpace(string(cfg.Provider)) == "" {
		return errMissingProvider
	}
	if cfg.Provider != ProviderHash && strings.TrimSpace(cfg.Model) == "" {
		return fmt.Errorf("embedder %s: %w", cfg.Provider, errMissingModel)
	}
	if cfg.Dimension <= 0 {
		return fmt.Errorf("embedder %s: %w", cfg.Provider, errInvalidDimension)
	}
	if cfg.BatchSize <= 0 {
		return fmt.Errorf("embedder %s: %w", cfg.Provider, errInvalidBatchSize)
	}
	return nil
}

func buildClient(ctx context.Context, cfg *Config) (embeddings.EmbedderClient, error) {
	switch cfg.Provider {
	case ProviderGoogle:
		return buildGoogleClient(ctx, cfg)
	case ProviderOpenAI:
		return buildOpenAIClient(cfg)
	case ProviderOllama:
		return buildOllamaClient(cfg)
	case ProviderHash:
		return newHashClient(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("embedder: provider %q is not supported", cfg.Provider)
	}
}

func buildGoogleClient(ctx context.Context, cfg *Config) (embeddings.EmbedderClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedder %s: %w", cfg.Provider, errMissingAPIKey)
	}
	client, err := googleai.New(ctx,
		googleai.WithAPIKey(cfg.APIKey),
		googleai.WithDefaultEmbeddingModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("embedder %s: failed to initialize googleai client: %w", cfg.Provider, err)
	}
	return client, nil
}

func buildOpenAIClient(cfg *Config) (embeddings.EmbedderClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedder %s: %w", cfg.Provider, errMissingAPIKey)
	}
	opts := []openai.Option{
		openai.WithEmbeddingModel(cfg.Model),
		openai.WithToken(cfg.APIKey),
	}
	if cfg.APIURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.APIURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("embedder %s: failed to initialize openai client: %w", cfg.Provider, err)
	}
	return client, nil
}

func buildOllamaClient(cfg *Config) (embeddings.EmbedderClient, error) {
	opts := []ollama.Option{ollama.WithModel(cfg.Model)}
	if cfg.APIURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.APIURL))
	}
	client, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("embedder %s: failed to initialize ollama client: %w", cfg.Provider, err)
	}
	return client, nil
}
