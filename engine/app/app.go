// Package app assembles the question answering engine from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/compozy/arag/engine/core"
	"github.com/compozy/arag/engine/infra/cache"
	"github.com/compozy/arag/engine/infra/monitoring"
	"github.com/compozy/arag/engine/infra/server/appstate"
	"github.com/compozy/arag/engine/knowledge/embedder"
	"github.com/compozy/arag/engine/knowledge/ingest"
	"github.com/compozy/arag/engine/knowledge/retriever"
	"github.com/compozy/arag/engine/knowledge/vectordb"
	llmadapter "github.com/compozy/arag/engine/llm/adapter"
	"github.com/compozy/arag/engine/llm/chains"
	"github.com/compozy/arag/engine/pipeline"
	"github.com/compozy/arag/engine/websearch"
	"github.com/compozy/arag/pkg/config"
	"github.com/compozy/arag/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

// App owns every long lived collaborator of the engine.
type App struct {
	Config     *config.Config
	Pipeline   *pipeline.Orchestrator
	Embedder   embedder.Embedder
	Store      vectordb.Store
	WebSearch  *websearch.Client
	Monitoring *monitoring.Service
	Cache      *cache.Cache

	llmConfigured bool
	cleanups      []func(context.Context)
}

type options struct {
	monitoring bool
	llmClient  llmadapter.LLMClient
}

// Option customizes New.
type Option func(*options)

// WithMonitoring builds the metrics exporter described by the monitoring
// config section. The CLI ask command runs without it.
func WithMonitoring() Option {
	return func(o *options) { o.monitoring = true }
}

// WithLLMClient replaces the configured model for every chain.
func WithLLMClient(client llmadapter.LLMClient) Option {
	return func(o *options) { o.llmClient = client }
}

// New builds the engine. On error every collaborator created so far is
// released.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (_ *App, err error) {
	if cfg == nil {
		return nil, errors.New("app: configuration is required")
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	log := logger.FromContext(ctx)
	start := time.Now()
	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			a.Close(ctx)
		}
	}()
	if o.monitoring {
		a.setupMonitoring(ctx)
	}
	if err := a.setupKnowledge(ctx); err != nil {
		return nil, err
	}
	if err := a.setupCache(ctx); err != nil {
		return nil, err
	}
	if err := a.setupWebSearch(); err != nil {
		return nil, err
	}
	collab, err := a.buildChains(ctx, o.llmClient)
	if err != nil {
		return nil, err
	}
	ret, err := retriever.NewService(
		a.Embedder,
		a.Store,
		retriever.WithStoreName(cfg.Knowledge.VectorStore.Provider),
	)
	if err != nil {
		return nil, err
	}
	collab.Retriever = ret
	collab.WebSearcher = a.WebSearch
	orch, err := pipeline.New(collab, pipeline.Config{
		MaxRetries: cfg.Pipeline.MaxRetries,
		RetrievalK: cfg.Pipeline.RetrievalK,
	})
	if err != nil {
		return nil, err
	}
	a.Pipeline = orch
	log.Info("Engine ready",
		"llm_provider", cfg.LLM.Provider,
		"model", cfg.LLM.Model,
		"llm_configured", a.llmConfigured,
		"vector_store", cfg.Knowledge.VectorStore.Provider,
		"web_search_cache", cfg.WebSearch.Cache.Backend,
		"duration", time.Since(start),
	)
	return a, nil
}

func (a *App) setupMonitoring(ctx context.Context) {
	service := monitoring.NewMonitoringServiceWithFallback(ctx, monitoring.FromAppConfig(&a.Config.Monitoring))
	if !service.IsInitialized() {
		return
	}
	service.SetAsGlobal()
	a.Monitoring = service
	a.addCleanup(func(ctx context.Context) {
		if err := service.Shutdown(ctx); err != nil {
			logger.FromContext(ctx).Error("Failed to shutdown monitoring service", "error", err)
		}
	})
}

func (a *App) setupKnowledge(ctx context.Context) error {
	emb, err := embedder.New(ctx, EmbedderConfig(a.Config))
	if err != nil {
		return fmt.Errorf("failed to build embedder: %w", err)
	}
	a.Embedder = emb
	store, err := vectordb.New(ctx, VectorStoreConfig(a.Config))
	if err != nil {
		return fmt.Errorf("failed to open vector store: %w", err)
	}
	a.Store = store
	a.addCleanup(func(ctx context.Context) {
		if err := store.Close(ctx); err != nil {
			logger.FromContext(ctx).Error("Failed to close vector store", "error", err)
		}
	})
	return nil
}

// setupCache connects to redis only when something needs it.
func (a *App) setupCache(ctx context.Context) error {
	if a.Config.WebSearch.Cache.Backend != websearch.CacheRedis {
		return nil
	}
	c, err := cache.SetupCache(ctx, cache.FromAppConfig(a.Config))
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	a.Cache = c
	a.addCleanup(func(ctx context.Context) {
		if err := c.Close(); err != nil {
			logger.FromContext(ctx).Error("Failed to close redis", "error", err)
		}
	})
	return nil
}

func (a *App) setupWebSearch() error {
	var kv websearch.KV
	if a.Cache != nil {
		kv = a.Cache.Adapter
	}
	client, err := websearch.New(websearch.OptionsFromConfig(&a.Config.WebSearch, kv))
	if err != nil {
		return fmt.Errorf("failed to build web search client: %w", err)
	}
	a.WebSearch = client
	a.addCleanup(func(context.Context) { client.Close() })
	return nil
}

func (a *App) buildChains(ctx context.Context, override llmadapter.LLMClient) (pipeline.Collaborators, error) {
	cfg := a.Config
	mainProvider, graderProvider, err := ProviderConfigs(cfg)
	if err != nil {
		return pipeline.Collaborators{}, err
	}
	mainClient, graderClient := override, override
	if override == nil {
		if mainClient, err = a.newClient(ctx, mainProvider); err != nil {
			return pipeline.Collaborators{}, err
		}
		if graderClient, err = a.newClient(ctx, graderProvider); err != nil {
			return pipeline.Collaborators{}, err
		}
	}
	a.llmConfigured = mainClient != nil
	var usage llmadapter.UsageMetrics
	if a.Monitoring != nil {
		usage = a.Monitoring.LLMUsageMetrics(ctx)
	}
	common := []chains.Option{
		chains.WithTimeout(cfg.LLM.Timeout),
		chains.WithMaxAttempts(cfg.LLM.MaxAttempts),
	}
	mainOpts := append(append([]chains.Option(nil), common...),
		chains.WithTemperature(cfg.LLM.Temperature),
		chains.WithUsageMetrics(usage, string(mainProvider.Provider), mainProvider.Model),
	)
	graderOpts := append(append([]chains.Option(nil), common...),
		chains.WithUsageMetrics(usage, string(graderProvider.Provider), graderProvider.Model),
	)
	collab := pipeline.Collaborators{Generator: chains.NewAnswerGenerator(mainClient, mainOpts...)}
	if graderClient == nil {
		collab.Classifier = unconfigured{}
		collab.RelevanceGrader = unconfigured{}
		collab.GroundingGrader = unconfigured{}
		return collab, nil
	}
	if collab.Classifier, err = chains.NewQuestionRouter(graderClient, nil, graderOpts...); err != nil {
		return pipeline.Collaborators{}, err
	}
	if collab.RelevanceGrader, err = chains.NewRetrievalGrader(graderClient, graderOpts...); err != nil {
		return pipeline.Collaborators{}, err
	}
	if collab.GroundingGrader, err = chains.NewHallucinationGrader(graderClient, graderOpts...); err != nil {
		return pipeline.Collaborators{}, err
	}
	return collab, nil
}

// newClient returns a nil client when the provider has no API key, so the
// engine still starts and answers with the unconfigured fallback.
func (a *App) newClient(ctx context.Context, provider *core.ProviderConfig) (llmadapter.LLMClient, error) {
	client, err := llmadapter.NewClient(ctx, provider)
	if errors.Is(err, llmadapter.ErrProviderUnconfigured) {
		logger.FromContext(ctx).Warn("LLM provider is not configured", "provider", provider.Provider, "model", provider.Model)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", provider.Provider, err)
	}
	a.addCleanup(func(context.Context) { _ = client.Close() })
	return client, nil
}

// Ingester builds an ingestion pipeline writing to the engine's store.
func (a *App) Ingester(opts ingest.Options) (*ingest.Pipeline, error) {
	return ingest.NewPipeline(a.Embedder, a.Store, IngestConfig(a.Config), opts)
}

// RedisClient exposes the shared redis connection, if any, for distributed
// rate limiting.
func (a *App) RedisClient() *redis.Client {
	if a.Cache == nil || a.Cache.Redis == nil {
		return nil
	}
	client, ok := a.Cache.Redis.Client().(*redis.Client)
	if !ok {
		return nil
	}
	return client
}

// RegisterHealthChecks reports the dependencies the HTTP health endpoint
// should check.
func (a *App) RegisterHealthChecks(state *appstate.State) {
	state.AddHealthCheck("llm", func(context.Context) error {
		if !a.llmConfigured {
			return llmadapter.ErrProviderUnconfigured
		}
		return nil
	})
	state.AddHealthCheck("vector_store", func(ctx context.Context) error {
		counter, ok := a.Store.(vectordb.Counter)
		if !ok {
			return nil
		}
		if _, err := counter.Count(ctx); err != nil && !errors.Is(err, vectordb.ErrCountUnsupported) {
			return err
		}
		return nil
	})
	if a.Cache != nil {
		state.AddHealthCheck("redis", a.Cache.HealthCheck)
	}
}

func (a *App) addCleanup(fn func(context.Context)) {
	a.cleanups = append(a.cleanups, fn)
}

// Close releases collaborators in reverse creation order.
func (a *App) Close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i](ctx)
	}
	a.cleanups = nil
}

// unconfigured stands in for the classifier and graders when no model is
// available. Every call fails, which the pipeline recovers from.
type unconfigured struct{}

func (unconfigured) Classify(context.Context, string) (pipeline.Route, error) {
	return "", llmadapter.ErrProviderUnconfigured
}

func (unconfigured) GradeRelevance(context.Context, string, string) (bool, error) {
	return false, llmadapter.ErrProviderUnconfigured
}

func (unconfigured) GradeGrounding(context.Context, []pipeline.Document, string) (bool, error) {
	return false, llmadapter.ErrProviderUnconfigured
}
