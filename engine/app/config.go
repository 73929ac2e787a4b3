package app

import (
	"time"

	"github.com/compozy/arag/engine/core"
	"github.com/compozy/arag/engine/knowledge/chunk"
	"github.com/compozy/arag/engine/knowledge/embedder"
	"github.com/compozy/arag/engine/knowledge/ingest"
	"github.com/compozy/arag/engine/knowledge/vectordb"
	"github.com/compozy/arag/pkg/config"
)

const bytesPerMB = 1024 * 1024

// ProviderConfigs returns the model used for generation and the one used for
// routing and grading. The grader section overrides the llm section field by
// field.
func ProviderConfigs(cfg *config.Config) (*core.ProviderConfig, *core.ProviderConfig, error) {
	main := &core.ProviderConfig{
		Provider: core.ProviderName(cfg.LLM.Provider),
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey.Value(),
		APIURL:   cfg.LLM.APIURL,
	}
	grader, err := main.WithOverrides(&core.ProviderConfig{
		Provider: core.ProviderName(cfg.Grader.Provider),
		Model:    cfg.Grader.Model,
		APIKey:   cfg.Grader.APIKey.Value(),
		APIURL:   cfg.Grader.APIURL,
	})
	if err != nil {
		return nil, nil, err
	}
	return main, grader, nil
}

func EmbedderConfig(cfg *config.Config) *embedder.Config {
	e := cfg.Knowledge.Embedder
	return &embedder.Config{
		Provider:      embedder.Provider(e.Provider),
		Model:         e.Model,
		APIKey:        e.APIKey.Value(),
		APIURL:        e.APIURL,
		Dimension:     e.Dimension,
		BatchSize:     e.BatchSize,
		StripNewLines: true,
		CacheSize:     e.CacheSize,
	}
}

func VectorStoreConfig(cfg *config.Config) *vectordb.Config {
	v := cfg.Knowledge.VectorStore
	return &vectordb.Config{
		Provider:    vectordb.Provider(v.Provider),
		DSN:         v.DSN.Value(),
		Path:        v.Path,
		Table:       v.Table,
		Dimension:   cfg.Knowledge.Embedder.Dimension,
		EnsureIndex: true,
	}
}

// IngestConfig maps the knowledge section onto ingestion settings.
func IngestConfig(cfg *config.Config) ingest.Config {
	k := cfg.Knowledge
	maxBytes := int64(k.Sources.MaxFileSizeMB) * bytesPerMB
	return ingest.Config{
		Chunking: chunk.Settings{
			Size:        k.Chunking.Size,
			Overlap:     k.Chunking.Overlap,
			Encoding:    k.Chunking.Encoding,
			Deduplicate: true,
		},
		BatchSize:    k.Embedder.BatchSize,
		Concurrency:  k.Sources.Concurrency,
		MaxFileBytes: maxBytes,
		Fetch: ingest.FetchConfig{
			Timeout:  k.Sources.FetchTimeout,
			Retries:  k.Sources.FetchRetries,
			Wait:     k.Sources.FetchWait,
			MaxBytes: maxBytes,
		},
		Retry: ingest.RetryConfig{
			Attempts: 3,
			Backoff:  200 * time.Millisecond,
			Max:      5 * time.Second,
		},
	}
}

// DefaultSources lists what a bare ingest run loads.
func DefaultSources(cfg *config.Config) ingest.Sources {
	return ingest.Sources{
		URLs:  append([]string(nil), cfg.Knowledge.Sources.URLs...),
		Paths: append([]string(nil), cfg.Knowledge.Sources.Paths...),
	}
}
