package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/compozy/arag/engine/knowledge"
	"github.com/compozy/arag/engine/knowledge/chunk"
	"github.com/compozy/arag/engine/knowledge/embedder"
	"github.com/compozy/arag/engine/knowledge/vectordb"
	"github.com/compozy/arag/pkg/logger"
)

// Pipeline loads sources, chunks them, embeds the chunks and writes them to
// the vector store.
type Pipeline struct {
	embedder embedder.Embedder
	store    vectordb.Store
	options  Options
	config   Config
	chunker  *chunk.Processor
	fetcher  *fetcher
	root     string
}

type Result struct {
	Documents int
	Chunks    int
	Persisted int
	Failures  []Failure
}

func NewPipeline(emb embedder.Embedder, store vectordb.Store, cfg Config, opts Options) (*Pipeline, error) {
	if emb == nil {
		return nil, errors.New("knowledge: embedder implementation is required")
	}
	if store == nil {
		return nil, errors.New("knowledge: vector store is required")
	}
	strategy := opts.normalizedStrategy()
	if strategy != StrategyUpsert && strategy != StrategyReplace {
		return nil, fmt.Errorf("knowledge: ingestion strategy %q not supported", strategy)
	}
	cfg.normalize()
	settings := cfg.Chunking
	settings.NormalizeNewlines = true
	chunker, err := chunk.NewProcessor(settings)
	if err != nil {
		return nil, err
	}
	root, err := resolveRoot(opts.Root)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		embedder: emb,
		store:    store,
		options:  opts,
		config:   cfg,
		chunker:  chunker,
		fetcher:  newFetcher(cfg.Fetch),
		root:     root,
	}, nil
}

func resolveRoot(root string) (string, error) {
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("knowledge: resolve working directory: %w", err)
		}
		root = cwd
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("knowledge: resolve root %q: %w", root, err)
	}
	return filepath.Clean(abs), nil
}

// Run ingests src. Sources that fail to load are reported in the result;
// Run fails when nothing could be loaded and at least one source failed.
func (p *Pipeline) Run(ctx context.Context, src Sources) (*Result, error) {
	log := logger.FromContext(ctx)
	strategy := p.options.normalizedStrategy()
	start := time.Now()
	if src.empty() {
		return &Result{}, nil
	}
	list := newDocumentList()
	if err := list.appendRemoteURLs(ctx, p.fetcher, src.URLs, p.config.Concurrency); err != nil {
		return nil, err
	}
	if err := list.appendPaths(ctx, p.root, src.Paths, p.config.MaxFileBytes); err != nil {
		return nil, err
	}
	docs := list.items
	result := &Result{Documents: len(docs), Failures: list.failures}
	if len(docs) == 0 {
		if len(list.failures) > 0 {
			return result, fmt.Errorf("knowledge: no source could be loaded: %w", list.failures[0].Err)
		}
		return result, nil
	}
	chunks, err := p.chunker.Process(docs)
	if err != nil {
		return nil, err
	}
	result.Chunks = len(chunks)
	if len(chunks) == 0 {
		return result, nil
	}
	if strategy == StrategyReplace {
		if err := p.deleteExistingRecords(ctx, docs); err != nil {
			return nil, err
		}
	}
	persisted, err := p.persistChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}
	result.Persisted = persisted
	took := time.Since(start)
	knowledge.RecordIngestDuration(ctx, string(strategy), took)
	knowledge.RecordIngestChunks(ctx, string(strategy), persisted)
	log.Info(
		"Knowledge ingestion completed",
		"strategy", strategy,
		"documents", len(docs),
		"chunks", len(chunks),
		"persisted", persisted,
		"failures", len(list.failures),
		"duration", took,
	)
	return result, nil
}

func (p *Pipeline) backoff() retry.Backoff {
	attempts := max(p.config.Retry.Attempts, 1)
	return retry.WithMaxRetries(
		uint64(attempts-1), // #nosec G115 -- normalized to a small positive value
		retry.WithCappedDuration(p.config.Retry.Max, retry.NewExponential(p.config.Retry.Backoff)),
	)
}

func (p *Pipeline) embedBatch(ctx context.Context, batch []chunk.Chunk) ([][]float32, error) {
	texts := make([]string, len(batch))
	for i := range batch {
		texts[i] = batch[i].Text
	}
	var out [][]float32
	err := retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		vectors, err := p.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			logger.FromContext(ctx).Debug("Retrying embedding batch", "size", len(texts), "error", err)
			return retry.RetryableError(err)
		}
		out = vectors
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("knowledge: embed documents failed: %w", err)
	}
	return out, nil
}

func (p *Pipeline) upsertBatch(ctx context.Context, records []vectordb.Record) error {
	err := retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		if err := p.store.Upsert(ctx, records); err != nil {
			logger.FromContext(ctx).Debug("Retrying vector upsert", "size", len(records), "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("knowledge: persist vectors failed: %w", err)
	}
	return nil
}

func (p *Pipeline) persistChunks(ctx context.Context, chunks []chunk.Chunk) (int, error) {
	total := 0
	batchSize := p.config.BatchSize
	for start := 0; start < len(chunks); start += batchSize {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		end := min(start+batchSize, len(chunks))
		batch := chunks[start:end]
		vectors, err := p.embedBatch(ctx, batch)
		if err != nil {
			return 0, err
		}
		if len(vectors) != len(batch) {
			return 0, fmt.Errorf("knowledge: embedder returned %d vectors for %d chunks", len(vectors), len(batch))
		}
		records := make([]vectordb.Record, len(batch))
		for i := range batch {
			meta := cloneMetadata(batch[i].Metadata)
			meta[MetaChunkHash] = batch[i].Hash
			records[i] = vectordb.Record{
				ID:        batch[i].ID,
				Text:      batch[i].Text,
				Embedding: vectors[i],
				Metadata:  meta,
			}
		}
		if err := p.upsertBatch(ctx, records); err != nil {
			return 0, err
		}
		total += len(records)
	}
	return total, nil
}

// deleteExistingRecords drops every record previously written for the
// sources being re-ingested.
func (p *Pipeline) deleteExistingRecords(ctx context.Context, docs []chunk.Document) error {
	for i := range docs {
		filter := vectordb.Filter{Metadata: map[string]string{chunk.MetaSourceID: docs[i].ID}}
		if err := p.store.Delete(ctx, filter); err != nil {
			return fmt.Errorf("knowledge: delete records of %q: %w", docs[i].ID, err)
		}
	}
	return nil
}

func cloneMetadata(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src)+1)
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
