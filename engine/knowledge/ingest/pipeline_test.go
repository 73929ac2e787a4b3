package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compozy/arag/engine/knowledge/chunk"
	"github.com/compozy/arag/engine/knowledge/embedder"
	"github.com/compozy/arag/engine/knowledge/vectordb"
)

const testDimension = 32

func testConfig() Config {
	return Config{
		Chunking: chunk.Settings{
			Size:        400,
			Overlap:     40,
			Deduplicate: true,
			LenFunc:     utf8.RuneCountInString,
		},
		BatchSize:   4,
		Concurrency: 2,
		Fetch: FetchConfig{
			Timeout: 5 * time.Second,
			Retries: 2,
			Wait:    5 * time.Millisecond,
		},
		Retry: RetryConfig{Attempts: 3, Backoff: time.Millisecond, Max: 5 * time.Millisecond},
	}
}

func newHashEmbedder(t *testing.T) embedder.Embedder {
	t.Helper()
	emb, err := embedder.New(context.Background(), &embedder.Config{
		Provider:  embedder.ProviderHash,
		Dimension: testDimension,
		BatchSize: 8,
	})
	require.NoError(t, err)
	return emb
}

func newMemoryStore(t *testing.T) vectordb.Store {
	t.Helper()
	store, err := vectordb.New(context.Background(), &vectordb.Config{
		Provider:  vectordb.ProviderMemory,
		Dimension: testDimension,
	})
	require.NoError(t, err)
	return store
}

func countRecords(t *testing.T, store vectordb.Store) int {
	t.Helper()
	counter, ok := store.(vectordb.Counter)
	require.True(t, ok)
	n, err := counter.Count(context.Background())
	require.NoError(t, err)
	return n
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

type flakyEmbedder struct {
	embedder.Embedder
	failures atomic.Int32
}

func (f *flakyEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if f.failures.Load() > 0 {
		f.failures.Add(-1)
		return nil, errors.New("embedding backend unavailable")
	}
	return f.Embedder.EmbedDocuments(ctx, texts)
}

func TestPipelineURLs(t *testing.T) {
	var flaky atomic.Int32
	flaky.Store(1)
	mux := http.NewServeMux()
	mux.HandleFunc("/agents", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, samplePage)
	})
	mux.HandleFunc("/notes.txt", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "Chain of thought prompting asks the model to reason step by step.")
	})
	mux.HandleFunc("/flaky", func(w http.ResponseWriter, _ *http.Request) {
		if flaky.Load() > 0 {
			flaky.Add(-1)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "Adversarial attacks try to make a model misbehave.")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	t.Run("Should load pages, skip failures and persist chunks", func(t *testing.T) {
		store := newMemoryStore(t)
		p, err := NewPipeline(newHashEmbedder(t), store, testConfig(), Options{})
		require.NoError(t, err)
		res, err := p.Run(context.Background(), Sources{URLs: []string{
			server.URL + "/agents",
			server.URL + "/missing",
			server.URL + "/notes.txt",
		}})
		require.NoError(t, err)
		assert.Equal(t, 2, res.Documents)
		require.Len(t, res.Failures, 1)
		assert.Equal(t, server.URL+"/missing", res.Failures[0].Source)
		assert.Equal(t, res.Chunks, res.Persisted)
		assert.Equal(t, res.Persisted, countRecords(t, store))
	})

	t.Run("Should keep page metadata on stored chunks", func(t *testing.T) {
		store := newMemoryStore(t)
		emb := newHashEmbedder(t)
		p, err := NewPipeline(emb, store, testConfig(), Options{})
		require.NoError(t, err)
		_, err = p.Run(context.Background(), Sources{URLs: []string{server.URL + "/agents"}})
		require.NoError(t, err)
		query, err := emb.EmbedQuery(context.Background(), "short-term memory")
		require.NoError(t, err)
		matches, err := store.Search(context.Background(), query, vectordb.SearchOptions{TopK: 1})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		meta := matches[0].Metadata
		assert.Equal(t, server.URL+"/agents", meta[MetaSource])
		assert.Equal(t, "LLM Powered Autonomous Agents", meta[MetaTitle])
		assert.Equal(t, "en", meta[MetaLanguage])
		assert.Equal(t, "text/html", meta[MetaContentType])
		assert.NotEmpty(t, meta[MetaChunkHash])
		assert.Equal(t, server.URL+"/agents", meta[chunk.MetaSourceID])
	})

	t.Run("Should retry server errors", func(t *testing.T) {
		store := newMemoryStore(t)
		p, err := NewPipeline(newHashEmbedder(t), store, testConfig(), Options{})
		require.NoError(t, err)
		res, err := p.Run(context.Background(), Sources{URLs: []string{server.URL + "/flaky"}})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Documents)
		assert.Empty(t, res.Failures)
	})

	t.Run("Should fail when no source could be loaded", func(t *testing.T) {
		p, err := NewPipeline(newHashEmbedder(t), newMemoryStore(t), testConfig(), Options{})
		require.NoError(t, err)
		res, err := p.Run(context.Background(), Sources{URLs: []string{server.URL + "/missing"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no source could be loaded")
		require.NotNil(t, res)
		assert.Len(t, res.Failures, 1)
	})

	t.Run("Should reject bodies over the size limit", func(t *testing.T) {
		cfg := testConfig()
		cfg.Fetch.MaxBytes = 16
		p, err := NewPipeline(newHashEmbedder(t), newMemoryStore(t), cfg, Options{})
		require.NoError(t, err)
		res, err := p.Run(context.Background(), Sources{URLs: []string{server.URL + "/notes.txt"}})
		require.Error(t, err)
		require.Len(t, res.Failures, 1)
		assert.ErrorIs(t, res.Failures[0].Err, errBodyTooLarge)
	})
}

func TestPipelinePaths(t *testing.T) {
	t.Run("Should load text files and skip binary ones", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "docs", "agents.md"), "# Agents\n\nPlanning, memory and tool use.")
		writeFile(t, filepath.Join(root, "docs", "nested", "prompting.txt"), "Few-shot prompting gives examples.")
		writeFile(t, filepath.Join(root, "docs", "logo.png"), "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
		store := newMemoryStore(t)
		p, err := NewPipeline(newHashEmbedder(t), store, testConfig(), Options{Root: root})
		require.NoError(t, err)
		res, err := p.Run(context.Background(), Sources{Paths: []string{"docs/**/*"}})
		require.NoError(t, err)
		assert.Equal(t, 2, res.Documents)
		assert.Empty(t, res.Failures)
		assert.Equal(t, 2, countRecords(t, store))
	})

	t.Run("Should skip duplicate content", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "a.md"), "identical body")
		writeFile(t, filepath.Join(root, "b.md"), "identical body")
		p, err := NewPipeline(newHashEmbedder(t), newMemoryStore(t), testConfig(), Options{Root: root})
		require.NoError(t, err)
		res, err := p.Run(context.Background(), Sources{Paths: []string{"*.md"}})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Documents)
	})

	t.Run("Should reject matches outside the root", func(t *testing.T) {
		base := t.TempDir()
		root := filepath.Join(base, "root")
		writeFile(t, filepath.Join(root, "inside.md"), "inside")
		writeFile(t, filepath.Join(base, "outside.md"), "outside")
		p, err := NewPipeline(newHashEmbedder(t), newMemoryStore(t), testConfig(), Options{Root: root})
		require.NoError(t, err)
		_, err = p.Run(context.Background(), Sources{Paths: []string{"../outside.md"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "escapes root")
	})

	t.Run("Should report oversized files", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "small.md"), "small file")
		writeFile(t, filepath.Join(root, "large.md"), "this file is larger than the limit allows")
		cfg := testConfig()
		cfg.MaxFileBytes = 20
		p, err := NewPipeline(newHashEmbedder(t), newMemoryStore(t), cfg, Options{Root: root})
		require.NoError(t, err)
		res, err := p.Run(context.Background(), Sources{Paths: []string{"*.md"}})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Documents)
		require.Len(t, res.Failures, 1)
		assert.Equal(t, "large.md", res.Failures[0].Source)
	})
}

func TestPipelineStrategies(t *testing.T) {
	t.Run("Should overwrite identical content on upsert", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "kb.md"), "first version")
		store := newMemoryStore(t)
		p, err := NewPipeline(newHashEmbedder(t), store, testConfig(), Options{Root: root})
		require.NoError(t, err)
		for range 2 {
			_, err = p.Run(context.Background(), Sources{Paths: []string{"kb.md"}})
			require.NoError(t, err)
		}
		assert.Equal(t, 1, countRecords(t, store))
	})

	t.Run("Should keep stale chunks on upsert and drop them on replace", func(t *testing.T) {
		root := t.TempDir()
		path := filepath.Join(root, "kb.md")
		writeFile(t, path, "first version")
		store := newMemoryStore(t)
		upsert, err := NewPipeline(newHashEmbedder(t), store, testConfig(), Options{Root: root})
		require.NoError(t, err)
		_, err = upsert.Run(context.Background(), Sources{Paths: []string{"kb.md"}})
		require.NoError(t, err)

		writeFile(t, path, "second version")
		_, err = upsert.Run(context.Background(), Sources{Paths: []string{"kb.md"}})
		require.NoError(t, err)
		assert.Equal(t, 2, countRecords(t, store))

		writeFile(t, path, "third version")
		replace, err := NewPipeline(
			newHashEmbedder(t),
			store,
			testConfig(),
			Options{Root: root, Strategy: StrategyReplace},
		)
		require.NoError(t, err)
		_, err = replace.Run(context.Background(), Sources{Paths: []string{"kb.md"}})
		require.NoError(t, err)
		assert.Equal(t, 1, countRecords(t, store))
	})

	t.Run("Should reject unknown strategies", func(t *testing.T) {
		_, err := NewPipeline(newHashEmbedder(t), newMemoryStore(t), testConfig(), Options{Strategy: "merge"})
		require.Error(t, err)
	})
}

func TestPipelineRetries(t *testing.T) {
	t.Run("Should retry failed embedding batches", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "kb.md"), "retry me")
		emb := &flakyEmbedder{Embedder: newHashEmbedder(t)}
		emb.failures.Store(2)
		store := newMemoryStore(t)
		p, err := NewPipeline(emb, store, testConfig(), Options{Root: root})
		require.NoError(t, err)
		res, err := p.Run(context.Background(), Sources{Paths: []string{"kb.md"}})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Persisted)
	})

	t.Run("Should give up after the configured attempts", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "kb.md"), "retry me")
		emb := &flakyEmbedder{Embedder: newHashEmbedder(t)}
		emb.failures.Store(5)
		p, err := NewPipeline(emb, newMemoryStore(t), testConfig(), Options{Root: root})
		require.NoError(t, err)
		_, err = p.Run(context.Background(), Sources{Paths: []string{"kb.md"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "embedding backend unavailable")
	})
}
