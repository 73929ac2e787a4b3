package vectordb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Should persist records across reopen", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "index.json")
		store, err := New(ctx, &Config{Provider: ProviderFilesystem, Path: path, Dimension: 2})
		require.NoError(t, err)
		require.NoError(t, store.Upsert(ctx, []Record{
			{ID: "a", Text: "alpha", Embedding: []float32{1, 0}, Metadata: map[string]any{"source": "x"}},
			{ID: "b", Text: "bravo", Embedding: []float32{0, 1}},
		}))
		require.NoError(t, store.Close(ctx))

		reopened, err := New(ctx, &Config{Provider: ProviderFilesystem, Path: path, Dimension: 2})
		require.NoError(t, err)
		matches, err := reopened.Search(ctx, []float32{1, 0}, SearchOptions{TopK: 1})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "alpha", matches[0].Text)
		assert.Equal(t, "x", matches[0].Metadata["source"])
	})

	t.Run("Should persist deletes", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "index.json")
		store, err := New(ctx, &Config{Provider: ProviderFilesystem, Path: path, Dimension: 2})
		require.NoError(t, err)
		require.NoError(t, store.Upsert(ctx, []Record{
			{ID: "a", Embedding: []float32{1, 0}, Metadata: map[string]any{"source": "x"}},
			{ID: "b", Embedding: []float32{0, 1}, Metadata: map[string]any{"source": "y"}},
		}))
		require.NoError(t, store.Delete(ctx, Filter{Metadata: map[string]string{"source": "x"}}))

		reopened, err := New(ctx, &Config{Provider: ProviderFilesystem, Path: path, Dimension: 2})
		require.NoError(t, err)
		count, err := reopened.(Counter).Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("Should reject a snapshot with another dimension", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "index.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"dimension":3,"records":[]}`), 0o600))
		_, err := New(ctx, &Config{Provider: ProviderFilesystem, Path: path, Dimension: 2})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "stored dimension 3")
	})

	t.Run("Should reject a corrupt snapshot", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "index.json")
		require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))
		_, err := New(ctx, &Config{Provider: ProviderFilesystem, Path: path, Dimension: 2})
		require.Error(t, err)
	})
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	t.Run("Should validate the configuration", func(t *testing.T) {
		_, err := New(ctx, nil)
		require.Error(t, err)
		_, err = New(ctx, &Config{Dimension: 2})
		require.ErrorIs(t, err, errMissingProvider)
		_, err = New(ctx, &Config{Provider: ProviderPGVector, Dimension: 2})
		require.ErrorIs(t, err, errMissingDSN)
		_, err = New(ctx, &Config{Provider: ProviderFilesystem, Path: "  ", Dimension: 2})
		require.ErrorIs(t, err, errMissingPath)
		_, err = New(ctx, &Config{Provider: ProviderMemory})
		require.ErrorIs(t, err, errInvalidDimension)
		_, err = New(ctx, &Config{Provider: "qdrant", Dimension: 2})
		require.Error(t, err)
	})

	t.Run("Should return an instrumented store that still counts", func(t *testing.T) {
		store, err := New(ctx, &Config{Provider: ProviderMemory, Dimension: 2})
		require.NoError(t, err)
		require.NoError(t, store.Upsert(ctx, []Record{{ID: "a", Embedding: []float32{1, 0}}}))
		counter, ok := store.(Counter)
		require.True(t, ok)
		count, err := counter.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}
