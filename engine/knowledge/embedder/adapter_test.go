package embedder

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingClient struct {
	calls     atomic.Int32
	dimension int
	err       error
}

func (c *countingClient) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vector := make([]float32, c.dimension)
		vector[0] = float32(len(text))
		out[i] = vector
	}
	return out, nil
}

func hashConfig() *Config {
	return &Config{Provider: ProviderHash, Dimension: 64, BatchSize: 8}
}

func TestAdapter_Hash(t *testing.T) {
	ctx := context.Background()

	t.Run("Should embed deterministically with unit length", func(t *testing.T) {
		adapter, err := New(ctx, hashConfig())
		require.NoError(t, err)
		first, err := adapter.EmbedQuery(ctx, "agent memory systems")
		require.NoError(t, err)
		second, err := adapter.EmbedQuery(ctx, "agent memory systems")
		require.NoError(t, err)
		require.Len(t, first, 64)
		assert.Equal(t, first, second)
		var norm float64
		for _, v := range first {
			norm += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, norm, 1e-5)
	})

	t.Run("Should place related texts closer than unrelated ones", func(t *testing.T) {
		adapter, err := New(ctx, &Config{Provider: ProviderHash, Dimension: 256, BatchSize: 4})
		require.NoError(t, err)
		vectors, err := adapter.EmbedDocuments(ctx, []string{
			"agents use short-term memory and long-term memory",
			"how to bake a pizza with tomato",
		})
		require.NoError(t, err)
		query, err := adapter.EmbedQuery(ctx, "agent memory")
		require.NoError(t, err)
		assert.Greater(t, dot(query, vectors[0]), dot(query, vectors[1]))
	})

	t.Run("Should return a zero vector for text without words", func(t *testing.T) {
		adapter, err := New(ctx, hashConfig())
		require.NoError(t, err)
		vector, err := adapter.EmbedQuery(ctx, " ... ")
		require.NoError(t, err)
		for _, v := range vector {
			assert.Zero(t, v)
		}
	})

	t.Run("Should return an empty slice for no documents", func(t *testing.T) {
		adapter, err := New(ctx, hashConfig())
		require.NoError(t, err)
		vectors, err := adapter.EmbedDocuments(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, vectors)
	})
}

func TestAdapter_Cache(t *testing.T) {
	ctx := context.Background()

	t.Run("Should serve repeated queries from the cache", func(t *testing.T) {
		client := &countingClient{dimension: 4}
		adapter, err := Wrap(&Config{Provider: "test", Model: "m", Dimension: 4, BatchSize: 2, CacheSize: 8}, client)
		require.NoError(t, err)
		first, err := adapter.EmbedQuery(ctx, "hello")
		require.NoError(t, err)
		first[0] = 99
		second, err := adapter.EmbedQuery(ctx, "hello")
		require.NoError(t, err)
		assert.Equal(t, float32(5), second[0])
		assert.Equal(t, int32(1), client.calls.Load())
	})

	t.Run("Should call the client every time without a cache", func(t *testing.T) {
		client := &countingClient{dimension: 4}
		adapter, err := Wrap(&Config{Provider: "test", Model: "m", Dimension: 4, BatchSize: 2}, client)
		require.NoError(t, err)
		_, err = adapter.EmbedQuery(ctx, "hello")
		require.NoError(t, err)
		_, err = adapter.EmbedQuery(ctx, "hello")
		require.NoError(t, err)
		assert.Equal(t, int32(2), client.calls.Load())
	})
}

func TestAdapter_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("Should reject vectors of the wrong dimension", func(t *testing.T) {
		adapter, err := Wrap(&Config{Provider: "test", Model: "m", Dimension: 8, BatchSize: 2}, &countingClient{dimension: 4})
		require.NoError(t, err)
		_, err = adapter.EmbedQuery(ctx, "hello")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "returned 4 dimensions, configured 8")
		_, err = adapter.EmbedDocuments(ctx, []string{"a", "b", "c"})
		require.Error(t, err)
	})

	t.Run("Should wrap client failures", func(t *testing.T) {
		cause := errors.New("quota exceeded")
		adapter, err := Wrap(&Config{Provider: "test", Model: "m", Dimension: 4, BatchSize: 2}, &countingClient{err: cause})
		require.NoError(t, err)
		_, err = adapter.EmbedQuery(ctx, "hello")
		assert.ErrorIs(t, err, cause)
	})

	t.Run("Should validate the configuration", func(t *testing.T) {
		_, err := New(ctx, nil)
		require.Error(t, err)
		_, err = New(ctx, &Config{Dimension: 4, BatchSize: 1})
		require.ErrorIs(t, err, errMissingProvider)
		_, err = New(ctx, &Config{Provider: ProviderOpenAI, Dimension: 4, BatchSize: 1})
		require.ErrorIs(t, err, errMissingModel)
		_, err = New(ctx, &Config{Provider: ProviderHash, BatchSize: 1})
		require.ErrorIs(t, err, errInvalidDimension)
		_, err = New(ctx, &Config{Provider: ProviderHash, Dimension: 4})
		require.ErrorIs(t, err, errInvalidBatchSize)
		_, err = New(ctx, &Config{Provider: ProviderGoogle, Model: "embedding-001", Dimension: 768, BatchSize: 1})
		require.ErrorIs(t, err, errMissingAPIKey)
		_, err = New(ctx, &Config{Provider: "cohere", Model: "m", Dimension: 4, BatchSize: 1})
		require.Error(t, err)
	})
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
