package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTavilyServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func TestTavilyClient_Search(t *testing.T) {
	t.Run("Should post the query and map results", func(t *testing.T) {
		var got map[string]any
		server := newTavilyServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/search", r.URL.Path)
			assert.Equal(t, "Bearer tvly-test", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"query": "who won the match",
				"response_time": 0.42,
				"results": [
					{"title": "Match report", "url": "https://a.example", "content": "Team A won 2-1.", "score": 0.9},
					{"title": "Highlights", "url": "https://b.example", "content": "Late winner.", "score": 0.8}
				]
			}`))
		})
		client := NewTavilyClient(TavilyConfig{APIKey: "tvly-test", BaseURL: server.URL, MaxResults: 2})
		hits, err := client.Search(context.Background(), "who won the match")
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Equal(t, "Match report", hits[0].Title)
		assert.Equal(t, "https://a.example", hits[0].URL)
		assert.Equal(t, "Team A won 2-1.", hits[0].Content)
		assert.Equal(t, "who won the match", got["query"])
		assert.EqualValues(t, 2, got["max_results"])
		assert.Equal(t, "basic", got["search_depth"])
		assert.Equal(t, false, got["include_answer"])
	})

	t.Run("Should cap results at max results", func(t *testing.T) {
		server := newTavilyServer(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"results": [
				{"title": "1", "content": "one"},
				{"title": "2", "content": "two"},
				{"title": "3", "content": "three"}
			]}`))
		})
		client := NewTavilyClient(TavilyConfig{APIKey: "k", BaseURL: server.URL, MaxResults: 1})
		hits, err := client.Search(context.Background(), "q")
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "one", hits[0].Content)
	})

	t.Run("Should surface api errors with their detail", func(t *testing.T) {
		server := newTavilyServer(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail": {"error": "Unauthorized: missing or invalid API key."}}`))
		})
		client := NewTavilyClient(TavilyConfig{APIKey: "bad", BaseURL: server.URL})
		_, err := client.Search(context.Background(), "q")
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		assert.Contains(t, apiErr.Message, "invalid API key")
		assert.False(t, apiErr.Retryable())
	})

	t.Run("Should refuse to search without an api key", func(t *testing.T) {
		client := NewTavilyClient(TavilyConfig{})
		_, err := client.Search(context.Background(), "q")
		require.ErrorIs(t, err, ErrUnconfigured)
	})

	t.Run("Should classify throttling as retryable", func(t *testing.T) {
		assert.True(t, (&APIError{StatusCode: http.StatusTooManyRequests}).Retryable())
		assert.True(t, (&APIError{StatusCode: http.StatusBadGateway}).Retryable())
	})
}
