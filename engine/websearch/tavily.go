package websearch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/compozy/arag/engine/pipeline"
	"github.com/compozy/arag/pkg/logger"
)

const (
	DefaultBaseURL    = "https://api.tavily.com"
	DefaultMaxResults = 3
	DefaultDepth      = "basic"
	defaultTimeout    = 15 * time.Second
)

// ErrUnconfigured is returned when the search backend has no API key.
var ErrUnconfigured = errors.New("websearch: api key is not configured")

// APIError is a non-2xx reply from the search backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("websearch: tavily returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("websearch: tavily returned status %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the failure is transient.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

type TavilyConfig struct {
	APIKey      string
	BaseURL     string
	MaxResults  int
	SearchDepth string
	Timeout     time.Duration
}

// TavilyClient queries the Tavily search API.
type TavilyClient struct {
	client     *resty.Client
	apiKey     string
	maxResults int
	depth      string
}

var _ pipeline.WebSearcher = (*TavilyClient)(nil)

func NewTavilyClient(cfg TavilyConfig) *TavilyClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	depth := cfg.SearchDepth
	if depth == "" {
		depth = DefaultDepth
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}
	return &TavilyClient{
		client:     client,
		apiKey:     cfg.APIKey,
		maxResults: maxResults,
		depth:      depth,
	}
}

type tavilyRequest struct {
	Query         string `json:"query"`
	MaxResults    int    `json:"max_results"`
	SearchDepth   string `json:"search_depth"`
	IncludeAnswer bool   `json:"include_answer"`
}

type tavilyResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type tavilyResponse struct {
	Query        string         `json:"query"`
	Results      []tavilyResult `json:"results"`
	ResponseTime float64        `json:"response_time"`
}

type tavilyError struct {
	Detail struct {
		Error string `json:"error"`
	} `json:"detail"`
}

// Search returns up to the configured number of hits in backend order.
func (c *TavilyClient) Search(ctx context.Context, query string) ([]pipeline.SearchHit, error) {
	if c.apiKey == "" {
		return nil, ErrUnconfigured
	}
	var out tavilyResponse
	var apiErr tavilyError
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(tavilyRequest{
			Query:       query,
			MaxResults:  c.maxResults,
			SearchDepth: c.depth,
		}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/search")
	if err != nil {
		return nil, fmt.Errorf("websearch: tavily request failed: %w", err)
	}
	if resp.IsError() {
		return nil, &APIError{StatusCode: resp.StatusCode(), Message: apiErr.Detail.Error}
	}
	hits := make([]pipeline.SearchHit, 0, len(out.Results))
	for _, r := range out.Results {
		hits = append(hits, pipeline.SearchHit{Title: r.Title, Content: r.Content, URL: r.URL})
	}
	if len(hits) > c.maxResults {
		hits = hits[:c.maxResults]
	}
	logger.FromContext(ctx).Debug(
		"Tavily search completed",
		"results", len(hits),
		"response_time", out.ResponseTime,
	)
	return hits, nil
}
