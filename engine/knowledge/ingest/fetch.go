package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

var errBodyTooLarge = errors.New("response body exceeds size limit")

// remoteDocument is a downloaded and decoded web page.
type remoteDocument struct {
	url         string
	contentType string
	size        int
	page        page
}

// fetcher downloads remote sources with bounded retries.
type fetcher struct {
	client   *resty.Client
	maxBytes int64
}

func newFetcher(cfg FetchConfig) *fetcher {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5").
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(cfg.Wait).
		SetRetryMaxWaitTime(maxWait(cfg))
	client.AddRetryCondition(retryCondition)
	return &fetcher{client: client, maxBytes: cfg.MaxBytes}
}

func maxWait(cfg FetchConfig) time.Duration {
	return cfg.Wait * 4
}

// retryCondition retries throttling and server side failures. Transport
// errors are retried by resty itself.
func retryCondition(resp *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if resp == nil {
		return false
	}
	code := resp.StatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func (f *fetcher) fetch(ctx context.Context, rawURL string) (*remoteDocument, error) {
	resp, err := f.client.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("knowledge: download url %q: %w", rawURL, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("knowledge: download url %q: unexpected status %d", rawURL, resp.StatusCode())
	}
	body := resp.Body()
	if f.maxBytes > 0 && int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("knowledge: url %q: %w (%d bytes)", rawURL, errBodyTooLarge, f.maxBytes)
	}
	contentType := resp.Header().Get("Content-Type")
	pg, err := decodePage(body, contentType)
	if err != nil {
		return nil, fmt.Errorf("knowledge: decode url %q: %w", rawURL, err)
	}
	return &remoteDocument{
		url:         rawURL,
		contentType: mediaType(contentType),
		size:        len(body),
		page:        pg,
	}, nil
}

func mediaType(contentType string) string {
	value, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(value))
}
