package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/compozy/arag/engine/core"
	"github.com/compozy/arag/pkg/logger"
)

var (
	errWebSearchUnconfigured = errors.New("web search is not configured")
	errNoSearchResults       = errors.New("web search returned no usable results")
	errEmptyQuery            = errors.New("empty web search query")
)

// WebSearchFallback appends one aggregate web document to the evidence.
type WebSearchFallback struct {
	searcher WebSearcher
}

type AugmentResult struct {
	Documents []Document
	Failure   *Failure
}

// NewWebSearchFallback accepts a nil searcher; every augmentation then
// reports the search as unavailable.
func NewWebSearchFallback(searcher WebSearcher) *WebSearchFallback {
	return &WebSearchFallback{searcher: searcher}
}

// Augment searches the web for question and appends the joined hits as the
// last document. On failure docs are returned unchanged with a failure.
func (w *WebSearchFallback) Augment(ctx context.Context, question string, docs []Document) AugmentResult {
	out := cloneDocuments(docs)
	hits, err := w.search(ctx, question)
	if err == nil {
		var doc Document
		doc, err = aggregateHits(hits)
		if err == nil {
			recordWebSearch(ctx, "ok")
			return AugmentResult{Documents: append(out, doc)}
		}
	}
	logger.FromContext(ctx).Warn(
		"Web search unavailable, continuing with an evidence gap",
		"error", core.RedactError(err),
	)
	recordWebSearch(ctx, "unavailable")
	return AugmentResult{
		Documents: out,
		Failure:   newFailure(WebSearchUnavailable, StateWebSearch, err),
	}
}

func (w *WebSearchFallback) search(ctx context.Context, question string) ([]SearchHit, error) {
	if w.searcher == nil {
		return nil, errWebSearchUnconfigured
	}
	if strings.TrimSpace(question) == "" {
		return nil, errEmptyQuery
	}
	return w.searcher.Search(ctx, question)
}

func aggregateHits(hits []SearchHit) (Document, error) {
	contents := make([]string, 0, len(hits))
	urls := make([]string, 0, len(hits))
	title := ""
	for _, hit := range hits {
		content := strings.TrimSpace(hit.Content)
		if content == "" {
			continue
		}
		contents = append(contents, content)
		if hit.URL != "" {
			urls = append(urls, hit.URL)
		}
		if title == "" {
			title = hit.Title
		}
	}
	if len(contents) == 0 {
		return Document{}, errNoSearchResults
	}
	meta := map[string]string{MetaSource: SourceWebSearch}
	if len(urls) > 0 {
		meta[MetaURL] = urls[0]
		meta[MetaURLs] = strings.Join(urls, ",")
	}
	if title != "" {
		meta[MetaTitle] = title
	}
	return NewDocument(strings.Join(contents, "\n"), meta), nil
}
