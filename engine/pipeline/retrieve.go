package pipeline

import (
	"context"
	"strings"

	"github.com/compozy/arag/engine/core"
	"github.com/compozy/arag/pkg/logger"
)

// DefaultRetrievalK is the number of documents fetched when k is not set.
const DefaultRetrievalK = 3

// RetrieverAdapter wraps the knowledge base search so that it never fails.
type RetrieverAdapter struct {
	retriever Retriever
}

type RetrieveResult struct {
	Documents []Document
	Failure   *Failure
}

func NewRetrieverAdapter(retriever Retriever) *RetrieverAdapter {
	return &RetrieverAdapter{retriever: retriever}
}

// Retrieve returns up to k documents. An empty question or a search error
// yields an empty, non-nil slice.
func (a *RetrieverAdapter) Retrieve(ctx context.Context, question string, k int) RetrieveResult {
	if k <= 0 {
		k = DefaultRetrievalK
	}
	if strings.TrimSpace(question) == "" {
		return RetrieveResult{Documents: []Document{}}
	}
	docs, err := a.retriever.Retrieve(ctx, question, k)
	if err != nil {
		logger.FromContext(ctx).Warn(
			"Knowledge base retrieval failed, continuing without documents",
			"error", core.RedactError(err),
			"k", k,
		)
		return RetrieveResult{
			Documents: []Document{},
			Failure:   newFailure(RetrievalFailure, StateRetrieve, err),
		}
	}
	if len(docs) > k {
		docs = docs[:k]
	}
	return RetrieveResult{Documents: cloneDocuments(docs)}
}
