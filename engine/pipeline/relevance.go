package pipeline

import (
	"context"

	"github.com/compozy/arag/engine/core"
	"github.com/compozy/arag/pkg/logger"
)

// RelevanceFilter keeps only the documents a grader judges relevant.
type RelevanceFilter struct {
	grader RelevanceGrader
}

type FilterResult struct {
	Documents []Document
	// AnyIrrelevant is true when a document was dropped or the input was empty.
	AnyIrrelevant bool
	Failures      []Failure
}

func NewRelevanceFilter(grader RelevanceGrader) *RelevanceFilter {
	return &RelevanceFilter{grader: grader}
}

// Filter grades documents one at a time and preserves their order. A grader
// error drops the document.
func (f *RelevanceFilter) Filter(ctx context.Context, question string, docs []Document) FilterResult {
	result := FilterResult{Documents: make([]Document, 0, len(docs))}
	if len(docs) == 0 {
		result.AnyIrrelevant = true
		return result
	}
	log := logger.FromContext(ctx)
	for i, doc := range docs {
		relevant, err := f.grader.GradeRelevance(ctx, question, doc.Content())
		if err != nil {
			log.Warn("Relevance grading failed, dropping document",
				"index", i,
				"error", core.RedactError(err),
			)
			result.Failures = append(result.Failures, *newFailure(GradingFailure, StateGradeDocuments, err))
			result.AnyIrrelevant = true
			recordRelevance(ctx, "error")
			continue
		}
		if !relevant {
			log.Debug("Document graded not relevant", "index", i, "source", doc.Meta(MetaSource))
			result.AnyIrrelevant = true
			recordRelevance(ctx, "irrelevant")
			continue
		}
		log.Debug("Document graded relevant", "index", i, "source", doc.Meta(MetaSource))
		recordRelevance(ctx, "relevant")
		result.Documents = append(result.Documents, doc)
	}
	return result
}
