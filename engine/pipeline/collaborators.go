package pipeline

import "context"

// Classifier maps a question to the evidence source that covers it.
type Classifier interface {
	Classify(ctx context.Context, question string) (Route, error)
}

// Retriever runs a similarity search over the knowledge base.
type Retriever interface {
	Retrieve(ctx context.Context, question string, k int) ([]Document, error)
}

// RelevanceGrader judges whether one document's content bears on the question.
type RelevanceGrader interface {
	GradeRelevance(ctx context.Context, question string, content string) (bool, error)
}

// GenerationRequest is the input handed to a Generator.
type GenerationRequest struct {
	Question  string
	Documents []Document
	// Attempt is 1 for the first generation of a question.
	Attempt int
	// EvidenceGap tells the generator that web evidence was warranted but
	// could not be obtained.
	EvidenceGap bool
}

// Generator produces an answer. It returns ErrGenerationUnconfigured when it
// has no model to call.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// GroundingGrader judges whether an answer is supported by the documents.
type GroundingGrader interface {
	GradeGrounding(ctx context.Context, docs []Document, generation string) (bool, error)
}

// SearchHit is one web search result.
type SearchHit struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url"`
}

// WebSearcher queries a live web search backend.
type WebSearcher interface {
	Search(ctx context.Context, query string) ([]SearchHit, error)
}
