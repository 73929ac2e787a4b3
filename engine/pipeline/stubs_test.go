package pipeline

import (
	"context"
	"strings"
	"sync"
)

type stubClassifier struct {
	mu    sync.Mutex
	route Route
	err   error
	calls int
}

func (s *stubClassifier) Classify(_ context.Context, _ string) (Route, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.route, s.err
}

type stubRetriever struct {
	mu    sync.Mutex
	docs  []Document
	err   error
	calls int
	lastK int
}

func (s *stubRetriever) Retrieve(_ context.Context, _ string, k int) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastK = k
	return s.docs, s.err
}

// keywordGrader marks content relevant when it contains keyword. Contents
// listed in failOn return an error.
type keywordGrader struct {
	mu      sync.Mutex
	keyword string
	failOn  map[string]error
	calls   []string
}

func (g *keywordGrader) GradeRelevance(_ context.Context, _ string, content string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, content)
	if err, ok := g.failOn[content]; ok {
		return false, err
	}
	return strings.Contains(content, g.keyword), nil
}

type stubGenerator struct {
	mu       sync.Mutex
	answers  []string
	err      error
	errAfter int
	requests []GenerationRequest
}

func (g *stubGenerator) Generate(_ context.Context, req GenerationRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil && len(g.requests) > g.errAfter {
		return "", g.err
	}
	if len(g.answers) == 0 {
		return "answer", nil
	}
	idx := len(g.requests) - 1
	if idx >= len(g.answers) {
		idx = len(g.answers) - 1
	}
	return g.answers[idx], nil
}

func (g *stubGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

// scriptedGrounding returns verdicts in order and repeats the last one.
type scriptedGrounding struct {
	mu       sync.Mutex
	verdicts []bool
	err      error
	calls    int
}

func (g *scriptedGrounding) GradeGrounding(_ context.Context, _ []Document, _ string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return false, g.err
	}
	if len(g.verdicts) == 0 {
		return true, nil
	}
	idx := g.calls - 1
	if idx >= len(g.verdicts) {
		idx = len(g.verdicts) - 1
	}
	return g.verdicts[idx], nil
}

type stubSearcher struct {
	mu      sync.Mutex
	hits    []SearchHit
	err     error
	queries []string
}

func (s *stubSearcher) Search(_ context.Context, query string) ([]SearchHit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	return s.hits, s.err
}

func kbDocs(contents ...string) []Document {
	docs := make([]Document, 0, len(contents))
	for _, c := range contents {
		docs = append(docs, NewDocument(c, map[string]string{MetaSource: "https://lilianweng.github.io/posts/2023-03-15-prompt-engineering/"}))
	}
	return docs
}

func pizzaHits() []SearchHit {
	return []SearchHit{
		{Title: "Neapolitan pizza", Content: "Stretch the dough and bake at 450C.", URL: "https://example.com/pizza"},
		{Title: "Pizza sauce", Content: "Use crushed San Marzano tomatoes.", URL: "https://example.com/sauce"},
	}
}
