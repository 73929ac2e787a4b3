package chains

import (
	"context"
	"fmt"

	llmadapter "github.com/compozy/arag/engine/llm/adapter"
	"github.com/compozy/arag/engine/pipeline"
)

// RetrievalGrader grades one document against the question.
type RetrievalGrader struct {
	client   llmadapter.LLMClient
	settings settings
	system   string
}

var _ pipeline.RelevanceGrader = (*RetrievalGrader)(nil)

func NewRetrievalGrader(client llmadapter.LLMClient, opts ...Option) (*RetrievalGrader, error) {
	if client == nil {
		return nil, fmt.Errorf("retrieval grader: %w", llmadapter.ErrProviderUnconfigured)
	}
	system, err := renderPrompt(tplRelevanceSystem, nil)
	if err != nil {
		return nil, err
	}
	return &RetrievalGrader{client: client, settings: newSettings(opts), system: system}, nil
}

func (g *RetrievalGrader) GradeRelevance(ctx context.Context, question string, content string) (bool, error) {
	human, err := renderPrompt(tplRelevanceHuman, struct{ Document, Question string }{content, question})
	if err != nil {
		return false, err
	}
	req := llmadapter.UserRequest(g.system, human, llmadapter.CallOptions{UseJSONMode: true})
	return invoke(ctx, g.client, g.settings, "retrieval grader", req, parseBinaryScore)
}
