package chains

import (
	"context"
	"fmt"

	llmadapter "github.com/compozy/arag/engine/llm/adapter"
	"github.com/compozy/arag/engine/pipeline"
)

// HallucinationGrader checks that a generation is supported by the documents.
type HallucinationGrader struct {
	client   llmadapter.LLMClient
	settings settings
	system   string
}

var _ pipeline.GroundingGrader = (*HallucinationGrader)(nil)

func NewHallucinationGrader(client llmadapter.LLMClient, opts ...Option) (*HallucinationGrader, error) {
	if client == nil {
		return nil, fmt.Errorf("hallucination grader: %w", llmadapter.ErrProviderUnconfigured)
	}
	system, err := renderPrompt(tplHallucinationSys, nil)
	if err != nil {
		return nil, err
	}
	return &HallucinationGrader{client: client, settings: newSettings(opts), system: system}, nil
}

func (g *HallucinationGrader) GradeGrounding(
	ctx context.Context,
	docs []pipeline.Document,
	generation string,
) (bool, error) {
	human, err := renderPrompt(tplHallucinationHuman, struct {
		Documents  []string
		Generation string
	}{documentContents(docs), generation})
	if err != nil {
		return false, err
	}
	req := llmadapter.UserRequest(g.system, human, llmadapter.CallOptions{UseJSONMode: true})
	return invoke(ctx, g.client, g.settings, "hallucination grader", req, parseBinaryScore)
}

func documentContents(docs []pipeline.Document) []string {
	out := make([]string, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.Content())
	}
	return out
}
