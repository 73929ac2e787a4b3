package chains

import (
	"context"
	"fmt"
	"strings"

	llmadapter "github.com/compozy/arag/engine/llm/adapter"
	"github.com/compozy/arag/engine/pipeline"
)

// AnswerGenerator writes the answer from the question and the evidence.
// A generator built without a client reports pipeline.ErrGenerationUnconfigured.
type AnswerGenerator struct {
	client   llmadapter.LLMClient
	settings settings
}

var _ pipeline.Generator = (*AnswerGenerator)(nil)

func NewAnswerGenerator(client llmadapter.LLMClient, opts ...Option) *AnswerGenerator {
	return &AnswerGenerator{client: client, settings: newSettings(opts)}
}

func (g *AnswerGenerator) Generate(ctx context.Context, req pipeline.GenerationRequest) (string, error) {
	if g == nil || g.client == nil {
		return "", pipeline.ErrGenerationUnconfigured
	}
	prompt, err := renderPrompt(tplGeneration, struct {
		Question    string
		Documents   []string
		EvidenceGap bool
	}{req.Question, documentContents(req.Documents), req.EvidenceGap})
	if err != nil {
		return "", err
	}
	llmReq := llmadapter.UserRequest("", prompt, llmadapter.CallOptions{Temperature: g.settings.temperature})
	return invoke(ctx, g.client, g.settings, "answer generator", llmReq, func(reply string) (string, error) {
		answer := strings.TrimSpace(reply)
		if answer == "" {
			return "", fmt.Errorf("%w: empty answer", ErrMalformedReply)
		}
		return answer, nil
	})
}
