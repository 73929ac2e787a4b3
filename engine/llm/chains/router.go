package chains

import (
	"context"
	"fmt"

	llmadapter "github.com/compozy/arag/engine/llm/adapter"
	"github.com/compozy/arag/engine/pipeline"
)

const (
	datasourceVectorStore = "vectorstore"
	datasourceWebSearch   = "websearch"
)

// DefaultTopics describe what the default knowledge base covers.
var DefaultTopics = []string{
	"Agents and agent memory",
	"Prompt engineering techniques (including chain of thought prompting, few-shot prompting, etc.)",
	"Adversarial attacks in AI",
	"AI frameworks/libraries like LangGraph, LangChain",
	"Machine learning concepts and techniques",
}

// QuestionRouter classifies questions with a model.
type QuestionRouter struct {
	client   llmadapter.LLMClient
	settings settings
	system   string
}

var _ pipeline.Classifier = (*QuestionRouter)(nil)

// NewQuestionRouter renders the routing prompt for topics, or DefaultTopics
// when topics is empty.
func NewQuestionRouter(client llmadapter.LLMClient, topics []string, opts ...Option) (*QuestionRouter, error) {
	if client == nil {
		return nil, fmt.Errorf("question router: %w", llmadapter.ErrProviderUnconfigured)
	}
	if len(topics) == 0 {
		topics = DefaultTopics
	}
	system, err := renderPrompt(tplRouterSystem, struct{ Topics []string }{Topics: topics})
	if err != nil {
		return nil, err
	}
	return &QuestionRouter{client: client, settings: newSettings(opts), system: system}, nil
}

func (r *QuestionRouter) Classify(ctx context.Context, question string) (pipeline.Route, error) {
	req := llmadapter.UserRequest(r.system, question, llmadapter.CallOptions{UseJSONMode: true})
	return invoke(ctx, r.client, r.settings, "question router", req, func(reply string) (pipeline.Route, error) {
		source, err := parseDatasource(reply)
		if err != nil {
			return "", err
		}
		switch source {
		case datasourceVectorStore:
			return pipeline.RouteKnowledgeBase, nil
		case datasourceWebSearch:
			return pipeline.RouteWebSearch, nil
		default:
			return "", fmt.Errorf("%w: unknown datasource %q", ErrMalformedReply, source)
		}
	})
}
