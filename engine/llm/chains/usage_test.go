package chains

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmadapter "github.com/compozy/arag/engine/llm/adapter"
	"github.com/compozy/arag/engine/pipeline"
)

type usageCall struct {
	component  string
	provider   string
	model      string
	prompt     int
	completion int
	failed     bool
}

type recordingUsage struct {
	mu    sync.Mutex
	calls []usageCall
}

func (r *recordingUsage) RecordSuccess(
	_ context.Context,
	component, provider, model string,
	promptTokens, completionTokens int,
	_ time.Duration,
) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, usageCall{component, provider, model, promptTokens, completionTokens, false})
}

func (r *recordingUsage) RecordFailure(_ context.Context, component, provider, model string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, usageCall{component: component, provider: provider, model: model, failed: true})
}

type meteredClient struct {
	*scriptedClient
	usage *llmadapter.Usage
}

func (c *meteredClient) GenerateContent(ctx context.Context, req *llmadapter.LLMRequest) (*llmadapter.LLMResponse, error) {
	resp, err := c.scriptedClient.GenerateContent(ctx, req)
	if resp != nil {
		resp.Usage = c.usage
	}
	return resp, err
}

func TestWithUsageMetrics(t *testing.T) {
	ctx := context.Background()

	t.Run("Should report token usage per chain", func(t *testing.T) {
		usage := &recordingUsage{}
		client := &meteredClient{
			scriptedClient: newScriptedClient(reply(`{"binary_score":"yes"}`)),
			usage:          &llmadapter.Usage{PromptTokens: 120, CompletionTokens: 8, TotalTokens: 128},
		}
		grader, err := NewRetrievalGrader(client, WithUsageMetrics(usage, "openai", "gpt-4o-mini"))
		require.NoError(t, err)
		ok, err := grader.GradeRelevance(ctx, "q", "doc")
		require.NoError(t, err)
		assert.True(t, ok)
		require.Len(t, usage.calls, 1)
		assert.Equal(t, usageCall{"retrieval grader", "openai", "gpt-4o-mini", 120, 8, false}, usage.calls[0])
	})

	t.Run("Should report each failed attempt", func(t *testing.T) {
		usage := &recordingUsage{}
		client := newScriptedClient(failure(retryableErr()), reply("Agents remember."))
		gen := NewAnswerGenerator(client, WithUsageMetrics(usage, "groq", "llama"), fastRetry)
		_, err := gen.Generate(ctx, pipeline.GenerationRequest{Question: "q", Attempt: 1})
		require.NoError(t, err)
		require.Len(t, usage.calls, 2)
		assert.True(t, usage.calls[0].failed)
		assert.Equal(t, "answer generator", usage.calls[0].component)
		assert.False(t, usage.calls[1].failed)
		assert.Zero(t, usage.calls[1].prompt)
	})
}
