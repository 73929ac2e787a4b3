package llmadapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/compozy/arag/engine/core"
)

const (
	groqBaseURL     = "https://api.groq.com/openai/v1"
	deepSeekBaseURL = "https://api.deepseek.com/v1"
)

// RequiresAPIKey reports whether the provider cannot be called without a key.
func RequiresAPIKey(provider core.ProviderName) bool {
	switch provider {
	case core.ProviderOllama, core.ProviderMock:
		return false
	default:
		return true
	}
}

// CreateLLM creates a langchaingo model based on the provider configuration
func CreateLLM(ctx context.Context, provider *core.ProviderConfig) (llms.Model, error) {
	switch provider.Provider {
	case core.ProviderGoogle:
		return createGoogleLLM(ctx, provider)
	case core.ProviderOpenAI:
		return createOpenAICompatibleLLM(provider, "")
	case core.ProviderGroq:
		return createOpenAICompatibleLLM(provider, groqBaseURL)
	case core.ProviderDeepSeek:
		return createOpenAICompatibleLLM(provider, deepSeekBaseURL)
	case core.ProviderAnthropic:
		return createAnthropicLLM(provider)
	case core.ProviderOllama:
		return createOllamaLLM(provider)
	case core.ProviderMock:
		return NewMockLLM(provider.Model), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider.Provider)
	}
}

func createGoogleLLM(ctx context.Context, p *core.ProviderConfig) (llms.Model, error) {
	opts := []googleai.Option{
		googleai.WithDefaultModel(p.Model),
		googleai.WithAPIKey(p.APIKey),
	}
	if p.APIURL != "" {
		return nil, fmt.Errorf("googleai does not support custom API URL")
	}
	return googleai.New(ctx, opts...)
}

func createOpenAICompatibleLLM(p *core.ProviderConfig, defaultBaseURL string) (llms.Model, error) {
	opts := []openai.Option{
		openai.WithModel(p.Model),
		openai.WithToken(p.APIKey),
	}
	baseURL := defaultBaseURL
	if p.APIURL != "" {
		baseURL = p.APIURL
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	return openai.New(opts...)
}

func createAnthropicLLM(p *core.ProviderConfig) (llms.Model, error) {
	opts := []anthropic.Option{
		anthropic.WithModel(p.Model),
		anthropic.WithToken(p.APIKey),
	}
	if p.APIURL != "" {
		opts = append(opts, anthropic.WithBaseURL(p.APIURL))
	}
	return anthropic.New(opts...)
}

func createOllamaLLM(p *core.ProviderConfig) (llms.Model, error) {
	opts := []ollama.Option{
		ollama.WithModel(p.Model),
	}
	if p.APIURL != "" {
		opts = append(opts, ollama.WithServerURL(p.APIURL))
	}
	return ollama.New(opts...)
}

// MockResponse is the JSON body the mock model returns in JSON mode. It
// routes to the knowledge base and approves every grading question.
const MockResponse = `{"datasource":"vectorstore","binary_score":"yes"}`

// MockLLM is an offline model with predictable output.
type MockLLM struct {
	model string
}

// NewMockLLM creates a new mock LLM
func NewMockLLM(model string) *MockLLM {
	return &MockLLM{model: model}
}

// GenerateContent answers JSON requests with MockResponse and echoes the last
// human message otherwise.
func (m *MockLLM) GenerateContent(
	ctx context.Context,
	messages []llms.MessageContent,
	options ...llms.CallOption,
) (*llms.ContentResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts := llms.CallOptions{}
	for _, opt := range options {
		opt(&opts)
	}
	if opts.JSONMode {
		return contentResponse(MockResponse), nil
	}
	var last string
	for _, message := range messages {
		if message.Role != llms.ChatMessageTypeHuman {
			continue
		}
		for _, part := range message.Parts {
			if text, ok := part.(llms.TextContent); ok {
				last = text.Text
			}
		}
	}
	return contentResponse("Mock answer from " + m.model + ": " + firstLine(last)), nil
}

// Call implements the legacy Call interface
func (m *MockLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func contentResponse(text string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: text}}}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
