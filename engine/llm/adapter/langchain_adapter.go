package llmadapter

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"

	"github.com/compozy/arag/engine/core"
)

// LangChainAdapter adapts langchaingo to our LLMClient interface
type LangChainAdapter struct {
	model    llms.Model
	provider core.ProviderConfig
	errors   *ErrorParser
}

// NewLangChainAdapter creates a new LangChain adapter
func NewLangChainAdapter(ctx context.Context, config *core.ProviderConfig) (*LangChainAdapter, error) {
	model, err := CreateLLM(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM model: %w", err)
	}
	return newAdapterWithModel(model, config), nil
}

func newAdapterWithModel(model llms.Model, config *core.ProviderConfig) *LangChainAdapter {
	return &LangChainAdapter{
		model:    model,
		provider: *config,
		errors:   NewErrorParser(string(config.Provider)),
	}
}

// GenerateContent implements LLMClient interface
func (a *LangChainAdapter) GenerateContent(ctx context.Context, req *LLMRequest) (*LLMResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("llm request must not be nil")
	}
	response, err := a.model.GenerateContent(ctx, a.convertMessages(req), a.buildCallOptions(req)...)
	if err != nil {
		return nil, a.errors.Wrap(err)
	}
	return a.convertResponse(response)
}

// Close is a no-op: langchaingo models hold no closable resources.
func (a *LangChainAdapter) Close() error {
	return nil
}

// convertMessages converts our Message format to langchain MessageContent
func (a *LangChainAdapter) convertMessages(req *LLMRequest) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.SystemPrompt))
	}
	for _, msg := range req.Messages {
		messages = append(messages, llms.TextParts(mapMessageRole(msg.Role), msg.Content))
	}
	return messages
}

func mapMessageRole(role string) llms.ChatMessageType {
	switch role {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

func (a *LangChainAdapter) buildCallOptions(req *LLMRequest) []llms.CallOption {
	temperature := req.Options.Temperature
	if temperature == 0 {
		temperature = a.provider.Params.Temperature
	}
	options := []llms.CallOption{llms.WithTemperature(temperature)}
	maxTokens := req.Options.MaxTokens
	if maxTokens == 0 {
		maxTokens = a.provider.Params.MaxTokens
	}
	if maxTokens > 0 {
		options = append(options, llms.WithMaxTokens(int(maxTokens)))
	}
	stopWords := req.Options.StopWords
	if len(stopWords) == 0 {
		stopWords = a.provider.Params.StopWords
	}
	if len(stopWords) > 0 {
		options = append(options, llms.WithStopWords(stopWords))
	}
	if req.Options.UseJSONMode {
		options = append(options, llms.WithJSONMode())
	}
	return options
}

func (a *LangChainAdapter) convertResponse(resp *llms.ContentResponse) (*LLMResponse, error) {
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return nil, NewErrorWithCode(ErrCodeEmptyResponse, "empty response from LLM", string(a.provider.Provider), nil)
	}
	choice := resp.Choices[0]
	return &LLMResponse{
		Content: choice.Content,
		Usage:   usageFromGenerationInfo(choice.GenerationInfo),
	}, nil
}

// usageFromGenerationInfo reads token counts. Providers report them under
// different keys.
func usageFromGenerationInfo(info map[string]any) *Usage {
	if len(info) == 0 {
		return nil
	}
	prompt := firstInt(info, "PromptTokens", "input_tokens", "InputTokens")
	completion := firstInt(info, "CompletionTokens", "output_tokens", "OutputTokens")
	total := firstInt(info, "TotalTokens", "total_tokens")
	if total == 0 {
		total = prompt + completion
	}
	if total == 0 {
		return nil
	}
	return &Usage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: total}
}

func firstInt(info map[string]any, keys ...string) int {
	for _, key := range keys {
		switch v := info[key].(type) {
		case int:
			return v
		case int32:
			return int(v)
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return 0
}
