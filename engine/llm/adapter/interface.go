package llmadapter

import (
	"context"
	"time"

	"github.com/compozy/arag/engine/core"
)

// Role constants for message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// LLMRequest represents a request to the LLM, independent of provider
type LLMRequest struct {
	SystemPrompt string
	Messages     []Message
	Options      CallOptions
}

// Message represents a conversation message
type Message struct {
	Role    string
	Content string
}

// CallOptions represents options for the LLM call
type CallOptions struct {
	Temperature float64
	MaxTokens   int32
	StopWords   []string
	UseJSONMode bool
}

// LLMResponse represents the response from the LLM
type LLMResponse struct {
	Content string
	Usage   *Usage
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// LLMClient is the main interface for LLM interactions
type LLMClient interface {
	// GenerateContent sends a request to the LLM and returns a response
	GenerateContent(ctx context.Context, req *LLMRequest) (*LLMResponse, error)
	// Close cleans up any resources held by the client
	Close() error
}

// UsageMetrics records token usage and latency of model calls.
type UsageMetrics interface {
	RecordSuccess(
		ctx context.Context,
		component, provider, model string,
		promptTokens, completionTokens int,
		latency time.Duration,
	)
	RecordFailure(ctx context.Context, component, provider, model string, latency time.Duration)
}

// Factory creates LLMClient instances based on provider configuration
type Factory interface {
	CreateClient(ctx context.Context, config *core.ProviderConfig) (LLMClient, error)
}

// UserRequest builds the common single-turn request shape.
func UserRequest(system, user string, opts CallOptions) *LLMRequest {
	return &LLMRequest{
		SystemPrompt: system,
		Messages:     []Message{{Role: RoleUser, Content: user}},
		Options:      opts,
	}
}
