// Package llm provides the chat-completion clients used by the analysis pipeline.
package llm

import (
	"context"
)

// GenerateOptions carries the per-call sampling settings.
type GenerateOptions struct {
	Temperature float64
	MaxTokens   int
	// JSONMode asks the provider to return a single JSON object.
	JSONMode bool
}

// GenerateResponseResult contains the LLM response along with token usage statistics.
type GenerateResponseResult struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// LLMClient defines the interface for LLM operations.
// Use this interface for dependency injection to enable mocking in tests.
type LLMClient interface {
	// GenerateResponse sends one system + user message pair and returns the completion.
	// Failures are returned as *Error.
	GenerateResponse(ctx context.Context, prompt string, systemMessage string, opts GenerateOptions) (*GenerateResponseResult, error)

	// GetModel returns the configured model name.
	GetModel() string

	// GetEndpoint returns the configured endpoint.
	GetEndpoint() string
}

// Ensure both providers implement LLMClient at compile time.
var (
	_ LLMClient = (*Client)(nil)
	_ LLMClient = (*AnthropicClient)(nil)
)
