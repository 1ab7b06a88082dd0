package llm

import (
	"context"
	"sync"
)

// MockLLMClient is a configurable mock for testing LLM functionality.
// Set the function fields to control behavior in tests.
type MockLLMClient struct {
	// GenerateResponseFunc is called when GenerateResponse is invoked.
	// If nil, returns an empty JSON object.
	GenerateResponseFunc func(ctx context.Context, prompt string, systemMessage string, opts GenerateOptions) (*GenerateResponseResult, error)

	// Model is returned by GetModel. Defaults to "mock-model".
	Model string

	// Endpoint is returned by GetEndpoint. Defaults to "http://mock-endpoint".
	Endpoint string

	mu                    sync.Mutex
	GenerateResponseCalls int
	Prompts               []string
}

// NewMockLLMClient creates a new mock with sensible defaults.
func NewMockLLMClient() *MockLLMClient {
	return &MockLLMClient{
		Model:    "mock-model",
		Endpoint: "http://mock-endpoint",
	}
}

// NewMockLLMClientWithResponses returns a mock that answers each call with the
// next entry of responses, repeating the last one once exhausted.
func NewMockLLMClientWithResponses(responses ...string) *MockLLMClient {
	m := NewMockLLMClient()
	m.GenerateResponseFunc = func(ctx context.Context, prompt, systemMessage string, opts GenerateOptions) (*GenerateResponseResult, error) {
		idx := m.GenerateResponseCalls - 1
		if idx >= len(responses) {
			idx = len(responses) - 1
		}
		return &GenerateResponseResult{Content: responses[idx]}, nil
	}
	return m
}

// GenerateResponse implements LLMClient.
func (m *MockLLMClient) GenerateResponse(ctx context.Context, prompt string, systemMessage string, opts GenerateOptions) (*GenerateResponseResult, error) {
	m.mu.Lock()
	m.GenerateResponseCalls++
	m.Prompts = append(m.Prompts, prompt)
	fn := m.GenerateResponseFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, prompt, systemMessage, opts)
	}
	return &GenerateResponseResult{Content: "{}"}, nil
}

// GetModel implements LLMClient.
func (m *MockLLMClient) GetModel() string {
	if m.Model == "" {
		return "mock-model"
	}
	return m.Model
}

// GetEndpoint implements LLMClient.
func (m *MockLLMClient) GetEndpoint() string {
	if m.Endpoint == "" {
		return "http://mock-endpoint"
	}
	return m.Endpoint
}

// Reset clears call tracking counters.
func (m *MockLLMClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateResponseCalls = 0
	m.Prompts = nil
}

// Ensure MockLLMClient implements LLMClient at compile time.
var _ LLMClient = (*MockLLMClient)(nil)
