package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"
)

// defaultAnthropicMaxTokens is used when a caller leaves MaxTokens unset; the
// Messages API requires an explicit ceiling.
const defaultAnthropicMaxTokens = 4096

// jsonModeInstruction is appended to the system prompt in JSON mode, since the
// Messages API has no response_format switch.
const jsonModeInstruction = "\n\nRespond with a single valid JSON object and nothing else."

// AnthropicClient talks to the Anthropic Messages API.
type AnthropicClient struct {
	client   *anthropic.Client
	endpoint string
	model    string
	logger   *zap.Logger
}

// NewAnthropicClient creates a client for the Anthropic Messages API.
// An empty Endpoint keeps the SDK default.
func NewAnthropicClient(cfg *Config, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	var opts []anthropic.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, anthropic.WithBaseURL(strings.TrimSuffix(cfg.Endpoint, "/")))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, anthropic.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}

	return &AnthropicClient{
		client:   anthropic.NewClient(cfg.APIKey, opts...),
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		logger:   logger.Named("llm"),
	}, nil
}

// GenerateResponse sends one user message with the given system prompt.
func (c *AnthropicClient) GenerateResponse(
	ctx context.Context,
	prompt string,
	systemMessage string,
	opts GenerateOptions,
) (*GenerateResponseResult, error) {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	system := systemMessage
	if opts.JSONMode {
		system += jsonModeInstruction
	}
	temperature := float32(opts.Temperature)

	c.logger.Debug("LLM request",
		zap.String("model", c.model),
		zap.Int("prompt_len", len(prompt)),
		zap.Float64("temperature", opts.Temperature),
		zap.Int("max_tokens", maxTokens))

	start := time.Now()

	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(c.model),
		System:      system,
		MaxTokens:   maxTokens,
		Temperature: &temperature,
		Messages: []anthropic.Message{
			{
				Role: anthropic.RoleUser,
				Content: []anthropic.MessageContent{
					{Type: "text", Text: &prompt},
				},
			},
		},
	})
	if err != nil {
		classified := ClassifyError(err)
		classified.Model = c.model
		classified.Endpoint = c.endpoint
		c.logger.Error("LLM request failed",
			zap.String("error_type", string(classified.Type)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, classified
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			content.WriteString(*block.Text)
		}
	}
	if content.Len() == 0 {
		return nil, NewError(ErrorTypeServer, "no text content in response", true, nil)
	}

	c.logger.Info("LLM request completed",
		zap.Int("prompt_tokens", resp.Usage.InputTokens),
		zap.Int("completion_tokens", resp.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)))

	return &GenerateResponseResult{
		Content:          content.String(),
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
		TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}, nil
}

// GetModel returns the configured model name.
func (c *AnthropicClient) GetModel() string {
	return c.model
}

// GetEndpoint returns the configured endpoint.
func (c *AnthropicClient) GetEndpoint() string {
	return c.endpoint
}
