package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Client provides access to OpenAI-compatible LLM endpoints.
type Client struct {
	client   *openai.Client
	endpoint string
	model    string
	logger   *zap.Logger
}

// Config holds configuration for creating an LLM client.
type Config struct {
	Endpoint string // Base URL, e.g., "https://api.openai.com/v1"
	Model    string // Model name, e.g., "gpt-4o"
	APIKey   string // Optional for local endpoints
	Timeout  time.Duration
}

// NewClient creates a new OpenAI-compatible LLM client.
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")
	if cfg.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		client:   openai.NewClientWithConfig(clientConfig),
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		logger:   logger.Named("llm"),
	}, nil
}

// GenerateResponse generates a chat completion response with usage stats.
func (c *Client) GenerateResponse(
	ctx context.Context,
	prompt string,
	systemMessage string,
	opts GenerateOptions,
) (*GenerateResponseResult, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemMessage},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: float32(opts.Temperature),
		MaxTokens:   opts.MaxTokens,
	}
	if opts.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	c.logger.Debug("LLM request",
		zap.String("model", c.model),
		zap.Int("prompt_len", len(prompt)),
		zap.Float64("temperature", opts.Temperature),
		zap.Int("max_tokens", opts.MaxTokens))

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, req)
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

	if len(resp.Choices) == 0 {
		return nil, NewError(ErrorTypeServer, "no choices in response", true, nil)
	}

	c.logger.Info("LLM request completed",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))

	return &GenerateResponseResult{
		Content:          resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}

// GetModel returns the configured model name.
func (c *Client) GetModel() string {
	return c.model
}

// GetEndpoint returns the configured endpoint.
func (c *Client) GetEndpoint() string {
	return c.endpoint
}
