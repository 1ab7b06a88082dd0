package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/vaforge/vaforge-engine/pkg/config"
)

// NewClientFromConfig builds the client for the configured provider.
// The Anthropic client keeps the SDK's default endpoint unless LLM_BASE_URL
// points somewhere other than the OpenAI default.
func NewClientFromConfig(cfg config.LLMConfig, logger *zap.Logger) (LLMClient, error) {
	switch cfg.Provider {
	case "openai", "":
		return NewClient(&Config{
			Endpoint: cfg.BaseURL,
			Model:    cfg.Model,
			APIKey:   cfg.APIKey,
			Timeout:  cfg.Timeout,
		}, logger)
	case "anthropic":
		endpoint := cfg.BaseURL
		if endpoint == openAIDefaultEndpoint {
			endpoint = ""
		}
		return NewAnthropicClient(&Config{
			Endpoint: endpoint,
			Model:    cfg.Model,
			APIKey:   cfg.APIKey,
			Timeout:  cfg.Timeout,
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

const openAIDefaultEndpoint = "https://api.openai.com/v1"
