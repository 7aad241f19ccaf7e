package llm

import (
	"fmt"
	"time"
)

// ProviderConfig is the provider-agnostic configuration the factory consumes.
// The config package assembles these from environment variables.
type ProviderConfig struct {
	Provider  string // "anthropic", "openai", or "gemini"
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// NewGenerator creates the appropriate Generator for an architecture.
// Every provider requires an API key; collection cannot degrade to an
// unauthenticated client.
func NewGenerator(cfg ProviderConfig) (Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: no API key configured for provider %q", ErrAuthentication, cfg.Provider)
	}

	switch cfg.Provider {
	case "anthropic", "claude":
		return NewAnthropicClient(AnthropicConfig{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
			Timeout:   cfg.Timeout,
		}), nil
	case "openai", "gpt":
		return NewOpenAIClient(OpenAIConfig{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			MaxTokens: int64(cfg.MaxTokens),
			Timeout:   cfg.Timeout,
		}), nil
	case "gemini":
		return NewGeminiClient(GeminiConfig{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
			Timeout:   cfg.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %q", cfg.Provider)
	}
}
