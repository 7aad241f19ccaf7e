package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

// OpenAIConfig holds configuration for the OpenAI client.
type OpenAIConfig struct {
	APIKey    string
	Model     string        // default: gpt-4o
	MaxTokens int64         // default: 1000
	Timeout   time.Duration // default: 60s
}

// OpenAIClient implements Generator using the official SDK's Responses API.
type OpenAIClient struct {
	cfg     OpenAIConfig
	client  *openai.Client
	breaker *CircuitBreaker
}

// NewOpenAIClient creates a new OpenAI client with the given configuration.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1000
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	client := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	return &OpenAIClient{
		cfg:     cfg,
		client:  &client,
		breaker: NewCircuitBreaker("openai"),
	}
}

// Generate sends a single-turn completion to OpenAI and returns the response text.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	return c.breaker.Execute(ctx, func() (string, error) {
		return c.generate(ctx, prompt)
	})
}

func (c *OpenAIClient) generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	params := responses.ResponseNewParams{
		Model:           c.cfg.Model,
		MaxOutputTokens: openai.Int(c.cfg.MaxTokens),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(prompt),
		},
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return "", classifyOpenAIError(err)
	}

	text := strings.TrimSpace(resp.OutputText())
	if text == "" {
		return "", fmt.Errorf("openai returned empty output")
	}
	return text, nil
}

// classifyOpenAIError maps SDK errors into the package taxonomy using the
// API error status code when available.
func classifyOpenAIError(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return classifyStatus("openai", apierr.StatusCode, apierr.Message)
	}
	return classifyTransport("openai", err)
}

// Name returns the architecture identifier used in records.
func (c *OpenAIClient) Name() string {
	return "gpt"
}

// Model returns the configured model name.
func (c *OpenAIClient) Model() string {
	return c.cfg.Model
}

// Compile-time assertion.
var _ Generator = (*OpenAIClient)(nil)
