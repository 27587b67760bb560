package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Usage records the token consumption of a single invocation, as reported by
// the provider. Failed invocations report zero usage.
type Usage struct {
	TokensIn  int
	TokensOut int
}

// Result is the outcome of a successful invocation.
type Result struct {
	Text  string
	Model string
	Usage Usage
}

// Client is an abstraction over LLM providers
type Client interface {
	// Generate produces text for a prompt using the specified model tier.
	Generate(ctx context.Context, prompt string, tier ModelTier) (*Result, error)
	// Close releases any resources held by the client
	Close() error
}

// NewClient creates a new LLM client based on configuration
func NewClient(ctx context.Context, config *Config, apiKey string) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Provider {
	case ProviderGemini:
		return NewGeminiClient(ctx, config, apiKey)
	default:
		return NewGeminiClient(ctx, config, apiKey)
	}
}

// GeminiClient implements Client for Google Gemini
type GeminiClient struct {
	client *genai.Client
	config *Config
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, config *Config, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		config: config,
	}, nil
}

// Generate produces text for a prompt using the specified model tier. The
// call is bounded by the configured per-invocation timeout; provider and
// timeout failures are returned as *InvocationError so callers can retry.
func (c *GeminiClient) Generate(ctx context.Context, prompt string, tier ModelTier) (*Result, error) {
	modelName := c.config.GetModel(tier)
	if modelName == "" {
		return nil, fmt.Errorf("no model configured for tier %s", tier)
	}

	timeout := c.config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	model := c.client.GenerativeModel(modelName)
	model.SetTemperature(0.1) // Low temperature for consistent output

	resp, err := model.GenerateContent(callCtx, genai.Text(prompt))
	if err != nil {
		return nil, &InvocationError{Model: modelName, Err: err}
	}

	text, err := extractTextFromResponse(resp)
	if err != nil {
		return nil, &InvocationError{Model: modelName, Err: err}
	}

	return &Result{
		Text:  text,
		Model: modelName,
		Usage: extractUsage(resp),
	}, nil
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// extractTextFromResponse extracts text from Gemini API response
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}

	return strings.Join(parts, ""), nil
}

// extractUsage reads provider-reported token counts, if present.
func extractUsage(resp *genai.GenerateContentResponse) Usage {
	if resp.UsageMetadata == nil {
		return Usage{}
	}
	return Usage{
		TokensIn:  int(resp.UsageMetadata.PromptTokenCount),
		TokensOut: int(resp.UsageMetadata.CandidatesTokenCount),
	}
}
