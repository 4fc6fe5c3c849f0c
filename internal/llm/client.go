package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Options configures a Client
type Options struct {
	APIKey     string
	BaseURL    string // any OpenAI-compatible endpoint
	Model      string
	Timeout    time.Duration
	RPM        int // requests per minute, 0 disables limiting
	MaxRetries int // retries on HTTP 429
}

// Client is the model-service handle built once at startup and passed to every component
type Client struct {
	api        *openai.Client
	model      string
	limiter    *rate.Limiter
	maxRetries int
	baseDelay  time.Duration
}

// Ensure Client implements ModelInterface
var _ ModelInterface = (*Client)(nil)

// NewClient creates a model client. A missing API key is a configuration error.
func NewClient(opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("model service API key is required")
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("model name is required")
	}

	config := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		config.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	if opts.Timeout > 0 {
		config.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RPM > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(opts.RPM)/60.0), 1)
	}

	return &Client{
		api:        openai.NewClientWithConfig(config),
		model:      opts.Model,
		limiter:    limiter,
		maxRetries: opts.MaxRetries,
		baseDelay:  2 * time.Second,
	}, nil
}

// Model returns the configured model id
func (c *Client) Model() string {
	return c.model
}

// Generate requests one free-text completion for prompt
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.complete(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
}

// GenerateStructured requests a completion constrained to output's JSON schema
func (c *Client) GenerateStructured(ctx context.Context, prompt string, output StructuredOutput) (string, error) {
	if output.Schema == nil {
		return "", fmt.Errorf("structured output %q has no schema", output.Name)
	}

	content, err := c.complete(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You are a JSON generator. Only output JSON."},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   output.Name,
				Schema: output.Schema,
				Strict: true,
			},
		},
	})
	if err != nil {
		return "", err
	}

	return CleanJSON(content), nil
}

func (c *Client) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}

		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err != nil {
			lastErr = err
			if isRateLimited(err) && attempt < c.maxRetries {
				delay := c.baseDelay * time.Duration(1<<attempt)
				logrus.Warnf("Model service rate limited, retrying in %v (attempt %d)", delay, attempt+1)
				select {
				case <-ctx.Done():
					return "", ctx.Err()
				case <-time.After(delay):
				}
				continue
			}
			return "", fmt.Errorf("chat completion: %w", err)
		}

		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("chat completion returned no choices")
		}

		content := strings.TrimSpace(resp.Choices[0].Message.Content)
		if content == "" {
			return "", fmt.Errorf("chat completion returned empty content (finish reason %q)", resp.Choices[0].FinishReason)
		}
		return content, nil
	}

	return "", fmt.Errorf("chat completion failed after %d retries: %w", c.maxRetries, lastErr)
}

func isRateLimited(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return false
}

// CleanJSON strips markdown code fences some models wrap around JSON output
func CleanJSON(response string) string {
	cleaned := strings.TrimSpace(response)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")
	}
	return strings.TrimSpace(cleaned)
}
