package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/lukeslp/reference-renamer/internal/resilience"
	"github.com/lukeslp/reference-renamer/internal/source"
)

// DefaultAnthropicModel is the hosted model used when none is configured.
const DefaultAnthropicModel = "claude-haiku-4-5-20251001"

// anthropicMaxTokens bounds the reply; the JSON answer is small.
const anthropicMaxTokens = 512

// AnthropicClient calls the Anthropic Messages API.
type AnthropicClient struct {
	client anthropic.Client
	model  string
}

// NewAnthropicClient creates a client. Retries are left to the source guard.
func NewAnthropicClient(apiKey, model string, opts ...option.RequestOption) *AnthropicClient {
	if model == "" {
		model = DefaultAnthropicModel
	}
	all := append([]option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}, opts...)
	return &AnthropicClient{client: anthropic.NewClient(all...), model: model}
}

// ModelName returns the hosted model.
func (c *AnthropicClient) ModelName() string {
	return c.model
}

// Complete sends one message and returns the first text block.
func (c *AnthropicClient) Complete(ctx context.Context, system, user string) (string, error) {
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: anthropicMaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", classifyAnthropicError(ctx, err)
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in Anthropic response")
}

func classifyAnthropicError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("anthropic: %w: %v", source.ErrRateLimited, err)
		case resilience.RetryableStatus(apiErr.StatusCode):
			return resilience.Transient(fmt.Errorf("anthropic: %w", err), apiErr.StatusCode)
		}
	}
	return fmt.Errorf("anthropic: %w", err)
}
