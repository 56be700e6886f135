package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient answers questions via the Anthropic Messages API.
// It is a Generator only; Anthropic exposes no embedding endpoint.
type AnthropicClient struct {
	config *ClientConfig
	client anthropic.Client
}

func NewAnthropicClient(config *ClientConfig) *AnthropicClient {
	if config.AnswerModel == "" {
		config.AnswerModel = "claude-sonnet-4-20250514"
	}
	if config.Temperature == 0 {
		config.Temperature = 0.3
	}

	client := anthropic.NewClient(
		option.WithAPIKey(config.APIKey),
	)

	return &AnthropicClient{
		config: config,
		client: client,
	}
}

// Generate implements the answering functionality
func (c *AnthropicClient) Generate(ctx context.Context, system, user string) (string, error) {
	if c.config.APIKey == "" {
		return "", errors.New("PROVIDER_API_KEY unset")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.config.AnswerModel),
		MaxTokens: 2048,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
		Temperature: anthropic.Float(c.config.Temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: system},
		}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", errors.New("no answer returned")
	}
	return strings.TrimSpace(text.String()), nil
}
