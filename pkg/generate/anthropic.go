package generate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicMaxTokens = 1024

// AnthropicParams configures the Anthropic backend.
type AnthropicParams struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Anthropic generates text through the Messages API.
type Anthropic struct {
	client  anthropic.Client
	model   string
	timeout time.Duration
}

// NewAnthropic builds an Anthropic backend.
func NewAnthropic(p AnthropicParams) *Anthropic {
	opts := []option.RequestOption{option.WithAPIKey(p.APIKey), option.WithMaxRetries(0)}
	if p.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(p.BaseURL))
	}
	return &Anthropic{client: anthropic.NewClient(opts...), model: p.Model, timeout: p.Timeout}
}

func (g *Anthropic) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: anthropicMaxTokens,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
	})
	if err != nil {
		return "", fmt.Errorf("%s - anthropic message: %w", logPrefix, err)
	}
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
