// Package generate wraps the text-generation backends used for free-form questions.
package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/morezero/order-assistant/internal/config"
)

const logPrefix = "generate:generate"

// ErrEmptyResponse is returned when a backend answers with no text.
var ErrEmptyResponse = errors.New("empty response from generation backend")

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// New returns the Generator selected by cfg.LLMProvider.
func New(cfg *config.Config) (Generator, error) {
	switch cfg.LLMProvider {
	case config.ProviderOllama, "":
		return NewOllama(cfg.OllamaURL, cfg.LLMModel, WithTimeout(cfg.LLMTimeout)), nil
	case config.ProviderOpenAI:
		return NewOpenAI(OpenAIParams{
			BaseURL: cfg.OpenAIBaseURL,
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.LLMModel,
			Timeout: cfg.LLMTimeout,
		}), nil
	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("%s - ANTHROPIC_API_KEY is required for provider %q", logPrefix, cfg.LLMProvider)
		}
		return NewAnthropic(AnthropicParams{
			APIKey:  cfg.AnthropicAPIKey,
			Model:   cfg.LLMModel,
			Timeout: cfg.LLMTimeout,
		}), nil
	default:
		return nil, fmt.Errorf("%s - unknown provider %q", logPrefix, cfg.LLMProvider)
	}
}

// Prompt wraps user text in the assistant's short-answer instruction.
func Prompt(text string) string {
	return fmt.Sprintf("You are an assistant. Answer briefly.\nUser: %s\nRespond now.", text)
}

// ChatPrompt builds the prompt the order service uses to answer a question
// about caller-supplied order context.
func ChatPrompt(message, orderContext string) string {
	return fmt.Sprintf("You are an order assistant. Answer questions about the order(s) using the context provided.\n\nContext: %s\n\nQuestion: %s", orderContext, message)
}

// ExtractJSONObject returns the text between the first "{" and the last "}"
// inclusive. ok is false when text holds no such span.
func ExtractJSONObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", false
	}
	return text[start : end+1], true
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
