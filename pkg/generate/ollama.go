package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Ollama talks to a local Ollama server through its native chat API.
type Ollama struct {
	baseURL    string
	model      string
	timeout    time.Duration
	httpClient *http.Client
}

// OllamaOption customises an Ollama client.
type OllamaOption func(*Ollama)

// WithTimeout bounds each Generate call.
func WithTimeout(d time.Duration) OllamaOption {
	return func(o *Ollama) { o.timeout = d }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) OllamaOption {
	return func(o *Ollama) {
		if c != nil {
			o.httpClient = c
		}
	}
}

// NewOllama returns a client for the server at baseURL.
func NewOllama(baseURL, model string, opts ...OllamaOption) *Ollama {
	o := &Ollama{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		timeout:    30 * time.Second,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Error   string        `json:"error,omitempty"`
}

// Generate sends prompt as a single user message.
func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := withTimeout(ctx, o.timeout)
	defer cancel()

	body, err := json.Marshal(ollamaChatRequest{
		Model:    o.model,
		Messages: []ollamaMessage{{Role: "user", Content: prompt}},
		Stream:   false,
		Options:  map[string]any{"thinking": "disabled"},
	})
	if err != nil {
		return "", fmt.Errorf("%s - marshal ollama request: %w", logPrefix, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%s - build ollama request: %w", logPrefix, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s - ollama request: %w", logPrefix, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%s - read ollama response: %w", logPrefix, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s - ollama status %d: %s", logPrefix, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out ollamaChatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%s - decode ollama response: %w", logPrefix, err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("%s - ollama: %s", logPrefix, out.Error)
	}
	text := strings.TrimSpace(out.Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
