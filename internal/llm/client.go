// Package llm wraps the chat-completion service used for mood analysis and
// summaries.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/justestif/go-moodflow/internal/logging"
	"github.com/justestif/go-moodflow/internal/metrics"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gpt-4.1"

// ErrEmptyResponse is returned when the service answers without any text.
var ErrEmptyResponse = errors.New("empty completion response")

// Request is a single system+user completion.
type Request struct {
	Purpose     string // metrics label, e.g. "analysis"
	System      string
	User        string
	MaxTokens   int
	Temperature float32
}

// Completer abstracts the chat-completion service for testing.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Config holds chat-completion client configuration.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client implements Completer on top of an OpenAI-compatible API.
type Client struct {
	api   *openai.Client
	model string
}

// NewClient creates a new chat-completion client.
func NewClient(cfg Config) *Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Client{
		api:   openai.NewClientWithConfig(clientConfig),
		model: model,
	}
}

// Model returns the model identifier sent with every request.
func (c *Client) Model() string {
	return c.model
}

// Complete sends one completion request and returns the trimmed reply text.
// No retry is attempted.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	start := time.Now()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
	})
	metrics.LLMRequestDuration.WithLabelValues(req.Purpose).Observe(time.Since(start).Seconds())

	if err != nil {
		logging.Ctx(ctx).Warn().
			Err(err).
			Str("purpose", req.Purpose).
			Dur("latency", time.Since(start)).
			Msg("Chat completion failed")
		return "", fmt.Errorf("creating chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}

	logging.Ctx(ctx).Debug().
		Str("purpose", req.Purpose).
		Int("total_tokens", resp.Usage.TotalTokens).
		Dur("latency", time.Since(start)).
		Msg("Chat completion finished")

	return text, nil
}

var _ Completer = (*Client)(nil)
