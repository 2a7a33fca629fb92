// Package smartai generates reply text with a hosted completions service.
package smartai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// ErrNoCompletion means the service answered without usable reply text
var ErrNoCompletion = errors.New("completion response contained no text")

// Generator produces a reply for an inbound message
type Generator interface {
	Generate(ctx context.Context, prompt string, message string) (string, error)
}

// Config holds the completions service settings
type Config struct {
	URL       string
	APIKey    string
	Model     string
	MaxTokens int
}

// Client calls an OpenAI-compatible chat completions endpoint
type Client struct {
	http   *httpclient.Client
	cfg    Config
	logger ectologger.Logger
}

// NewClient creates a new completions client
func NewClient(cfg Config, http *httpclient.Client, logger ectologger.Logger) *Client {
	return &Client{
		http:   http,
		cfg:    cfg,
		logger: logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens,omitempty"`
	Messages  []chatMessage `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate asks the completions service for a reply. The automation's prompt
// is the system message; the inbound text is the user message.
func (c *Client) Generate(ctx context.Context, prompt string, message string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "smartai.Generate")
	defer span.End()

	payload := completionRequest{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: prompt},
			{Role: "user", Content: message},
		},
	}

	headers := map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
	}

	resp, err := c.http.PostJSON(ctx, c.cfg.URL, payload, headers)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}

	var body completionResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return "", fmt.Errorf("completion response: %w", err)
	}

	if body.Error != nil {
		c.logger.WithContext(ctx).Warnf("completion rejected: %s", body.Error.Message)
		return "", fmt.Errorf("completion rejected: %s", body.Error.Message)
	}
	if len(body.Choices) == 0 {
		return "", ErrNoCompletion
	}

	text := strings.TrimSpace(body.Choices[0].Message.Content)
	if text == "" {
		return "", ErrNoCompletion
	}

	return text, nil
}
