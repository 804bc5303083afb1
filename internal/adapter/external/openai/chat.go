// Package openai is a text-completion adapter for the OpenAI chat completions API.
package openai

import (
	"context"
	"errors"
	"strings"

	"smartnotes/internal/ai/aierr"
	"smartnotes/internal/platform/httpclient"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

// Completer sends single-prompt chat completions.
type Completer struct {
	client    *httpclient.Client
	baseURL   string
	model     string
	apiKey    string
	maxTokens int
}

// NewCompleter creates a Completer. baseURL is the API root, e.g.
// https://api.openai.com/v1.
func NewCompleter(c *httpclient.Client, baseURL, model, apiKey string, maxTokens int) *Completer {
	if model == "" {
		model = DefaultModel
	}
	return &Completer{
		client:    c,
		baseURL:   strings.TrimRight(baseURL, "/"),
		model:     model,
		apiKey:    apiKey,
		maxTokens: maxTokens,
	}
}

// Provider implements ai.Describer.
func (c *Completer) Provider() string { return "openai" }

// Model implements ai.Describer.
func (c *Completer) Model() string { return c.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends prompt as a single user message and returns the first choice.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	in := chatRequest{
		Model:     c.model,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens: c.maxTokens,
	}
	var out chatResponse
	err := c.client.PostJSON(ctx, c.baseURL+"/chat/completions", in, &out, httpclient.Header("Authorization", "Bearer "+c.apiKey))
	if err != nil {
		return "", upstream(err)
	}
	if len(out.Choices) == 0 {
		return "", nil
	}
	return out.Choices[0].Message.Content, nil
}

func upstream(err error) error {
	var se *httpclient.StatusError
	if errors.As(err, &se) {
		return &aierr.UpstreamError{Provider: "openai", StatusCode: se.StatusCode, Body: se.Body, RetryAfter: se.RetryAfter}
	}
	return err
}
