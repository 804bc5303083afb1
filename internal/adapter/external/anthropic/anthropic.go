// Package anthropic is a text-completion adapter for the Anthropic Messages
// API built on the official SDK.
package anthropic

import (
	"context"
	"errors"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"smartnotes/internal/ai/aierr"
	"smartnotes/internal/platform/httpclient"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-3-5-haiku-latest"

// DefaultMaxTokens caps completions when no limit is configured.
const DefaultMaxTokens = 1024

// MessagesClient is the subset of the SDK used by the adapter. It is
// satisfied by *sdk.MessageService.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Completer sends single-prompt Messages requests.
type Completer struct {
	msg       MessagesClient
	model     string
	maxTokens int64
}

// New creates a Completer on msg.
func New(msg MessagesClient, model string, maxTokens int) *Completer {
	if model == "" {
		model = DefaultModel
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Completer{msg: msg, model: model, maxTokens: int64(maxTokens)}
}

// NewFromAPIKey creates a Completer on the default SDK HTTP client. SDK
// retries are disabled; the retry executor owns them.
func NewFromAPIKey(apiKey, model string, maxTokens int) (*Completer, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	c := sdk.NewClient(option.WithAPIKey(apiKey), option.WithMaxRetries(0))
	return New(&c.Messages, model, maxTokens), nil
}

// Provider implements ai.Describer.
func (c *Completer) Provider() string { return "anthropic" }

// Model implements ai.Describer.
func (c *Completer) Model() string { return c.model }

// Complete sends prompt as one user message and joins the text blocks of
// the reply.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	msg, err := c.msg.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(prompt))},
	})
	if err != nil {
		return "", upstream(err)
	}
	if msg == nil {
		return "", nil
	}
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

func upstream(err error) error {
	var apiErr *sdk.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	up := &aierr.UpstreamError{Provider: "anthropic", StatusCode: apiErr.StatusCode, Body: apiErr.RawJSON()}
	if apiErr.Response != nil {
		up.RetryAfter = httpclient.RetryAfter(apiErr.Response.Header.Get("Retry-After"))
	}
	return up
}
