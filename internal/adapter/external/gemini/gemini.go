// Package gemini is a text-completion adapter for the Google Gemini
// generateContent REST API.
package gemini

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"smartnotes/internal/ai"
	"smartnotes/internal/ai/aierr"
	"smartnotes/internal/platform/httpclient"
)

// DefaultBaseURL is the public Gemini API root.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Completer calls models/{model}:generateContent.
type Completer struct {
	client    *httpclient.Client
	baseURL   string
	model     string
	apiKey    string
	maxTokens int
}

// NewCompleter creates a Completer. Empty baseURL and model fall back to
// DefaultBaseURL and ai.DefaultModel.
func NewCompleter(c *httpclient.Client, baseURL, model, apiKey string, maxTokens int) *Completer {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = ai.DefaultModel
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
func (c *Completer) Provider() string { return "gemini" }

// Model implements ai.Describer.
func (c *Completer) Model() string { return c.model }

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Complete sends prompt as one user turn and joins the text parts of the
// first candidate.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	in := generateRequest{Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}}}
	if c.maxTokens > 0 {
		in.GenerationConfig = &generationConfig{MaxOutputTokens: c.maxTokens}
	}

	endpoint := c.baseURL + "/models/" + url.PathEscape(c.model) + ":generateContent"
	var out generateResponse
	if err := c.client.PostJSON(ctx, endpoint, in, &out, httpclient.Header("x-goog-api-key", c.apiKey)); err != nil {
		var se *httpclient.StatusError
		if errors.As(err, &se) {
			return "", &aierr.UpstreamError{Provider: "gemini", StatusCode: se.StatusCode, Body: se.Body, RetryAfter: se.RetryAfter}
		}
		return "", err
	}
	if len(out.Candidates) == 0 {
		return "", nil
	}
	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}
