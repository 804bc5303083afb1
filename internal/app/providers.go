package app

import (
	"fmt"
	"net/url"

	"smartnotes/internal/adapter/external/anthropic"
	"smartnotes/internal/adapter/external/gemini"
	"smartnotes/internal/adapter/external/openai"
	"smartnotes/internal/ai"
	"smartnotes/internal/platform/httpclient"
)

// completer builds the configured AI provider.
func (a *App) completer() (ai.Completer, error) {
	p := a.cfg.Selected()
	switch a.cfg.AI.Provider {
	case "gemini":
		return gemini.NewCompleter(a.httpClient(), p.BaseURL, p.Model, p.APIKey, a.cfg.AI.MaxTokens), nil
	case "openai":
		return openai.NewCompleter(a.httpClient(), p.BaseURL, p.Model, p.APIKey, a.cfg.AI.MaxTokens), nil
	case "anthropic":
		c, err := anthropic.NewFromAPIKey(p.APIKey, p.Model, a.cfg.AI.MaxTokens)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", a.cfg.AI.Provider)
	}
}

func (a *App) httpClient() *httpclient.Client {
	return httpclient.New(
		httpclient.WithTimeout(a.cfg.AI.Timeout),
		httpclient.WithLogger(a.log),
		httpclient.WithURLRedactor(redactURL),
	)
}

// redactURL drops the query string, which may carry an API key.
func redactURL(u *url.URL) string {
	c := *u
	c.RawQuery = ""
	return c.String()
}
