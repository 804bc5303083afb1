// Package httpclient is the outbound HTTP client used by AI provider adapters.
// It logs every request and turns non-2xx responses into *StatusError; retries
// belong to the caller.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	stdhttp "net/http"
	"net/url"
	"strconv"
	"time"
)

// maxErrorBody bounds how much of a failed response body is kept.
const maxErrorBody = 4 << 10

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Client wraps http.Client with logging and default headers.
type Client struct {
	hc          *stdhttp.Client
	log         *slog.Logger
	headers     map[string]string
	urlRedactor func(*url.URL) string
}

// Option configures Client.
type Option func(*Client)

// WithTimeout sets request timeout.
func WithTimeout(t time.Duration) Option {
	return func(c *Client) { c.hc.Timeout = t }
}

// WithLogger sets logger used by client.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithHeaders adds default headers to each request.
func WithHeaders(h map[string]string) Option {
	return func(c *Client) {
		for k, v := range h {
			c.headers[k] = v
		}
	}
}

// WithURLRedactor sets URL redactor for logs.
func WithURLRedactor(f func(*url.URL) string) Option {
	return func(c *Client) { c.urlRedactor = f }
}

// WithTransport sets custom transport.
func WithTransport(rt stdhttp.RoundTripper) Option {
	return func(c *Client) {
		if rt != nil {
			c.hc.Transport = rt
		}
	}
}

// New creates configured Client.
func New(opts ...Option) *Client {
	tr := stdhttp.DefaultTransport.(*stdhttp.Transport).Clone()
	tr.MaxIdleConnsPerHost = 16
	tr.IdleConnTimeout = 90 * time.Second
	tr.TLSHandshakeTimeout = 10 * time.Second

	c := &Client{
		hc:      &stdhttp.Client{Timeout: 30 * time.Second, Transport: tr},
		log:     slog.Default(),
		headers: make(map[string]string),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Do sends req with the default headers applied. Responses with a non-2xx
// status are drained, closed and reported as *StatusError.
func (c *Client) Do(ctx context.Context, req *stdhttp.Request) (*stdhttp.Response, error) {
	r := req.Clone(ctx)
	for k, v := range c.headers {
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	u := c.redactURL(r.URL)
	start := time.Now()
	resp, err := c.hc.Do(r)
	if err != nil {
		c.log.Warn("http request error", slog.String("method", r.Method), slog.String("url", u), slog.Any("error", err))
		return nil, err
	}
	c.log.Debug("http request", slog.String("method", r.Method), slog.String("url", u),
		slog.Int("status", resp.StatusCode), slog.Duration("dur", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       string(bytes.TrimSpace(body)),
			RetryAfter: RetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	return resp, nil
}

// RequestOption adjusts a single request.
type RequestOption func(*stdhttp.Request)

// Header sets a request header.
func Header(key, value string) RequestOption {
	return func(r *stdhttp.Request) { r.Header.Set(key, value) }
}

// PostJSON marshals in, posts it to rawURL and decodes the response into out.
func (c *Client) PostJSON(ctx context.Context, rawURL string, in, out any, opts ...RequestOption) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := stdhttp.NewRequestWithContext(ctx, stdhttp.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for _, o := range opts {
		o(req)
	}

	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// RetryAfter parses a Retry-After header value given in seconds or as an
// HTTP date. Unparsable or past values yield zero.
func RetryAfter(h string) time.Duration {
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(h); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := stdhttp.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func (c *Client) redactURL(u *url.URL) string {
	if c.urlRedactor != nil {
		return c.urlRedactor(u)
	}
	return u.Redacted()
}
