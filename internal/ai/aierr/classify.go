package aierr

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

var (
	secretPattern = regexp.MustCompile(`[A-Za-z0-9]{20,}`)
	urlPattern    = regexp.MustCompile(`https?://\S+`)
	ipPattern     = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
)

// Normalize redacts long alphanumeric runs, URLs and IPv4 addresses so the
// message can be logged, stored or shown without leaking secrets.
func Normalize(msg string) string {
	msg = secretPattern.ReplaceAllString(msg, "[REDACTED]")
	msg = urlPattern.ReplaceAllString(msg, "[URL]")
	return ipPattern.ReplaceAllString(msg, "[IP]")
}

// textRule is one row of the message-text fallback. Rows are tried in order
// and the first match wins.
type textRule struct {
	markers    []string
	typ        Type
	severity   Severity
	canRetry   bool
	retryAfter time.Duration
}

// rate limit must stay ahead of the token/length row: quota messages often
// mention limits.
var textRules = []textRule{
	{[]string{"api", "gemini", "google", "openai", "anthropic", "claude"}, TypeAPI, SeverityHigh, true, 30 * time.Second},
	{[]string{"network", "fetch", "timeout"}, TypeNetwork, SeverityMedium, true, 10 * time.Second},
	{[]string{"auth", "unauthorized", "forbidden"}, TypeAuth, SeverityCritical, false, 0},
	{[]string{"rate limit", "quota", "limit"}, TypeRateLimit, SeverityMedium, true, 60 * time.Second},
	{[]string{"token", "length", "too long"}, TypeValidation, SeverityMedium, false, 0},
	{[]string{"validation", "invalid", "format"}, TypeValidation, SeverityLow, false, 0},
}

// Classify maps err to a structured Error. It never returns nil for a
// non-nil err and has no side effects.
//
// Typed errors are inspected first (context errors, the token budget
// sentinel, UpstreamError status codes, transport errors); only unstructured
// errors fall through to message-text matching.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		return e
	}
	if e := classifyTyped(err); e != nil {
		return e
	}
	return classifyText(err)
}

func classifyTyped(err error) *Error {
	switch {
	case errors.Is(err, context.Canceled):
		return newError(TypeUnknown, SeverityHigh, false, 0, err)
	case errors.Is(err, context.DeadlineExceeded):
		return newError(TypeNetwork, SeverityMedium, true, 10*time.Second, err)
	case errors.Is(err, ErrTokenLimit):
		return newError(TypeValidation, SeverityMedium, false, 0, err)
	}

	var up *UpstreamError
	if errors.As(err, &up) {
		if e := classifyStatus(up, err); e != nil {
			return e
		}
		return nil
	}

	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return newError(TypeNetwork, SeverityMedium, true, 10*time.Second, err)
	}
	return nil
}

func classifyStatus(up *UpstreamError, err error) *Error {
	after := func(def time.Duration) time.Duration {
		if up.RetryAfter > 0 {
			return up.RetryAfter
		}
		return def
	}
	code := up.StatusCode
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return newError(TypeAuth, SeverityCritical, false, 0, err)
	case code == http.StatusTooManyRequests:
		return newError(TypeRateLimit, SeverityMedium, true, after(60*time.Second), err)
	case code == http.StatusRequestEntityTooLarge:
		return newError(TypeValidation, SeverityMedium, false, 0, err)
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		body := strings.ToLower(up.Body)
		if strings.Contains(body, "token") || strings.Contains(body, "length") || strings.Contains(body, "too long") {
			return newError(TypeValidation, SeverityMedium, false, 0, err)
		}
		return newError(TypeValidation, SeverityLow, false, 0, err)
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return newError(TypeNetwork, SeverityMedium, true, after(10*time.Second), err)
	case code >= 500:
		return newError(TypeAPI, SeverityHigh, true, after(30*time.Second), err)
	}
	return nil
}

func classifyText(err error) *Error {
	msg := strings.ToLower(err.Error())
	for _, r := range textRules {
		for _, m := range r.markers {
			if strings.Contains(msg, m) {
				return newError(r.typ, r.severity, r.canRetry, r.retryAfter, err)
			}
		}
	}
	return newError(TypeUnknown, SeverityHigh, true, 30*time.Second, err)
}
