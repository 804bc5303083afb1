package aierr_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartnotes/internal/ai/aierr"
)

func TestClassify_TextRules(t *testing.T) {
	tests := []struct {
		name       string
		msg        string
		typ        aierr.Type
		severity   aierr.Severity
		canRetry   bool
		retryAfter time.Duration
	}{
		{"api", "API request failed", aierr.TypeAPI, aierr.SeverityHigh, true, 30 * time.Second},
		{"vendor name", "Gemini returned garbage", aierr.TypeAPI, aierr.SeverityHigh, true, 30 * time.Second},
		{"network", "Network unreachable", aierr.TypeNetwork, aierr.SeverityMedium, true, 10 * time.Second},
		{"fetch", "fetch failed", aierr.TypeNetwork, aierr.SeverityMedium, true, 10 * time.Second},
		{"timeout", "request timeout", aierr.TypeNetwork, aierr.SeverityMedium, true, 10 * time.Second},
		{"auth", "Unauthorized", aierr.TypeAuth, aierr.SeverityCritical, false, 0},
		{"forbidden", "forbidden resource", aierr.TypeAuth, aierr.SeverityCritical, false, 0},
		{"rate limit", "Rate limit exceeded", aierr.TypeRateLimit, aierr.SeverityMedium, true, 60 * time.Second},
		{"quota", "quota exhausted", aierr.TypeRateLimit, aierr.SeverityMedium, true, 60 * time.Second},
		{"limit beats length", "length limit reached", aierr.TypeRateLimit, aierr.SeverityMedium, true, 60 * time.Second},
		{"too long", "content too long", aierr.TypeValidation, aierr.SeverityMedium, false, 0},
		{"token", "max token count", aierr.TypeValidation, aierr.SeverityMedium, false, 0},
		{"invalid", "invalid input", aierr.TypeValidation, aierr.SeverityLow, false, 0},
		{"format", "bad format", aierr.TypeValidation, aierr.SeverityLow, false, 0},
		{"unknown", "something odd happened", aierr.TypeUnknown, aierr.SeverityHigh, true, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := aierr.Classify(errors.New(tt.msg))
			require.NotNil(t, e)
			assert.Equal(t, tt.typ, e.Type)
			assert.Equal(t, tt.severity, e.Severity)
			assert.Equal(t, tt.canRetry, e.CanRetry)
			assert.Equal(t, tt.retryAfter, e.RetryAfter)
			assert.NotEmpty(t, e.UserMessage)
			assert.NotEmpty(t, e.Alternative)
		})
	}
}

func TestClassify_AnyMessageWithAPI(t *testing.T) {
	for _, msg := range []string{"api", "The API is down", "rapid failure", "invalid api key format", "quota exceeded at API gateway"} {
		e := aierr.Classify(errors.New(msg))
		assert.Equal(t, aierr.TypeAPI, e.Type, msg)
		assert.Equal(t, aierr.SeverityHigh, e.Severity, msg)
		assert.True(t, e.CanRetry, msg)
		assert.Equal(t, 30, e.RetryAfterSeconds(), msg)
	}
}

func TestClassify_RateLimitBeforeTokenRule(t *testing.T) {
	for _, msg := range []string{"rate limit on token usage", "Quota exceeded: too long queue", "limit reached for length"} {
		e := aierr.Classify(errors.New(msg))
		assert.Equal(t, aierr.TypeRateLimit, e.Type, msg)
		assert.True(t, e.CanRetry, msg)
		assert.Equal(t, 60, e.RetryAfterSeconds(), msg)
	}
}

func TestClassify_Typed(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		typ      aierr.Type
		severity aierr.Severity
		canRetry bool
	}{
		{"canceled", context.Canceled, aierr.TypeUnknown, aierr.SeverityHigh, false},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), aierr.TypeNetwork, aierr.SeverityMedium, true},
		{"token budget", fmt.Errorf("summary: %w", aierr.ErrTokenLimit), aierr.TypeValidation, aierr.SeverityMedium, false},
		{"401", &aierr.UpstreamError{Provider: "x", StatusCode: 401}, aierr.TypeAuth, aierr.SeverityCritical, false},
		{"403", &aierr.UpstreamError{Provider: "x", StatusCode: 403}, aierr.TypeAuth, aierr.SeverityCritical, false},
		{"429", &aierr.UpstreamError{Provider: "x", StatusCode: 429}, aierr.TypeRateLimit, aierr.SeverityMedium, true},
		{"400", &aierr.UpstreamError{Provider: "x", StatusCode: 400, Body: "bad json"}, aierr.TypeValidation, aierr.SeverityLow, false},
		{"400 length", &aierr.UpstreamError{Provider: "x", StatusCode: 400, Body: "input token count exceeds"}, aierr.TypeValidation, aierr.SeverityMedium, false},
		{"413", &aierr.UpstreamError{Provider: "x", StatusCode: 413}, aierr.TypeValidation, aierr.SeverityMedium, false},
		{"504", &aierr.UpstreamError{Provider: "x", StatusCode: 504}, aierr.TypeNetwork, aierr.SeverityMedium, true},
		{"503", &aierr.UpstreamError{Provider: "x", StatusCode: 503}, aierr.TypeAPI, aierr.SeverityHigh, true},
		{"404 falls back to text", &aierr.UpstreamError{Provider: "gemini", StatusCode: 404}, aierr.TypeAPI, aierr.SeverityHigh, true},
		{"url error", &url.Error{Op: "Post", URL: "http://x", Err: errors.New("connection refused")}, aierr.TypeNetwork, aierr.SeverityMedium, true},
		{"op error", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}, aierr.TypeNetwork, aierr.SeverityMedium, true},
		{"eof", io.ErrUnexpectedEOF, aierr.TypeNetwork, aierr.SeverityMedium, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := aierr.Classify(tt.err)
			assert.Equal(t, tt.typ, e.Type)
			assert.Equal(t, tt.severity, e.Severity)
			assert.Equal(t, tt.canRetry, e.CanRetry)
			assert.ErrorIs(t, e, tt.err)
		})
	}
}

func TestClassify_TokenBudgetIsNotRateLimit(t *testing.T) {
	e := aierr.Classify(fmt.Errorf("token limit: %w", aierr.ErrTokenLimit))
	assert.Equal(t, aierr.TypeValidation, e.Type)
	assert.Equal(t, "노트 내용이 너무 깁니다. 내용을 줄여주세요.", e.UserMessage)
}

func TestClassify_RetryAfterHeader(t *testing.T) {
	e := aierr.Classify(&aierr.UpstreamError{Provider: "openai", StatusCode: 429, RetryAfter: 7 * time.Second})
	assert.Equal(t, 7*time.Second, e.RetryAfter)
}

func TestClassify_Idempotent(t *testing.T) {
	first := aierr.Classify(errors.New("fetch failed"))
	assert.Same(t, first, aierr.Classify(first))
	assert.Same(t, first, aierr.Classify(fmt.Errorf("wrapped: %w", first)))
	assert.Nil(t, aierr.Classify(nil))
}

func TestClassify_MessageIsNormalized(t *testing.T) {
	e := aierr.Classify(errors.New("api key AIzaSyA1234567890abcdefghijk rejected by https://generativelanguage.googleapis.com/v1"))
	assert.NotContains(t, e.Message, "AIzaSyA1234567890abcdefghijk")
	assert.NotContains(t, e.Message, "googleapis")
	assert.Contains(t, e.Message, "[REDACTED]")
}

func TestNormalize(t *testing.T) {
	secret := "sk1234567890ABCDEFGHIJKLMNOP"
	in := "failed with key " + secret + " calling https://api.example.com/v1?x=1 from 10.0.12.255 now"
	out := aierr.Normalize(in)

	assert.NotContains(t, out, secret)
	assert.NotContains(t, out, "api.example.com")
	assert.NotContains(t, out, "10.0.12.255")
	assert.Contains(t, out, "[REDACTED]")
	assert.Contains(t, out, "[URL]")
	assert.Contains(t, out, "[IP]")
	assert.True(t, strings.HasPrefix(out, "failed with key "))
	assert.True(t, strings.HasSuffix(out, " now"))
}

func TestNormalize_LeavesShortText(t *testing.T) {
	assert.Equal(t, "short words only", aierr.Normalize("short words only"))
	assert.Equal(t, "", aierr.Normalize(""))
}

func TestError_HTTPStatus(t *testing.T) {
	tests := []struct {
		typ  aierr.Type
		want int
	}{
		{aierr.TypeAuth, http.StatusUnauthorized},
		{aierr.TypeRateLimit, http.StatusTooManyRequests},
		{aierr.TypeValidation, http.StatusUnprocessableEntity},
		{aierr.TypeAPI, http.StatusBadGateway},
		{aierr.TypeNetwork, http.StatusBadGateway},
		{aierr.TypeUnknown, http.StatusBadGateway},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, (&aierr.Error{Type: tt.typ}).HTTPStatus(), string(tt.typ))
	}
}
