// Package aierr classifies failures of the AI completion boundary into a small,
// fixed taxonomy that drives retry decisions and the copy shown to users.
package aierr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Type is the coarse category of an AI failure.
type Type string

const (
	TypeAPI        Type = "API_ERROR"
	TypeNetwork    Type = "NETWORK_ERROR"
	TypeValidation Type = "VALIDATION_ERROR"
	TypeRateLimit  Type = "RATE_LIMIT_ERROR"
	TypeAuth       Type = "AUTH_ERROR"
	TypeUnknown    Type = "UNKNOWN_ERROR"
)

// Types lists every Type in declaration order.
var Types = []Type{TypeAPI, TypeNetwork, TypeValidation, TypeRateLimit, TypeAuth, TypeUnknown}

// Severity is the priority bucket of an AI failure.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Severities lists every Severity from lowest to highest.
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// ErrTokenLimit is returned before calling the provider when a prompt is
// estimated to exceed the token budget.
var ErrTokenLimit = errors.New("prompt exceeds token budget")

// Error is a classified AI failure. Values are not mutated after Classify
// returns them.
type Error struct {
	Type        Type     `json:"type"`
	Severity    Severity `json:"severity"`
	Message     string   `json:"message"`
	UserMessage string   `json:"userMessage"`
	CanRetry    bool     `json:"canRetry"`
	// RetryAfter is advisory; zero means no suggestion.
	RetryAfter  time.Duration `json:"-"`
	Alternative string        `json:"alternative,omitempty"`

	cause error
}

func (e *Error) Error() string {
	return string(e.Type) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// RetryAfterSeconds returns RetryAfter rounded up to whole seconds.
func (e *Error) RetryAfterSeconds() int {
	if e.RetryAfter <= 0 {
		return 0
	}
	return int((e.RetryAfter + time.Second - 1) / time.Second)
}

// HTTPStatus is the response status the HTTP layer uses for e.
func (e *Error) HTTPStatus() int {
	switch e.Type {
	case TypeAuth:
		return http.StatusUnauthorized
	case TypeRateLimit:
		return http.StatusTooManyRequests
	case TypeValidation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

// UpstreamError is returned by provider adapters for non-2xx responses.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func newError(t Type, sev Severity, canRetry bool, after time.Duration, cause error) *Error {
	user, alt := copyFor(t, sev)
	msg := ""
	if cause != nil {
		msg = Normalize(cause.Error())
	}
	return &Error{
		Type:        t,
		Severity:    sev,
		Message:     msg,
		UserMessage: user,
		CanRetry:    canRetry,
		RetryAfter:  after,
		Alternative: alt,
		cause:       cause,
	}
}

// copyFor returns the user message and manual alternative for a classification.
func copyFor(t Type, sev Severity) (string, string) {
	switch t {
	case TypeAPI:
		return "AI 서비스에 연결할 수 없습니다. 잠시 후 다시 시도해주세요.", "수동으로 요약이나 태그를 작성해보세요."
	case TypeNetwork:
		return "인터넷 연결을 확인해주세요. 네트워크가 불안정할 수 있습니다.", "네트워크가 안정된 후 다시 시도해주세요."
	case TypeAuth:
		return "인증에 문제가 있습니다. 다시 로그인해주세요.", "로그아웃 후 다시 로그인해주세요."
	case TypeRateLimit:
		return "요청이 너무 많습니다. 잠시 후 다시 시도해주세요.", "잠시 후 다시 시도하거나 수동으로 작성해보세요."
	case TypeValidation:
		if sev == SeverityMedium {
			return "노트 내용이 너무 깁니다. 내용을 줄여주세요.", "노트를 여러 개로 나누어 작성해보세요."
		}
		return "입력 데이터에 문제가 있습니다. 내용을 확인해주세요.", "노트 내용을 확인하고 다시 시도해주세요."
	default:
		return "예상치 못한 오류가 발생했습니다. 잠시 후 다시 시도해주세요.", "문제가 지속되면 관리자에게 문의해주세요."
	}
}
