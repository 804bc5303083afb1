// Package shared contains common error types and utilities.
package shared

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Common domain errors that can be used across the application
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates that input validation failed
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized indicates that the request lacks valid authentication
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates that the request is understood but forbidden
	ErrForbidden = errors.New("forbidden")

	// ErrConflict indicates that the request conflicts with current state
	ErrConflict = errors.New("conflict")

	// ErrLimitExceeded indicates that a per-user quota has been used up
	ErrLimitExceeded = errors.New("limit exceeded")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrUnavailable indicates that a backing store or upstream is unreachable
	ErrUnavailable = errors.New("unavailable")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal error")
)

// Kind represents a category of error for easier classification and handling.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindValidation
	KindUnauthorized
	KindForbidden
	KindConflict
	KindLimitExceeded
	KindTimeout
	KindUnavailable
	KindInternal
	KindCanceled
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindValidation:
		return "Validation"
	case KindUnauthorized:
		return "Unauthorized"
	case KindForbidden:
		return "Forbidden"
	case KindConflict:
		return "Conflict"
	case KindLimitExceeded:
		return "LimitExceeded"
	case KindTimeout:
		return "Timeout"
	case KindUnavailable:
		return "Unavailable"
	case KindInternal:
		return "Internal"
	case KindCanceled:
		return "Canceled"
	default:
		return "Unknown"
	}
}

var kindToSentinel = map[Kind]error{
	KindNotFound:      ErrNotFound,
	KindValidation:    ErrValidation,
	KindUnauthorized:  ErrUnauthorized,
	KindForbidden:     ErrForbidden,
	KindConflict:      ErrConflict,
	KindLimitExceeded: ErrLimitExceeded,
	KindTimeout:       ErrTimeout,
	KindUnavailable:   ErrUnavailable,
	KindInternal:      ErrInternal,
}

// kindPriorities defines the deterministic order for error classification.
var kindPriorities = []struct {
	kind Kind
	err  error
}{
	{KindCanceled, nil},
	{KindTimeout, ErrTimeout},
	{KindNotFound, ErrNotFound},
	{KindValidation, ErrValidation},
	{KindLimitExceeded, ErrLimitExceeded},
	{KindUnauthorized, ErrUnauthorized},
	{KindForbidden, ErrForbidden},
	{KindConflict, ErrConflict},
	{KindUnavailable, ErrUnavailable},
	{KindInternal, ErrInternal},
}

// KindOf returns the Kind of the given error by checking against known sentinel errors.
// Canceled and timeout conditions win over everything else; the remaining kinds are
// checked in kindPriorities order. Returns KindUnknown for unrecognized errors.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for _, p := range kindPriorities {
		switch p.kind {
		case KindCanceled:
			if IsCanceled(err) {
				return KindCanceled
			}
		case KindTimeout:
			if IsTimeout(err) {
				return KindTimeout
			}
		default:
			if errors.Is(err, p.err) {
				return p.kind
			}
		}
	}
	return KindUnknown
}

// ErrorOf returns the sentinel error for the given Kind.
// For KindUnknown and KindCanceled, it returns nil.
func ErrorOf(kind Kind) error {
	return kindToSentinel[kind]
}

// MarkKind wraps an error with the sentinel error for the given kind,
// preserving the original error through error wrapping.
// Marking an error with a kind it already has returns it unchanged.
func MarkKind(err error, kind Kind) error {
	if err == nil {
		return ErrorOf(kind)
	}
	sentinel := ErrorOf(kind)
	if sentinel == nil || KindOf(err) == kind {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

// Wrap wraps an error with additional context.
// If err is nil, Wrap returns nil.
func Wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	if context == "" {
		return err
	}
	return fmt.Errorf("%s: %w", context, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// Problem is an error whose message is safe to show to the end user.
// It matches the sentinel of its Kind under errors.Is.
type Problem struct {
	Kind Kind
	Msg  string
}

func (p *Problem) Error() string { return p.Msg }

// Is reports whether target is the sentinel of the problem's kind.
func (p *Problem) Is(target error) bool {
	s := ErrorOf(p.Kind)
	return s != nil && target == s
}

// Problemf builds a user-facing error of the given kind.
func Problemf(kind Kind, format string, args ...any) error {
	return &Problem{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Invalid is shorthand for a validation Problem.
func Invalid(msg string) error {
	return &Problem{Kind: KindValidation, Msg: msg}
}

// UserMessage returns the first Problem message in the chain.
func UserMessage(err error) (string, bool) {
	var p *Problem
	if errors.As(err, &p) {
		return p.Msg, true
	}
	return "", false
}

// HTTPStatus maps an error kind to the response status used by the HTTP layer.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindLimitExceeded:
		return http.StatusTooManyRequests
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindCanceled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// IsCanceled reports whether the error indicates a canceled context.
func IsCanceled(err error) bool {
	return err != nil && errors.Is(err, context.Canceled)
}

// IsTimeout reports whether the error indicates a timeout.
// It checks for context.DeadlineExceeded, net.Error timeouts, and ErrTimeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsNotFound reports whether the error indicates a resource not found condition.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsValidation reports whether the error indicates input validation failure.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsLimitExceeded reports whether the error indicates an exhausted quota.
func IsLimitExceeded(err error) bool { return errors.Is(err, ErrLimitExceeded) }
