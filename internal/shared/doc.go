// Package shared contains common error types and utilities for error handling
// across the application without domain-specific logic.
//
// # Sentinels and kinds
//
// Storage and service code returns (or wraps) the sentinel errors declared here.
// KindOf classifies any error chain into a Kind, and HTTPStatus turns that Kind
// into the response code used by the HTTP adapter:
//
//	switch shared.KindOf(err) {
//	case shared.KindNotFound:
//	    // 404
//	case shared.KindLimitExceeded:
//	    // 429
//	}
//
// # User-facing problems
//
// Validation and quota failures carry a message that can be shown to the end
// user as-is. Problem keeps that message and still satisfies errors.Is against
// the sentinel of its kind:
//
//	err := shared.Invalid("요약 내용을 입력해주세요")
//	shared.IsValidation(err) // true
//	msg, _ := shared.UserMessage(err)
//
// Failures of the AI completion boundary are not modelled here; they are
// classified by package aierr.
package shared
