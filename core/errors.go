package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so callers can decide between rejecting,
// retrying, degrading, or treating the condition as a defect.
type ErrorKind string

const (
	// KindValidation marks malformed input. Rejected immediately, no state
	// is mutated.
	KindValidation ErrorKind = "validation"

	// KindTransient marks a temporarily unavailable collaborator (embedding,
	// generation, storage). Storage and retrieval paths retry once with
	// backoff; retrieval then degrades to empty results.
	KindTransient ErrorKind = "transient"

	// KindContentPolicy marks a generation refusal. Fatal for the turn.
	KindContentPolicy ErrorKind = "content_policy"

	// KindIsolation marks a partition key collision or cross-partition leak.
	// This must never occur at runtime; it is a defect, not a recoverable
	// condition.
	KindIsolation ErrorKind = "isolation"
)

// Error carries a kind alongside the wrapped cause.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Validationf builds a validation error.
func Validationf(format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// Transient wraps err as a transient service failure.
func Transient(msg string, err error) error {
	return &Error{Kind: KindTransient, Msg: msg, Err: err}
}

// Isolationf builds an isolation violation.
func Isolationf(format string, args ...interface{}) error {
	return &Error{Kind: KindIsolation, Msg: fmt.Sprintf(format, args...)}
}

// KindOf extracts the error kind, or empty string for untyped errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsTransient reports whether err is a transient service failure.
func IsTransient(err error) bool { return KindOf(err) == KindTransient }
