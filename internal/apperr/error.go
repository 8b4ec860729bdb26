// Package apperr defines the error taxonomy shared by the store, the
// transport and the offline services.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies errors by how callers must react to them.
type Kind int

const (
	KindInternal   Kind = iota // Unexpected failure, not retried.
	KindValidation             // Rejected input; never retried, shown to the user.
	KindTransient              // Network, timeout or 5xx; safe to retry.
	KindStorage                // Local persistence failed; no fallback left.
	KindAuth                   // The backend refused our credentials (401/403).
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTransient:
		return "transient"
	case KindStorage:
		return "storage_unavailable"
	case KindAuth:
		return "unauthorized"
	default:
		return "internal"
	}
}

// Error is the structured error returned across package boundaries.
//
// It wraps the underlying cause while carrying a user-facing message and, for
// errors that came back from the remote API, the HTTP status code.
type Error struct {
	kind   Kind
	msg    string
	status int
	err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.msg != "" && e.err != nil:
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	case e.msg != "":
		return e.msg
	case e.err != nil:
		return e.err.Error()
	default:
		return e.kind.String()
	}
}

// Kind returns the error classification.
func (e *Error) Kind() Kind { return e.kind }

// Message returns the user-facing message.
func (e *Error) Message() string { return e.msg }

// Status returns the HTTP status that produced the error, or 0.
func (e *Error) Status() int { return e.status }

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.err }

// NewValidation reports input rejected locally or by the backend (4xx).
func NewValidation(msg string, status int) error {
	return &Error{kind: KindValidation, msg: msg, status: status}
}

// NewAuth reports that the backend rejected the credentials. It says nothing
// about the transaction itself.
func NewAuth(msg string, status int) error {
	return &Error{kind: KindAuth, msg: msg, status: status}
}

// NewTransient reports a failure that may succeed when retried.
func NewTransient(err error, status int) error {
	return &Error{kind: KindTransient, msg: "remote unavailable", status: status, err: err}
}

// NewStorage reports that the local store could not be used.
func NewStorage(err error) error {
	return &Error{kind: KindStorage, msg: "local storage unavailable", err: err}
}

// NewInternal wraps an unexpected error.
func NewInternal(err error) error {
	return &Error{kind: KindInternal, err: err}
}

// KindOf returns the kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindInternal
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return err != nil && KindOf(err) == KindValidation }

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool { return err != nil && KindOf(err) == KindTransient }

// IsAuth reports whether err is a credential rejection.
func IsAuth(err error) bool { return err != nil && KindOf(err) == KindAuth }

// IsStorage reports whether err is a local storage failure.
func IsStorage(err error) bool { return err != nil && KindOf(err) == KindStorage }

// UserMessage returns the message to show to a user for err.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.msg != "" {
		return e.msg
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
