package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/NgigiN/finsync/internal/apperr"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the operation ran but did not fully succeed
	ExitCommandError = 2 // bad input, unusable config or storage
)

// ExitError is an error carrying the process exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. Validation errors are
// command errors; anything else unclassified is a failure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if apperr.IsValidation(err) {
		return ExitCommandError
	}
	return ExitFailure
}

// Response is the JSON envelope for --format json.
type Response struct {
	Status string `json:"status"` // "ok" or "error"
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

// render writes data as a JSON envelope, or through text otherwise.
func render(w io.Writer, format string, data any, text func(w io.Writer)) error {
	if format == "json" {
		return json.NewEncoder(w).Encode(Response{Status: "ok", Data: data})
	}
	text(w)
	return nil
}

// RenderError writes err in the requested format.
func RenderError(w io.Writer, format string, err error) {
	msg := err.Error()
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		msg = apperr.UserMessage(err)
	}

	if format == "json" {
		_ = json.NewEncoder(w).Encode(Response{Status: "error", Error: msg})
		return
	}
	fmt.Fprintf(w, "Error: %s\n", msg)
}
