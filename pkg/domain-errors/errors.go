// Package domainerrors provides coded errors for the domain and service layers.
//
// Stores return infrastructure sentinels (pkg/platform/sentinel); services
// translate them into coded errors from this package; the HTTP layer maps
// codes onto status lines (pkg/platform/httputil). Codes are stable strings
// that also appear in JSON error envelopes, so renaming one is a breaking
// API change.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	// CodeValidation marks malformed input rejected at the boundary.
	CodeValidation Code = "validation_error"
	// CodeBadRequest marks a structurally invalid request (undecodable body,
	// bad query parameter).
	CodeBadRequest Code = "bad_request"
	// CodeNotFound marks a missing entity.
	CodeNotFound Code = "not_found"
	// CodeConflict marks an invariant violation caused by concurrent or
	// duplicate writes (e.g. a second active agreement record).
	CodeConflict Code = "conflict"
	// CodeInvariantViolation marks a domain rule rejection, such as a state
	// transition the lifecycle table does not allow.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeUnauthorized marks missing or invalid credentials.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden marks an authenticated caller acting outside its scope.
	CodeForbidden Code = "forbidden"
	// CodeTimeout marks an operation aborted by deadline.
	CodeTimeout Code = "timeout"
	// CodeInternal marks persistence and other infrastructure failures.
	CodeInternal Code = "internal_error"
)

// Error is a coded domain error, optionally wrapping a cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches another coded error by code and message, so tests can assert
// with errors.Is against a freshly constructed error value.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// New creates a coded error without a cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error. The cause stays
// reachable through errors.Is/As for sentinel checks.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err or any error in its chain carries the code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
	}
	return false
}

// Is is a readability alias for HasCode, used in tests and handlers.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost code in the chain, or CodeInternal when err
// carries no code.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the outermost coded message, or an empty string.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}
