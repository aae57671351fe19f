// Package apierr defines the tagged error kinds and numeric error codes
// exposed in API responses. Kinds are attached where an error is produced
// so the HTTP boundary never has to guess from message text.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is the numeric error code carried in the response envelope.
// Codes are grouped by thousands: 1000s auth, 2000s input, 3000s limits,
// 4000s upstream provider, 5000s internal.
type Code int

const (
	CodeUnauthorized       Code = 1000
	CodeMissingParameters  Code = 2000
	CodeMissingImage       Code = 2001
	CodeTokenLimitExceeded Code = 3000
	CodeAPIError           Code = 4000
	CodeAPIRateLimited     Code = 4001
	CodeInternal           Code = 5000
)

// HTTPStatus maps a code to its transport status.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeMissingParameters, CodeMissingImage:
		return http.StatusBadRequest
	case CodeTokenLimitExceeded:
		return http.StatusForbidden
	case CodeAPIError:
		return http.StatusBadGateway
	case CodeAPIRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is an error tagged with an API code. The message is safe to return
// to clients; wrap internal detail with %w instead of embedding it.
type Error struct {
	Code    Code
	Message string
	cause   error
}

// New creates a tagged error with a client-safe message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap tags an underlying error with a code and client-safe message.
// The cause is preserved for logging and errors.Is/As checks.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap exposes the cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.cause
}

// CodeOf extracts the API code from an error chain.
// Untagged errors classify as internal.
func CodeOf(err error) Code {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Code
	}
	return CodeInternal
}

// MessageOf extracts the client-safe message from an error chain.
// Untagged errors get a generic message so internals never leak.
func MessageOf(err error) string {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Message
	}
	return "internal server error"
}
