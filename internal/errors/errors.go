// Package errors provides structured error types with codes for authgate.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes for categorizing errors.
const (
	CodeInternal         = "internal_error"
	CodeNotFound         = "not_found"
	CodeAlreadyExists    = "already_exists"
	CodeInvalidInput     = "invalid_input"
	CodeInvalidGrant     = "invalid_grant"
	CodeUnsupportedGrant = "unsupported_grant_type"
	CodeInvalidClient    = "invalid_client"
	CodeUnauthorized     = "unauthorized"
	CodeForbidden        = "forbidden"
	CodeTokenExpired     = "token_expired"
	CodeTokenInvalid     = "token_invalid"
	CodeSessionExpired   = "session_expired"
)

// Error represents a structured error with a code and message.
type Error struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error with the given code and message.
func New(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a code and message.
func Wrap(err error, code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code string) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// Message returns the safe message of a structured error, or a generic
// fallback for anything else so internals never leak to callers.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return fallback
}

// NotFound creates a not found error.
func NotFound(resource, id string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// AlreadyExists creates an already exists error.
func AlreadyExists(resource, id string) *Error {
	return &Error{
		Code:    CodeAlreadyExists,
		Message: fmt.Sprintf("%s already exists: %s", resource, id),
	}
}

// InvalidInput creates an invalid input error.
func InvalidInput(message string) *Error {
	return &Error{
		Code:    CodeInvalidInput,
		Message: message,
	}
}

// InvalidGrant creates an invalid grant error (bad, expired, or replayed
// authorization code, redirect mismatch, PKCE failure).
func InvalidGrant(message string) *Error {
	return &Error{
		Code:    CodeInvalidGrant,
		Message: message,
	}
}

// InvalidClient creates an invalid client error (unknown client or
// credential mismatch).
func InvalidClient(message string) *Error {
	return &Error{
		Code:    CodeInvalidClient,
		Message: message,
	}
}

// Unauthorized creates an unauthorized error.
func Unauthorized(message string) *Error {
	return &Error{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

// Forbidden creates a forbidden error.
func Forbidden(message string) *Error {
	return &Error{
		Code:    CodeForbidden,
		Message: message,
	}
}

// Internal creates an internal error.
func Internal(message string, err error) *Error {
	return &Error{
		Code:    CodeInternal,
		Message: message,
		Err:     err,
	}
}

// OAuthError maps a structured error to the OAuth 2.0 wire error code and
// HTTP status used by the token endpoint.
func OAuthError(err error) (code string, status int) {
	switch {
	case IsCode(err, CodeInvalidClient), IsCode(err, CodeUnauthorized):
		return "invalid_client", http.StatusUnauthorized
	case IsCode(err, CodeUnsupportedGrant):
		return "unsupported_grant_type", http.StatusBadRequest
	case IsCode(err, CodeInvalidGrant), IsCode(err, CodeNotFound):
		return "invalid_grant", http.StatusBadRequest
	case IsCode(err, CodeInvalidInput):
		return "invalid_request", http.StatusBadRequest
	default:
		return "server_error", http.StatusInternalServerError
	}
}
