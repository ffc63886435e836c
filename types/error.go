package types

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unified error code across the service.
type ErrorCode string

// Request validation and state error codes
const (
	ErrValidation    ErrorCode = "VALIDATION"
	ErrConflict      ErrorCode = "CONFLICT"
	ErrNotFound      ErrorCode = "NOT_FOUND"
	ErrLimitExceeded ErrorCode = "LIMIT_EXCEEDED"
	ErrUnauthorized  ErrorCode = "UNAUTHORIZED"
	ErrForbidden     ErrorCode = "FORBIDDEN"
	ErrRateLimited   ErrorCode = "RATE_LIMITED"
)

// Schema and upstream error codes
const (
	ErrInvalidSchema      ErrorCode = "INVALID_SCHEMA"
	ErrFetch              ErrorCode = "FETCH_FAILED"
	ErrUpstreamTimeout    ErrorCode = "UPSTREAM_TIMEOUT"
	ErrInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// NewValidationError reports malformed or missing user input.
func NewValidationError(message string) *Error {
	return NewError(ErrValidation, message).WithHTTPStatus(http.StatusBadRequest)
}

// NewConflictError reports a uniqueness violation, e.g. a duplicated provider name.
func NewConflictError(message string) *Error {
	return NewError(ErrConflict, message).WithHTTPStatus(http.StatusConflict)
}

// NewNotFoundError reports a missing entity.
func NewNotFoundError(message string) *Error {
	return NewError(ErrNotFound, message).WithHTTPStatus(http.StatusNotFound)
}

// NewInvalidSchemaError reports an unparseable or unrecognized schema document.
func NewInvalidSchemaError(message string) *Error {
	return NewError(ErrInvalidSchema, message).WithHTTPStatus(http.StatusBadRequest)
}

// NewLimitExceededError reports a crossed resource cap.
func NewLimitExceededError(message string) *Error {
	return NewError(ErrLimitExceeded, message).WithHTTPStatus(http.StatusBadRequest)
}

// NewFetchError reports a failed remote retrieval. Retryable by nature.
func NewFetchError(message string) *Error {
	return NewError(ErrFetch, message).WithHTTPStatus(http.StatusBadGateway).WithRetryable(true)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsErrorCode reports whether err carries the given code anywhere in its chain.
func IsErrorCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}
