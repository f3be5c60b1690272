// Package errors defines the AppError type rendered in API error envelopes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is an error with a stable client facing code and HTTP status.
// Internal carries the cause for logs and is never serialised.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

func (e *AppError) Error() string {
	switch {
	case e == nil:
		return "<nil>"
	case e.Internal != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	default:
		return e.Message
	}
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// Is matches any AppError with the same code and status, so copies made by
// WithInternal or WithMessage still match their sentinel.
func (e *AppError) Is(target error) bool {
	other, ok := target.(*AppError)
	if e == nil || !ok || other == nil {
		return false
	}
	return e.Code == other.Code && e.StatusCode == other.StatusCode
}

// WithInternal returns a copy carrying err as the cause.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}
	cpy := *e
	cpy.Internal = err
	return &cpy
}

// WithMessage returns a copy with a different client message.
func (e *AppError) WithMessage(message string) *AppError {
	if e == nil {
		return nil
	}
	cpy := *e
	cpy.Message = message
	return &cpy
}

// Status is StatusCode, or 500 when unset.
func (e *AppError) Status() int {
	if e == nil || e.StatusCode == 0 {
		return http.StatusInternalServerError
	}
	return e.StatusCode
}

var (
	ErrBadRequest         = New("BAD_REQUEST", "Invalid request", http.StatusBadRequest)
	ErrUnauthorized       = New("UNAUTHORIZED", "Authentication required", http.StatusUnauthorized)
	ErrForbidden          = New("FORBIDDEN", "Permission denied", http.StatusForbidden)
	ErrNotFound           = New("NOT_FOUND", "Resource not found", http.StatusNotFound)
	ErrRateLimit          = New("RATE_LIMIT_EXCEEDED", "Too many requests, please slow down", http.StatusTooManyRequests)
	ErrInternalServer     = New("INTERNAL_SERVER_ERROR", "Internal server error", http.StatusInternalServerError)
	ErrServiceUnavailable = New("SERVICE_UNAVAILABLE", "Service temporarily unavailable", http.StatusServiceUnavailable)
)

func New(code, message string, statusCode int) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: statusCode}
}

// Wrap reports err as an internal failure with a client safe message.
func Wrap(err error, message string) *AppError {
	return New("INTERNAL_ERROR", message, http.StatusInternalServerError).WithInternal(err)
}

// FromError finds the AppError in err's chain. Anything else becomes
// ErrInternalServer with err as the cause.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternalServer.WithInternal(err)
}

func NewBadRequest(message string) *AppError {
	return ErrBadRequest.WithMessage(message)
}

func NewNotFound(code, message string) *AppError {
	return New(code, message, http.StatusNotFound)
}
