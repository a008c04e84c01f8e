// Package errors provides domain-specific error types and sentinel errors
// for improved error handling across the application.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common scenarios.
// Use errors.Is() to check these errors in your code.
var (
	// ErrMissingSender indicates an inbound event without a sender id.
	ErrMissingSender = errors.New("event has no sender id")

	// ErrInvalidInput indicates user provided invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTimeout indicates an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrNotConfigured indicates an optional capability has no provider configured.
	ErrNotConfigured = errors.New("capability not configured")
)

// APIError represents a failed call to a third-party HTTP API.
type APIError struct {
	Service    string
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s api error (status=%d): %v", e.Service, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s api error: %v", e.Service, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewAPIError creates a new API error.
func NewAPIError(service string, statusCode int, err error) *APIError {
	return &APIError{
		Service:    service,
		StatusCode: statusCode,
		Err:        err,
	}
}
