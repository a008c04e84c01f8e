package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		target   error
		expected bool
	}{
		{
			name:     "ErrMissingSender is recognized",
			err:      ErrMissingSender,
			target:   ErrMissingSender,
			expected: true,
		},
		{
			name:     "Wrapped ErrTimeout is recognized",
			err:      fmt.Errorf("mymemory: %w", ErrTimeout),
			target:   ErrTimeout,
			expected: true,
		},
		{
			name:     "Joined ErrNotConfigured is recognized",
			err:      errors.Join(ErrNotConfigured, errors.New("additional context")),
			target:   ErrNotConfigured,
			expected: true,
		},
		{
			name:     "Different error is not ErrTimeout",
			err:      ErrInvalidInput,
			target:   ErrTimeout,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.expected {
				t.Errorf("errors.Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestAPIError(t *testing.T) {
	base := errors.New("quota exceeded")

	withStatus := NewAPIError("mymemory", 429, base)
	if got := withStatus.Error(); got != "mymemory api error (status=429): quota exceeded" {
		t.Errorf("unexpected message %q", got)
	}
	if !errors.Is(withStatus, base) {
		t.Error("APIError should unwrap to its cause")
	}

	noStatus := NewAPIError("graph", 0, base)
	if got := noStatus.Error(); got != "graph api error: quota exceeded" {
		t.Errorf("unexpected message %q", got)
	}

	var apiErr *APIError
	if !errors.As(fmt.Errorf("send: %w", withStatus), &apiErr) || apiErr.StatusCode != 429 {
		t.Error("errors.As should find the APIError through wrapping")
	}
}
