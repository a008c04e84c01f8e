package genai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyError(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		err      error
		expected ErrorAction
	}{
		{"nil error", nil, ActionFail},
		{"context canceled", context.Canceled, ActionFail},
		{"deadline exceeded", fmt.Errorf("call: %w", context.DeadlineExceeded), ActionRetry},

		{"status 429", &LLMError{Err: errors.New("x"), StatusCode: http.StatusTooManyRequests}, ActionRetry},
		{"status 503", &LLMError{Err: errors.New("x"), StatusCode: http.StatusServiceUnavailable}, ActionRetry},
		{"status 404 falls back", &LLMError{Err: errors.New("x"), StatusCode: http.StatusNotFound}, ActionFallback},
		{"status 401", &LLMError{Err: errors.New("x"), StatusCode: http.StatusUnauthorized}, ActionFail},
		{"status 400", &LLMError{Err: errors.New("x"), StatusCode: http.StatusBadRequest}, ActionFail},

		{"quota exhausted", errors.New("RESOURCE_EXHAUSTED: quota exceeded"), ActionFallback},
		{"daily limit", errors.New("daily limit reached"), ActionFallback},
		{"rate limit", errors.New("rate limit exceeded temporarily"), ActionRetry},
		{"overloaded", errors.New("model is overloaded"), ActionRetry},
		{"gateway timeout", errors.New("gateway timeout"), ActionRetry},
		{"invalid api key", errors.New("invalid api key"), ActionFail},
		{"forbidden", errors.New("forbidden"), ActionFail},
		{"unknown model", errors.New("model not found"), ActionFallback},
		{"safety block", errors.New("empty response (blocked)"), ActionFallback},
		{"unknown error", errors.New("something unexpected happened"), ActionRetry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, ClassifyError(tt.err), "ClassifyError(%v)", tt.err)
		})
	}
}

func TestWrapError(t *testing.T) {
	t.Parallel()

	assert.NoError(t, WrapError(nil, ProviderGroq, 500))

	err := WrapError(errors.New("boom"), ProviderGroq, http.StatusBadGateway)
	var llmErr *LLMError
	assert.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ProviderGroq, llmErr.Provider)
	assert.Equal(t, "boom (status: 502)", err.Error())
}

func TestErrorStatus(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "success", errorStatus(nil))
	assert.Equal(t, "timeout", errorStatus(context.DeadlineExceeded))
	assert.Equal(t, "rate_limit", errorStatus(&LLMError{Err: errors.New("x"), StatusCode: 429}))
	assert.Equal(t, "auth_error", errorStatus(&LLMError{Err: errors.New("x"), StatusCode: 401}))
	assert.Equal(t, "quota_exhausted", errorStatus(errors.New("quota exceeded")))
}

func TestErrorActionString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "retry", ActionRetry.String())
	assert.Equal(t, "fallback", ActionFallback.String())
	assert.Equal(t, "fail", ActionFail.String())
	assert.Equal(t, "unknown", ErrorAction(42).String())
}
