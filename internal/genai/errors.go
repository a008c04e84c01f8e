package genai

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/openai/openai-go/v3"
)

// ErrorAction is what a chain does after a failed call.
type ErrorAction int

const (
	// ActionRetry retries the same model after a backoff.
	ActionRetry ErrorAction = iota
	// ActionFallback moves on to the next model or provider.
	ActionFallback
	// ActionFail stops the chain.
	ActionFail
)

func (a ErrorAction) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionFallback:
		return "fallback"
	case ActionFail:
		return "fail"
	default:
		return "unknown"
	}
}

// LLMError carries the provider and HTTP status of a failed call.
type LLMError struct {
	Err        error
	StatusCode int
	Provider   Provider
}

func (e *LLMError) Error() string {
	if e.StatusCode > 0 {
		return e.Err.Error() + " (status: " + strconv.Itoa(e.StatusCode) + ")"
	}
	return e.Err.Error()
}

func (e *LLMError) Unwrap() error {
	return e.Err
}

// WrapError attaches provider and status information to err. A zero status
// is filled from an openai-go API error when present.
func WrapError(err error, provider Provider, statusCode int) error {
	if err == nil {
		return nil
	}
	if statusCode == 0 {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			statusCode = apiErr.StatusCode
		}
	}
	return &LLMError{Err: err, StatusCode: statusCode, Provider: provider}
}

// Message patterns, checked in order. Quota exhaustion must win over the
// generic rate-limit wording because providers phrase both with "limit".
var errorPatterns = []struct {
	action   ErrorAction
	patterns []string
}{
	{ActionFallback, []string{"quota", "daily limit", "monthly limit", "billing"}},
	{ActionRetry, []string{"rate limit", "too many requests", "429", "unavailable", "overloaded",
		"internal server error", "bad gateway", "gateway timeout", "500", "502", "503", "504",
		"timeout", "deadline", "connection reset", "eof"}},
	{ActionFail, []string{"unauthorized", "invalid api key", "forbidden", "permission denied",
		"401", "403", "400", "bad request", "invalid", "malformed"}},
	{ActionFallback, []string{"not found", "404", "unsupported", "safety", "blocked"}},
}

// ClassifyError maps an error to the chain action.
//
//   - transient errors (429, 5xx, timeouts) retry
//   - quota exhaustion, unknown models and content blocks fall back
//   - credentials and malformed requests fail
func ClassifyError(err error) ErrorAction {
	if err == nil || errors.Is(err, context.Canceled) {
		return ActionFail
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ActionRetry
	}

	var llmErr *LLMError
	if errors.As(err, &llmErr) && llmErr.StatusCode > 0 {
		return classifyStatusCode(llmErr.StatusCode)
	}

	msg := strings.ToLower(err.Error())
	for _, group := range errorPatterns {
		for _, p := range group.patterns {
			if strings.Contains(msg, p) {
				return group.action
			}
		}
	}
	return ActionRetry
}

func classifyStatusCode(code int) ErrorAction {
	switch {
	case code == http.StatusTooManyRequests,
		code == http.StatusRequestTimeout,
		code == http.StatusConflict,
		code >= 500 && code < 600:
		return ActionRetry
	case code == http.StatusNotFound:
		return ActionFallback // unknown model on this provider
	case code >= 400 && code < 500:
		return ActionFail
	default:
		return ActionRetry
	}
}

// errorStatus maps an error to a metric status label.
func errorStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	var llmErr *LLMError
	if errors.As(err, &llmErr) {
		switch {
		case llmErr.StatusCode == http.StatusTooManyRequests:
			return "rate_limit"
		case llmErr.StatusCode >= 500:
			return "server_error"
		case llmErr.StatusCode == http.StatusUnauthorized || llmErr.StatusCode == http.StatusForbidden:
			return "auth_error"
		}
	}
	if ClassifyError(err) == ActionFallback {
		return "quota_exhausted"
	}
	return "error"
}
