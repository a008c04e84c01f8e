// Package fetch provides the outbound HTTP client shared by the translation,
// speech and messaging adapters: JSON and binary requests with retries on
// transient failures and a rotating User-Agent.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"time"

	"github.com/corpix/uarand"
)

// DefaultMaxBytes caps a response body read by GetBytes when no limit is given.
const DefaultMaxBytes = 10 << 20

// StatusError reports a non-2xx response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string // first bytes of the response body
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// Client is an HTTP client with retries and User-Agent rotation.
type Client struct {
	httpClient   *http.Client
	maxRetries   int
	initialDelay time.Duration
	userAgent    func() string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client (tests use httptest clients).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithUserAgent fixes the User-Agent header instead of rotating it.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = func() string { return ua } }
}

// NewClient creates a client whose individual attempts time out after timeout.
func NewClient(timeout time.Duration, maxRetries int, initialDelay time.Duration, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		maxRetries:   maxRetries,
		initialDelay: initialDelay,
		userAgent:    uarand.GetRandom,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetJSON performs a GET request and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	body, _, err := c.do(ctx, http.MethodGet, url, nil, "application/json", DefaultMaxBytes)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// PostJSON encodes in as the request body and decodes the response into out.
// out may be nil when the response body is not needed.
func (c *Client) PostJSON(ctx context.Context, url string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return Permanent(fmt.Errorf("encode request: %w", err))
	}
	body, _, err := c.do(ctx, http.MethodPost, url, payload, "application/json", DefaultMaxBytes)
	if err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// GetBytes downloads at most maxBytes from url and returns the body with its content type.
func (c *Client) GetBytes(ctx context.Context, url string, maxBytes int64) ([]byte, string, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return c.do(ctx, http.MethodGet, url, nil, "*/*", maxBytes)
}

func (c *Client) do(ctx context.Context, method, url string, payload []byte, accept string, maxBytes int64) ([]byte, string, error) {
	var (
		body        []byte
		contentType string
	)

	err := RetryWithBackoff(ctx, c.maxRetries, c.initialDelay, func() error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("User-Agent", c.userAgent())
		req.Header.Set("Accept", accept)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return Permanent(ctx.Err())
			}
			// *url.Error repeats the full URL, credentials included.
			var urlErr *neturl.Error
			if errors.As(err, &urlErr) {
				err = urlErr.Err
			}
			return fmt.Errorf("%s %s: %w", method, redact(url), err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			statusErr := &StatusError{
				Method:     method,
				URL:        redact(url),
				StatusCode: resp.StatusCode,
				Body:       string(bytes.TrimSpace(snippet)),
			}
			if statusErr.Retryable() {
				return statusErr
			}
			return Permanent(statusErr)
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		if int64(len(data)) > maxBytes {
			return Permanent(fmt.Errorf("response from %s exceeds %d bytes", redact(url), maxBytes))
		}
		body = data
		contentType = resp.Header.Get("Content-Type")
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return body, contentType, nil
}
