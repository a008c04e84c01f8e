// Package config provides centralized timeout constants for the application.
//
// Messenger expects the webhook to answer 200 within a few seconds and
// redelivers otherwise, so every turn is processed after the acknowledgment
// under its own deadline. LINE reply tokens stay valid long enough that the
// same budget serves both channels.
package config

import "time"

// Webhook timeouts
const (
	// WebhookProcessing bounds a single conversation turn, including every
	// external call it makes and the delivery of its replies.
	WebhookProcessing = 60 * time.Second

	// WebhookHTTPRead is the HTTP server read timeout for webhook requests.
	WebhookHTTPRead = 10 * time.Second

	// WebhookHTTPWrite is the HTTP server write timeout.
	WebhookHTTPWrite = 15 * time.Second

	// WebhookHTTPIdle is the HTTP server idle timeout for keep-alive connections.
	WebhookHTTPIdle = 120 * time.Second
)

// External call timeouts
const (
	// ExternalCall is the default deadline for one call to a translation,
	// LLM, speech, or Graph API endpoint (retries included).
	ExternalCall = 20 * time.Second

	// ExternalRetryInitial is the first backoff delay for retryable HTTP failures.
	ExternalRetryInitial = 500 * time.Millisecond

	// ImageDownload bounds fetching a user-sent image before analysis.
	ImageDownload = 15 * time.Second
)

// Database timeouts
const (
	// DatabaseBusyTimeout is SQLite busy_timeout pragma value.
	DatabaseBusyTimeout = 30 * time.Second

	// DatabaseConnMaxLifetime is the maximum lifetime of database connections.
	DatabaseConnMaxLifetime = time.Hour
)

// Background job intervals
const (
	// SessionSweepInterval is how often idle sessions are evicted.
	SessionSweepInterval = 5 * time.Minute

	// SessionIdleTTL is how long a session may stay untouched before the sweep may evict it.
	SessionIdleTTL = 24 * time.Hour

	// RateLimiterCleanupInterval is how often inactive user rate limiters are cleaned.
	RateLimiterCleanupInterval = 5 * time.Minute
)

// Graceful shutdown
const (
	// GracefulShutdown is the timeout for graceful server shutdown.
	GracefulShutdown = 30 * time.Second
)
