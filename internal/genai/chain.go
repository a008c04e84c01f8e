package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rtm-bot/translator-go/internal/metrics"
)

// ErrNoGenerator is returned by an empty chain.
var ErrNoGenerator = errors.New("genai: no generator configured")

// Chain tries generators in order. Each generator is retried on transient
// errors; other failures move to the next one. A failure classified as
// ActionFail stops the chain.
type Chain struct {
	capability string
	generators []Generator
	retry      RetryConfig
	metrics    *metrics.Metrics
}

// NewChain creates a chain for a capability label ("explain", "vision"...).
func NewChain(capability string, retry RetryConfig, m *metrics.Metrics, generators ...Generator) *Chain {
	return &Chain{
		capability: capability,
		generators: generators,
		retry:      retry,
		metrics:    m,
	}
}

// Len returns the number of generators in the chain.
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.generators)
}

// Generate returns the first successful completion.
func (c *Chain) Generate(ctx context.Context, req Request) (string, error) {
	if c.Len() == 0 {
		return "", ErrNoGenerator
	}

	var lastErr error
	for i, g := range c.generators {
		if i > 0 {
			prev := c.generators[i-1]
			c.metrics.RecordLLMFallback(prev.Provider().String(), g.Provider().String(), c.capability)
			slog.InfoContext(ctx, "Falling back to next model",
				"capability", c.capability,
				"from", prev.Provider(), "from_model", prev.Model(),
				"to", g.Provider(), "to_model", g.Model())
		}

		start := time.Now()
		var text string
		err := WithRetry(ctx, c.retry, func(attempt int, err error) {
			slog.DebugContext(ctx, "Retrying generation",
				"provider", g.Provider(), "model", g.Model(), "attempt", attempt, "error", err)
		}, func() error {
			var genErr error
			text, genErr = g.Generate(ctx, req)
			return genErr
		})
		c.metrics.RecordExternalCall(c.capability, g.Provider().String(), errorStatus(err), time.Since(start).Seconds())
		if err == nil {
			return text, nil
		}

		lastErr = err
		slog.WarnContext(ctx, "Generation failed",
			"capability", c.capability,
			"provider", g.Provider(),
			"model", g.Model(),
			"action", ClassifyError(err),
			"error", err)

		if ctx.Err() != nil || ClassifyError(err) == ActionFail {
			break
		}
	}
	return "", fmt.Errorf("all generators failed: %w", lastErr)
}
