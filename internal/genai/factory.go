package genai

import (
	"context"
	"log/slog"

	"github.com/rtm-bot/translator-go/internal/metrics"
)

// Capability labels used for metrics and chain selection.
const (
	CapabilityText   = "text"
	CapabilityVision = "vision"
)

// BuildChain creates the generator chain for text or vision requests from
// every configured provider, in fallback order. It returns an empty chain
// when nothing is configured.
func BuildChain(ctx context.Context, cfg LLMConfig, capability string, m *metrics.Metrics) *Chain {
	var generators []Generator

	for _, p := range cfg.ConfiguredProviders() {
		pc := cfg.ProviderConfig(p)
		models := pc.TextModels
		if capability == CapabilityVision {
			models = pc.VisionModels
		}
		for _, model := range models {
			g, err := newGenerator(ctx, p, pc.APIKey, model)
			if err != nil {
				slog.WarnContext(ctx, "Failed to create generator", "provider", p, "model", model, "error", err)
				continue
			}
			generators = append(generators, g)
		}
	}

	if len(generators) > 0 {
		slog.InfoContext(ctx, "LLM chain configured",
			"capability", capability,
			"primary", generators[0].Provider(),
			"chain_size", len(generators))
	}
	return NewChain(capability, cfg.RetryConfig, m, generators...)
}

func newGenerator(ctx context.Context, p Provider, apiKey, model string) (Generator, error) {
	if p == ProviderGemini {
		return newGeminiGenerator(ctx, apiKey, model, "")
	}
	return newOpenAIGenerator(p, apiKey, model, "")
}
