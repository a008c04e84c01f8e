// Package genai talks to LLM providers for explanations, fallback
// translation, chat and image analysis.
//
// Gemini goes through google.golang.org/genai; Groq, Cerebras and OpenAI go
// through github.com/openai/openai-go/v3 against their OpenAI-compatible
// endpoints. Calls fall back in three layers: retries of the same model,
// the next model of the provider, then the next provider.
package genai

import (
	"context"
	"time"
)

// Provider represents an LLM provider.
type Provider string

const (
	ProviderGemini   Provider = "gemini"
	ProviderGroq     Provider = "groq"
	ProviderCerebras Provider = "cerebras"
	ProviderOpenAI   Provider = "openai"
)

// ProviderEndpoint is the base URL of each OpenAI-compatible provider.
var ProviderEndpoint = map[Provider]string{
	ProviderGroq:     "https://api.groq.com/openai/v1/",
	ProviderCerebras: "https://api.cerebras.ai/v1/",
	ProviderOpenAI:   "https://api.openai.com/v1/",
}

// IsOpenAICompatible reports whether the provider is reached with openai-go.
func (p Provider) IsOpenAICompatible() bool {
	_, ok := ProviderEndpoint[p]
	return ok
}

func (p Provider) String() string {
	return string(p)
}

// Image is an image attached to a request. Data is required by Gemini;
// OpenAI-compatible providers use Data as a data URL, or URL when Data is empty.
type Image struct {
	Data     []byte
	MIMEType string
	URL      string
}

// Request is one single-turn generation.
type Request struct {
	System      string
	Prompt      string
	Image       *Image
	Temperature float32
	MaxTokens   int
}

// Generator produces text with one provider and model.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	Provider() Provider
	Model() string
}

// RetryConfig controls retries of a single model.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// ProviderConfig holds the key and model chains of one provider.
// The first model is primary; the others are tried in order.
type ProviderConfig struct {
	APIKey       string
	TextModels   []string
	VisionModels []string
}

// LLMConfig holds configuration for all providers.
type LLMConfig struct {
	// Providers is the fallback order. Providers without a key are skipped.
	Providers []Provider

	Gemini   ProviderConfig
	Groq     ProviderConfig
	Cerebras ProviderConfig
	OpenAI   ProviderConfig

	RetryConfig RetryConfig
}

// Default model chains.
var (
	DefaultGeminiTextModels   = []string{"gemini-2.5-flash", "gemini-2.5-flash-lite"}
	DefaultGeminiVisionModels = []string{"gemini-2.5-flash"}
	DefaultGroqTextModels     = []string{"llama-3.3-70b-versatile", "llama-3.1-8b-instant"}
	DefaultGroqVisionModels   = []string{"meta-llama/llama-4-scout-17b-16e-instruct"}
	DefaultCerebrasTextModels = []string{"llama-3.3-70b", "llama-3.1-8b"}
	DefaultOpenAITextModels   = []string{"gpt-4o-mini"}
	DefaultOpenAIVisionModels = []string{"gpt-4o-mini"}

	DefaultProviders = []Provider{ProviderGemini, ProviderGroq, ProviderCerebras, ProviderOpenAI}
)

// Retry defaults
const (
	DefaultMaxRetryAttempts  = 2
	DefaultInitialRetryDelay = 500 * time.Millisecond
	DefaultMaxRetryDelay     = 3 * time.Second
)

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  DefaultMaxRetryAttempts,
		InitialDelay: DefaultInitialRetryDelay,
		MaxDelay:     DefaultMaxRetryDelay,
	}
}

// DefaultLLMConfig returns the default chains. API keys are set by the caller.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Providers:   DefaultProviders,
		Gemini:      ProviderConfig{TextModels: DefaultGeminiTextModels, VisionModels: DefaultGeminiVisionModels},
		Groq:        ProviderConfig{TextModels: DefaultGroqTextModels, VisionModels: DefaultGroqVisionModels},
		Cerebras:    ProviderConfig{TextModels: DefaultCerebrasTextModels},
		OpenAI:      ProviderConfig{TextModels: DefaultOpenAITextModels, VisionModels: DefaultOpenAIVisionModels},
		RetryConfig: DefaultRetryConfig(),
	}
}

// ProviderConfig returns the configuration of p, or nil for unknown providers.
func (c *LLMConfig) ProviderConfig(p Provider) *ProviderConfig {
	switch p {
	case ProviderGemini:
		return &c.Gemini
	case ProviderGroq:
		return &c.Groq
	case ProviderCerebras:
		return &c.Cerebras
	case ProviderOpenAI:
		return &c.OpenAI
	default:
		return nil
	}
}

// HasProvider reports whether p has an API key.
func (c *LLMConfig) HasProvider(p Provider) bool {
	pc := c.ProviderConfig(p)
	return pc != nil && pc.APIKey != ""
}

// ConfiguredProviders returns the providers with keys, in fallback order.
func (c *LLMConfig) ConfiguredProviders() []Provider {
	order := c.Providers
	if len(order) == 0 {
		order = DefaultProviders
	}
	result := make([]Provider, 0, len(order))
	for _, p := range order {
		if c.HasProvider(p) {
			result = append(result, p)
		}
	}
	return result
}

// HasAnyProvider reports whether at least one provider is usable.
func (c *LLMConfig) HasAnyProvider() bool {
	return len(c.ConfiguredProviders()) > 0
}
