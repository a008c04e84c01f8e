package genai

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtm-bot/translator-go/internal/language"
	"github.com/rtm-bot/translator-go/internal/metrics"
)

// fakeGenerator returns scripted results in order, repeating the last one.
type fakeGenerator struct {
	mu       sync.Mutex
	provider Provider
	model    string
	results  []fakeResult
	requests []Request
}

type fakeResult struct {
	text string
	err  error
}

func (f *fakeGenerator) Generate(_ context.Context, req Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	r := f.results[min(len(f.requests), len(f.results))-1]
	return r.text, r.err
}

func (f *fakeGenerator) Provider() Provider { return f.provider }
func (f *fakeGenerator) Model() string      { return f.model }

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

var fastRetry = RetryConfig{MaxAttempts: 2, InitialDelay: 0, MaxDelay: 0}

func TestChain_PrimarySuccess(t *testing.T) {
	t.Parallel()
	primary := &fakeGenerator{provider: ProviderGemini, results: []fakeResult{{text: "ok"}}}
	backup := &fakeGenerator{provider: ProviderGroq, results: []fakeResult{{text: "backup"}}}

	got, err := NewChain("text", fastRetry, nil, primary, backup).Generate(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Zero(t, backup.calls())
}

func TestChain_RetryThenSucceed(t *testing.T) {
	t.Parallel()
	primary := &fakeGenerator{provider: ProviderGemini, results: []fakeResult{
		{err: errors.New("503 unavailable")},
		{text: "second try"},
	}}

	got, err := NewChain("text", fastRetry, nil, primary).Generate(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "second try", got)
	assert.Equal(t, 2, primary.calls())
}

func TestChain_FallsBackAcrossProviders(t *testing.T) {
	t.Parallel()
	m := metrics.New(prometheus.NewRegistry())
	primary := &fakeGenerator{provider: ProviderGemini, results: []fakeResult{{err: errors.New("quota exceeded")}}}
	backup := &fakeGenerator{provider: ProviderGroq, results: []fakeResult{{text: "from groq"}}}

	got, err := NewChain("vision", fastRetry, m, primary, backup).Generate(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "from groq", got)
	assert.Equal(t, 1, primary.calls(), "quota errors are not retried")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LLMFallbackTotal.WithLabelValues("gemini", "groq", "vision")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ExternalCallsTotal.WithLabelValues("vision", "groq", "success")))
}

func TestChain_PermanentErrorStops(t *testing.T) {
	t.Parallel()
	primary := &fakeGenerator{provider: ProviderGemini, results: []fakeResult{{err: errors.New("401 unauthorized")}}}
	backup := &fakeGenerator{provider: ProviderGroq, results: []fakeResult{{text: "unused"}}}

	_, err := NewChain("text", fastRetry, nil, primary, backup).Generate(context.Background(), Request{Prompt: "hi"})
	assert.Error(t, err)
	assert.Zero(t, backup.calls())
}

func TestChain_Empty(t *testing.T) {
	t.Parallel()
	var nilChain *Chain
	_, err := nilChain.Generate(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNoGenerator)
	assert.Zero(t, NewChain("text", fastRetry, nil).Len())
}

func TestAssistant(t *testing.T) {
	t.Parallel()
	text := &fakeGenerator{provider: ProviderGroq, results: []fakeResult{{text: "Hello world"}}}
	vision := &fakeGenerator{provider: ProviderOpenAI, results: []fakeResult{{text: "Un chat."}}}
	a := NewAssistant(NewChain("text", fastRetry, nil, text), NewChain("vision", fastRetry, nil, vision))

	require.True(t, a.HasText())
	require.True(t, a.HasVision())

	got, err := a.Translate(context.Background(), "Bonjour le monde", language.FR, language.EN)
	require.NoError(t, err)
	assert.Equal(t, "Hello world", got)
	assert.Contains(t, text.requests[0].Prompt, "Bonjour le monde")
	assert.Contains(t, text.requests[0].Prompt, language.EN.Name())
	assert.Equal(t, SystemPrompt, text.requests[0].System)

	got, err = a.AnalyzeImage(context.Background(), Image{URL: "https://cdn.example/cat.jpg"}, "Qu'est-ce que c'est ?")
	require.NoError(t, err)
	assert.Equal(t, "Un chat.", got)
	require.NotNil(t, vision.requests[0].Image)
	assert.Equal(t, "https://cdn.example/cat.jpg", vision.requests[0].Image.URL)

	_, err = a.Explain(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyInput)
	_, err = a.AnalyzeImage(context.Background(), Image{}, "?")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestAssistant_Unconfigured(t *testing.T) {
	t.Parallel()
	a := NewAssistant(nil, nil)
	assert.False(t, a.HasText())
	assert.False(t, a.HasVision())

	_, err := a.Chat(context.Background(), "Bonjour")
	assert.ErrorIs(t, err, ErrNoGenerator)
}

func TestConfiguredProviders(t *testing.T) {
	t.Parallel()
	cfg := DefaultLLMConfig()
	assert.False(t, cfg.HasAnyProvider())

	cfg.Groq.APIKey = "g"
	cfg.OpenAI.APIKey = "o"
	assert.Equal(t, []Provider{ProviderGroq, ProviderOpenAI}, cfg.ConfiguredProviders())

	cfg.Providers = []Provider{ProviderOpenAI, ProviderGroq, "unknown"}
	assert.Equal(t, []Provider{ProviderOpenAI, ProviderGroq}, cfg.ConfiguredProviders())
	assert.Nil(t, cfg.ProviderConfig("unknown"))
}

func TestBuildChain(t *testing.T) {
	t.Parallel()
	cfg := DefaultLLMConfig()
	cfg.Groq.APIKey = "g"
	cfg.Cerebras.APIKey = "c"

	text := BuildChain(context.Background(), cfg, CapabilityText, nil)
	assert.Equal(t, len(DefaultGroqTextModels)+len(DefaultCerebrasTextModels), text.Len())

	vision := BuildChain(context.Background(), cfg, CapabilityVision, nil)
	assert.Equal(t, len(DefaultGroqVisionModels), vision.Len(), "cerebras has no vision models")
}
