package translate

import (
	"context"

	"github.com/rtm-bot/translator-go/internal/language"
)

// llmBackend is the subset of genai.Assistant used for translation.
type llmBackend interface {
	Translate(ctx context.Context, text string, src, dst language.Code) (string, error)
}

// LLMTranslator adapts the LLM assistant to the Translator interface.
type LLMTranslator struct {
	backend llmBackend
}

// NewLLMTranslator wraps an assistant.
func NewLLMTranslator(backend llmBackend) *LLMTranslator {
	return &LLMTranslator{backend: backend}
}

// Name identifies the translator in metrics.
func (t *LLMTranslator) Name() string { return "llm" }

// Translate delegates to the assistant.
func (t *LLMTranslator) Translate(ctx context.Context, text string, src, dst language.Code) (string, error) {
	return t.backend.Translate(ctx, text, src, dst)
}
