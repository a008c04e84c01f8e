package genai

import (
	"context"
	"errors"
	"strings"

	"github.com/rtm-bot/translator-go/internal/language"
)

// Generation parameters per use.
const (
	explainMaxTokens   = 600
	translateMaxTokens = 1000
	chatMaxTokens      = 1200
	visionMaxTokens    = 1000
)

// ErrEmptyInput is returned when there is nothing to send to the model.
var ErrEmptyInput = errors.New("genai: empty input")

// Assistant exposes the bot's LLM features on top of a text chain and a
// vision chain. Either chain may be empty.
type Assistant struct {
	text   *Chain
	vision *Chain
}

// NewAssistant creates an assistant.
func NewAssistant(text, vision *Chain) *Assistant {
	return &Assistant{text: text, vision: vision}
}

// HasText reports whether text generation is available.
func (a *Assistant) HasText() bool {
	return a != nil && a.text.Len() > 0
}

// HasVision reports whether image analysis is available.
func (a *Assistant) HasVision() bool {
	return a != nil && a.vision.Len() > 0
}

// Explain returns a plain-language explanation of text.
func (a *Assistant) Explain(ctx context.Context, text string) (string, error) {
	return a.generateText(ctx, ExplainPrompt(text), text, 0.4, explainMaxTokens)
}

// Translate translates text between two supported languages. It serves as
// the fallback translator behind the dictionary API.
func (a *Assistant) Translate(ctx context.Context, text string, src, dst language.Code) (string, error) {
	return a.generateText(ctx, TranslatePrompt(text, src.Name(), dst.Name()), text, 0.1, translateMaxTokens)
}

// Chat answers a free question.
func (a *Assistant) Chat(ctx context.Context, question string) (string, error) {
	return a.generateText(ctx, ChatPrompt(question), question, 0.7, chatMaxTokens)
}

// AnalyzeImage answers a question about img.
func (a *Assistant) AnalyzeImage(ctx context.Context, img Image, question string) (string, error) {
	return a.generateVision(ctx, img, ImageQuestionPrompt(question))
}

// DescribeForVariation turns img and an instruction into an image-generation prompt.
func (a *Assistant) DescribeForVariation(ctx context.Context, img Image, instruction string) (string, error) {
	return a.generateVision(ctx, img, VariationPrompt(instruction))
}

func (a *Assistant) generateText(ctx context.Context, prompt, input string, temperature float32, maxTokens int) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", ErrEmptyInput
	}
	if !a.HasText() {
		return "", ErrNoGenerator
	}
	return a.text.Generate(ctx, Request{
		System:      SystemPrompt,
		Prompt:      prompt,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
}

func (a *Assistant) generateVision(ctx context.Context, img Image, prompt string) (string, error) {
	if len(img.Data) == 0 && img.URL == "" {
		return "", ErrEmptyInput
	}
	if !a.HasVision() {
		return "", ErrNoGenerator
	}
	return a.vision.Generate(ctx, Request{
		System:      SystemPrompt,
		Prompt:      prompt,
		Image:       &img,
		Temperature: 0.3,
		MaxTokens:   visionMaxTokens,
	})
}
