// Package translate normalizes detection, translation, explanation and
// speech behind one facade that always yields a user-presentable string.
package translate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	domerrors "github.com/rtm-bot/translator-go/internal/errors"
	"github.com/rtm-bot/translator-go/internal/language"
	"github.com/rtm-bot/translator-go/internal/logger"
	"github.com/rtm-bot/translator-go/internal/metrics"
)

// Fixed apologies returned when a capability fails.
const (
	MsgTranslateError = "Erreur lors de la traduction."
	MsgExplainError   = "Désolé, je n'ai pas pu expliquer ce texte pour le moment."
	MsgSpeechError    = "Désolé, la lecture audio est indisponible pour le moment."
)

// Translator is one translation backend.
type Translator interface {
	Name() string
	Translate(ctx context.Context, text string, src, dst language.Code) (string, error)
}

// Detector classifies the language of a text. It never fails.
type Detector interface {
	Detect(text string) language.Code
}

// Explainer explains a text in plain language.
type Explainer interface {
	Explain(ctx context.Context, text string) (string, error)
}

// Synthesizer returns an audio URL speaking a text.
type Synthesizer interface {
	URL(ctx context.Context, text string, lang language.Code) (string, error)
}

// Config configures a Facade. Every capability except Detector is optional.
type Config struct {
	Detector    Detector
	Translators []Translator
	Explainer   Explainer
	Speech      Synthesizer

	// CallTimeout bounds each external call.
	CallTimeout time.Duration

	Metrics *metrics.Metrics
	Logger  *logger.Logger
}

// Facade is the single entry point used by the conversation engine.
type Facade struct {
	detector    Detector
	translators []Translator
	explainer   Explainer
	speech      Synthesizer
	timeout     time.Duration
	metrics     *metrics.Metrics
	logger      *logger.Logger
}

// NewFacade creates a facade.
func NewFacade(cfg Config) *Facade {
	if cfg.Detector == nil {
		cfg.Detector = language.NewDetector(language.DefaultPolicy)
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 20 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewWithWriter("error", io.Discard)
	}
	return &Facade{
		detector:    cfg.Detector,
		translators: cfg.Translators,
		explainer:   cfg.Explainer,
		speech:      cfg.Speech,
		timeout:     cfg.CallTimeout,
		metrics:     cfg.Metrics,
		logger:      log.WithModule("translate"),
	}
}

// DetectLanguage returns the language of text, or the fallback language.
func (f *Facade) DetectLanguage(_ context.Context, text string) language.Code {
	return f.detector.Detect(text)
}

// Translate tries each translator in order. On failure it returns
// MsgTranslateError and false.
func (f *Facade) Translate(ctx context.Context, text string, src, dst language.Code) (string, bool) {
	var errs []error
	for _, t := range f.translators {
		out, err := f.call(ctx, "translate", t.Name(), func(ctx context.Context) (string, error) {
			return t.Translate(ctx, text, src, dst)
		})
		if err == nil {
			f.metrics.RecordTranslation(string(src), string(dst), "success")
			return out, true
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}

	f.metrics.RecordTranslation(string(src), string(dst), "error")
	f.logger.WithError(errors.Join(errs...)).WarnContext(ctx, "Translation failed",
		"source", src, "target", dst, "translators", len(f.translators))
	return MsgTranslateError, false
}

// Explain explains text. On failure it returns MsgExplainError and false.
func (f *Facade) Explain(ctx context.Context, text string) (string, bool) {
	if f.explainer == nil {
		return MsgExplainError, false
	}
	out, err := f.call(ctx, "explain", "llm", func(ctx context.Context) (string, error) {
		return f.explainer.Explain(ctx, text)
	})
	if err != nil {
		f.logger.WithError(err).WarnContext(ctx, "Explanation failed")
		return MsgExplainError, false
	}
	return out, true
}

// SynthesizeSpeechURL returns an audio URL for text in lang. On failure it
// returns MsgSpeechError and false.
func (f *Facade) SynthesizeSpeechURL(ctx context.Context, text string, lang language.Code) (string, bool) {
	if f.speech == nil {
		return MsgSpeechError, false
	}
	out, err := f.call(ctx, "speech_url", "media", func(ctx context.Context) (string, error) {
		return f.speech.URL(ctx, text, lang)
	})
	if err != nil {
		f.logger.WithError(err).WarnContext(ctx, "Speech synthesis failed", "lang", lang)
		return MsgSpeechError, false
	}
	return out, true
}

func (f *Facade) call(ctx context.Context, capability, provider string, fn func(context.Context) (string, error)) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	start := time.Now()
	out, err := fn(callCtx)
	status := "success"
	switch {
	case err == nil && out == "":
		err = errors.New("empty result")
		status = "error"
	case errors.Is(err, context.DeadlineExceeded):
		err = fmt.Errorf("%s %s: %w: %w", capability, provider, domerrors.ErrTimeout, err)
		status = "timeout"
	case err != nil:
		status = "error"
	}
	f.metrics.RecordExternalCall(capability, provider, status, time.Since(start).Seconds())
	return out, err
}
