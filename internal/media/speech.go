package media

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	openai "github.com/sashabaranov/go-openai"

	domerrors "github.com/rtm-bot/translator-go/internal/errors"
	"github.com/rtm-bot/translator-go/internal/fetch"
	"github.com/rtm-bot/translator-go/internal/language"
	"github.com/rtm-bot/translator-go/internal/metrics"
)

// maxFallbackRunes is the longest text the public TTS endpoint accepts.
const maxFallbackRunes = 200

// SpeechConfig configures Speech.
type SpeechConfig struct {
	APIKey  string
	BaseURL string
	Model   string // "tts-1"
	Voice   string // "alloy"

	// Store publishes synthesized audio. Synthesis is disabled without it.
	Store Store

	// FallbackTemplate is a URL template with the escaped text and the
	// ISO 639-1 code, used when synthesis is unavailable or fails.
	FallbackTemplate string

	Timeout time.Duration
	Metrics *metrics.Metrics
}

// Speech turns text into a playable audio URL.
type Speech struct {
	client   *openai.Client
	model    openai.SpeechModel
	voice    openai.SpeechVoice
	store    Store
	fallback string
	timeout  time.Duration
	metrics  *metrics.Metrics
	group    fetch.Group[string]
}

// NewSpeech creates a speech synthesizer.
func NewSpeech(cfg SpeechConfig) *Speech {
	s := &Speech{
		model:    openai.SpeechModel(cfg.Model),
		voice:    openai.SpeechVoice(cfg.Voice),
		store:    cfg.Store,
		fallback: cfg.FallbackTemplate,
		timeout:  cfg.Timeout,
		metrics:  cfg.Metrics,
	}
	if s.model == "" {
		s.model = openai.TTSModel1
	}
	if s.voice == "" {
		s.voice = openai.VoiceAlloy
	}
	if s.timeout <= 0 {
		s.timeout = 20 * time.Second
	}
	if cfg.Store != nil {
		s.client = newClient(cfg.APIKey, cfg.BaseURL)
	}
	return s
}

// Enabled reports whether any speech source is configured.
func (s *Speech) Enabled() bool {
	return s.client != nil || s.fallback != ""
}

// URL returns an audio URL speaking text in lang. Identical concurrent
// requests share one synthesis, and clips already stored are reused.
func (s *Speech) URL(ctx context.Context, text string, lang language.Code) (string, error) {
	if text == "" {
		return "", domerrors.ErrInvalidInput
	}
	if s.client == nil {
		return s.fallbackURL(text, lang)
	}

	key := s.store.Key("speech", speechKey(text, lang)+".mp3")
	start := time.Now()
	u, shared, err := s.group.Do(ctx, key, func() (string, error) {
		// The first caller's cancellation must not fail the others.
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return s.synthesize(callCtx, key, text)
	})
	if shared {
		s.metrics.RecordSingleflightDedup("speech")
	}
	if err == nil {
		s.metrics.RecordExternalCall("speech", "openai", "success", time.Since(start).Seconds())
		return u, nil
	}

	s.metrics.RecordExternalCall("speech", "openai", "error", time.Since(start).Seconds())
	slog.WarnContext(ctx, "Speech synthesis failed", "lang", lang, "error", err)
	if s.fallback != "" {
		return s.fallbackURL(text, lang)
	}
	return "", err
}

func (s *Speech) synthesize(ctx context.Context, key, text string) (string, error) {
	if ok, err := s.store.Exists(ctx, key); err == nil && ok {
		return s.store.PublicURL(key), nil
	}

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          s.model,
		Input:          text,
		Voice:          s.voice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return "", fmt.Errorf("create speech: %w", err)
	}
	defer func() { _ = resp.Close() }()

	audio, err := io.ReadAll(io.LimitReader(resp, fetch.DefaultMaxBytes))
	if err != nil {
		return "", fmt.Errorf("read speech: %w", err)
	}
	if len(audio) == 0 {
		return "", errors.New("create speech: empty audio")
	}
	return s.store.Upload(ctx, key, bytes.NewReader(audio), "audio/mpeg")
}

func (s *Speech) fallbackURL(text string, lang language.Code) (string, error) {
	if s.fallback == "" {
		return "", domerrors.ErrNotConfigured
	}
	runes := []rune(text)
	if len(runes) > maxFallbackRunes {
		text = string(runes[:maxFallbackRunes])
	}
	return fmt.Sprintf(s.fallback, url.QueryEscape(text), lang.ISO6391()), nil
}

// speechKey is stable for a text and language so stored clips are reused.
func speechKey(text string, lang language.Code) string {
	sum := sha256.Sum256([]byte(lang.ISO6391() + "\x00" + text))
	return hex.EncodeToString(sum[:16])
}
