package command

import (
	"context"
	"io"
	"time"

	"github.com/rtm-bot/translator-go/internal/config"
	"github.com/rtm-bot/translator-go/internal/genai"
	"github.com/rtm-bot/translator-go/internal/logger"
)

// Fixed replies shared by the LLM-backed commands.
const (
	MsgQuotaExceeded     = "⏳ Vous avez atteint votre quota d'utilisation de l'IA. Réessayez un peu plus tard."
	MsgAIUnavailable     = "L'assistant IA n'est pas disponible pour le moment."
	MsgVisionUnavailable = "L'analyse d'images n'est pas disponible pour le moment."
	MsgImagesUnavailable = "La génération d'images n'est pas disponible pour le moment."
	MsgImageUnreadable   = "Je n'arrive pas à récupérer cette image. Envoyez-la de nouveau."
)

// maxImageBytes caps user images downloaded for analysis.
const maxImageBytes = 8 << 20

// Assistant is the LLM surface used by commands. *genai.Assistant implements it.
type Assistant interface {
	HasText() bool
	HasVision() bool
	Chat(ctx context.Context, question string) (string, error)
	AnalyzeImage(ctx context.Context, img genai.Image, question string) (string, error)
	DescribeForVariation(ctx context.Context, img genai.Image, instruction string) (string, error)
}

// ImageGenerator creates an image and returns its URL. *media.Images implements it.
type ImageGenerator interface {
	Enabled() bool
	Generate(ctx context.Context, prompt string) (string, error)
}

// Downloader fetches user images. *fetch.Client implements it.
type Downloader interface {
	GetBytes(ctx context.Context, url string, maxBytes int64) ([]byte, string, error)
}

// Quota limits LLM usage per user. *ratelimit.KeyedLimiter implements it.
type Quota interface {
	Allow(key string) bool
}

// Deps are the capabilities shared by the built-in commands.
type Deps struct {
	Assistant  Assistant
	Images     ImageGenerator
	Downloader Downloader
	Quota      Quota

	// CallTimeout bounds each external call.
	CallTimeout time.Duration

	Logger *logger.Logger
}

func (d Deps) withDefaults() Deps {
	if d.CallTimeout <= 0 {
		d.CallTimeout = config.ExternalCall
	}
	if d.Logger == nil {
		d.Logger = logger.NewWithWriter("error", io.Discard)
	}
	return d
}

func (d Deps) allow(userID string) bool {
	return d.Quota == nil || d.Quota.Allow(userID)
}

func (d Deps) hasText() bool {
	return d.Assistant != nil && d.Assistant.HasText()
}

func (d Deps) hasVision() bool {
	return d.Assistant != nil && d.Assistant.HasVision()
}

func (d Deps) hasImages() bool {
	return d.Images != nil && d.Images.Enabled()
}
