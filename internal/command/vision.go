package command

import (
	"context"
	"strings"

	"github.com/rtm-bot/translator-go/internal/config"
	domerrors "github.com/rtm-bot/translator-go/internal/errors"
	"github.com/rtm-bot/translator-go/internal/genai"
)

// VisionAnalyzer answers questions about an image with the vision chain.
// The engine uses it when the locked command has no analyzer of its own.
type VisionAnalyzer struct {
	deps Deps
}

// NewVisionAnalyzer creates the default image analyzer.
func NewVisionAnalyzer(deps Deps) *VisionAnalyzer {
	return &VisionAnalyzer{deps: deps.withDefaults()}
}

// AnalyzeImage answers prompt about the image at imageURL.
func (v *VisionAnalyzer) AnalyzeImage(ctx context.Context, userID, imageURL, prompt string) (Analysis, error) {
	wrap := domerrors.NewWrapper("vision", "analyze")
	if !v.deps.hasVision() {
		return Analysis{}, NotRetrySafe(wrap.Wrap(domerrors.ErrNotConfigured, MsgVisionUnavailable))
	}
	if !v.deps.allow(userID) {
		return Analysis{Text: MsgQuotaExceeded}, nil
	}

	img := loadImage(ctx, v.deps, imageURL)
	callCtx, cancel := context.WithTimeout(ctx, v.deps.CallTimeout)
	defer cancel()

	text, err := v.deps.Assistant.AnalyzeImage(callCtx, img, strings.TrimSpace(prompt))
	if err != nil {
		return Analysis{}, err
	}
	return Analysis{Text: text}, nil
}

// loadImage downloads imageURL so providers that need inline bytes can use
// it. On failure only the URL is passed on.
func loadImage(ctx context.Context, deps Deps, imageURL string) genai.Image {
	img := genai.Image{URL: imageURL}
	if deps.Downloader == nil {
		return img
	}

	dlCtx, cancel := context.WithTimeout(ctx, config.ImageDownload)
	defer cancel()

	data, contentType, err := deps.Downloader.GetBytes(dlCtx, imageURL, maxImageBytes)
	if err != nil {
		deps.Logger.WithError(err).WarnContext(ctx, "Image download failed, passing URL only")
		return img
	}
	img.Data = data
	img.MIMEType = contentType
	return img
}
