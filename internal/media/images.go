package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	domerrors "github.com/rtm-bot/translator-go/internal/errors"
	"github.com/rtm-bot/translator-go/internal/fetch"
	"github.com/rtm-bot/translator-go/internal/metrics"
)

// ImagesConfig configures Images.
type ImagesConfig struct {
	APIKey  string
	BaseURL string
	Model   string // "dall-e-3"
	Size    string // "1024x1024"

	// Store, when set, re-hosts generated images since provider URLs expire.
	Store Store
	// HTTP downloads generated images before re-hosting.
	HTTP *fetch.Client

	Metrics *metrics.Metrics
}

// Images generates pictures from prompts.
type Images struct {
	client  *openai.Client
	model   string
	size    string
	store   Store
	http    *fetch.Client
	metrics *metrics.Metrics
}

// NewImages creates an image generator.
func NewImages(cfg ImagesConfig) *Images {
	g := &Images{
		client:  newClient(cfg.APIKey, cfg.BaseURL),
		model:   cfg.Model,
		size:    cfg.Size,
		store:   cfg.Store,
		http:    cfg.HTTP,
		metrics: cfg.Metrics,
	}
	if g.model == "" {
		g.model = openai.CreateImageModelDallE3
	}
	if g.size == "" {
		g.size = openai.CreateImageSize1024x1024
	}
	return g
}

// Enabled reports whether image generation is configured.
func (g *Images) Enabled() bool {
	return g != nil && g.client != nil
}

// Generate returns the URL of one image generated from prompt.
func (g *Images) Generate(ctx context.Context, prompt string) (string, error) {
	if !g.Enabled() {
		return "", domerrors.ErrNotConfigured
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", domerrors.ErrInvalidInput
	}

	start := time.Now()
	resp, err := g.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          g.model,
		N:              1,
		Size:           g.size,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		g.metrics.RecordExternalCall("image", "openai", "error", time.Since(start).Seconds())
		return "", fmt.Errorf("create image: %w", err)
	}
	g.metrics.RecordExternalCall("image", "openai", "success", time.Since(start).Seconds())

	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", errors.New("create image: empty response")
	}
	return g.rehost(ctx, resp.Data[0].URL), nil
}

// rehost copies a provider URL into the store, keeping the provider URL
// when that is not possible.
func (g *Images) rehost(ctx context.Context, providerURL string) string {
	if g.store == nil || g.http == nil {
		return providerURL
	}
	data, contentType, err := g.http.GetBytes(ctx, providerURL, fetch.DefaultMaxBytes)
	if err != nil {
		return providerURL
	}
	if contentType == "" {
		contentType = "image/png"
	}
	u, err := g.store.Upload(ctx, g.store.NewKey("images", ".png"), bytes.NewReader(data), contentType)
	if err != nil {
		return providerURL
	}
	return u
}
