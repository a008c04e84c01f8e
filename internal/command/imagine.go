package command

import (
	"context"
	"strings"

	domerrors "github.com/rtm-bot/translator-go/internal/errors"
)

const msgImagineUsage = "Décrivez l'image à créer après « imagine ».\nExemple : imagine un baobab au coucher du soleil"

// Imagine generates images from a prompt. On a received image it generates
// a variation guided by the prompt.
type Imagine struct {
	deps Deps
}

// NewImagine creates the imagine command.
func NewImagine(deps Deps) *Imagine {
	return &Imagine{deps: deps.withDefaults()}
}

func (c *Imagine) Name() string        { return "imagine" }
func (c *Imagine) Description() string { return "génère une image (imagine <description>)" }

// Execute generates one image from args and sends it.
func (c *Imagine) Execute(ctx context.Context, userID string, args []string, r Replier) error {
	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt == "" {
		return r.Text(ctx, msgImagineUsage)
	}
	if !c.deps.hasImages() {
		return NotRetrySafe(domerrors.NewWrapper("imagine", "generate").Wrap(domerrors.ErrNotConfigured, MsgImagesUnavailable))
	}
	if !c.deps.allow(userID) {
		return r.Text(ctx, MsgQuotaExceeded)
	}

	url, err := c.generate(ctx, prompt)
	if err != nil {
		return err
	}
	return r.Image(ctx, url)
}

// AnalyzeImage describes the image with the vision chain, applies prompt to
// the description and generates the variation.
func (c *Imagine) AnalyzeImage(ctx context.Context, userID, imageURL, prompt string) (Analysis, error) {
	wrap := domerrors.NewWrapper("imagine", "variation")
	if !c.deps.hasImages() {
		return Analysis{}, NotRetrySafe(wrap.Wrap(domerrors.ErrNotConfigured, MsgImagesUnavailable))
	}
	if !c.deps.hasVision() {
		return Analysis{}, NotRetrySafe(wrap.Wrap(domerrors.ErrNotConfigured, MsgVisionUnavailable))
	}
	if !c.deps.allow(userID) {
		return Analysis{Text: MsgQuotaExceeded}, nil
	}

	img := loadImage(ctx, c.deps, imageURL)
	descCtx, cancel := context.WithTimeout(ctx, c.deps.CallTimeout)
	description, err := c.deps.Assistant.DescribeForVariation(descCtx, img, strings.TrimSpace(prompt))
	cancel()
	if err != nil {
		return Analysis{}, err
	}

	url, err := c.generate(ctx, description)
	if err != nil {
		return Analysis{}, err
	}
	return Analysis{ImageURLs: []string{url}}, nil
}

func (c *Imagine) generate(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.deps.CallTimeout)
	defer cancel()
	return c.deps.Images.Generate(callCtx, prompt)
}
