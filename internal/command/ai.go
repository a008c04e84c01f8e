package command

import (
	"context"
	"strings"

	domerrors "github.com/rtm-bot/translator-go/internal/errors"
)

const msgAIUsage = "Posez votre question après « ai ».\nExemple : ai Comment dit-on merci en malgache ?"

// AI answers free questions with the text chain and questions about images
// with the vision chain.
type AI struct {
	deps   Deps
	vision *VisionAnalyzer
}

// NewAI creates the ai command.
func NewAI(deps Deps) *AI {
	deps = deps.withDefaults()
	return &AI{deps: deps, vision: NewVisionAnalyzer(deps)}
}

func (a *AI) Name() string        { return "ai" }
func (a *AI) Description() string { return "pose une question à l'assistant IA (ai <question>)" }

// Execute answers the question formed by args.
func (a *AI) Execute(ctx context.Context, userID string, args []string, r Replier) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return r.Text(ctx, msgAIUsage)
	}
	if !a.deps.hasText() {
		return NotRetrySafe(domerrors.NewWrapper("ai", "chat").Wrap(domerrors.ErrNotConfigured, MsgAIUnavailable))
	}
	if !a.deps.allow(userID) {
		return r.Text(ctx, MsgQuotaExceeded)
	}

	callCtx, cancel := context.WithTimeout(ctx, a.deps.CallTimeout)
	defer cancel()

	answer, err := a.deps.Assistant.Chat(callCtx, question)
	if err != nil {
		return err
	}
	return r.Text(ctx, answer)
}

// AnalyzeImage answers prompt about the image.
func (a *AI) AnalyzeImage(ctx context.Context, userID, imageURL, prompt string) (Analysis, error) {
	return a.vision.AnalyzeImage(ctx, userID, imageURL, prompt)
}
