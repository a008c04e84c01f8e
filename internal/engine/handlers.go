package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rtm-bot/translator-go/internal/command"
	domerrors "github.com/rtm-bot/translator-go/internal/errors"
	"github.com/rtm-bot/translator-go/internal/language"
	"github.com/rtm-bot/translator-go/internal/session"
	"github.com/rtm-bot/translator-go/internal/subscription"
)

func (e *Engine) greet(ctx context.Context, ev Event, s *session.Session, d Deliverer) error {
	name := ""
	if p, ok := d.(Profiler); ok {
		n, err := p.DisplayName(ctx, ev.UserID)
		if err != nil {
			e.logger.WithError(err).DebugContext(ctx, "Profile lookup failed")
		} else if n != "" {
			name = ", " + n
		}
	}

	text := fmt.Sprintf(msgWelcome, name)
	if !e.gate.IsSubscribed(s) {
		text += "\n\n" + subscription.MsgInstructions
	}
	return e.deliverText(ctx, d, ev, text, nil)
}

func (e *Engine) detect(ctx context.Context, ev Event, s *session.Session, d Deliverer) error {
	text := strings.TrimSpace(ev.Text)
	lang := e.facade.DetectLanguage(ctx, text)
	s.PendingText = text
	s.DetectedLanguage = lang
	return e.deliverText(ctx, d, ev, msgChooseLanguage, languageMenu(lang))
}

func (e *Engine) translate(ctx context.Context, ev Event, s *session.Session, d Deliverer) error {
	target, _ := language.Parse(ev.Payload)
	if !s.HasPendingText() {
		return e.deliverText(ctx, d, ev, msgNoPendingText, nil)
	}

	source := s.DetectedLanguage
	if source == target {
		return e.deliverText(ctx, d, ev, fmt.Sprintf(msgSameLanguage, source.Name()), languageMenu(source))
	}

	out, ok := e.facade.Translate(ctx, s.PendingText, source, target)
	if !ok {
		return e.deliverText(ctx, d, ev, out, nil)
	}
	s.LastTranslation = &session.Translation{Text: out, Target: target}
	return e.deliverText(ctx, d, ev, fmt.Sprintf(msgTranslation, source, target, out), []QuickReply{
		{Title: MarkerSpeech, Payload: PayloadSpeech},
		{Title: MarkerExplain, Payload: PayloadExplain},
	})
}

func (e *Engine) speak(ctx context.Context, ev Event, s *session.Session, d Deliverer) error {
	if s.LastTranslation == nil {
		return e.deliverText(ctx, d, ev, msgNoTranslation, nil)
	}
	url, ok := e.facade.SynthesizeSpeechURL(ctx, s.LastTranslation.Text, s.LastTranslation.Target)
	if !ok {
		return e.deliverText(ctx, d, ev, url, nil)
	}
	return e.deliverAttachment(ctx, d, ev, AttachmentAudio, url)
}

func (e *Engine) explain(ctx context.Context, ev Event, s *session.Session, d Deliverer) error {
	if !s.HasPendingText() {
		return e.deliverText(ctx, d, ev, msgNothingToExplain, nil)
	}
	out, _ := e.facade.Explain(ctx, s.PendingText)
	return e.deliverText(ctx, d, ev, out, nil)
}

// runCommand executes cmd. On failure the user gets the error's message or a
// generic one, and the lock is released under the release policy or when
// the error is not retry-safe.
func (e *Engine) runCommand(ctx context.Context, ev Event, s *session.Session, d Deliverer, cmd command.Command, args []string) error {
	name := cmd.Name()
	r := &turnReplier{engine: e, deliverer: d, event: ev}

	start := time.Now()
	err := cmd.Execute(ctx, ev.UserID, args, r)
	if err == nil {
		e.metrics.RecordCommand(name, "success")
		return nil
	}
	if r.err != nil {
		// Delivery already failed; nothing more can reach the user.
		e.metrics.RecordCommand(name, "delivery_error")
		return r.err
	}

	released := e.releaseOnFail || command.IsNotRetrySafe(err)
	if released && strings.EqualFold(s.LockedCommand, name) {
		s.LockedCommand = ""
	}
	e.metrics.RecordCommand(name, "error")
	e.logger.WithError(err).WarnContext(ctx, "Command failed",
		"command", name, "lock_released", released, "duration_ms", time.Since(start).Milliseconds())

	return e.deliverText(ctx, d, ev, domerrors.UserMessageOr(err, msgCommandFailed), nil)
}

func (e *Engine) analyzeImage(ctx context.Context, ev Event, s *session.Session, d Deliverer) error {
	analyzer, name := e.analyzer, "vision"
	if cmd, ok := e.commands.Lookup(s.LockedCommand); ok {
		if a, ok := cmd.(command.ImageAnalyzer); ok {
			analyzer, name = a, cmd.Name()
		}
	}
	if analyzer == nil {
		return e.deliverText(ctx, d, ev, msgAnalysisFailed, nil)
	}

	result, err := analyzer.AnalyzeImage(ctx, ev.UserID, s.AwaitingImage.ImageURL, strings.TrimSpace(ev.Text))
	if err != nil {
		e.metrics.RecordCommand(name+"_image", "error")
		e.logger.WithError(err).WarnContext(ctx, "Image analysis failed", "analyzer", name)
		return e.deliverText(ctx, d, ev, domerrors.UserMessageOr(err, msgAnalysisFailed), nil)
	}
	if len(result.ImageURLs) == 0 && strings.TrimSpace(result.Text) == "" {
		e.metrics.RecordCommand(name+"_image", "empty")
		e.logger.WarnContext(ctx, "Image analysis returned nothing", "analyzer", name)
		return e.deliverText(ctx, d, ev, msgAnalysisFailed, nil)
	}
	e.metrics.RecordCommand(name+"_image", "success")

	if len(result.ImageURLs) == 0 {
		return e.deliverText(ctx, d, ev, result.Text, nil)
	}
	for _, url := range result.ImageURLs {
		if err := e.deliverAttachment(ctx, d, ev, AttachmentImage, url); err != nil {
			return err
		}
	}
	return e.deliverText(ctx, d, ev, msgImagesDelivered, nil)
}

// languageMenu offers every supported language except exclude.
func languageMenu(exclude language.Code) []QuickReply {
	others := language.Others(exclude)
	menu := make([]QuickReply, 0, len(others))
	for _, c := range others {
		menu = append(menu, QuickReply{Title: string(c), Payload: string(c)})
	}
	return menu
}

// turnReplier is the command.Replier for one turn.
type turnReplier struct {
	engine    *Engine
	deliverer Deliverer
	event     Event
	err       error
}

func (r *turnReplier) Text(ctx context.Context, text string) error {
	err := r.engine.deliverText(ctx, r.deliverer, r.event, text, nil)
	if err != nil && r.err == nil {
		r.err = err
	}
	return err
}

func (r *turnReplier) Image(ctx context.Context, url string) error {
	err := r.engine.deliverAttachment(ctx, r.deliverer, r.event, AttachmentImage, url)
	if err != nil && r.err == nil {
		r.err = err
	}
	return err
}
