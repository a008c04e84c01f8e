// Package engine is the conversation state machine. Each inbound event runs
// as one turn under the user's session lock: the turn is classified against
// the session, dispatched to exactly one behavior, and its replies are
// delivered through the channel's Deliverer.
package engine

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rtm-bot/translator-go/internal/command"
	"github.com/rtm-bot/translator-go/internal/config"
	"github.com/rtm-bot/translator-go/internal/ctxutil"
	domerrors "github.com/rtm-bot/translator-go/internal/errors"
	"github.com/rtm-bot/translator-go/internal/language"
	"github.com/rtm-bot/translator-go/internal/logger"
	"github.com/rtm-bot/translator-go/internal/metrics"
	"github.com/rtm-bot/translator-go/internal/sentry"
	"github.com/rtm-bot/translator-go/internal/session"
)

// Sessions runs fn with exclusive access to a user's session. *session.Store implements it.
type Sessions interface {
	WithSession(ctx context.Context, userID string, fn func(*session.Session) error) error
}

// Gate is the subscription gate. *subscription.Gate implements it.
type Gate interface {
	IsSubscribed(s *session.Session) bool
	Handle(ctx context.Context, userID string, s *session.Session, text string) (string, bool)
	Hydrate(ctx context.Context, userID string, s *session.Session)
}

// Facade is the language capability surface. *translate.Facade implements it.
type Facade interface {
	DetectLanguage(ctx context.Context, text string) language.Code
	Translate(ctx context.Context, text string, src, dst language.Code) (string, bool)
	Explain(ctx context.Context, text string) (string, bool)
	SynthesizeSpeechURL(ctx context.Context, text string, lang language.Code) (string, bool)
}

// Config configures an Engine.
type Config struct {
	Sessions Sessions
	Gate     Gate
	Facade   Facade
	Commands Commands

	// DefaultAnalyzer answers image prompts when the locked command has no analyzer.
	DefaultAnalyzer command.ImageAnalyzer

	ChunkLimit    int
	FailurePolicy string // config.FailurePolicyKeep or config.FailurePolicyRelease
	TurnTimeout   time.Duration

	Metrics *metrics.Metrics
	Logger  *logger.Logger
}

// Engine routes inbound events.
type Engine struct {
	sessions Sessions
	gate     Gate
	facade   Facade
	commands Commands
	analyzer command.ImageAnalyzer

	chunkLimit    int
	releaseOnFail bool
	turnTimeout   time.Duration

	metrics *metrics.Metrics
	logger  *logger.Logger
}

// New creates an engine.
func New(cfg Config) *Engine {
	if cfg.ChunkLimit < 1 {
		cfg.ChunkLimit = config.MessengerMaxTextLength
	}
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = config.WebhookProcessing
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewWithWriter("error", io.Discard)
	}
	return &Engine{
		sessions:      cfg.Sessions,
		gate:          cfg.Gate,
		facade:        cfg.Facade,
		commands:      cfg.Commands,
		analyzer:      cfg.DefaultAnalyzer,
		chunkLimit:    cfg.ChunkLimit,
		releaseOnFail: cfg.FailurePolicy == config.FailurePolicyRelease,
		turnTimeout:   cfg.TurnTimeout,
		metrics:       cfg.Metrics,
		logger:        log.WithModule("engine"),
	}
}

// Handle runs one turn for ev and delivers its replies through d. Events
// without a sender are dropped with ErrMissingSender. Every other failure
// is answered inside the turn; the returned error only reports delivery or
// session acquisition problems.
func (e *Engine) Handle(ctx context.Context, ev Event, d Deliverer) error {
	if ev.UserID == "" {
		e.metrics.RecordEventDropped("no_sender")
		e.logger.WarnContext(ctx, "Dropping event without sender", "channel", ev.Channel)
		return domerrors.ErrMissingSender
	}

	ctx = ctxutil.WithUserID(ctx, ev.UserID)
	if ev.Channel != "" {
		ctx = ctxutil.WithChannel(ctx, ev.Channel)
	}
	ctx, cancel := context.WithTimeout(ctx, e.turnTimeout)
	defer cancel()

	start := time.Now()
	state := StateIgnored
	err := e.sessions.WithSession(ctx, ev.UserID, func(s *session.Session) error {
		e.gate.Hydrate(ctx, ev.UserID, s)
		state = Classify(ev, s, e.gate.IsSubscribed(s), e.commands)
		return e.dispatch(ctx, state, ev, s, d)
	})

	status := "success"
	if err != nil {
		status = "error"
		e.logger.WithError(err).WarnContext(ctx, "Turn failed", "state", state.String())
		sentry.CaptureExceptionWithContext(ctx, err)
	}
	e.metrics.RecordTurn(state.String(), status, time.Since(start).Seconds())
	return err
}

func (e *Engine) dispatch(ctx context.Context, state State, ev Event, s *session.Session, d Deliverer) error {
	switch state {
	case StateGreeting:
		return e.greet(ctx, ev, s, d)
	case StateGated:
		reply, _ := e.gate.Handle(ctx, ev.UserID, s, ev.Text)
		return e.deliverText(ctx, d, ev, reply, nil)
	case StateImageReceived:
		s.AwaitingImage = &session.ImagePrompt{ImageURL: ev.Attachment.URL}
		return e.deliverText(ctx, d, ev, msgImagePrompt, nil)
	case StateUnsupported:
		return e.deliverText(ctx, d, ev, msgUnsupported, nil)
	case StateIgnored:
		return nil
	case StateStop:
		s.ClearLock()
		return e.deliverText(ctx, d, ev, msgStopped, nil)
	case StateImageCommand:
		s.AwaitingImage = nil
		first, args := command.Tokenize(ev.Text)
		cmd, _ := e.commands.Lookup(first)
		return e.runCommand(ctx, ev, s, d, cmd, args)
	case StateImagePrompt:
		return e.analyzeImage(ctx, ev, s, d)
	case StateCommand:
		first, args := command.Tokenize(ev.Text)
		cmd, _ := e.commands.Lookup(first)
		if command.Locks(cmd) {
			s.LockedCommand = cmd.Name()
		}
		return e.runCommand(ctx, ev, s, d, cmd, args)
	case StateLocked:
		cmd, _ := e.commands.Lookup(s.LockedCommand)
		return e.runCommand(ctx, ev, s, d, cmd, strings.Fields(ev.Text))
	case StateSpeech:
		return e.speak(ctx, ev, s, d)
	case StateExplain:
		return e.explain(ctx, ev, s, d)
	case StateTranslate:
		return e.translate(ctx, ev, s, d)
	case StateDetect:
		return e.detect(ctx, ev, s, d)
	default:
		return fmt.Errorf("unhandled state %v", state)
	}
}
