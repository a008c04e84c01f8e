// Package subscription gates paid behaviors behind activation codes.
package subscription

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rtm-bot/translator-go/internal/ctxutil"
	"github.com/rtm-bot/translator-go/internal/logger"
	"github.com/rtm-bot/translator-go/internal/metrics"
	"github.com/rtm-bot/translator-go/internal/session"
	"github.com/rtm-bot/translator-go/internal/storage"
)

// DefaultPeriod is the subscription window granted by one activation.
const DefaultPeriod = 30 * 24 * time.Hour

// Fixed replies of the gate path.
const (
	MsgInstructions = "🔒 Ce service est réservé aux abonnés.\n\nEnvoyez votre code d'activation pour débloquer la traduction."
	msgActivated    = "✅ Abonnement activé ! Vous pouvez utiliser le bot jusqu'au %s.\n\nEnvoyez un texte pour commencer."
)

// Ledger records redemptions. *storage.DB implements it.
type Ledger interface {
	RecordActivation(ctx context.Context, a storage.Activation) error
	LatestExpiry(ctx context.Context, userID string, now time.Time) (time.Time, bool, error)
}

// Config configures a Gate.
type Config struct {
	Codes  []string
	Period time.Duration

	// Ledger is optional. When Restore is set, Hydrate reads expiries back from it.
	Ledger  Ledger
	Restore bool

	Metrics *metrics.Metrics
	Logger  *logger.Logger

	// Now overrides the clock (tests)
	Now func() time.Time
}

// Gate decides whether a session may use gated behaviors and handles
// activation codes for those that may not.
type Gate struct {
	codes   map[string]struct{}
	period  time.Duration
	ledger  Ledger
	restore bool
	metrics *metrics.Metrics
	logger  *logger.Logger
	now     func() time.Time
}

// New creates a gate. Codes are matched exactly; empty codes are ignored.
func New(cfg Config) *Gate {
	codes := make(map[string]struct{}, len(cfg.Codes))
	for _, c := range cfg.Codes {
		if c != "" {
			codes[c] = struct{}{}
		}
	}
	if cfg.Period <= 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewWithWriter("error", io.Discard)
	}
	return &Gate{
		codes:   codes,
		period:  cfg.Period,
		ledger:  cfg.Ledger,
		restore: cfg.Restore && cfg.Ledger != nil,
		metrics: cfg.Metrics,
		logger:  log.WithModule("subscription"),
		now:     cfg.Now,
	}
}

// IsSubscribed reports whether s holds an unexpired subscription.
// It never mutates s; a past expiry simply reads as unsubscribed.
func (g *Gate) IsSubscribed(s *session.Session) bool {
	return s.SubscribedAt(g.now())
}

// Handle processes a message from an unsubscribed user. The raw text is
// compared against the allow-list without trimming or case folding. It
// returns the reply and whether a subscription was activated.
func (g *Gate) Handle(ctx context.Context, userID string, s *session.Session, text string) (string, bool) {
	if _, ok := g.codes[text]; !ok {
		g.metrics.RecordActivation("rejected")
		return MsgInstructions, false
	}

	now := g.now()
	expires := now.Add(g.period)
	s.SubscriptionExpiresAt = expires
	g.metrics.RecordActivation("activated")

	if g.ledger != nil {
		err := g.ledger.RecordActivation(ctx, storage.Activation{
			UserID:      userID,
			Channel:     ctxutil.GetChannel(ctx),
			Code:        text,
			ActivatedAt: now,
			ExpiresAt:   expires,
		})
		if err != nil {
			g.logger.WithError(err).WarnContext(ctx, "Failed to record activation")
		}
	}

	return fmt.Sprintf(msgActivated, expires.Format("02/01/2006")), true
}

// Hydrate restores the subscription of s from the ledger the first time the
// session is seen. It is a no-op unless restore is enabled.
func (g *Gate) Hydrate(ctx context.Context, userID string, s *session.Session) {
	if s.Hydrated {
		return
	}
	s.Hydrated = true
	if !g.restore {
		return
	}

	expiry, ok, err := g.ledger.LatestExpiry(ctx, userID, g.now())
	if err != nil {
		g.logger.WithError(err).WarnContext(ctx, "Failed to restore subscription")
		return
	}
	if ok && expiry.After(s.SubscriptionExpiresAt) {
		s.SubscriptionExpiresAt = expiry
		g.metrics.RecordActivation("restored")
	}
}
