// Package session holds the per-user conversation state and the keyed store
// that serializes turns for the same user.
package session

import (
	"time"

	"github.com/rtm-bot/translator-go/internal/language"
)

// Translation is the most recent successful translation of a user.
type Translation struct {
	Text   string
	Target language.Code
}

// ImagePrompt records an image waiting for the user's question.
type ImagePrompt struct {
	ImageURL string
}

// Session is the conversation state of one user. It is only read or written
// while the owning entry lock is held (see Store.WithSession).
type Session struct {
	// PendingText is the last free text awaiting a translation target.
	PendingText string
	// DetectedLanguage is the language inferred for PendingText.
	DetectedLanguage language.Code

	LastTranslation *Translation
	AwaitingImage   *ImagePrompt

	// LockedCommand is the command that owns subsequent free-text turns.
	LockedCommand string

	// SubscriptionExpiresAt is zero when the user never activated a code.
	SubscriptionExpiresAt time.Time

	// Hydrated is set once the ledger restore has been attempted.
	Hydrated bool
}

// SubscribedAt reports whether the subscription is active at now.
// An expiry equal to now is already expired.
func (s *Session) SubscribedAt(now time.Time) bool {
	return !s.SubscriptionExpiresAt.IsZero() && s.SubscriptionExpiresAt.After(now)
}

// HasPendingText reports whether free text is waiting for a target language.
func (s *Session) HasPendingText() bool {
	return s.PendingText != ""
}

// ClearLock drops the command lock and any armed image.
func (s *Session) ClearLock() {
	s.LockedCommand = ""
	s.AwaitingImage = nil
}
