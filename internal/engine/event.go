package engine

import "context"

// Reserved payloads and markers.
const (
	PayloadGetStarted = "GET_STARTED"
	PayloadSpeech     = "MENU_PAYLOAD"
	PayloadExplain    = "EXPLAIN_PAYLOAD"

	MarkerSpeech  = "🔊"
	MarkerExplain = "❓"

	stopToken = "stop"
)

// Attachment types.
const (
	AttachmentImage = "image"
	AttachmentAudio = "audio"
)

// Attachment is an inbound or outbound media reference.
type Attachment struct {
	Type string
	URL  string
}

// Event is one inbound message normalized by a channel adapter.
type Event struct {
	Channel string
	UserID  string
	Text    string
	// Payload carries a quick-reply or postback payload.
	Payload    string
	Attachment *Attachment
}

// QuickReply is a button offered under a message.
type QuickReply struct {
	Title   string
	Payload string
}

// Message is one outbound message: text (optionally with quick replies) or
// an attachment.
type Message struct {
	Text         string
	QuickReplies []QuickReply
	Attachment   *Attachment
}

// Deliverer sends messages to a user on one channel.
type Deliverer interface {
	Deliver(ctx context.Context, userID string, msg Message) error
}

// Profiler is optionally implemented by a Deliverer that can look up the
// user's display name for the greeting.
type Profiler interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}
