package line

import (
	"context"
	"fmt"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"

	"github.com/rtm-bot/translator-go/internal/config"
	"github.com/rtm-bot/translator-go/internal/engine"
)

// audioDurationMs is reported for synthesized clips, whose length is unknown.
const audioDurationMs = 30_000

// batch collects the messages of one turn. LINE accepts five messages per
// call and one reply per reply token, so delivery happens in flush.
type batch struct {
	api        API
	replyToken string
	msgs       []messaging_api.MessageInterface
}

// Deliver queues msg.
func (b *batch) Deliver(_ context.Context, _ string, msg engine.Message) error {
	b.msgs = append(b.msgs, toLINE(msg))
	return nil
}

// DisplayName implements engine.Profiler.
func (b *batch) DisplayName(_ context.Context, userID string) (string, error) {
	return b.api.DisplayName(userID)
}

// flush sends the first five messages with the reply token and pushes the
// rest in groups of five. It stops at the first failed call.
func (b *batch) flush(userID string) (int, error) {
	sent := 0
	for len(b.msgs) > sent {
		end := min(sent+config.LINEMaxMessagesPerReply, len(b.msgs))
		group := b.msgs[sent:end]

		var err error
		if sent == 0 && b.replyToken != "" {
			err = b.api.Reply(b.replyToken, group)
		} else {
			err = b.api.Push(userID, group)
		}
		if err != nil {
			return sent, fmt.Errorf("line: deliver messages %d-%d: %w", sent+1, end, err)
		}
		sent = end
	}
	return sent, nil
}

func toLINE(msg engine.Message) messaging_api.MessageInterface {
	if a := msg.Attachment; a != nil {
		if a.Type == engine.AttachmentAudio {
			return &messaging_api.AudioMessage{OriginalContentUrl: a.URL, Duration: audioDurationMs}
		}
		return &messaging_api.ImageMessage{OriginalContentUrl: a.URL, PreviewImageUrl: a.URL}
	}

	text := &messaging_api.TextMessage{Text: truncateRunes(msg.Text, config.LINEMaxTextMessageLength)}
	if len(msg.QuickReplies) > 0 {
		text.QuickReply = quickReply(msg.QuickReplies)
	}
	return text
}

// quickReply maps buttons to postback actions so the payload comes back as
// postback data while the label is echoed in the chat.
func quickReply(buttons []engine.QuickReply) *messaging_api.QuickReply {
	if len(buttons) > config.LINEMaxQuickReplyItems {
		buttons = buttons[:config.LINEMaxQuickReplyItems]
	}
	items := make([]messaging_api.QuickReplyItem, 0, len(buttons))
	for _, b := range buttons {
		if len(b.Payload) > config.LINEMaxPostbackDataLength {
			continue
		}
		label := truncateRunes(b.Title, config.LINEMaxActionLabel)
		items = append(items, messaging_api.QuickReplyItem{
			Action: &messaging_api.PostbackAction{
				Label:       label,
				DisplayText: label,
				Data:        b.Payload,
			},
		})
	}
	if len(items) == 0 {
		return nil
	}
	return &messaging_api.QuickReply{Items: items}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
