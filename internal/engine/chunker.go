package engine

import (
	"context"
	"fmt"
	"unicode/utf8"
)

// Chunk splits text into ordered segments of at most limit runes. Splits
// fall on rune boundaries only, so concatenating the segments yields text.
func Chunk(text string, limit int) []string {
	if text == "" {
		return nil
	}
	if limit < 1 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	start, runes := 0, 0
	for i := range text {
		if runes == limit {
			chunks = append(chunks, text[start:i])
			start, runes = i, 0
		}
		runes++
	}
	return append(chunks, text[start:])
}

// deliverText sends text in chunks. Quick replies go on the last chunk only.
// Delivery stops at the first failed chunk.
func (e *Engine) deliverText(ctx context.Context, d Deliverer, ev Event, text string, quickReplies []QuickReply) error {
	chunks := Chunk(text, e.chunkLimit)
	for i, chunk := range chunks {
		msg := Message{Text: chunk}
		if i == len(chunks)-1 {
			msg.QuickReplies = quickReplies
		}
		if err := d.Deliver(ctx, ev.UserID, msg); err != nil {
			e.metrics.RecordDeliveryError(ev.Channel)
			return fmt.Errorf("deliver chunk %d/%d: %w", i+1, len(chunks), err)
		}
		e.metrics.RecordDelivery(ev.Channel, "text")
	}
	return nil
}

func (e *Engine) deliverAttachment(ctx context.Context, d Deliverer, ev Event, kind, url string) error {
	if err := d.Deliver(ctx, ev.UserID, Message{Attachment: &Attachment{Type: kind, URL: url}}); err != nil {
		e.metrics.RecordDeliveryError(ev.Channel)
		return fmt.Errorf("deliver %s: %w", kind, err)
	}
	e.metrics.RecordDelivery(ev.Channel, kind)
	return nil
}
