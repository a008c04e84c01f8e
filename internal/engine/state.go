package engine

import (
	"strings"

	"github.com/rtm-bot/translator-go/internal/command"
	"github.com/rtm-bot/translator-go/internal/language"
	"github.com/rtm-bot/translator-go/internal/session"
)

// State is the behavior selected for one turn.
type State int

// States in dispatch order.
const (
	StateGreeting State = iota
	StateGated
	StateImageReceived
	StateUnsupported
	StateIgnored
	StateStop
	StateImageCommand
	StateImagePrompt
	StateCommand
	StateLocked
	StateSpeech
	StateExplain
	StateTranslate
	StateDetect
)

var stateNames = [...]string{
	StateGreeting:      "greeting",
	StateGated:         "gated",
	StateImageReceived: "image_received",
	StateUnsupported:   "unsupported",
	StateIgnored:       "ignored",
	StateStop:          "stop",
	StateImageCommand:  "image_command",
	StateImagePrompt:   "image_prompt",
	StateCommand:       "command",
	StateLocked:        "locked",
	StateSpeech:        "speech",
	StateExplain:       "explain",
	StateTranslate:     "translate",
	StateDetect:        "detect",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Commands resolves command names. *command.Registry implements it.
type Commands interface {
	Lookup(token string) (command.Command, bool)
}

// Classify selects the state for ev. The first matching rule wins. A
// quick-reply tap is never free text, so the image and command rules only
// consider events without a payload.
func Classify(ev Event, s *session.Session, subscribed bool, commands Commands) State {
	text := strings.TrimSpace(ev.Text)

	if ev.Payload == PayloadGetStarted {
		return StateGreeting
	}
	if !subscribed {
		return StateGated
	}
	if ev.Attachment != nil {
		if ev.Attachment.Type == AttachmentImage && ev.Attachment.URL != "" {
			return StateImageReceived
		}
		if text == "" && ev.Payload == "" {
			return StateUnsupported
		}
	}
	if text == "" && ev.Payload == "" {
		return StateIgnored
	}
	if strings.EqualFold(text, stopToken) {
		return StateStop
	}

	if ev.Payload == "" {
		first, _ := command.Tokenize(text)
		_, isCommand := commands.Lookup(first)

		if s.AwaitingImage != nil {
			if isCommand {
				return StateImageCommand
			}
			return StateImagePrompt
		}
		if isCommand {
			return StateCommand
		}
		if _, ok := commands.Lookup(s.LockedCommand); ok {
			return StateLocked
		}
	}

	if text == MarkerSpeech || ev.Payload == PayloadSpeech {
		return StateSpeech
	}
	if text == MarkerExplain || ev.Payload == PayloadExplain {
		return StateExplain
	}
	if _, ok := language.Parse(ev.Payload); ok {
		return StateTranslate
	}
	if text == "" {
		return StateIgnored
	}
	return StateDetect
}
