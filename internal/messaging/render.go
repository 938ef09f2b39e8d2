package messaging

import (
	"strings"
	"unicode"

	"github.com/smartgov/exgratia/internal/models"
)

// keypad assigns each action a fixed digit so replies mean the same thing
// whichever view they answer.
var keypad = []struct {
	digit  string
	action models.ActionID
}{
	{"1", models.ActionNorms},
	{"2", models.ActionApply},
	{"3", models.ActionStatus},
	{"4", models.ActionHelp},
	{"0", models.ActionBack},
}

// KeypadDigit returns the digit bound to an action.
func KeypadDigit(id models.ActionID) (string, bool) {
	for _, k := range keypad {
		if k.action == id {
			return k.digit, true
		}
	}
	return "", false
}

// ParseKeypad maps a bare keypad reply back to its action.
func ParseKeypad(text string) (models.ActionID, bool) {
	text = strings.TrimSpace(text)
	for _, k := range keypad {
		if k.digit == text {
			return k.action, true
		}
	}
	return "", false
}

// RenderText renders a view for text-only transports, listing its actions
// as a numbered keypad below the text.
func RenderText(view models.View) string {
	var b strings.Builder
	b.WriteString(view.Text)
	first := true
	for _, a := range view.Actions {
		digit, ok := KeypadDigit(a.ID)
		if !ok {
			continue
		}
		if first {
			b.WriteString("\n\nReply with a number:")
			first = false
		}
		b.WriteString("\n" + digit + ". " + a.Label)
	}
	return b.String()
}

// ParseCommand recognises "/name" messages, dropping any "@bot" suffix.
func ParseCommand(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") || len(text) < 2 || unicode.IsSpace(rune(text[1])) {
		return "", false
	}
	name := strings.Fields(text[1:])[0]
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return strings.ToLower(name), name != ""
}

// ParseTextInbound classifies an inbound message of a text-only transport:
// commands, keypad digits, or free text.
func ParseTextInbound(conversationID, text string) models.Event {
	if cmd, ok := ParseCommand(text); ok {
		return models.CommandEvent(conversationID, cmd)
	}
	if action, ok := ParseKeypad(text); ok {
		return models.CallbackEvent(conversationID, action)
	}
	return models.TextEvent(conversationID, text)
}
