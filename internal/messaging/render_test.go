package messaging

import (
	"testing"

	"github.com/smartgov/exgratia/internal/models"
	"github.com/smartgov/exgratia/internal/views"
	"github.com/stretchr/testify/assert"
)

func TestKeypadRoundTrip(t *testing.T) {
	for _, id := range []models.ActionID{models.ActionNorms, models.ActionApply, models.ActionStatus, models.ActionHelp, models.ActionBack} {
		digit, ok := KeypadDigit(id)
		assert.True(t, ok, "action %s", id)
		got, ok := ParseKeypad(" " + digit + "\n")
		assert.True(t, ok)
		assert.Equal(t, id, got)
	}
}

func TestParseKeypadRejectsOtherText(t *testing.T) {
	for _, text := range []string{"", "5", "12", "one", "3 please"} {
		_, ok := ParseKeypad(text)
		assert.False(t, ok, "text %q", text)
	}
}

func TestRenderTextWelcome(t *testing.T) {
	v := views.Welcome()
	out := RenderText(v)

	assert.Contains(t, out, v.Text)
	assert.Contains(t, out, "Reply with a number:")
	for _, a := range v.Actions {
		digit, _ := KeypadDigit(a.ID)
		assert.Contains(t, out, digit+". "+a.Label)
	}
}

func TestRenderTextWithoutActions(t *testing.T) {
	v := models.View{Kind: models.ViewLookupError, Text: "Please try again later."}
	assert.Equal(t, "Please try again later.", RenderText(v))
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text   string
		want   string
		wantOK bool
	}{
		{"/start", "start", true},
		{" /HELP ", "help", true},
		{"/start@ExGratiaBot", "start", true},
		{"/status 23LDM786", "status", true},
		{"/", "", false},
		{"start", "", false},
		{"/@bot", "", false},
		{"/ start", "", false},
		{"/\tstatus please", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseCommand(tt.text)
		assert.Equal(t, tt.wantOK, ok, "text %q", tt.text)
		assert.Equal(t, tt.want, got, "text %q", tt.text)
	}
}

func TestParseTextInbound(t *testing.T) {
	ev := ParseTextInbound("919800000000", "/start")
	assert.Equal(t, models.EventCommand, ev.Kind)
	assert.Equal(t, models.CommandStart, ev.Payload)

	ev = ParseTextInbound("919800000000", "/ start over please")
	assert.Equal(t, models.EventText, ev.Kind)

	ev = ParseTextInbound("919800000000", "3")
	assert.Equal(t, models.EventCallback, ev.Kind)
	assert.Equal(t, string(models.ActionStatus), ev.Payload)

	ev = ParseTextInbound("919800000000", "23LDM786")
	assert.Equal(t, models.EventText, ev.Kind)
	assert.Equal(t, "23LDM786", ev.Payload)
	assert.Equal(t, "919800000000", ev.ConversationID)
}

func TestCanonicalPhone(t *testing.T) {
	got, err := canonicalPhone("+91 98000-00000")
	assert.NoError(t, err)
	assert.Equal(t, "919800000000", got)

	_, err = canonicalPhone("")
	assert.ErrorIs(t, err, ErrEmptyRecipient)

	_, err = canonicalPhone("+12")
	assert.ErrorIs(t, err, ErrInvalidPhone)
}
