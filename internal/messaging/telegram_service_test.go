package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/smartgov/exgratia/internal/models"
	"github.com/smartgov/exgratia/internal/views"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type sentTelegram struct {
	chatID string
	text   string
	markup *tgbotapi.InlineKeyboardMarkup
}

// fakeBot serves scripted getUpdates batches, then blocks until cancelled.
type fakeBot struct {
	mu       sync.Mutex
	batches  [][]tgbotapi.Update
	failures int
	offsets  []int
	answered []string
	sent     []sentTelegram
}

func (f *fakeBot) GetUpdates(ctx context.Context, offset int) ([]tgbotapi.Update, error) {
	f.mu.Lock()
	f.offsets = append(f.offsets, offset)
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return nil, errors.New("bad gateway")
	}
	if len(f.batches) > 0 {
		b := f.batches[0]
		f.batches = f.batches[1:]
		f.mu.Unlock()
		return b, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *fakeBot) SendMessage(_ context.Context, chatID, text string, markup *tgbotapi.InlineKeyboardMarkup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentTelegram{chatID, text, markup})
	return nil
}

func (f *fakeBot) AnswerCallbackQuery(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, id)
	return nil
}

func (f *fakeBot) snapshot() (offsets []int, answered []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.offsets...), append([]string(nil), f.answered...)
}

func TestTelegramServicePollsUpdates(t *testing.T) {
	bot := &fakeBot{
		failures: 1,
		batches: [][]tgbotapi.Update{
			{
				{UpdateID: 7, Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 42}, Text: "/start@ExGratiaBot", Date: 1700000000}},
				{UpdateID: 8, CallbackQuery: &tgbotapi.CallbackQuery{ID: "cb-1", From: &tgbotapi.User{ID: 42}, Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 42}}, Data: "option_3"}},
			},
			{
				{UpdateID: 9, Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 42}, Text: "23LDM786"}},
				{UpdateID: 10},
				{UpdateID: 11, CallbackQuery: &tgbotapi.CallbackQuery{ID: "cb-2", Data: "option_3"}},
			},
		},
	}
	svc := NewTelegramService(bot)
	svc.retryDelay = 10 * time.Millisecond
	require.NoError(t, svc.Start(context.Background()))

	ev := receive(t, svc.Events())
	assert.Equal(t, models.EventCommand, ev.Kind)
	assert.Equal(t, models.CommandStart, ev.Payload)
	assert.Equal(t, "42", ev.ConversationID)
	assert.Equal(t, "tg-7", ev.MessageID)
	assert.True(t, ev.Time.Equal(time.Unix(1700000000, 0)))

	ev = receive(t, svc.Events())
	assert.Equal(t, models.EventCallback, ev.Kind)
	assert.Equal(t, string(models.ActionStatus), ev.Payload)

	ev = receive(t, svc.Events())
	assert.Equal(t, models.EventText, ev.Kind)
	assert.Equal(t, "23LDM786", ev.Payload)

	require.NoError(t, svc.Stop())
	_, ok := <-svc.Events()
	assert.False(t, ok)

	offsets, answered := bot.snapshot()
	require.GreaterOrEqual(t, len(offsets), 3)
	assert.Equal(t, []int{0, 0, 9}, offsets[:3])
	assert.Equal(t, []string{"cb-1", "cb-2"}, answered)
}

func TestTelegramServiceSendViewWithButtons(t *testing.T) {
	bot := &fakeBot{}
	svc := NewTelegramService(bot)

	require.NoError(t, svc.SendView(context.Background(), "42", views.Welcome()))
	require.NoError(t, svc.SendView(context.Background(), "42", views.LookupError("+91-555")))

	require.Len(t, bot.sent, 2)
	welcome := bot.sent[0]
	assert.Equal(t, "42", welcome.chatID)
	require.NotNil(t, welcome.markup)
	require.Len(t, welcome.markup.InlineKeyboard, len(views.Welcome().Actions))
	require.NotNil(t, welcome.markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, string(views.Welcome().Actions[0].ID), *welcome.markup.InlineKeyboard[0][0].CallbackData)
	assert.Nil(t, bot.sent[1].markup)

	assert.ErrorIs(t, svc.SendView(context.Background(), "", views.Welcome()), ErrEmptyRecipient)
}

func TestTelegramServiceStopWithoutStart(t *testing.T) {
	svc := NewTelegramService(&fakeBot{})
	require.NoError(t, svc.Stop())
	assert.ErrorIs(t, svc.Start(context.Background()), ErrServiceStopped)
	assert.ErrorIs(t, svc.SendView(context.Background(), "42", views.Welcome()), ErrServiceStopped)
}
