package messaging

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/smartgov/exgratia/internal/models"
	"github.com/smartgov/exgratia/internal/telegram"
)

// DefaultPollRetryDelay is the pause after a failed getUpdates call.
const DefaultPollRetryDelay = 3 * time.Second

// BotAPI is the subset of the Telegram client used by TelegramService.
type BotAPI interface {
	GetUpdates(ctx context.Context, offset int) ([]tgbotapi.Update, error)
	SendMessage(ctx context.Context, chatID string, text string, markup *tgbotapi.InlineKeyboardMarkup) error
	AnswerCallbackQuery(ctx context.Context, callbackID string) error
}

// TelegramService implements Service over the Bot API with long polling.
// Views are sent with inline keyboard buttons whose callback data is the ActionID.
type TelegramService struct {
	api        BotAPI
	events     *eventQueue
	retryDelay time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	offset  int
	started bool
}

var _ Service = (*TelegramService)(nil)

// NewTelegramService creates a TelegramService polling api.
func NewTelegramService(api BotAPI) *TelegramService {
	return &TelegramService{
		api:        api,
		events:     newEventQueue("TelegramService"),
		retryDelay: DefaultPollRetryDelay,
	}
}

// Start launches the polling loop. Calling it again is a no-op.
func (s *TelegramService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	if s.events.isStopped() {
		return ErrServiceStopped
	}
	pollCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.started = true
	go s.poll(pollCtx, s.done)
	slog.Info("TelegramService started")
	return nil
}

// Stop ends polling, waits for the loop to exit and closes the event channel.
func (s *TelegramService) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
	if s.events.stop() {
		slog.Info("TelegramService stopped")
	}
	return nil
}

// Events returns the inbound event channel.
func (s *TelegramService) Events() <-chan models.Event {
	return s.events.ch
}

// SendView sends view to the chat to, with one button row per action.
func (s *TelegramService) SendView(ctx context.Context, to string, view models.View) error {
	if s.events.isStopped() {
		return ErrServiceStopped
	}
	if to == "" {
		return ErrEmptyRecipient
	}
	if err := s.api.SendMessage(ctx, to, view.Text, keyboard(view)); err != nil {
		slog.Error("TelegramService SendView failed", "error", err, "chatID", to, "view", view.Kind)
		return err
	}
	slog.Debug("TelegramService view sent", "chatID", to, "view", view.Kind)
	return nil
}

func keyboard(view models.View) *tgbotapi.InlineKeyboardMarkup {
	buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(view.Actions))
	for _, a := range view.Actions {
		buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(a.Label, string(a.ID)))
	}
	return telegram.Keyboard(buttons...)
}

func (s *TelegramService) poll(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		updates, err := s.api.GetUpdates(ctx, s.offset)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("TelegramService getUpdates failed", "error", err, "retry_in", s.retryDelay)
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.retryDelay):
			}
			continue
		}
		for _, u := range updates {
			if u.UpdateID >= s.offset {
				s.offset = u.UpdateID + 1
			}
			s.handleUpdate(ctx, u)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (s *TelegramService) handleUpdate(ctx context.Context, u tgbotapi.Update) {
	var ev models.Event
	switch {
	case u.CallbackQuery != nil:
		cq := u.CallbackQuery
		if err := s.api.AnswerCallbackQuery(ctx, cq.ID); err != nil {
			slog.Warn("TelegramService answerCallbackQuery failed", "error", err, "callbackID", cq.ID)
		}
		var chatID int64
		switch {
		case cq.Message != nil && cq.Message.Chat != nil:
			chatID = cq.Message.Chat.ID
		case cq.From != nil:
			chatID = cq.From.ID
		default:
			slog.Debug("TelegramService ignoring callback without chat", "updateID", u.UpdateID)
			return
		}
		ev = models.CallbackEvent(strconv.FormatInt(chatID, 10), models.ActionID(cq.Data))
	case u.Message != nil && u.Message.Chat != nil && u.Message.Text != "":
		conv := strconv.FormatInt(u.Message.Chat.ID, 10)
		if cmd, ok := ParseCommand(u.Message.Text); ok {
			ev = models.CommandEvent(conv, cmd)
		} else {
			ev = models.TextEvent(conv, u.Message.Text)
		}
		if u.Message.Date > 0 {
			ev.Time = time.Unix(int64(u.Message.Date), 0)
		}
	default:
		slog.Debug("TelegramService ignoring update", "updateID", u.UpdateID)
		return
	}
	ev.MessageID = "tg-" + strconv.Itoa(u.UpdateID)
	s.events.emit(ev)
}
