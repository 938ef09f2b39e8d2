// Package telegram adapts the go-telegram-bot-api client to the calls the bot
// needs: long polling for updates, text messages with inline keyboards and
// callback acknowledgements. Every call is bound to a context.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	// DefaultBaseURL is the public Bot API server.
	DefaultBaseURL = "https://api.telegram.org"
	// DefaultPollTimeout is the long-poll wait passed to getUpdates.
	DefaultPollTimeout = 30 * time.Second
	// requestSlack is added to the poll timeout for the HTTP client deadline.
	requestSlack = 10 * time.Second
)

var (
	ErrMissingToken = errors.New("telegram bot token is required")
	// ErrAPI is returned when the Bot API answers with ok=false.
	ErrAPI = errors.New("telegram api error")
)

// allowedUpdates limits getUpdates to what the bot handles.
var allowedUpdates = []string{"message", "callback_query"}

// Opts holds configuration options for the Bot API client.
type Opts struct {
	BaseURL     string
	PollTimeout time.Duration
	HTTPClient  *http.Client
}

// Option defines a configuration option for the Bot API client.
type Option func(*Opts)

// WithBaseURL points the client at a different Bot API server.
func WithBaseURL(u string) Option {
	return func(o *Opts) { o.BaseURL = u }
}

// WithPollTimeout sets the long-poll wait of GetUpdates.
func WithPollTimeout(d time.Duration) Option {
	return func(o *Opts) { o.PollTimeout = d }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// Client calls the Telegram Bot API through tgbotapi.
type Client struct {
	bot         *tgbotapi.BotAPI
	http        *http.Client
	pollTimeout time.Duration
}

// ctxDoer attaches a call's context to every request tgbotapi makes.
type ctxDoer struct {
	ctx    context.Context
	client *http.Client
}

func (d ctxDoer) Do(req *http.Request) (*http.Response, error) {
	return d.client.Do(req.WithContext(d.ctx))
}

// NewClient creates a Bot API client for token. No request is made until the
// first call, so a bad token surfaces on the first poll.
func NewClient(token string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	cfg := Opts{BaseURL: DefaultBaseURL, PollTimeout: DefaultPollTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.PollTimeout + requestSlack}
	}

	bot := &tgbotapi.BotAPI{Token: token, Client: cfg.HTTPClient, Buffer: 100}
	bot.SetAPIEndpoint(strings.TrimRight(cfg.BaseURL, "/") + "/bot%s/%s")
	return &Client{bot: bot, http: cfg.HTTPClient, pollTimeout: cfg.PollTimeout}, nil
}

// withContext returns a shallow copy of the bot whose requests carry ctx.
func (c *Client) withContext(ctx context.Context) *tgbotapi.BotAPI {
	b := *c.bot
	b.Client = ctxDoer{ctx: ctx, client: c.http}
	return &b
}

// GetUpdates long-polls for updates with an ID of at least offset.
func (c *Client) GetUpdates(ctx context.Context, offset int) ([]tgbotapi.Update, error) {
	updates, err := c.withContext(ctx).GetUpdates(tgbotapi.UpdateConfig{
		Offset:         offset,
		Timeout:        int(c.pollTimeout / time.Second),
		AllowedUpdates: allowedUpdates,
	})
	if err != nil {
		return nil, wrap("getUpdates", err)
	}
	return updates, nil
}

// SendMessage sends text to chatID, with inline buttons when markup is set.
// A chat ID that is not numeric is treated as a channel username.
func (c *Client) SendMessage(ctx context.Context, chatID string, text string, markup *tgbotapi.InlineKeyboardMarkup) error {
	var msg tgbotapi.MessageConfig
	if id, err := strconv.ParseInt(chatID, 10, 64); err == nil {
		msg = tgbotapi.NewMessage(id, text)
	} else {
		msg = tgbotapi.NewMessageToChannel(chatID, text)
	}
	if markup != nil && len(markup.InlineKeyboard) > 0 {
		msg.ReplyMarkup = *markup
	}
	if _, err := c.withContext(ctx).Send(msg); err != nil {
		return wrap("sendMessage", err)
	}
	return nil
}

// AnswerCallbackQuery acknowledges a button press so the client stops its spinner.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID string) error {
	if _, err := c.withContext(ctx).Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		return wrap("answerCallbackQuery", err)
	}
	return nil
}

// Keyboard builds an inline keyboard with one button per row.
func Keyboard(buttons ...tgbotapi.InlineKeyboardButton) *tgbotapi.InlineKeyboardMarkup {
	if len(buttons) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(b))
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}

func wrap(method string, err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		slog.Debug("Telegram API call rejected", "method", method, "code", apiErr.Code, "description", apiErr.Message)
		return fmt.Errorf("%w: %s: %d %s", ErrAPI, method, apiErr.Code, apiErr.Message)
	}
	return fmt.Errorf("telegram %s: %w", method, err)
}
