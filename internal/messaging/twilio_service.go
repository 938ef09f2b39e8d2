package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/smartgov/exgratia/internal/models"
	"github.com/smartgov/exgratia/internal/twiliowhatsapp"
)

// SignatureValidator checks the X-Twilio-Signature header of a webhook call.
type SignatureValidator interface {
	ValidSignature(url string, params map[string]string, signature string) bool
}

// TwilioOpts holds optional TwilioService settings.
type TwilioOpts struct {
	// Validator and WebhookURL enable signature checks on inbound webhooks.
	Validator  SignatureValidator
	WebhookURL string
}

// TwilioOption defines a configuration option for the TwilioService.
type TwilioOption func(*TwilioOpts)

// WithSignatureValidation rejects webhooks whose signature does not match
// the public webhook URL.
func WithSignatureValidation(v SignatureValidator, webhookURL string) TwilioOption {
	return func(o *TwilioOpts) {
		o.Validator = v
		o.WebhookURL = webhookURL
	}
}

// TwilioService implements Service over the Twilio WhatsApp API. Inbound
// messages arrive through TwilioWebhookHandler.
type TwilioService struct {
	client twiliowhatsapp.Sender
	opts   TwilioOpts
	events *eventQueue
}

var _ Service = (*TwilioService)(nil)

// NewTwilioService creates a TwilioService wrapping client.
func NewTwilioService(client twiliowhatsapp.Sender, opts ...TwilioOption) *TwilioService {
	var cfg TwilioOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	return &TwilioService{
		client: client,
		opts:   cfg,
		events: newEventQueue("TwilioService"),
	}
}

// Start is a no-op; Twilio pushes messages to the webhook.
func (s *TwilioService) Start(ctx context.Context) error {
	slog.Info("TwilioService started", "signature_validation", s.opts.Validator != nil)
	return nil
}

// Stop closes the event channel.
func (s *TwilioService) Stop() error {
	if s.events.stop() {
		slog.Info("TwilioService stopped")
	}
	return nil
}

// Events returns the inbound event channel.
func (s *TwilioService) Events() <-chan models.Event {
	return s.events.ch
}

// SendView renders view as keypad text and sends it to the phone number to.
func (s *TwilioService) SendView(ctx context.Context, to string, view models.View) error {
	if s.events.isStopped() {
		return ErrServiceStopped
	}
	phone, err := canonicalPhone(to)
	if err != nil {
		slog.Error("TwilioService SendView invalid recipient", "error", err, "to", to)
		return err
	}
	if err := s.client.SendMessage(ctx, "+"+phone, RenderText(view)); err != nil {
		slog.Error("TwilioService SendView failed", "error", err, "to", phone, "view", view.Kind)
		return err
	}
	slog.Debug("TwilioService view sent", "to", phone, "view", view.Kind)
	return nil
}

// TwilioWebhookHandler accepts Twilio's inbound message webhook and emits
// the message as an event. The conversation ID is the sender's digits.
func (s *TwilioService) TwilioWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		slog.Error("Failed to parse Twilio webhook form", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	if s.opts.Validator != nil {
		params := make(map[string]string, len(r.PostForm))
		for k := range r.PostForm {
			params[k] = r.PostForm.Get(k)
		}
		if !s.opts.Validator.ValidSignature(s.opts.WebhookURL, params, r.Header.Get("X-Twilio-Signature")) {
			slog.Warn("Twilio webhook signature rejected", "remote", r.RemoteAddr)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}

	from := r.FormValue("From")
	body := r.FormValue("Body")
	if from == "" || body == "" {
		slog.Warn("Twilio webhook missing fields", "from_set", from != "", "body_set", body != "")
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}
	phone, err := canonicalPhone(twiliowhatsapp.StripAddress(from))
	if err != nil {
		slog.Warn("Twilio webhook invalid sender", "error", err, "from", from)
		http.Error(w, "Invalid sender", http.StatusBadRequest)
		return
	}

	ev := ParseTextInbound(phone, body)
	ev.MessageID = r.FormValue("MessageSid")
	ev.Time = time.Now()
	if !s.events.emit(ev) {
		http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
		return
	}

	// An empty TwiML response tells Twilio not to send an automatic reply.
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "<Response></Response>")
}
