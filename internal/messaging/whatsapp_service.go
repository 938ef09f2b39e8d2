package messaging

import (
	"context"
	"log/slog"
	"sync"

	"github.com/smartgov/exgratia/internal/models"
	"github.com/smartgov/exgratia/internal/whatsapp"
)

// WhatsAppService implements Service over the whatsmeow client. Views are
// sent as plain text with a numbered keypad.
type WhatsAppService struct {
	client    whatsapp.Sender
	events    *eventQueue
	startOnce sync.Once
}

var _ Service = (*WhatsAppService)(nil)

// NewWhatsAppService creates a WhatsAppService wrapping client.
func NewWhatsAppService(client whatsapp.Sender) *WhatsAppService {
	return &WhatsAppService{
		client: client,
		events: newEventQueue("WhatsAppService"),
	}
}

// Start registers the inbound message handler. Calling it again is a no-op.
func (s *WhatsAppService) Start(ctx context.Context) error {
	s.startOnce.Do(func() {
		s.client.OnMessage(s.handleIncomingMessage)
		slog.Info("WhatsAppService started")
	})
	return nil
}

// Stop closes the event channel and disconnects the client when it supports it.
func (s *WhatsAppService) Stop() error {
	if !s.events.stop() {
		return nil
	}
	if d, ok := s.client.(interface{ Disconnect() }); ok {
		d.Disconnect()
	}
	slog.Info("WhatsAppService stopped")
	return nil
}

// Events returns the inbound event channel.
func (s *WhatsAppService) Events() <-chan models.Event {
	return s.events.ch
}

// SendView renders view as keypad text and sends it to the phone number to.
func (s *WhatsAppService) SendView(ctx context.Context, to string, view models.View) error {
	if s.events.isStopped() {
		return ErrServiceStopped
	}
	phone, err := canonicalPhone(to)
	if err != nil {
		slog.Error("WhatsAppService SendView invalid recipient", "error", err, "to", to)
		return err
	}
	if err := s.client.SendMessage(ctx, phone, RenderText(view)); err != nil {
		slog.Error("WhatsAppService SendView failed", "error", err, "to", phone, "view", view.Kind)
		return err
	}
	slog.Debug("WhatsAppService view sent", "to", phone, "view", view.Kind)
	return nil
}

func (s *WhatsAppService) handleIncomingMessage(msg whatsapp.IncomingMessage) {
	phone, err := canonicalPhone(msg.From)
	if err != nil {
		slog.Warn("WhatsAppService ignoring message from invalid sender", "error", err, "from", msg.From)
		return
	}
	ev := ParseTextInbound(phone, msg.Text)
	ev.MessageID = msg.ID
	if !msg.Time.IsZero() {
		ev.Time = msg.Time
	}
	s.events.emit(ev)
}
