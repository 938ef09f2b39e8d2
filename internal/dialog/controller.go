// Package dialog drives the per-conversation state machine of the assistant.
//
// A conversation is either idle or awaiting an application ID. Inbound events
// are routed to the classifier, the status lookup or a content view, and every
// event produces exactly one view.
package dialog

import (
	"context"
	"log/slog"

	"github.com/smartgov/exgratia/internal/appid"
	"github.com/smartgov/exgratia/internal/classifier"
	"github.com/smartgov/exgratia/internal/content"
	"github.com/smartgov/exgratia/internal/models"
	"github.com/smartgov/exgratia/internal/views"
)

// DefaultSupportPhone is shown when no support contact is configured.
const DefaultSupportPhone = "+91-1234567890"

// StatusLookup resolves an application ID.
type StatusLookup interface {
	Lookup(ctx context.Context, applicationID string) (models.LookupResult, error)
}

// Handler turns an inbound event into the view to send back.
type Handler interface {
	Handle(ctx context.Context, ev models.Event) models.View
}

// Opts holds optional controller settings.
type Opts struct {
	SupportPhone string
}

// Option defines a configuration option for the Controller.
type Option func(*Opts)

// WithSupportPhone sets the contact number printed on views.
func WithSupportPhone(phone string) Option {
	return func(o *Opts) { o.SupportPhone = phone }
}

// Controller implements the dialog state machine.
type Controller struct {
	classifier classifier.Classifier
	lookup     StatusLookup
	content    content.Store
	states     StateStore
	phone      string
	convLocks  *keyedMutex
}

var _ Handler = (*Controller)(nil)

// NewController wires the collaborators of the state machine.
func NewController(cls classifier.Classifier, lookup StatusLookup, texts content.Store, states StateStore, opts ...Option) *Controller {
	cfg := Opts{SupportPhone: DefaultSupportPhone}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Controller{
		classifier: cls,
		lookup:     lookup,
		content:    texts,
		states:     states,
		phone:      cfg.SupportPhone,
		convLocks:  newKeyedMutex(),
	}
}

// Handle processes one event and returns the view to render. It never fails.
// Calls for the same conversation run one at a time, whichever surface they
// come from.
func (c *Controller) Handle(ctx context.Context, ev models.Event) models.View {
	unlock := c.convLocks.Lock(ev.ConversationID)
	defer unlock()

	slog.Debug("Controller handling event", "conversationID", ev.ConversationID, "kind", ev.Kind)
	switch ev.Kind {
	case models.EventCommand:
		return c.handleCommand(ctx, ev)
	case models.EventCallback:
		return c.handleCallback(ctx, ev)
	default:
		return c.handleText(ctx, ev)
	}
}

func (c *Controller) handleCommand(ctx context.Context, ev models.Event) models.View {
	switch ev.Payload {
	case models.CommandStart:
		c.clear(ctx, ev.ConversationID)
		return views.Welcome()
	case models.CommandHelp:
		c.clear(ctx, ev.ConversationID)
		return views.Help(c.phone)
	default:
		slog.Debug("Controller unknown command", "conversationID", ev.ConversationID, "command", ev.Payload)
		return views.Fallback()
	}
}

func (c *Controller) handleCallback(ctx context.Context, ev models.Event) models.View {
	switch models.ActionID(ev.Payload) {
	case models.ActionStatus:
		return c.awaitID(ctx, ev.ConversationID)
	case models.ActionBack:
		c.clear(ctx, ev.ConversationID)
		return views.Welcome()
	case models.ActionNorms:
		c.clear(ctx, ev.ConversationID)
		return c.normsView()
	case models.ActionApply:
		c.clear(ctx, ev.ConversationID)
		return c.procedureView()
	case models.ActionHelp:
		c.clear(ctx, ev.ConversationID)
		return views.Help(c.phone)
	default:
		slog.Debug("Controller unknown callback", "conversationID", ev.ConversationID, "callback", ev.Payload)
		return views.Fallback()
	}
}

func (c *Controller) handleText(ctx context.Context, ev models.Event) models.View {
	conv := ev.ConversationID

	state, err := c.states.Get(ctx, conv)
	if err != nil {
		slog.Error("Controller state read failed, treating as idle", "error", err, "conversationID", conv)
		state = models.StateIdle
	}

	if state == models.StateAwaitingApplicationID {
		if id, ok := appid.First(ev.Payload); ok {
			return c.lookupView(ctx, conv, id)
		}
		intent := c.classifier.Classify(ctx, ev.Payload)
		slog.Debug("Controller no application ID while awaiting", "conversationID", conv, "intent", intent)
		switch intent {
		case models.IntentStatusCheck, models.IntentOther:
			return views.StatusPrompt()
		default:
			c.clear(ctx, conv)
			return c.dispatch(ctx, conv, intent, ev.Payload)
		}
	}

	intent := c.classifier.Classify(ctx, ev.Payload)
	slog.Debug("Controller classified message", "conversationID", conv, "intent", intent)
	return c.dispatch(ctx, conv, intent, ev.Payload)
}

// dispatch renders the view for an intent while idle.
func (c *Controller) dispatch(ctx context.Context, conv string, intent models.Intent, text string) models.View {
	switch intent {
	case models.IntentGreeting:
		return views.Welcome()
	case models.IntentExGratiaNorms:
		return c.normsView()
	case models.IntentApplicationProcedure, models.IntentApplyStart:
		return c.procedureView()
	case models.IntentStatusCheck:
		if id, ok := appid.First(text); ok {
			return c.lookupView(ctx, conv, id)
		}
		return c.awaitID(ctx, conv)
	case models.IntentHelp:
		return views.Help(c.phone)
	default:
		return views.Fallback()
	}
}

func (c *Controller) normsView() models.View {
	return views.Norms(c.content.ReadText(content.KeyNorms), c.phone)
}

func (c *Controller) procedureView() models.View {
	return views.Procedure(c.content.ReadText(content.KeyProcedure), c.phone)
}

func (c *Controller) awaitID(ctx context.Context, conv string) models.View {
	if err := c.states.Set(ctx, conv, models.StateAwaitingApplicationID); err != nil {
		slog.Error("Controller failed to store awaiting state", "error", err, "conversationID", conv)
	}
	return views.StatusPrompt()
}

// lookupView returns the conversation to idle and renders the lookup outcome.
func (c *Controller) lookupView(ctx context.Context, conv, id string) models.View {
	c.clear(ctx, conv)
	res, err := c.lookup.Lookup(ctx, id)
	if err != nil {
		slog.Error("Controller status lookup failed", "error", err, "conversationID", conv, "application_id", id)
		return views.LookupError(c.phone)
	}
	slog.Info("Controller status lookup", "conversationID", conv, "application_id", id, "found", res.Found)
	return views.Status(id, res, c.phone)
}

func (c *Controller) clear(ctx context.Context, conv string) {
	if err := c.states.Clear(ctx, conv); err != nil {
		slog.Error("Controller failed to clear state", "error", err, "conversationID", conv)
	}
}
