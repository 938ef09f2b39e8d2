package dialog

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"github.com/smartgov/exgratia/internal/models"
	"github.com/smartgov/exgratia/internal/store"
	"golang.org/x/sync/errgroup"
)

// ViewSender delivers a view to a conversation.
type ViewSender interface {
	SendView(ctx context.Context, to string, view models.View) error
}

// DispatcherOpts holds optional dispatcher settings.
type DispatcherOpts struct {
	// MaxConversations bounds how many conversations are processed at once.
	MaxConversations int
	// Dedup drops events whose MessageID was already recorded.
	Dedup store.DedupRepo
}

// DispatcherOption defines a configuration option for the Dispatcher.
type DispatcherOption func(*DispatcherOpts)

// WithMaxConversations bounds concurrent conversation workers.
func WithMaxConversations(n int) DispatcherOption {
	return func(o *DispatcherOpts) { o.MaxConversations = n }
}

// WithDedup enables inbound deduplication by message ID.
func WithDedup(d store.DedupRepo) DispatcherOption {
	return func(o *DispatcherOpts) { o.Dedup = d }
}

// Dispatcher feeds transport events to a Handler. Events of one conversation
// are handled strictly in arrival order by a single worker; distinct
// conversations are handled concurrently.
type Dispatcher struct {
	handler Handler
	sender  ViewSender
	opts    DispatcherOpts

	mu     sync.Mutex
	queues map[string][]models.Event
}

// NewDispatcher creates a dispatcher that answers through sender.
func NewDispatcher(handler Handler, sender ViewSender, opts ...DispatcherOption) *Dispatcher {
	cfg := DispatcherOpts{MaxConversations: 4 * runtime.NumCPU()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.MaxConversations < 1 {
		cfg.MaxConversations = 1
	}
	return &Dispatcher{
		handler: handler,
		sender:  sender,
		opts:    cfg,
		queues:  make(map[string][]models.Event),
	}
}

// Run consumes events until ctx is cancelled or the channel is closed, then
// waits for active workers to finish.
func (d *Dispatcher) Run(ctx context.Context, events <-chan models.Event) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.MaxConversations)

	slog.Info("Dispatcher started", "maxConversations", d.opts.MaxConversations)
	defer slog.Info("Dispatcher stopped")

	for {
		select {
		case <-ctx.Done():
			return g.Wait()
		case ev, ok := <-events:
			if !ok {
				return g.Wait()
			}
			if ev.ConversationID == "" {
				slog.Warn("Dispatcher dropping event without conversation ID", "kind", ev.Kind)
				continue
			}
			if d.enqueue(ev) {
				conv := ev.ConversationID
				g.Go(func() error {
					d.drain(gctx, conv)
					return nil
				})
			}
		}
	}
}

// enqueue appends ev to its conversation queue and reports whether a new worker is needed.
func (d *Dispatcher) enqueue(ev models.Event) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	q, active := d.queues[ev.ConversationID]
	d.queues[ev.ConversationID] = append(q, ev)
	return !active
}

// next pops the oldest queued event, removing the queue once it is empty.
func (d *Dispatcher) next(conv string) (models.Event, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	q := d.queues[conv]
	if len(q) == 0 {
		delete(d.queues, conv)
		return models.Event{}, false
	}
	ev := q[0]
	d.queues[conv] = q[1:]
	return ev, true
}

func (d *Dispatcher) drain(ctx context.Context, conv string) {
	for {
		ev, ok := d.next(conv)
		if !ok {
			return
		}
		if ctx.Err() != nil {
			slog.Warn("Dispatcher dropping event after shutdown", "conversationID", conv, "kind", ev.Kind)
			continue
		}
		d.process(ctx, ev)
	}
}

func (d *Dispatcher) process(ctx context.Context, ev models.Event) {
	if d.opts.Dedup != nil && ev.MessageID != "" {
		fresh, err := d.opts.Dedup.RecordInbound(ctx, ev.MessageID, ev.ConversationID)
		if err != nil {
			slog.Error("Dispatcher dedup record failed", "error", err, "messageID", ev.MessageID)
		} else if !fresh {
			slog.Debug("Dispatcher skipping duplicate message", "messageID", ev.MessageID, "conversationID", ev.ConversationID)
			return
		}
	}

	view := d.handler.Handle(ctx, ev)
	if err := d.sender.SendView(ctx, ev.ConversationID, view); err != nil {
		slog.Error("Dispatcher failed to send view", "error", err, "conversationID", ev.ConversationID, "view", view.Kind)
		return
	}

	if d.opts.Dedup != nil && ev.MessageID != "" {
		if err := d.opts.Dedup.MarkProcessed(ctx, ev.MessageID); err != nil {
			slog.Error("Dispatcher dedup mark failed", "error", err, "messageID", ev.MessageID)
		}
	}
}
