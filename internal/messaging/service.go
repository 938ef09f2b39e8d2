// Package messaging adapts chat transports to the assistant's event and view
// model. Each Service turns inbound traffic into models.Event values and
// renders outbound models.View values in the transport's own format.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/smartgov/exgratia/internal/models"
)

const (
	// DefaultChannelBufferSize is the buffer size of a service's event channel.
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout bounds how long an inbound event waits for channel space.
	DefaultChannelTimeout = 1 * time.Second
)

var (
	// ErrServiceStopped is returned when sending through a stopped service.
	ErrServiceStopped = errors.New("messaging service stopped")
	ErrEmptyRecipient = errors.New("recipient cannot be empty")
	ErrInvalidPhone   = errors.New("invalid phone number")
)

// Service is a pluggable chat transport.
type Service interface {
	// Events returns the inbound event channel. It is closed by Stop.
	Events() <-chan models.Event

	// SendView renders view for the transport and sends it to a conversation.
	SendView(ctx context.Context, to string, view models.View) error

	// Start begins background processing such as polling or event handlers.
	Start(ctx context.Context) error

	// Stop ends background processing and closes the event channel.
	Stop() error
}

// eventQueue is the stoppable event channel shared by every transport.
type eventQueue struct {
	name    string
	ch      chan models.Event
	mu      sync.RWMutex
	stopped bool
}

func newEventQueue(name string) *eventQueue {
	return &eventQueue{name: name, ch: make(chan models.Event, DefaultChannelBufferSize)}
}

// emit forwards ev unless the queue is stopped or stays full past DefaultChannelTimeout.
func (q *eventQueue) emit(ev models.Event) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.stopped {
		slog.Warn(q.name+" dropping inbound event (service stopped)", "conversationID", ev.ConversationID)
		return false
	}
	select {
	case q.ch <- ev:
		slog.Debug(q.name+" emitted inbound event", "conversationID", ev.ConversationID, "kind", ev.Kind)
		return true
	case <-time.After(DefaultChannelTimeout):
		slog.Warn(q.name+" events channel blocked, dropping event", "conversationID", ev.ConversationID, "timeout", DefaultChannelTimeout)
		return false
	}
}

func (q *eventQueue) isStopped() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.stopped
}

// stop closes the channel once. It reports false if the queue was already stopped.
func (q *eventQueue) stop() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return false
	}
	q.stopped = true
	close(q.ch)
	return true
}

var nonDigits = regexp.MustCompile(`\D`)

// canonicalPhone strips everything but digits from a phone number.
func canonicalPhone(recipient string) (string, error) {
	if recipient == "" {
		return "", ErrEmptyRecipient
	}
	canonical := nonDigits.ReplaceAllString(recipient, "")
	if len(canonical) < 6 {
		return "", fmt.Errorf("%w: %q needs at least 6 digits", ErrInvalidPhone, recipient)
	}
	return canonical, nil
}
