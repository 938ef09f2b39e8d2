package dialog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/smartgov/exgratia/internal/models"
	"github.com/smartgov/exgratia/internal/store"
)

// StateStore holds the dialog state of each conversation.
// A conversation with no stored state is idle.
type StateStore interface {
	Get(ctx context.Context, conversationID string) (models.DialogState, error)
	Set(ctx context.Context, conversationID string, state models.DialogState) error
	Clear(ctx context.Context, conversationID string) error
}

// MemoryStateStore keeps dialog state in a mutex-guarded map.
type MemoryStateStore struct {
	mu     sync.RWMutex
	states map[string]models.DialogState
}

var _ StateStore = (*MemoryStateStore)(nil)

// NewMemoryStateStore creates an empty in-memory state store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[string]models.DialogState)}
}

func (m *MemoryStateStore) Get(_ context.Context, conversationID string) (models.DialogState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.states[conversationID]; ok {
		return s, nil
	}
	return models.StateIdle, nil
}

func (m *MemoryStateStore) Set(_ context.Context, conversationID string, state models.DialogState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[conversationID] = state
	return nil
}

func (m *MemoryStateStore) Clear(_ context.Context, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, conversationID)
	return nil
}

// StoreBasedStateStore implements StateStore on top of a store.Store backend.
type StoreBasedStateStore struct {
	store    store.Store
	flowType models.FlowType
}

var _ StateStore = (*StoreBasedStateStore)(nil)

// NewStoreBasedStateStore creates a StateStore backed by st for the ex-gratia flow.
func NewStoreBasedStateStore(st store.Store) *StoreBasedStateStore {
	slog.Debug("Creating StoreBasedStateStore")
	return &StoreBasedStateStore{store: st, flowType: models.FlowTypeExGratia}
}

// Get returns the stored state, or idle when none is stored.
func (s *StoreBasedStateStore) Get(ctx context.Context, conversationID string) (models.DialogState, error) {
	cs, err := s.store.GetConversationState(ctx, conversationID, s.flowType)
	if err != nil {
		slog.Error("StateStore Get error", "error", err, "conversationID", conversationID)
		return models.StateIdle, err
	}
	if cs == nil {
		return models.StateIdle, nil
	}
	if !cs.State.IsValid() {
		slog.Warn("StateStore Get unknown state, treating as idle", "conversationID", conversationID, "state", cs.State)
		return models.StateIdle, nil
	}
	return cs.State, nil
}

// Set stores state, keeping the original creation time of the conversation.
func (s *StoreBasedStateStore) Set(ctx context.Context, conversationID string, state models.DialogState) error {
	existing, err := s.store.GetConversationState(ctx, conversationID, s.flowType)
	if err != nil {
		slog.Error("StateStore Set get error", "error", err, "conversationID", conversationID)
		return err
	}

	now := time.Now()
	cs := models.ConversationState{
		ConversationID: conversationID,
		FlowType:       s.flowType,
		State:          state,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if existing != nil {
		cs.CreatedAt = existing.CreatedAt
	}
	if err := s.store.SaveConversationState(ctx, cs); err != nil {
		slog.Error("StateStore Set save error", "error", err, "conversationID", conversationID, "state", state)
		return err
	}
	slog.Debug("StateStore Set succeeded", "conversationID", conversationID, "state", state)
	return nil
}

// Clear removes the stored state, returning the conversation to idle.
func (s *StoreBasedStateStore) Clear(ctx context.Context, conversationID string) error {
	if err := s.store.DeleteConversationState(ctx, conversationID, s.flowType); err != nil {
		slog.Error("StateStore Clear error", "error", err, "conversationID", conversationID)
		return err
	}
	return nil
}
