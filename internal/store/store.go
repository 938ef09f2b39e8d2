// Package store provides storage backends for the ex-gratia assistant.
//
// It persists per-conversation dialog state and inbound message IDs used for
// deduplication. The SQL backends also create the application_status table
// read by the status lookup.
package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/smartgov/exgratia/internal/models"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// ErrDSNNotSet is returned when a SQL store is created without a DSN.
var ErrDSNNotSet = errors.New("database DSN not set")

// Store persists conversation state.
type Store interface {
	SaveConversationState(ctx context.Context, state models.ConversationState) error
	// GetConversationState returns nil, nil when no state is stored.
	GetConversationState(ctx context.Context, conversationID string, flowType models.FlowType) (*models.ConversationState, error)
	DeleteConversationState(ctx context.Context, conversationID string, flowType models.FlowType) error
	Close() error
}

// Opts holds configuration for SQL stores.
type Opts struct {
	DSN string
}

// Option defines a configuration option for SQL stores.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database path or DSN.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

func applyOpts(opts []Option) Opts {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// DetectDSNType returns DriverPostgres for PostgreSQL URLs or key/value DSNs
// and DriverSQLite for everything else.
func DetectDSNType(dsn string) string {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return DriverPostgres
	}
	for _, key := range []string{"host=", "dbname=", "user=", "sslmode="} {
		if strings.Contains(lower, key) {
			return DriverPostgres
		}
	}
	return DriverSQLite
}

// SQLStore is a Store with a database handle, used by callers that share the
// connection for other tables.
type SQLStore interface {
	Store
	DedupRepo
	DB() *sql.DB
	Driver() string
}

// Open creates the SQL store matching the DSN type.
func Open(dsn string) (SQLStore, error) {
	if DetectDSNType(dsn) == DriverPostgres {
		return NewPostgresStore(WithPostgresDSN(dsn))
	}
	return NewSQLiteStore(WithSQLiteDSN(dsn))
}

type stateKey struct {
	conversationID string
	flowType       models.FlowType
}

// InMemoryStore keeps conversation state and dedup records in process memory.
type InMemoryStore struct {
	mu     sync.RWMutex
	states map[stateKey]models.ConversationState
	seen   map[string]*DedupRecord
}

var (
	_ Store     = (*InMemoryStore)(nil)
	_ DedupRepo = (*InMemoryStore)(nil)
)

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		states: make(map[stateKey]models.ConversationState),
		seen:   make(map[string]*DedupRecord),
	}
}

func (s *InMemoryStore) SaveConversationState(_ context.Context, state models.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[stateKey{state.ConversationID, state.FlowType}] = state
	return nil
}

func (s *InMemoryStore) GetConversationState(_ context.Context, conversationID string, flowType models.FlowType) (*models.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[stateKey{conversationID, flowType}]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

func (s *InMemoryStore) DeleteConversationState(_ context.Context, conversationID string, flowType models.FlowType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, stateKey{conversationID, flowType})
	return nil
}

func (s *InMemoryStore) IsDuplicate(_ context.Context, messageID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[messageID]
	return ok, nil
}

func (s *InMemoryStore) RecordInbound(_ context.Context, messageID, conversationID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[messageID]; ok {
		return false, nil
	}
	s.seen[messageID] = &DedupRecord{MessageID: messageID, ConversationID: conversationID, ReceivedAt: time.Now()}
	return true, nil
}

func (s *InMemoryStore) MarkProcessed(_ context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.seen[messageID]; ok {
		now := time.Now()
		rec.ProcessedAt = &now
	}
	return nil
}

func (s *InMemoryStore) PruneInbound(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, rec := range s.seen {
		if rec.ReceivedAt.Before(before) {
			delete(s.seen, id)
			n++
		}
	}
	return n, nil
}

// Close is a no-op.
func (s *InMemoryStore) Close() error {
	return nil
}
