// This file implements a PostgreSQL-backed store for conversation state.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"
	"github.com/smartgov/exgratia/internal/models"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

var _ SQLStore = (*PostgresStore)(nil)

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	cfg := applyOpts(opts)
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, ErrDSNNotSet
	}

	db, err := sql.Open(DriverPostgres, dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

// DB returns the underlying connection pool.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// Driver returns DriverPostgres.
func (s *PostgresStore) Driver() string {
	return DriverPostgres
}

// Close closes the Postgres connection pool.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}

// SaveConversationState stores or updates the dialog state of a conversation.
func (s *PostgresStore) SaveConversationState(ctx context.Context, state models.ConversationState) error {
	query := `
		INSERT INTO conversation_states (conversation_id, flow_type, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (conversation_id, flow_type)
		DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`

	_, err := s.db.ExecContext(ctx, query, state.ConversationID, state.FlowType, state.State,
		state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveConversationState failed", "error", err, "conversationID", state.ConversationID, "flowType", state.FlowType)
		return fmt.Errorf("save conversation state: %w", err)
	}
	slog.Debug("PostgresStore SaveConversationState succeeded", "conversationID", state.ConversationID, "state", state.State)
	return nil
}

// GetConversationState retrieves the dialog state of a conversation.
func (s *PostgresStore) GetConversationState(ctx context.Context, conversationID string, flowType models.FlowType) (*models.ConversationState, error) {
	query := `SELECT conversation_id, flow_type, state, created_at, updated_at
			  FROM conversation_states WHERE conversation_id = $1 AND flow_type = $2`

	var state models.ConversationState
	err := s.db.QueryRowContext(ctx, query, conversationID, flowType).Scan(
		&state.ConversationID, &state.FlowType, &state.State, &state.CreatedAt, &state.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		slog.Debug("PostgresStore GetConversationState not found", "conversationID", conversationID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetConversationState failed", "error", err, "conversationID", conversationID)
		return nil, fmt.Errorf("get conversation state: %w", err)
	}
	return &state, nil
}

// DeleteConversationState removes the dialog state of a conversation.
func (s *PostgresStore) DeleteConversationState(ctx context.Context, conversationID string, flowType models.FlowType) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM conversation_states WHERE conversation_id = $1 AND flow_type = $2`,
		conversationID, flowType)
	if err != nil {
		slog.Error("PostgresStore DeleteConversationState failed", "error", err, "conversationID", conversationID)
		return fmt.Errorf("delete conversation state: %w", err)
	}
	slog.Debug("PostgresStore DeleteConversationState succeeded", "conversationID", conversationID)
	return nil
}
