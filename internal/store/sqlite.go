// This file implements an SQLite-backed store for conversation state.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"
	"github.com/smartgov/exgratia/internal/models"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

var _ SQLStore = (*SQLiteStore)(nil)

// sqliteFilePath extracts the file path from a plain path or a file: URI DSN.
func sqliteFilePath(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	cfg := applyOpts(opts)
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, ErrDSNNotSet
	}

	if path := sqliteFilePath(dsn); path != ":memory:" && path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
			slog.Error("Failed to create database directory", "error", err, "dir", dir)
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		slog.Debug("SQLite database directory verified/created", "dir", dir)
	}

	db, err := sql.Open(DriverSQLite, dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// DB returns the underlying connection pool.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Driver returns DriverSQLite.
func (s *SQLiteStore) Driver() string {
	return DriverSQLite
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}

// SaveConversationState stores or updates the dialog state of a conversation.
func (s *SQLiteStore) SaveConversationState(ctx context.Context, state models.ConversationState) error {
	query := `
		INSERT OR REPLACE INTO conversation_states (conversation_id, flow_type, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query, state.ConversationID, state.FlowType, state.State,
		state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveConversationState failed", "error", err, "conversationID", state.ConversationID, "flowType", state.FlowType)
		return fmt.Errorf("save conversation state: %w", err)
	}
	slog.Debug("SQLiteStore SaveConversationState succeeded", "conversationID", state.ConversationID, "state", state.State)
	return nil
}

// GetConversationState retrieves the dialog state of a conversation.
func (s *SQLiteStore) GetConversationState(ctx context.Context, conversationID string, flowType models.FlowType) (*models.ConversationState, error) {
	query := `SELECT conversation_id, flow_type, state, created_at, updated_at
			  FROM conversation_states WHERE conversation_id = ? AND flow_type = ?`

	var state models.ConversationState
	err := s.db.QueryRowContext(ctx, query, conversationID, flowType).Scan(
		&state.ConversationID, &state.FlowType, &state.State, &state.CreatedAt, &state.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		slog.Debug("SQLiteStore GetConversationState not found", "conversationID", conversationID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetConversationState failed", "error", err, "conversationID", conversationID)
		return nil, fmt.Errorf("get conversation state: %w", err)
	}
	return &state, nil
}

// DeleteConversationState removes the dialog state of a conversation.
func (s *SQLiteStore) DeleteConversationState(ctx context.Context, conversationID string, flowType models.FlowType) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM conversation_states WHERE conversation_id = ? AND flow_type = ?`,
		conversationID, flowType)
	if err != nil {
		slog.Error("SQLiteStore DeleteConversationState failed", "error", err, "conversationID", conversationID)
		return fmt.Errorf("delete conversation state: %w", err)
	}
	slog.Debug("SQLiteStore DeleteConversationState succeeded", "conversationID", conversationID)
	return nil
}
