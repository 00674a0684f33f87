// Package store provides storage backends for DialogPipe.
//
// This file implements a PostgreSQL-backed store for conversation state.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/dialogpipe/dialogpipe/internal/models"
	_ "github.com/lib/pq"
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

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// GetConversation retrieves a conversation record, or nil if none exists.
func (s *PostgresStore) GetConversation(conversationID string) (*models.ConversationRecord, error) {
	query := `SELECT conversation_id, current_dialog, previous_dialog, dialog_complete, is_second_exception, data, created_at, updated_at
			  FROM conversations WHERE conversation_id = $1`

	var rec models.ConversationRecord
	var dataJSON []byte
	err := s.db.QueryRow(query, conversationID).Scan(
		&rec.ConversationID, &rec.CurrentDialog, &rec.PreviousDialog,
		&rec.DialogComplete, &rec.IsSecondException, &dataJSON,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetConversation not found", "conversationID", conversationID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetConversation failed", "error", err, "conversationID", conversationID)
		return nil, fmt.Errorf("failed to get conversation %s: %w", conversationID, err)
	}
	if len(dataJSON) > 0 {
		if err := json.Unmarshal(dataJSON, &rec.Data); err != nil {
			slog.Error("PostgresStore GetConversation JSON unmarshal failed", "error", err, "conversationID", conversationID)
			return nil, err
		}
	}
	return &rec, nil
}

// SaveConversation stores or updates a conversation record.
func (s *PostgresStore) SaveConversation(rec models.ConversationRecord) error {
	if rec.ConversationID == "" {
		return models.ErrEmptyConversationID
	}
	dataJSON, err := marshalStringMap(rec.Data)
	if err != nil {
		slog.Error("PostgresStore SaveConversation JSON marshal failed", "error", err, "conversationID", rec.ConversationID)
		return err
	}
	query := `
		INSERT INTO conversations
			(conversation_id, current_dialog, previous_dialog, dialog_complete, is_second_exception, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, '')::jsonb, $7, $8)
		ON CONFLICT (conversation_id) DO UPDATE SET
			current_dialog = EXCLUDED.current_dialog,
			previous_dialog = EXCLUDED.previous_dialog,
			dialog_complete = EXCLUDED.dialog_complete,
			is_second_exception = EXCLUDED.is_second_exception,
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at`
	_, err = s.db.Exec(query, rec.ConversationID, rec.CurrentDialog, rec.PreviousDialog,
		rec.DialogComplete, rec.IsSecondException, dataJSON, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveConversation failed", "error", err, "conversationID", rec.ConversationID)
		return fmt.Errorf("failed to save conversation %s: %w", rec.ConversationID, err)
	}
	slog.Debug("PostgresStore SaveConversation succeeded", "conversationID", rec.ConversationID, "currentDialog", rec.CurrentDialog)
	return nil
}

// DeleteConversation removes a conversation record.
func (s *PostgresStore) DeleteConversation(conversationID string) error {
	_, err := s.db.Exec(`DELETE FROM conversations WHERE conversation_id = $1`, conversationID)
	if err != nil {
		slog.Error("PostgresStore DeleteConversation failed", "error", err, "conversationID", conversationID)
		return fmt.Errorf("failed to delete conversation %s: %w", conversationID, err)
	}
	slog.Debug("PostgresStore DeleteConversation succeeded", "conversationID", conversationID)
	return nil
}

// GetUser retrieves a user record, or nil if none exists.
func (s *PostgresStore) GetUser(userID string) (*models.UserRecord, error) {
	query := `SELECT user_id, data, created_at, updated_at FROM users WHERE user_id = $1`

	var rec models.UserRecord
	var dataJSON []byte
	err := s.db.QueryRow(query, userID).Scan(&rec.UserID, &dataJSON, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetUser not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetUser failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get user %s: %w", userID, err)
	}
	if len(dataJSON) > 0 {
		if err := json.Unmarshal(dataJSON, &rec.Data); err != nil {
			slog.Error("PostgresStore GetUser JSON unmarshal failed", "error", err, "userID", userID)
			return nil, err
		}
	}
	return &rec, nil
}

// SaveUser stores or updates a user record.
func (s *PostgresStore) SaveUser(rec models.UserRecord) error {
	if rec.UserID == "" {
		return models.ErrEmptyUserID
	}
	dataJSON, err := marshalStringMap(rec.Data)
	if err != nil {
		slog.Error("PostgresStore SaveUser JSON marshal failed", "error", err, "userID", rec.UserID)
		return err
	}
	query := `
		INSERT INTO users (user_id, data, created_at, updated_at)
		VALUES ($1, NULLIF($2, '')::jsonb, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at`
	_, err = s.db.Exec(query, rec.UserID, dataJSON, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveUser failed", "error", err, "userID", rec.UserID)
		return fmt.Errorf("failed to save user %s: %w", rec.UserID, err)
	}
	slog.Debug("PostgresStore SaveUser succeeded", "userID", rec.UserID)
	return nil
}

// GetStack retrieves a conversation's dialog stack, or nil if none is stored.
func (s *PostgresStore) GetStack(conversationID string) ([]models.StackEntry, error) {
	var stackJSON []byte
	err := s.db.QueryRow(`SELECT stack FROM dialog_stacks WHERE conversation_id = $1`, conversationID).Scan(&stackJSON)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetStack not found", "conversationID", conversationID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetStack failed", "error", err, "conversationID", conversationID)
		return nil, fmt.Errorf("failed to get stack for %s: %w", conversationID, err)
	}
	var stack []models.StackEntry
	if err := json.Unmarshal(stackJSON, &stack); err != nil {
		slog.Error("PostgresStore GetStack JSON unmarshal failed", "error", err, "conversationID", conversationID)
		return nil, fmt.Errorf("failed to decode stack for %s: %w", conversationID, err)
	}
	return stack, nil
}

// SaveStack stores or replaces a conversation's dialog stack.
func (s *PostgresStore) SaveStack(conversationID string, stack []models.StackEntry) error {
	if conversationID == "" {
		return models.ErrEmptyConversationID
	}
	if stack == nil {
		stack = []models.StackEntry{}
	}
	stackJSON, err := json.Marshal(stack)
	if err != nil {
		slog.Error("PostgresStore SaveStack JSON marshal failed", "error", err, "conversationID", conversationID)
		return err
	}
	query := `
		INSERT INTO dialog_stacks (conversation_id, stack, updated_at)
		VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (conversation_id) DO UPDATE SET
			stack = EXCLUDED.stack,
			updated_at = EXCLUDED.updated_at`
	if _, err := s.db.Exec(query, conversationID, string(stackJSON)); err != nil {
		slog.Error("PostgresStore SaveStack failed", "error", err, "conversationID", conversationID)
		return fmt.Errorf("failed to save stack for %s: %w", conversationID, err)
	}
	slog.Debug("PostgresStore SaveStack succeeded", "conversationID", conversationID, "depth", len(stack))
	return nil
}

// DeleteStack removes a conversation's dialog stack.
func (s *PostgresStore) DeleteStack(conversationID string) error {
	_, err := s.db.Exec(`DELETE FROM dialog_stacks WHERE conversation_id = $1`, conversationID)
	if err != nil {
		slog.Error("PostgresStore DeleteStack failed", "error", err, "conversationID", conversationID)
		return fmt.Errorf("failed to delete stack for %s: %w", conversationID, err)
	}
	slog.Debug("PostgresStore DeleteStack succeeded", "conversationID", conversationID)
	return nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
