// Package store provides storage backends for DialogPipe.
//
// This file implements an SQLite-backed store for conversation state.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/dialogpipe/dialogpipe/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// GetConversation retrieves a conversation record, or nil if none exists.
func (s *SQLiteStore) GetConversation(conversationID string) (*models.ConversationRecord, error) {
	query := `SELECT conversation_id, current_dialog, previous_dialog, dialog_complete, is_second_exception, data, created_at, updated_at
			  FROM conversations WHERE conversation_id = ?`

	var rec models.ConversationRecord
	var dataJSON sql.NullString
	err := s.db.QueryRow(query, conversationID).Scan(
		&rec.ConversationID, &rec.CurrentDialog, &rec.PreviousDialog,
		&rec.DialogComplete, &rec.IsSecondException, &dataJSON,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetConversation not found", "conversationID", conversationID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetConversation failed", "error", err, "conversationID", conversationID)
		return nil, fmt.Errorf("failed to get conversation %s: %w", conversationID, err)
	}
	if err := unmarshalStringMap(dataJSON.String, &rec.Data); err != nil {
		slog.Error("SQLiteStore GetConversation JSON unmarshal failed", "error", err, "conversationID", conversationID)
		return nil, err
	}
	return &rec, nil
}

// SaveConversation stores or updates a conversation record.
func (s *SQLiteStore) SaveConversation(rec models.ConversationRecord) error {
	if rec.ConversationID == "" {
		return models.ErrEmptyConversationID
	}
	dataJSON, err := marshalStringMap(rec.Data)
	if err != nil {
		slog.Error("SQLiteStore SaveConversation JSON marshal failed", "error", err, "conversationID", rec.ConversationID)
		return err
	}
	query := `
		INSERT OR REPLACE INTO conversations
			(conversation_id, current_dialog, previous_dialog, dialog_complete, is_second_exception, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.Exec(query, rec.ConversationID, rec.CurrentDialog, rec.PreviousDialog,
		rec.DialogComplete, rec.IsSecondException, dataJSON, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveConversation failed", "error", err, "conversationID", rec.ConversationID)
		return fmt.Errorf("failed to save conversation %s: %w", rec.ConversationID, err)
	}
	slog.Debug("SQLiteStore SaveConversation succeeded", "conversationID", rec.ConversationID, "currentDialog", rec.CurrentDialog)
	return nil
}

// DeleteConversation removes a conversation record.
func (s *SQLiteStore) DeleteConversation(conversationID string) error {
	_, err := s.db.Exec(`DELETE FROM conversations WHERE conversation_id = ?`, conversationID)
	if err != nil {
		slog.Error("SQLiteStore DeleteConversation failed", "error", err, "conversationID", conversationID)
		return fmt.Errorf("failed to delete conversation %s: %w", conversationID, err)
	}
	slog.Debug("SQLiteStore DeleteConversation succeeded", "conversationID", conversationID)
	return nil
}

// GetUser retrieves a user record, or nil if none exists.
func (s *SQLiteStore) GetUser(userID string) (*models.UserRecord, error) {
	query := `SELECT user_id, data, created_at, updated_at FROM users WHERE user_id = ?`

	var rec models.UserRecord
	var dataJSON sql.NullString
	err := s.db.QueryRow(query, userID).Scan(&rec.UserID, &dataJSON, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetUser not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetUser failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get user %s: %w", userID, err)
	}
	if err := unmarshalStringMap(dataJSON.String, &rec.Data); err != nil {
		slog.Error("SQLiteStore GetUser JSON unmarshal failed", "error", err, "userID", userID)
		return nil, err
	}
	return &rec, nil
}

// SaveUser stores or updates a user record.
func (s *SQLiteStore) SaveUser(rec models.UserRecord) error {
	if rec.UserID == "" {
		return models.ErrEmptyUserID
	}
	dataJSON, err := marshalStringMap(rec.Data)
	if err != nil {
		slog.Error("SQLiteStore SaveUser JSON marshal failed", "error", err, "userID", rec.UserID)
		return err
	}
	query := `INSERT OR REPLACE INTO users (user_id, data, created_at, updated_at) VALUES (?, ?, ?, ?)`
	_, err = s.db.Exec(query, rec.UserID, dataJSON, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveUser failed", "error", err, "userID", rec.UserID)
		return fmt.Errorf("failed to save user %s: %w", rec.UserID, err)
	}
	slog.Debug("SQLiteStore SaveUser succeeded", "userID", rec.UserID)
	return nil
}

// GetStack retrieves a conversation's dialog stack, or nil if none is stored.
func (s *SQLiteStore) GetStack(conversationID string) ([]models.StackEntry, error) {
	var stackJSON string
	err := s.db.QueryRow(`SELECT stack FROM dialog_stacks WHERE conversation_id = ?`, conversationID).Scan(&stackJSON)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetStack not found", "conversationID", conversationID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetStack failed", "error", err, "conversationID", conversationID)
		return nil, fmt.Errorf("failed to get stack for %s: %w", conversationID, err)
	}
	var stack []models.StackEntry
	if err := json.Unmarshal([]byte(stackJSON), &stack); err != nil {
		slog.Error("SQLiteStore GetStack JSON unmarshal failed", "error", err, "conversationID", conversationID)
		return nil, fmt.Errorf("failed to decode stack for %s: %w", conversationID, err)
	}
	return stack, nil
}

// SaveStack stores or replaces a conversation's dialog stack.
func (s *SQLiteStore) SaveStack(conversationID string, stack []models.StackEntry) error {
	if conversationID == "" {
		return models.ErrEmptyConversationID
	}
	if stack == nil {
		stack = []models.StackEntry{}
	}
	stackJSON, err := json.Marshal(stack)
	if err != nil {
		slog.Error("SQLiteStore SaveStack JSON marshal failed", "error", err, "conversationID", conversationID)
		return err
	}
	query := `INSERT OR REPLACE INTO dialog_stacks (conversation_id, stack, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)`
	if _, err := s.db.Exec(query, conversationID, string(stackJSON)); err != nil {
		slog.Error("SQLiteStore SaveStack failed", "error", err, "conversationID", conversationID)
		return fmt.Errorf("failed to save stack for %s: %w", conversationID, err)
	}
	slog.Debug("SQLiteStore SaveStack succeeded", "conversationID", conversationID, "depth", len(stack))
	return nil
}

// DeleteStack removes a conversation's dialog stack.
func (s *SQLiteStore) DeleteStack(conversationID string) error {
	_, err := s.db.Exec(`DELETE FROM dialog_stacks WHERE conversation_id = ?`, conversationID)
	if err != nil {
		slog.Error("SQLiteStore DeleteStack failed", "error", err, "conversationID", conversationID)
		return fmt.Errorf("failed to delete stack for %s: %w", conversationID, err)
	}
	slog.Debug("SQLiteStore DeleteStack succeeded", "conversationID", conversationID)
	return nil
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
