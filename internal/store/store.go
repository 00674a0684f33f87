// Package store provides storage backends for DialogPipe.
//
// It persists conversation records, user records and dialog stacks behind a
// single Store interface, with in-memory, SQLite and PostgreSQL implementations.
package store

import (
	"strings"

	"github.com/dialogpipe/dialogpipe/internal/models"
)

// Store is the persistence contract consumed by the state accessors.
// Get operations return nil (not an error) when no record exists.
type Store interface {
	GetConversation(conversationID string) (*models.ConversationRecord, error)
	SaveConversation(rec models.ConversationRecord) error
	DeleteConversation(conversationID string) error

	GetUser(userID string) (*models.UserRecord, error)
	SaveUser(rec models.UserRecord) error

	GetStack(conversationID string) ([]models.StackEntry, error)
	SaveStack(conversationID string, stack []models.StackEntry) error
	DeleteStack(conversationID string) error

	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType returns "postgres" for PostgreSQL-style connection strings and
// "sqlite3" otherwise (plain file paths are treated as SQLite databases).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite3"
}
