package store

import (
	"log/slog"
	"sync"

	"github.com/dialogpipe/dialogpipe/internal/models"
)

// InMemoryStore is a mutex-guarded map-backed store, used by tests and by
// deployments that run without a database DSN.
type InMemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]models.ConversationRecord
	users         map[string]models.UserRecord
	stacks        map[string][]models.StackEntry
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		conversations: make(map[string]models.ConversationRecord),
		users:         make(map[string]models.UserRecord),
		stacks:        make(map[string][]models.StackEntry),
	}
}

// GetConversation returns the conversation record, or nil if none exists.
func (s *InMemoryStore) GetConversation(conversationID string) (*models.ConversationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.conversations[conversationID]
	if !ok {
		return nil, nil
	}
	copied := rec
	copied.Data = copyStringMap(rec.Data)
	return &copied, nil
}

// SaveConversation stores or replaces the conversation record.
func (s *InMemoryStore) SaveConversation(rec models.ConversationRecord) error {
	if rec.ConversationID == "" {
		return models.ErrEmptyConversationID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.Data = copyStringMap(rec.Data)
	s.conversations[rec.ConversationID] = rec
	slog.Debug("InMemoryStore SaveConversation succeeded", "conversationID", rec.ConversationID)
	return nil
}

// DeleteConversation removes the conversation record. Missing records are not an error.
func (s *InMemoryStore) DeleteConversation(conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, conversationID)
	return nil
}

// GetUser returns the user record, or nil if none exists.
func (s *InMemoryStore) GetUser(userID string) (*models.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	copied := rec
	copied.Data = copyStringMap(rec.Data)
	return &copied, nil
}

// SaveUser stores or replaces the user record.
func (s *InMemoryStore) SaveUser(rec models.UserRecord) error {
	if rec.UserID == "" {
		return models.ErrEmptyUserID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.Data = copyStringMap(rec.Data)
	s.users[rec.UserID] = rec
	slog.Debug("InMemoryStore SaveUser succeeded", "userID", rec.UserID)
	return nil
}

// GetStack returns the conversation's dialog stack, or nil if none is stored.
func (s *InMemoryStore) GetStack(conversationID string) ([]models.StackEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stack, ok := s.stacks[conversationID]
	if !ok {
		return nil, nil
	}
	return copyStack(stack), nil
}

// SaveStack stores or replaces the conversation's dialog stack.
func (s *InMemoryStore) SaveStack(conversationID string, stack []models.StackEntry) error {
	if conversationID == "" {
		return models.ErrEmptyConversationID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stacks[conversationID] = copyStack(stack)
	slog.Debug("InMemoryStore SaveStack succeeded", "conversationID", conversationID, "depth", len(stack))
	return nil
}

// DeleteStack removes the conversation's dialog stack.
func (s *InMemoryStore) DeleteStack(conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stacks, conversationID)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}

func copyStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyStack(stack []models.StackEntry) []models.StackEntry {
	if stack == nil {
		return nil
	}
	out := make([]models.StackEntry, len(stack))
	for i, e := range stack {
		e.Values = copyStringMap(e.Values)
		e.Options = copyStringMap(e.Options)
		out[i] = e
	}
	return out
}
