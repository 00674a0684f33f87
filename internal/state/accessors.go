// Package state provides typed accessors over conversation- and user-scoped
// persisted properties.
//
// An Accessors instance serves one conversation turn: reads are cached, writes
// mark the owning scope dirty, and nothing reaches the store until SaveChanges.
// Turns of one conversation never run concurrently, so the cache needs no lock.
package state

import (
	"context"
	"log/slog"
	"time"

	"github.com/dialogpipe/dialogpipe/internal/models"
	"github.com/dialogpipe/dialogpipe/internal/store"
)

// Accessors exposes the persisted properties of one conversation and its user.
type Accessors struct {
	store          store.Store
	conversationID string
	userID         string

	conv        *models.ConversationRecord
	user        *models.UserRecord
	stack       []models.StackEntry
	stackLoaded bool

	convDirty  bool
	userDirty  bool
	stackDirty bool
}

// New creates accessors for one conversation turn.
func New(st store.Store, conversationID, userID string) (*Accessors, error) {
	if st == nil {
		return nil, models.ErrMissingStore
	}
	if conversationID == "" {
		return nil, models.ErrEmptyConversationID
	}
	if userID == "" {
		return nil, models.ErrEmptyUserID
	}
	return &Accessors{store: st, conversationID: conversationID, userID: userID}, nil
}

// ConversationID returns the conversation these accessors are bound to.
func (a *Accessors) ConversationID() string { return a.conversationID }

// UserID returns the user these accessors are bound to.
func (a *Accessors) UserID() string { return a.userID }

// Conversation returns the cached conversation record, loading or lazily
// creating it on first access.
func (a *Accessors) Conversation(ctx context.Context) (*models.ConversationRecord, error) {
	if a.conv != nil {
		return a.conv, nil
	}
	rec, err := a.store.GetConversation(a.conversationID)
	if err != nil {
		slog.Error("Accessors Conversation load failed", "error", err, "conversationID", a.conversationID)
		return nil, models.Describe(err, "loading conversation state")
	}
	if rec == nil {
		now := time.Now().UTC()
		rec = &models.ConversationRecord{
			ConversationID: a.conversationID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		a.convDirty = true
		slog.Debug("Accessors created new conversation record", "conversationID", a.conversationID)
	}
	if rec.Data == nil {
		rec.Data = make(map[string]string)
	}
	a.conv = rec
	return a.conv, nil
}

// User returns the cached user record, loading or lazily creating it on first access.
func (a *Accessors) User(ctx context.Context) (*models.UserRecord, error) {
	if a.user != nil {
		return a.user, nil
	}
	rec, err := a.store.GetUser(a.userID)
	if err != nil {
		slog.Error("Accessors User load failed", "error", err, "userID", a.userID)
		return nil, models.Describe(err, "loading user state")
	}
	if rec == nil {
		now := time.Now().UTC()
		rec = &models.UserRecord{UserID: a.userID, CreatedAt: now, UpdatedAt: now}
		a.userDirty = true
		slog.Debug("Accessors created new user record", "userID", a.userID)
	}
	if rec.Data == nil {
		rec.Data = make(map[string]string)
	}
	a.user = rec
	return a.user, nil
}

// CurrentDialog returns the dialog active when the previous turn ended.
func (a *Accessors) CurrentDialog(ctx context.Context) (models.DialogID, error) {
	conv, err := a.Conversation(ctx)
	if err != nil {
		return models.DialogNone, err
	}
	return conv.CurrentDialog, nil
}

// SetCurrentDialog records the active dialog, remembering the prior one as
// PreviousDialog so redirection can return to it.
func (a *Accessors) SetCurrentDialog(ctx context.Context, id models.DialogID) error {
	conv, err := a.Conversation(ctx)
	if err != nil {
		return err
	}
	if conv.CurrentDialog != id {
		conv.PreviousDialog = conv.CurrentDialog
		conv.CurrentDialog = id
		a.convDirty = true
	}
	return nil
}

// PreviousDialog returns the dialog to return to on a "come back" redirect.
func (a *Accessors) PreviousDialog(ctx context.Context) (models.DialogID, error) {
	conv, err := a.Conversation(ctx)
	if err != nil {
		return models.DialogNone, err
	}
	return conv.PreviousDialog, nil
}

// DialogComplete reports whether the active dialog finished and routing should run.
func (a *Accessors) DialogComplete(ctx context.Context) (bool, error) {
	conv, err := a.Conversation(ctx)
	if err != nil {
		return false, err
	}
	return conv.DialogComplete, nil
}

// SetDialogComplete sets the routing flag.
func (a *Accessors) SetDialogComplete(ctx context.Context, complete bool) error {
	conv, err := a.Conversation(ctx)
	if err != nil {
		return err
	}
	if conv.DialogComplete != complete {
		conv.DialogComplete = complete
		a.convDirty = true
	}
	return nil
}

// IsSecondException reports whether the previous turn already fell through to
// the exception dialog.
func (a *Accessors) IsSecondException(ctx context.Context) (bool, error) {
	conv, err := a.Conversation(ctx)
	if err != nil {
		return false, err
	}
	return conv.IsSecondException, nil
}

// SetIsSecondException sets the exception escalation flag.
func (a *Accessors) SetIsSecondException(ctx context.Context, second bool) error {
	conv, err := a.Conversation(ctx)
	if err != nil {
		return err
	}
	if conv.IsSecondException != second {
		conv.IsSecondException = second
		a.convDirty = true
	}
	return nil
}

// ConversationData returns one value of the conversation's free-form bag,
// "" when unset.
func (a *Accessors) ConversationData(ctx context.Context, key string) (string, error) {
	conv, err := a.Conversation(ctx)
	if err != nil {
		return "", err
	}
	return conv.Data[key], nil
}

// SetConversationData stores one value in the conversation's free-form bag.
func (a *Accessors) SetConversationData(ctx context.Context, key, value string) error {
	conv, err := a.Conversation(ctx)
	if err != nil {
		return err
	}
	conv.Data[key] = value
	a.convDirty = true
	return nil
}

// DeleteConversationData removes one value from the conversation's bag.
func (a *Accessors) DeleteConversationData(ctx context.Context, key string) error {
	conv, err := a.Conversation(ctx)
	if err != nil {
		return err
	}
	if _, ok := conv.Data[key]; ok {
		delete(conv.Data, key)
		a.convDirty = true
	}
	return nil
}

// UserData returns one value of the user's bag, "" when unset.
func (a *Accessors) UserData(ctx context.Context, key string) (string, error) {
	user, err := a.User(ctx)
	if err != nil {
		return "", err
	}
	return user.Data[key], nil
}

// SetUserData stores one value in the user's bag.
func (a *Accessors) SetUserData(ctx context.Context, key, value string) error {
	user, err := a.User(ctx)
	if err != nil {
		return err
	}
	user.Data[key] = value
	a.userDirty = true
	return nil
}

// Stack returns the conversation's dialog stack, loading it on first access.
// The returned slice is the live cached stack; callers hand back modifications
// through SetStack.
func (a *Accessors) Stack(ctx context.Context) ([]models.StackEntry, error) {
	if a.stackLoaded {
		return a.stack, nil
	}
	stack, err := a.store.GetStack(a.conversationID)
	if err != nil {
		slog.Error("Accessors Stack load failed", "error", err, "conversationID", a.conversationID)
		return nil, models.Describe(err, "loading dialog stack")
	}
	a.stack = stack
	a.stackLoaded = true
	return a.stack, nil
}

// SetStack replaces the cached dialog stack.
func (a *Accessors) SetStack(ctx context.Context, stack []models.StackEntry) {
	a.stack = stack
	a.stackLoaded = true
	a.stackDirty = true
}

// SaveChanges flushes every dirty scope to the store. This is the explicit
// end-of-turn persistence point; nothing is written before it.
func (a *Accessors) SaveChanges(ctx context.Context) error {
	now := time.Now().UTC()
	if a.convDirty && a.conv != nil {
		a.conv.UpdatedAt = now
		if err := a.store.SaveConversation(*a.conv); err != nil {
			slog.Error("Accessors SaveChanges conversation flush failed", "error", err, "conversationID", a.conversationID)
			return models.Describe(err, "saving conversation state")
		}
		a.convDirty = false
	}
	if a.userDirty && a.user != nil {
		a.user.UpdatedAt = now
		if err := a.store.SaveUser(*a.user); err != nil {
			slog.Error("Accessors SaveChanges user flush failed", "error", err, "userID", a.userID)
			return models.Describe(err, "saving user state")
		}
		a.userDirty = false
	}
	if a.stackDirty {
		if err := a.store.SaveStack(a.conversationID, a.stack); err != nil {
			slog.Error("Accessors SaveChanges stack flush failed", "error", err, "conversationID", a.conversationID)
			return models.Describe(err, "saving dialog stack")
		}
		a.stackDirty = false
	}
	slog.Debug("Accessors SaveChanges succeeded", "conversationID", a.conversationID)
	return nil
}

// DeleteConversationState removes all conversation-scoped state (record and
// stack) from the store and the cache. User-scoped state is untouched. Used by
// the turn-error boundary to start the next turn from a clean conversation.
func (a *Accessors) DeleteConversationState(ctx context.Context) error {
	if err := a.store.DeleteConversation(a.conversationID); err != nil {
		slog.Error("Accessors DeleteConversationState conversation delete failed", "error", err, "conversationID", a.conversationID)
		return models.Describe(err, "resetting conversation state")
	}
	if err := a.store.DeleteStack(a.conversationID); err != nil {
		slog.Error("Accessors DeleteConversationState stack delete failed", "error", err, "conversationID", a.conversationID)
		return models.Describe(err, "resetting dialog stack")
	}
	a.conv = nil
	a.stack = nil
	a.stackLoaded = false
	a.convDirty = false
	a.stackDirty = false
	slog.Info("Accessors conversation state reset", "conversationID", a.conversationID)
	return nil
}
