// Package bot owns the turn boundary: it serializes turns per conversation,
// drives the dialog router, and flushes or resets state when the turn ends.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dialogpipe/dialogpipe/internal/dialog"
	"github.com/dialogpipe/dialogpipe/internal/models"
	"github.com/dialogpipe/dialogpipe/internal/recognition"
	"github.com/dialogpipe/dialogpipe/internal/state"
	"github.com/dialogpipe/dialogpipe/internal/store"
)

const (
	turnErrorMessage  = "The bot encountered an error or bug."
	turnErrorFollowUp = "To continue to run this bot, please fix the bot source code."
)

// Opts holds configuration options for the bot.
type Opts struct {
	Store       store.Store
	Router      *dialog.Router
	Recognition *recognition.Helper
	Knowledge   recognition.KnowledgeBase
	// BotUserID is the bot's own member id, skipped in member-added greetings.
	BotUserID string
}

// Option defines a configuration option for the bot.
type Option func(*Opts)

// WithStore sets the persistence backend.
func WithStore(st store.Store) Option {
	return func(o *Opts) { o.Store = st }
}

// WithRouter sets the dialog router.
func WithRouter(r *dialog.Router) Option {
	return func(o *Opts) { o.Router = r }
}

// WithRecognitionHelper sets the turn-caching recognition helper.
func WithRecognitionHelper(h *recognition.Helper) Option {
	return func(o *Opts) { o.Recognition = h }
}

// WithKnowledgeBase sets the FAQ knowledge base.
func WithKnowledgeBase(kb recognition.KnowledgeBase) Option {
	return func(o *Opts) { o.Knowledge = kb }
}

// WithBotUserID sets the bot's own member id.
func WithBotUserID(id string) Option {
	return func(o *Opts) { o.BotUserID = id }
}

// Bot handles inbound turns end to end. Turns for the same conversation are
// serialized; turns for different conversations run concurrently.
type Bot struct {
	store       store.Store
	router      *dialog.Router
	recognition *recognition.Helper
	knowledge   recognition.KnowledgeBase
	botUserID   string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a bot from the given options.
func New(opts ...Option) (*Bot, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Store == nil {
		return nil, models.ErrMissingStore
	}
	if cfg.Router == nil {
		return nil, fmt.Errorf("dialog router is required")
	}
	if cfg.Recognition == nil {
		return nil, models.ErrMissingRecognizer
	}
	if cfg.Knowledge == nil {
		return nil, models.ErrMissingKnowledge
	}

	return &Bot{
		store:       cfg.Store,
		router:      cfg.Router,
		recognition: cfg.Recognition,
		knowledge:   cfg.Knowledge,
		botUserID:   cfg.BotUserID,
		locks:       make(map[string]*sync.Mutex),
	}, nil
}

// conversationLock returns the mutex serializing turns of one conversation.
func (b *Bot) conversationLock(conversationID string) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.locks[conversationID]
	if !ok {
		l = &sync.Mutex{}
		b.locks[conversationID] = l
	}
	return l
}

// HandleTurn processes one inbound turn and returns the outbound messages.
// A turn that fails mid-dialog reports the failure to the user and resets the
// conversation state, so the next turn starts clean. User state survives.
func (b *Bot) HandleTurn(ctx context.Context, turn *models.Turn) (messages []models.Message, err error) {
	if turn == nil {
		return nil, fmt.Errorf("turn cannot be nil")
	}
	if turn.ConversationID == "" {
		return nil, models.ErrEmptyConversationID
	}
	if turn.UserID == "" {
		return nil, models.ErrEmptyUserID
	}

	lock := b.conversationLock(turn.ConversationID)
	lock.Lock()
	defer lock.Unlock()

	acc, err := state.New(b.store, turn.ConversationID, turn.UserID)
	if err != nil {
		return nil, err
	}
	tc := dialog.NewTurnContext(turn, acc, b.recognition, b.knowledge)

	turnErr := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("dialog panicked: %v", r)
			}
		}()
		return b.router.ContinueTurn(ctx, tc)
	}()

	if turnErr != nil {
		return b.failTurn(ctx, tc, acc, turnErr)
	}

	if err := b.recognition.Clear(ctx, acc); err != nil {
		slog.Error("Bot recognition cache clear failed", "error", err, "conversationID", turn.ConversationID)
	}
	if err := acc.SaveChanges(ctx); err != nil {
		return b.failTurn(ctx, tc, acc, err)
	}

	slog.Debug("Bot turn handled", "conversationID", turn.ConversationID, "messages", len(tc.Messages()))
	return tc.Messages(), nil
}

// failTurn reports the failure to the user and wipes the conversation state.
// The error itself is logged, not returned: the turn was handled, badly.
func (b *Bot) failTurn(ctx context.Context, tc *dialog.TurnContext, acc *state.Accessors, turnErr error) ([]models.Message, error) {
	slog.Error("Bot turn failed", "error", turnErr, "descriptions", models.DescriptionChain(turnErr))

	tc.SendText(turnErrorMessage)
	tc.SendText(turnErrorFollowUp)

	if err := acc.DeleteConversationState(ctx); err != nil {
		slog.Error("Bot conversation state reset failed", "error", err)
		return tc.Messages(), err
	}
	return tc.Messages(), nil
}

// MemberGreeting is the greeting produced for one added conversation member.
type MemberGreeting struct {
	UserID   string
	Messages []models.Message
}

// HandleMembersAdded greets every member newly added to a conversation by
// running an empty turn for each, which starts the onboarding flow. The bot's
// own id is skipped. Greetings run concurrently, one conversation per member.
func (b *Bot) HandleMembersAdded(ctx context.Context, conversationID string, memberIDs []string) ([]MemberGreeting, error) {
	if conversationID == "" {
		return nil, models.ErrEmptyConversationID
	}

	greetings := make([]MemberGreeting, len(memberIDs))
	errs := make([]error, len(memberIDs))
	var wg sync.WaitGroup
	for i, memberID := range memberIDs {
		if memberID == "" || memberID == b.botUserID {
			continue
		}
		wg.Add(1)
		go func(i int, memberID string) {
			defer wg.Done()
			msgs, err := b.HandleTurn(ctx, &models.Turn{
				ConversationID: conversationID,
				UserID:         memberID,
			})
			greetings[i] = MemberGreeting{UserID: memberID, Messages: msgs}
			errs[i] = err
		}(i, memberID)
	}
	wg.Wait()

	out := make([]MemberGreeting, 0, len(memberIDs))
	for i, g := range greetings {
		if errs[i] != nil {
			slog.Error("Bot member greeting failed", "error", errs[i], "userID", memberIDs[i])
			continue
		}
		if g.UserID != "" {
			out = append(out, g)
		}
	}
	return out, nil
}
