package dialog

import (
	"context"
	"errors"
	"testing"

	"github.com/dialogpipe/dialogpipe/internal/models"
	"github.com/dialogpipe/dialogpipe/internal/recognition"
	"github.com/dialogpipe/dialogpipe/internal/state"
	"github.com/dialogpipe/dialogpipe/internal/store"
)

type failingKnowledgeBase struct{}

func (failingKnowledgeBase) Lookup(ctx context.Context, text string) ([]recognition.Answer, error) {
	return nil, errors.New("knowledge base down")
}

func newTestRouter(t *testing.T, kb recognition.KnowledgeBase, version float64) *Router {
	t.Helper()
	helper, err := recognition.NewHelper(recognition.NewStaticRecognizer(), 0.7)
	if err != nil {
		t.Fatalf("NewHelper() error = %v", err)
	}
	router, err := NewRouter(
		WithRecognitionHelper(helper),
		WithKnowledgeBase(kb),
		WithBotVersion(version),
	)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	return router
}

func routerTurnContext(t *testing.T, r *Router, st store.Store, turn *models.Turn) *TurnContext {
	t.Helper()
	acc, err := state.New(st, turn.ConversationID, turn.UserID)
	if err != nil {
		t.Fatalf("state.New() error = %v", err)
	}
	return NewTurnContext(turn, acc, r.recognition, r.knowledge)
}

func TestSelectDialogPrefersMenuOverFarewell(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore()
	kb := recognition.NewStaticKnowledgeBase(nil)
	r := newTestRouter(t, kb, DefaultBotVersion)

	// Both the menu and farewell dialogs claim this input; the sweep order
	// decides.
	tc := routerTurnContext(t, r, st, &models.Turn{ConversationID: "c1", UserID: "u1", Text: "menu, then bye"})
	id, _, found, err := r.selectDialog(ctx, tc, false)
	if err != nil {
		t.Fatalf("selectDialog() error = %v", err)
	}
	if !found {
		t.Fatal("expected a candidate")
	}
	if id != models.DialogMenu {
		t.Errorf("selected %q, want %q", id, models.DialogMenu)
	}
}

func TestSelectDialogFarewell(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore()
	r := newTestRouter(t, recognition.NewStaticKnowledgeBase(nil), DefaultBotVersion)

	tc := routerTurnContext(t, r, st, &models.Turn{ConversationID: "c1", UserID: "u1", Text: "ok bye"})
	id, _, found, err := r.selectDialog(ctx, tc, false)
	if err != nil {
		t.Fatalf("selectDialog() error = %v", err)
	}
	if !found || id != models.DialogFarewell {
		t.Errorf("selected %q (found %v), want %q", id, found, models.DialogFarewell)
	}
}

func TestSelectDialogFAQAndLoopGuard(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore()
	kb := recognition.NewStaticKnowledgeBase(map[string]string{
		"return policy": "You can return any TV within 30 days.",
	})
	r := newTestRouter(t, kb, DefaultBotVersion)

	tc := routerTurnContext(t, r, st, &models.Turn{ConversationID: "c1", UserID: "u1", Text: "what is the return policy"})
	id, _, found, err := r.selectDialog(ctx, tc, false)
	if err != nil {
		t.Fatalf("selectDialog() error = %v", err)
	}
	if !found || id != models.DialogFAQ {
		t.Fatalf("selected %q (found %v), want %q", id, found, models.DialogFAQ)
	}

	// A second FAQ hit in the same routing cycle escalates instead of looping.
	tc = routerTurnContext(t, r, st, &models.Turn{ConversationID: "c2", UserID: "u1", Text: "what is the return policy"})
	id, _, found, err = r.selectDialog(ctx, tc, true)
	if err != nil {
		t.Fatalf("selectDialog() error = %v", err)
	}
	if !found || id != models.DialogException {
		t.Errorf("selected %q (found %v), want %q", id, found, models.DialogException)
	}
}

func TestSelectDialogFailedCandidateCountsAsNo(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore()
	r := newTestRouter(t, failingKnowledgeBase{}, DefaultBotVersion)

	// No intent in the input, so the FAQ dialog polls its knowledge base and
	// fails. The activateMenu override keeps the menu claiming the turn.
	tc := routerTurnContext(t, r, st, &models.Turn{ConversationID: "c1", UserID: "u1", Text: "mumble mumble"})
	if err := tc.Accessors.SetUserData(ctx, models.UserKeyActivateMenu, "true"); err != nil {
		t.Fatalf("SetUserData() error = %v", err)
	}

	id, _, found, err := r.selectDialog(ctx, tc, false)
	if err != nil {
		t.Fatalf("selectDialog() error = %v", err)
	}
	if !found || id != models.DialogMenu {
		t.Errorf("selected %q (found %v), want %q despite the failing FAQ poll", id, found, models.DialogMenu)
	}
}

func TestSelectDialogVersionGate(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore()
	r := newTestRouter(t, recognition.NewStaticKnowledgeBase(nil), 2.0)

	// The user was onboarded by an older bot version, so the gated dialogs
	// refuse the turn.
	tc := routerTurnContext(t, r, st, &models.Turn{ConversationID: "c1", UserID: "u1", Text: "menu"})
	if err := tc.Accessors.SetUserData(ctx, models.UserKeyVersion, "1.0"); err != nil {
		t.Fatalf("SetUserData() error = %v", err)
	}

	_, _, found, err := r.selectDialog(ctx, tc, false)
	if err != nil {
		t.Fatalf("selectDialog() error = %v", err)
	}
	if found {
		t.Error("gated dialogs should not claim the turn for an outdated user")
	}

	// The activateMenu override bypasses the gate.
	if err := tc.Accessors.SetUserData(ctx, models.UserKeyActivateMenu, "true"); err != nil {
		t.Fatalf("SetUserData() error = %v", err)
	}
	id, _, found, err := r.selectDialog(ctx, tc, false)
	if err != nil {
		t.Fatalf("selectDialog() error = %v", err)
	}
	if !found || id != models.DialogMenu {
		t.Errorf("selected %q (found %v), want %q with the override set", id, found, models.DialogMenu)
	}
}

func TestContinueTurnReroutesCompletedDialog(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore()
	r := newTestRouter(t, recognition.NewStaticKnowledgeBase(nil), DefaultBotVersion)

	// Simulate a conversation whose previous dialog flagged completion while
	// a stale stack entry is still suspended.
	setup := routerTurnContext(t, r, st, &models.Turn{ConversationID: "c1", UserID: "u1"})
	if err := setup.Accessors.SetDialogComplete(ctx, true); err != nil {
		t.Fatalf("SetDialogComplete() error = %v", err)
	}
	setup.Accessors.SetStack(ctx, []models.StackEntry{{Dialog: models.DialogOnboarding, Step: 2}})
	if err := setup.Accessors.SaveChanges(ctx); err != nil {
		t.Fatalf("SaveChanges() error = %v", err)
	}

	tc := routerTurnContext(t, r, st, &models.Turn{ConversationID: "c1", UserID: "u1", Text: "menu"})
	if err := r.ContinueTurn(ctx, tc); err != nil {
		t.Fatalf("ContinueTurn() error = %v", err)
	}
	if err := tc.Accessors.SaveChanges(ctx); err != nil {
		t.Fatalf("SaveChanges() error = %v", err)
	}

	stack, err := st.GetStack("c1")
	if err != nil {
		t.Fatalf("GetStack() error = %v", err)
	}
	if len(stack) != 1 || stack[0].Dialog != models.DialogMenu {
		t.Fatalf("stack = %+v, want the rerouted menu dialog", stack)
	}
	last := lastMessage(t, tc)
	if last.Body != menuDefaultMessage {
		t.Errorf("prompt = %q, want %q", last.Body, menuDefaultMessage)
	}
}

func TestContinueTurnEmptyStackStartsMain(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore()
	r := newTestRouter(t, recognition.NewStaticKnowledgeBase(nil), DefaultBotVersion)

	tc := routerTurnContext(t, r, st, &models.Turn{ConversationID: "c1", UserID: "u1"})
	if err := r.ContinueTurn(ctx, tc); err != nil {
		t.Fatalf("ContinueTurn() error = %v", err)
	}

	// Main immediately defers to onboarding for a fresh conversation.
	messages := tc.Messages()
	if len(messages) == 0 {
		t.Fatal("expected onboarding output")
	}
	if messages[len(messages)-1].Body != onboardingPromptMessage {
		t.Errorf("prompt = %q, want %q", messages[len(messages)-1].Body, onboardingPromptMessage)
	}
}
