package dialog

import (
	"context"
	"testing"

	"github.com/dialogpipe/dialogpipe/internal/models"
	"github.com/dialogpipe/dialogpipe/internal/recognition"
	"github.com/dialogpipe/dialogpipe/internal/store"
)

func redirectFixture(t *testing.T, st store.Store, text string) (*GenericDisambiguator, *StepContext, *recognition.Result) {
	t.Helper()
	r := newTestRouter(t, recognition.NewStaticKnowledgeBase(nil), DefaultBotVersion)
	tc := routerTurnContext(t, r, st, &models.Turn{ConversationID: "c1", UserID: "u1", Text: text})

	res, err := r.recognition.Generate(context.Background(), text)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	g, err := NewGenericDisambiguator(recognition.NewStaticKnowledgeBase(nil))
	if err != nil {
		t.Fatalf("NewGenericDisambiguator() error = %v", err)
	}
	return g, &StepContext{tc: tc, entry: &models.StackEntry{}}, res
}

func TestRedirectOnUnhandledComeBackDefaultsToMenu(t *testing.T) {
	ctx := context.Background()
	g, sc, res := redirectFixture(t, store.NewInMemoryStore(), "go back please")

	resp, err := g.RedirectOnUnhandled(ctx, sc, res)
	if err != nil {
		t.Fatalf("RedirectOnUnhandled() error = %v", err)
	}
	if !resp.InputIdentified || resp.NextDialog != models.DialogMenu {
		t.Errorf("redirect = %+v, want the menu when no previous dialog is recorded", resp)
	}
}

func TestRedirectOnUnhandledComeBackReturnsToPreviousDialog(t *testing.T) {
	ctx := context.Background()
	g, sc, res := redirectFixture(t, store.NewInMemoryStore(), "can we come back to that")

	// Moving from the purchase dialog to the exception dialog records
	// purchase as the one to come back to.
	acc := sc.Accessors()
	if err := acc.SetCurrentDialog(ctx, models.DialogPurchase); err != nil {
		t.Fatalf("SetCurrentDialog() error = %v", err)
	}
	if err := acc.SetCurrentDialog(ctx, models.DialogException); err != nil {
		t.Fatalf("SetCurrentDialog() error = %v", err)
	}

	resp, err := g.RedirectOnUnhandled(ctx, sc, res)
	if err != nil {
		t.Fatalf("RedirectOnUnhandled() error = %v", err)
	}
	if !resp.InputIdentified || resp.NextDialog != models.DialogPurchase {
		t.Errorf("redirect = %+v, want the recorded previous dialog", resp)
	}
}
