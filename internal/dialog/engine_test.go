package dialog

import (
	"context"
	"strings"
	"testing"

	"github.com/dialogpipe/dialogpipe/internal/models"
	"github.com/dialogpipe/dialogpipe/internal/recognition"
	"github.com/dialogpipe/dialogpipe/internal/state"
	"github.com/dialogpipe/dialogpipe/internal/store"
)

// scriptedDialog lets tests register arbitrary step sequences under a valid
// dialog identifier.
type scriptedDialog struct {
	id    models.DialogID
	steps []Step
}

func (d *scriptedDialog) ID() models.DialogID { return d.id }
func (d *scriptedDialog) Steps() []Step       { return d.steps }

func newTestRegistry(t *testing.T, dialogs ...Dialog) *Registry {
	t.Helper()
	registry := NewRegistry()
	for _, d := range dialogs {
		if err := registry.Add(d); err != nil {
			t.Fatalf("Add(%s) error = %v", d.ID(), err)
		}
	}
	return registry
}

func newTestTurnContext(t *testing.T, st store.Store, turn *models.Turn) *TurnContext {
	t.Helper()
	acc, err := state.New(st, turn.ConversationID, turn.UserID)
	if err != nil {
		t.Fatalf("state.New() error = %v", err)
	}
	helper, err := recognition.NewHelper(recognition.NewStaticRecognizer(), 0.7)
	if err != nil {
		t.Fatalf("NewHelper() error = %v", err)
	}
	kb := recognition.NewStaticKnowledgeBase(map[string]string{
		"return policy": "You can return any TV within 30 days.",
	})
	return NewTurnContext(turn, acc, helper, kb)
}

func saveTurn(t *testing.T, tc *TurnContext) {
	t.Helper()
	if err := tc.Accessors.SaveChanges(context.Background()); err != nil {
		t.Fatalf("SaveChanges() error = %v", err)
	}
}

func lastMessage(t *testing.T, tc *TurnContext) models.Message {
	t.Helper()
	messages := tc.Messages()
	if len(messages) == 0 {
		t.Fatal("no messages buffered")
	}
	return messages[len(messages)-1]
}

func TestEnginePromptSuspendsAndResumeFeedsResult(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore()

	var captured string
	registry := newTestRegistry(t, &scriptedDialog{
		id: models.DialogMain,
		steps: []Step{
			func(ctx context.Context, sc *StepContext) (StepResult, error) {
				return sc.Prompt("What is your name?"), nil
			},
			func(ctx context.Context, sc *StepContext) (StepResult, error) {
				captured = sc.Result()
				return End(""), nil
			},
		},
	})
	engine, err := NewEngine(registry)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	tc := newTestTurnContext(t, st, &models.Turn{ConversationID: "c1", UserID: "u1"})
	status, err := engine.BeginDialog(ctx, tc, models.DialogMain, nil)
	if err != nil {
		t.Fatalf("BeginDialog() error = %v", err)
	}
	if status != StatusWaiting {
		t.Fatalf("status = %v, want StatusWaiting", status)
	}
	if !lastMessage(t, tc).ExpectingInput {
		t.Error("prompt message should expect input")
	}
	saveTurn(t, tc)

	stack, err := st.GetStack("c1")
	if err != nil {
		t.Fatalf("GetStack() error = %v", err)
	}
	if len(stack) != 1 || stack[0].Step != 1 {
		t.Fatalf("stack = %+v, want one entry suspended at step 1", stack)
	}

	tc = newTestTurnContext(t, st, &models.Turn{ConversationID: "c1", UserID: "u1", Text: "Ana"})
	status, err = engine.ContinueDialog(ctx, tc)
	if err != nil {
		t.Fatalf("ContinueDialog() error = %v", err)
	}
	if status != StatusComplete {
		t.Fatalf("status = %v, want StatusComplete", status)
	}
	if captured != "Ana" {
		t.Errorf("resumed step got %q, want %q", captured, "Ana")
	}
	saveTurn(t, tc)

	stack, err = st.GetStack("c1")
	if err != nil {
		t.Fatalf("GetStack() error = %v", err)
	}
	if len(stack) != 0 {
		t.Errorf("stack should drain after the dialog ends, got %+v", stack)
	}
}

func TestEngineContinueDialogEmptyStack(t *testing.T) {
	st := store.NewInMemoryStore()
	registry := newTestRegistry(t, &scriptedDialog{
		id:    models.DialogMain,
		steps: []Step{func(ctx context.Context, sc *StepContext) (StepResult, error) { return End(""), nil }},
	})
	engine, err := NewEngine(registry)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	tc := newTestTurnContext(t, st, &models.Turn{ConversationID: "c1", UserID: "u1", Text: "hi"})
	status, err := engine.ContinueDialog(context.Background(), tc)
	if err != nil {
		t.Fatalf("ContinueDialog() error = %v", err)
	}
	if status != StatusEmpty {
		t.Errorf("status = %v, want StatusEmpty", status)
	}
}

func TestEngineChildEndFeedsParent(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore()

	var fromChild string
	parent := &scriptedDialog{
		id: models.DialogPurchase,
		steps: []Step{
			func(ctx context.Context, sc *StepContext) (StepResult, error) {
				return Begin(models.DialogPurchaseBrand, nil), nil
			},
			func(ctx context.Context, sc *StepContext) (StepResult, error) {
				fromChild = sc.Result()
				return End(""), nil
			},
		},
	}
	child := &scriptedDialog{
		id: models.DialogPurchaseBrand,
		steps: []Step{
			func(ctx context.Context, sc *StepContext) (StepResult, error) {
				return sc.Prompt("Which brand?"), nil
			},
			func(ctx context.Context, sc *StepContext) (StepResult, error) {
				return End(sc.Text()), nil
			},
		},
	}
	engine, err := NewEngine(newTestRegistry(t, parent, child))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	tc := newTestTurnContext(t, st, &models.Turn{ConversationID: "c1", UserID: "u1"})
	status, err := engine.BeginDialog(ctx, tc, models.DialogPurchase, nil)
	if err != nil {
		t.Fatalf("BeginDialog() error = %v", err)
	}
	if status != StatusWaiting {
		t.Fatalf("status = %v, want StatusWaiting", status)
	}
	saveTurn(t, tc)

	stack, _ := st.GetStack("c1")
	if len(stack) != 2 {
		t.Fatalf("stack depth = %d, want 2 (parent plus suspended child)", len(stack))
	}

	tc = newTestTurnContext(t, st, &models.Turn{ConversationID: "c1", UserID: "u1", Text: "samsung"})
	status, err = engine.ContinueDialog(ctx, tc)
	if err != nil {
		t.Fatalf("ContinueDialog() error = %v", err)
	}
	if status != StatusComplete {
		t.Fatalf("status = %v, want StatusComplete", status)
	}
	if fromChild != "samsung" {
		t.Errorf("parent resumed with %q, want %q", fromChild, "samsung")
	}
}

func TestEngineImplicitEndPastLastStep(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore()

	var fromChild = "sentinel"
	parent := &scriptedDialog{
		id: models.DialogPurchase,
		steps: []Step{
			func(ctx context.Context, sc *StepContext) (StepResult, error) {
				return Begin(models.DialogPurchaseBrand, nil), nil
			},
			func(ctx context.Context, sc *StepContext) (StepResult, error) {
				fromChild = sc.Result()
				return End(""), nil
			},
		},
	}
	// The child's only step advances without ending, so the waterfall runs
	// past its last step.
	child := &scriptedDialog{
		id: models.DialogPurchaseBrand,
		steps: []Step{
			func(ctx context.Context, sc *StepContext) (StepResult, error) {
				return Next("ignored"), nil
			},
		},
	}
	engine, err := NewEngine(newTestRegistry(t, parent, child))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	tc := newTestTurnContext(t, st, &models.Turn{ConversationID: "c1", UserID: "u1"})
	status, err := engine.BeginDialog(ctx, tc, models.DialogPurchase, nil)
	if err != nil {
		t.Fatalf("BeginDialog() error = %v", err)
	}
	if status != StatusComplete {
		t.Fatalf("status = %v, want StatusComplete", status)
	}
	if fromChild != "" {
		t.Errorf("implicit end should feed the parent an empty result, got %q", fromChild)
	}
}

func TestEngineReplaceRestartsAtStepZero(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore()

	main := &scriptedDialog{
		id: models.DialogMain,
		steps: []Step{
			func(ctx context.Context, sc *StepContext) (StepResult, error) {
				return Replace(models.DialogMenu, nil), nil
			},
		},
	}
	menu := &scriptedDialog{
		id: models.DialogMenu,
		steps: []Step{
			func(ctx context.Context, sc *StepContext) (StepResult, error) {
				return sc.Prompt("What else can I do for you?"), nil
			},
		},
	}
	engine, err := NewEngine(newTestRegistry(t, main, menu))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	tc := newTestTurnContext(t, st, &models.Turn{ConversationID: "c1", UserID: "u1"})
	status, err := engine.BeginDialog(ctx, tc, models.DialogMain, nil)
	if err != nil {
		t.Fatalf("BeginDialog() error = %v", err)
	}
	if status != StatusWaiting {
		t.Fatalf("status = %v, want StatusWaiting", status)
	}
	saveTurn(t, tc)

	stack, _ := st.GetStack("c1")
	if len(stack) != 1 || stack[0].Dialog != models.DialogMenu || stack[0].Step != 1 {
		t.Errorf("stack = %+v, want menu suspended at step 1", stack)
	}
}

func TestEngineCancelAllAndBeginClearsNestedStack(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore()

	root := &scriptedDialog{
		id: models.DialogPurchase,
		steps: []Step{
			func(ctx context.Context, sc *StepContext) (StepResult, error) {
				return Begin(models.DialogPurchaseBrand, nil), nil
			},
			func(ctx context.Context, sc *StepContext) (StepResult, error) {
				return End(""), nil
			},
		},
	}
	nested := &scriptedDialog{
		id: models.DialogPurchaseBrand,
		steps: []Step{
			func(ctx context.Context, sc *StepContext) (StepResult, error) {
				return CancelAllAndBegin(models.DialogException, nil), nil
			},
		},
	}
	exception := &scriptedDialog{
		id: models.DialogException,
		steps: []Step{
			func(ctx context.Context, sc *StepContext) (StepResult, error) {
				return sc.Prompt("Sorry, I didn't understand."), nil
			},
		},
	}
	engine, err := NewEngine(newTestRegistry(t, root, nested, exception))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	tc := newTestTurnContext(t, st, &models.Turn{ConversationID: "c1", UserID: "u1"})
	status, err := engine.BeginDialog(ctx, tc, models.DialogPurchase, nil)
	if err != nil {
		t.Fatalf("BeginDialog() error = %v", err)
	}
	if status != StatusWaiting {
		t.Fatalf("status = %v, want StatusWaiting", status)
	}
	saveTurn(t, tc)

	stack, _ := st.GetStack("c1")
	if len(stack) != 1 || stack[0].Dialog != models.DialogException {
		t.Errorf("stack = %+v, want only the exception dialog", stack)
	}
}

func TestEngineRouteTransition(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore()

	main := &scriptedDialog{
		id: models.DialogMain,
		steps: []Step{
			func(ctx context.Context, sc *StepContext) (StepResult, error) {
				return Route(false), nil
			},
		},
	}
	menu := &scriptedDialog{
		id: models.DialogMenu,
		steps: []Step{
			func(ctx context.Context, sc *StepContext) (StepResult, error) {
				return sc.Prompt("What else can I do for you?"), nil
			},
		},
	}
	engine, err := NewEngine(newTestRegistry(t, main, menu))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	engine.SetRouteFunc(func(ctx context.Context, tc *TurnContext, faq bool) (models.DialogID, map[string]string, bool, error) {
		return models.DialogMenu, nil, true, nil
	})

	tc := newTestTurnContext(t, st, &models.Turn{ConversationID: "c1", UserID: "u1", Text: "menu"})
	status, err := engine.BeginDialog(ctx, tc, models.DialogMain, nil)
	if err != nil {
		t.Fatalf("BeginDialog() error = %v", err)
	}
	if status != StatusWaiting {
		t.Fatalf("status = %v, want StatusWaiting", status)
	}
	saveTurn(t, tc)

	stack, _ := st.GetStack("c1")
	if len(stack) != 1 || stack[0].Dialog != models.DialogMenu {
		t.Errorf("stack = %+v, want the routed menu dialog", stack)
	}
}

func TestEngineRouteWithoutCandidateClearsStack(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore()

	main := &scriptedDialog{
		id: models.DialogMain,
		steps: []Step{
			func(ctx context.Context, sc *StepContext) (StepResult, error) {
				return Route(false), nil
			},
		},
	}
	engine, err := NewEngine(newTestRegistry(t, main))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	engine.SetRouteFunc(func(ctx context.Context, tc *TurnContext, faq bool) (models.DialogID, map[string]string, bool, error) {
		return models.DialogNone, nil, false, nil
	})

	tc := newTestTurnContext(t, st, &models.Turn{ConversationID: "c1", UserID: "u1"})
	status, err := engine.BeginDialog(ctx, tc, models.DialogMain, nil)
	if err != nil {
		t.Fatalf("BeginDialog() error = %v", err)
	}
	if status != StatusComplete {
		t.Fatalf("status = %v, want StatusComplete", status)
	}
	saveTurn(t, tc)

	stack, _ := st.GetStack("c1")
	if len(stack) != 0 {
		t.Errorf("stack = %+v, want empty", stack)
	}
}

func TestEngineStepErrorCarriesDialogDescription(t *testing.T) {
	st := store.NewInMemoryStore()

	main := &scriptedDialog{
		id: models.DialogMain,
		steps: []Step{
			func(ctx context.Context, sc *StepContext) (StepResult, error) {
				return StepResult{}, models.ErrMissingEntity
			},
		},
	}
	engine, err := NewEngine(newTestRegistry(t, main))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	tc := newTestTurnContext(t, st, &models.Turn{ConversationID: "c1", UserID: "u1"})
	_, err = engine.BeginDialog(context.Background(), tc, models.DialogMain, nil)
	if err == nil {
		t.Fatal("expected step error to surface")
	}
	if !strings.Contains(err.Error(), "main") {
		t.Errorf("error = %v, want the failing dialog named", err)
	}
}
