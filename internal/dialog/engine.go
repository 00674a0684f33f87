package dialog

import (
	"context"
	"log/slog"

	"github.com/dialogpipe/dialogpipe/internal/models"
)

// TurnStatus describes how a turn interacted with the dialog stack.
type TurnStatus int

const (
	// StatusEmpty means the stack held no dialog when the turn arrived.
	StatusEmpty TurnStatus = iota
	// StatusWaiting means a dialog issued a prompt and suspended.
	StatusWaiting
	// StatusComplete means the running dialogs finished and the stack drained.
	StatusComplete
)

// RouteFunc performs a routing sweep and returns the selected dialog with its
// start options. The boolean reports whether any dialog claimed the turn.
type RouteFunc func(ctx context.Context, tc *TurnContext, faqAlreadyPerformed bool) (models.DialogID, map[string]string, bool, error)

// Engine executes waterfall dialogs over the persistent per-conversation
// stack. One entry per active dialog; the top entry's step index names the
// step that runs on the next matching turn.
type Engine struct {
	registry *Registry
	route    RouteFunc
}

// NewEngine creates an engine over a registry.
func NewEngine(registry *Registry) (*Engine, error) {
	if registry == nil {
		return nil, models.ErrMissingRegistry
	}
	return &Engine{registry: registry}, nil
}

// SetRouteFunc installs the routing sweep used by Route transitions. The
// router owns the sweep but is itself built over the engine, so the hookup
// happens after construction.
func (e *Engine) SetRouteFunc(fn RouteFunc) {
	e.route = fn
}

// ContinueDialog resumes the suspended dialog with the turn's input. When the
// stack is empty it reports StatusEmpty and runs nothing.
func (e *Engine) ContinueDialog(ctx context.Context, tc *TurnContext) (TurnStatus, error) {
	stack, err := tc.Accessors.Stack(ctx)
	if err != nil {
		return StatusComplete, err
	}
	if len(stack) == 0 {
		slog.Debug("Engine ContinueDialog found empty stack", "conversationID", tc.Accessors.ConversationID())
		return StatusEmpty, nil
	}
	return e.run(ctx, tc, stack, tc.Turn.Text)
}

// BeginDialog pushes a dialog onto the stack and runs it from its first step.
func (e *Engine) BeginDialog(ctx context.Context, tc *TurnContext, id models.DialogID, options map[string]string) (TurnStatus, error) {
	stack, err := tc.Accessors.Stack(ctx)
	if err != nil {
		return StatusComplete, err
	}
	stack = append(stack, newEntry(id, options))
	slog.Debug("Engine BeginDialog", "dialog", id, "depth", len(stack))
	return e.run(ctx, tc, stack, "")
}

// StartFresh clears the stack and begins a single root dialog. This is the
// atomic cancel-then-begin transition the router applies after a sweep.
func (e *Engine) StartFresh(ctx context.Context, tc *TurnContext, id models.DialogID, options map[string]string) (TurnStatus, error) {
	slog.Debug("Engine StartFresh", "dialog", id)
	return e.run(ctx, tc, []models.StackEntry{newEntry(id, options)}, "")
}

func newEntry(id models.DialogID, options map[string]string) models.StackEntry {
	return models.StackEntry{
		Dialog:  id,
		Step:    0,
		Values:  make(map[string]string),
		Options: options,
	}
}

// run drives the waterfall loop until a prompt suspends it or the stack
// drains. The stack is persisted through the accessors on every exit path so
// a crash between turns never loses more than the turn in flight.
func (e *Engine) run(ctx context.Context, tc *TurnContext, stack []models.StackEntry, result string) (TurnStatus, error) {
	for {
		if len(stack) == 0 {
			tc.Accessors.SetStack(ctx, nil)
			return StatusComplete, nil
		}

		entry := &stack[len(stack)-1]
		d, err := e.registry.Get(entry.Dialog)
		if err != nil {
			tc.Accessors.SetStack(ctx, stack)
			return StatusComplete, err
		}
		steps := d.Steps()

		if entry.Step >= len(steps) {
			// Ran past the last step: the waterfall is done.
			stack = stack[:len(stack)-1]
			slog.Debug("Engine dialog finished", "dialog", entry.Dialog, "depth", len(stack))
			result = ""
			continue
		}

		sc := &StepContext{tc: tc, entry: entry, result: result}
		res, err := steps[entry.Step](ctx, sc)
		if err != nil {
			tc.Accessors.SetStack(ctx, stack)
			return StatusComplete, models.Describe(err, "running step of "+string(entry.Dialog)+" dialog")
		}

		switch res.kind {
		case resultWaiting:
			entry.Step++
			tc.Accessors.SetStack(ctx, stack)
			slog.Debug("Engine suspended on prompt", "dialog", entry.Dialog, "nextStep", entry.Step)
			return StatusWaiting, nil

		case resultNext:
			entry.Step++
			result = res.value

		case resultBegin:
			entry.Step++
			stack = append(stack, newEntry(res.dialog, res.options))
			result = ""

		case resultReplace:
			stack[len(stack)-1] = newEntry(res.dialog, res.options)
			result = ""

		case resultEnd:
			stack = stack[:len(stack)-1]
			result = res.value

		case resultCancelAll:
			slog.Debug("Engine cancelled all dialogs", "conversationID", tc.Accessors.ConversationID())
			tc.Accessors.SetStack(ctx, nil)
			return StatusComplete, nil

		case resultCancelBegin:
			stack = []models.StackEntry{newEntry(res.dialog, res.options)}
			result = ""

		case resultRoute:
			id, options, found, err := e.route(ctx, tc, res.faqAlreadyPerformed)
			if err != nil {
				tc.Accessors.SetStack(ctx, stack)
				return StatusComplete, models.Describe(err, "routing from "+string(entry.Dialog)+" dialog")
			}
			if !found {
				slog.Debug("Engine route found no candidate, cancelling all dialogs")
				tc.Accessors.SetStack(ctx, nil)
				return StatusComplete, nil
			}
			stack = []models.StackEntry{newEntry(id, options)}
			result = ""
		}
	}
}
