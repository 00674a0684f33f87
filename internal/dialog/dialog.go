// Package dialog implements the conversational core: a registry of waterfall
// dialogs, the suspend/resume execution engine over a persistent dialog stack,
// and the priority router that decides which dialog answers a turn.
package dialog

import (
	"context"
	"log/slog"

	"github.com/dialogpipe/dialogpipe/internal/models"
	"github.com/dialogpipe/dialogpipe/internal/recognition"
)

// Step is one stage of a waterfall. It inspects the turn through the step
// context and returns the transition the engine should apply.
type Step func(ctx context.Context, sc *StepContext) (StepResult, error)

// Dialog is a named waterfall.
type Dialog interface {
	ID() models.DialogID
	Steps() []Step
}

// RoutingInput is what a routable dialog sees when the router polls it.
type RoutingInput struct {
	Text     string
	Result   *recognition.Result
	UserData map[string]string
}

// CanHandleResult is one dialog's answer to a routing poll.
type CanHandleResult struct {
	Dialog    models.DialogID
	CanHandle bool
}

// Routable marks dialogs that participate in the routing sweep.
type Routable interface {
	Dialog
	CanHandle(ctx context.Context, in RoutingInput) (CanHandleResult, error)
}

// Registry holds the closed set of dialogs the engine can run.
type Registry struct {
	dialogs map[models.DialogID]Dialog
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{dialogs: make(map[models.DialogID]Dialog)}
}

// Add registers a dialog. The identifier must belong to the closed set and the
// dialog must have at least one step.
func (r *Registry) Add(d Dialog) error {
	if !models.IsValidDialogID(d.ID()) {
		slog.Error("Registry Add rejected dialog", "dialog", d.ID())
		return models.Describe(models.ErrUnknownDialog, "registering dialog "+string(d.ID()))
	}
	if len(d.Steps()) == 0 {
		return models.Describe(models.ErrEmptySteps, "registering dialog "+string(d.ID()))
	}
	r.dialogs[d.ID()] = d
	slog.Debug("Registry Add registered dialog", "dialog", d.ID(), "steps", len(d.Steps()))
	return nil
}

// Get returns the dialog registered under id.
func (r *Registry) Get(id models.DialogID) (Dialog, error) {
	d, ok := r.dialogs[id]
	if !ok {
		return nil, models.Describe(models.ErrUnknownDialog, "looking up dialog "+string(id))
	}
	return d, nil
}
