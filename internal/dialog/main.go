package dialog

import (
	"context"

	"github.com/dialogpipe/dialogpipe/internal/models"
)

// MainDialog is the single-step routing root. Started with the callCanHandle
// option it runs a sweep over the routable dialogs; started bare it hands the
// conversation to onboarding.
type MainDialog struct{}

// NewMainDialog creates the routing root dialog.
func NewMainDialog() *MainDialog { return &MainDialog{} }

// ID returns the dialog identifier.
func (d *MainDialog) ID() models.DialogID { return models.DialogMain }

// Steps returns the waterfall.
func (d *MainDialog) Steps() []Step {
	return []Step{d.coreStep}
}

func (d *MainDialog) coreStep(ctx context.Context, sc *StepContext) (StepResult, error) {
	if sc.OptionBool(models.OptionCallCanHandle) {
		return Route(sc.OptionBool(models.OptionFAQPerformed)), nil
	}
	return Replace(models.DialogOnboarding, nil), nil
}
