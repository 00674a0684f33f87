package dialog

import (
	"context"

	"github.com/dialogpipe/dialogpipe/internal/models"
	"github.com/dialogpipe/dialogpipe/internal/util"
)

const (
	exceptionFirstMessageA  = "Sorry, I didn't understand."
	exceptionFirstMessageB  = "Let's try again?"
	exceptionFirstFollowUp  = "I'm still learning new things. Try asking in a different/simpler way, please."
	exceptionSecondMessage  = "Hmm, I haven't understood it yet!"
	exceptionSecondFollowUp = "I'll suggest you some topics."
)

func exceptionActions() []models.SuggestedAction {
	return []models.SuggestedAction{
		{Label: models.ButtonDoubts, Payload: "doubts"},
		{Label: models.ButtonThatsAllForToday, Payload: "thatsAllForToday"},
	}
}

// ExceptionDialog is the always-reachable fallback for input nothing else
// could handle. The first occurrence apologizes softly; once the escalation
// flag is set it answers more firmly and offers topic shortcuts.
type ExceptionDialog struct{}

// NewExceptionDialog creates the exception dialog.
func NewExceptionDialog() *ExceptionDialog { return &ExceptionDialog{} }

// ID returns the dialog identifier.
func (d *ExceptionDialog) ID() models.DialogID { return models.DialogException }

// Steps returns the waterfall.
func (d *ExceptionDialog) Steps() []Step {
	return []Step{d.introStep, d.actStep}
}

func (d *ExceptionDialog) introStep(ctx context.Context, sc *StepContext) (StepResult, error) {
	acc := sc.Accessors()
	if err := acc.SetCurrentDialog(ctx, models.DialogException); err != nil {
		return StepResult{}, err
	}
	if err := acc.SetDialogComplete(ctx, false); err != nil {
		return StepResult{}, err
	}

	second, err := acc.IsSecondException(ctx)
	if err != nil {
		return StepResult{}, err
	}

	var first, followUp string
	if second {
		first = exceptionSecondMessage
		followUp = exceptionSecondFollowUp
	} else {
		first = util.RandomItem([]string{exceptionFirstMessageA, exceptionFirstMessageB})
		followUp = exceptionFirstFollowUp
	}

	sc.Send(first)
	sc.Send(followUp)
	return sc.Prompt("", exceptionActions()...), nil
}

// actStep never interprets the reply itself: it marks the escalation flag and
// hands the fresh input straight to the routing sweep.
func (d *ExceptionDialog) actStep(ctx context.Context, sc *StepContext) (StepResult, error) {
	acc := sc.Accessors()
	if err := acc.SetDialogComplete(ctx, true); err != nil {
		return StepResult{}, err
	}
	if err := acc.SetIsSecondException(ctx, true); err != nil {
		return StepResult{}, err
	}
	return CancelAllAndBegin(models.DialogMain, map[string]string{models.OptionCallCanHandle: "true"}), nil
}
