package dialog

import (
	"context"
	"strconv"

	"github.com/dialogpipe/dialogpipe/internal/models"
	"github.com/dialogpipe/dialogpipe/internal/recognition"
	"github.com/dialogpipe/dialogpipe/internal/util"
)

const menuDefaultMessage = "What else can I do for you?"

func menuActions() []models.SuggestedAction {
	return []models.SuggestedAction{
		{Label: models.ButtonPurchaseTV, Payload: "purchaseTV"},
		{Label: models.ButtonThatsAllForToday, Payload: "thatsAllForToday"},
	}
}

// MenuDisambiguator interprets the reply to the topic menu.
type MenuDisambiguator struct{}

// ByButton matches the menu reply against the menu buttons.
func (d *MenuDisambiguator) ByButton(text string, clicked bool) models.DisambiguationResponse {
	if util.LabelsMatch(text, models.ButtonPurchaseTV) {
		return models.DisambiguationResponse{InputIdentified: true, NextDialog: models.DialogPurchase}
	}
	if util.LabelsMatch(text, models.ButtonThatsAllForToday) {
		return models.DisambiguationResponse{InputIdentified: true, NextDialog: models.DialogFarewell}
	}
	if clicked {
		return models.DisambiguationResponse{InputIdentified: true, NextDialog: models.DialogException}
	}
	return models.DisambiguationResponse{}
}

// ByText matches the menu reply against the purchase and farewell intents.
func (d *MenuDisambiguator) ByText(res *recognition.Result) models.DisambiguationResponse {
	if res.HasIntentAboveThreshold(models.IntentPurchase) {
		return models.DisambiguationResponse{InputIdentified: true, NextDialog: models.DialogPurchase}
	}
	if res.HasIntentAboveThreshold(models.IntentFarewell) {
		return models.DisambiguationResponse{InputIdentified: true, NextDialog: models.DialogFarewell}
	}
	return models.DisambiguationResponse{}
}

// MenuDialog presents the topic menu and dispatches the chosen topic.
type MenuDialog struct {
	generic       *GenericDisambiguator
	disambiguator *MenuDisambiguator
	botVersion    float64
}

// NewMenuDialog creates the menu dialog.
func NewMenuDialog(generic *GenericDisambiguator, botVersion float64) *MenuDialog {
	return &MenuDialog{generic: generic, disambiguator: &MenuDisambiguator{}, botVersion: botVersion}
}

// ID returns the dialog identifier.
func (d *MenuDialog) ID() models.DialogID { return models.DialogMenu }

// Steps returns the waterfall.
func (d *MenuDialog) Steps() []Step {
	return []Step{d.firstStep, d.finalStep}
}

// userBelowVersion reports whether the user was onboarded by an older bot
// version than the one this dialog requires.
func userBelowVersion(userData map[string]string, required float64) bool {
	raw, ok := userData[models.UserKeyVersion]
	if !ok || raw == "" {
		return false
	}
	v, err := strconv.ParseFloat(raw, 64)
	return err == nil && v < required
}

// CanHandle claims the turn on a menu request. Users stamped with an older bot
// version are gated out unless the activateMenu override flag is set.
func (d *MenuDialog) CanHandle(ctx context.Context, in RoutingInput) (CanHandleResult, error) {
	activate := in.UserData[models.UserKeyActivateMenu] == "true"
	if !activate && userBelowVersion(in.UserData, d.botVersion) {
		return CanHandleResult{Dialog: models.DialogMenu}, nil
	}
	if activate || d.generic.ActivateMenu(in.Result) {
		return CanHandleResult{Dialog: models.DialogMenu, CanHandle: true}, nil
	}
	return CanHandleResult{Dialog: models.DialogMenu}, nil
}

func (d *MenuDialog) firstStep(ctx context.Context, sc *StepContext) (StepResult, error) {
	acc := sc.Accessors()
	if err := acc.SetCurrentDialog(ctx, models.DialogMenu); err != nil {
		return StepResult{}, err
	}
	if err := acc.SetDialogComplete(ctx, false); err != nil {
		return StepResult{}, err
	}
	return sc.Prompt(menuDefaultMessage, menuActions()...), nil
}

func (d *MenuDialog) finalStep(ctx context.Context, sc *StepContext) (StepResult, error) {
	clicked := d.generic.UserClickedButton(sc.Button())
	resp := d.disambiguator.ByButton(sc.Text(), clicked)
	if resp.InputIdentified {
		return Dispatch(ctx, sc, resp)
	}

	res, err := sc.Recognition().Generate(ctx, sc.Text())
	if err != nil {
		return StepResult{}, err
	}
	resp = d.disambiguator.ByText(res)
	if resp.InputIdentified {
		return Dispatch(ctx, sc, resp)
	}

	resp, err = d.generic.RedirectOnUnhandled(ctx, sc, res)
	if err != nil {
		return StepResult{}, err
	}
	return Dispatch(ctx, sc, resp)
}
