package dialog

import (
	"context"

	"github.com/dialogpipe/dialogpipe/internal/models"
	"github.com/dialogpipe/dialogpipe/internal/recognition"
	"github.com/dialogpipe/dialogpipe/internal/util"
)

const (
	farewellNPSMessage      = "It was really nice to have you here! What did you think of our chat?"
	farewellThanksMessage   = "Thanks for the feedback, it helps this project improve."
	farewellGoodbyeMessage  = "Hope to talk to you more often. See you!"
	farewellFeedbackDataKey = "npsResult"
)

func farewellActions() []models.SuggestedAction {
	return []models.SuggestedAction{
		{Label: models.ButtonLovedIt, Payload: "greatFeedback"},
		{Label: models.ButtonThoughtItWasOk, Payload: "intermediateFeedback"},
		{Label: models.ButtonDidntLikeIt, Payload: "badFeedback"},
	}
}

// FarewellDisambiguator interprets the reply to the NPS prompt.
type FarewellDisambiguator struct{}

// ByButton matches the reply against the three feedback buttons.
func (d *FarewellDisambiguator) ByButton(text string, clicked bool) models.DisambiguationResponse {
	for _, label := range []string{models.ButtonLovedIt, models.ButtonThoughtItWasOk, models.ButtonDidntLikeIt} {
		if util.LabelsMatch(text, label) {
			return models.DisambiguationResponse{InputIdentified: true, Choice: label}
		}
	}
	if clicked {
		return models.DisambiguationResponse{InputIdentified: true, NextDialog: models.DialogException}
	}
	return models.DisambiguationResponse{}
}

// ByText matches the reply against the feedback entity.
func (d *FarewellDisambiguator) ByText(res *recognition.Result) models.DisambiguationResponse {
	if !res.HasEntity(models.EntityFeedback) {
		return models.DisambiguationResponse{}
	}
	switch {
	case entityValueContains(res, models.EntityFeedback, "great", "loved"):
		return models.DisambiguationResponse{InputIdentified: true, Choice: models.ButtonLovedIt}
	case entityValueContains(res, models.EntityFeedback, "intermediate", "ok"):
		return models.DisambiguationResponse{InputIdentified: true, Choice: models.ButtonThoughtItWasOk}
	case entityValueContains(res, models.EntityFeedback, "bad", "didn"):
		return models.DisambiguationResponse{InputIdentified: true, Choice: models.ButtonDidntLikeIt}
	}
	return models.DisambiguationResponse{}
}

// FarewellDialog collects feedback and says goodbye.
type FarewellDialog struct {
	generic       *GenericDisambiguator
	disambiguator *FarewellDisambiguator
	botVersion    float64
}

// NewFarewellDialog creates the farewell dialog.
func NewFarewellDialog(generic *GenericDisambiguator, botVersion float64) *FarewellDialog {
	return &FarewellDialog{generic: generic, disambiguator: &FarewellDisambiguator{}, botVersion: botVersion}
}

// ID returns the dialog identifier.
func (d *FarewellDialog) ID() models.DialogID { return models.DialogFarewell }

// Steps returns the waterfall.
func (d *FarewellDialog) Steps() []Step {
	return []Step{d.initialStep, d.finalStep}
}

// CanHandle claims the turn on a farewell intent, subject to the version gate.
func (d *FarewellDialog) CanHandle(ctx context.Context, in RoutingInput) (CanHandleResult, error) {
	if userBelowVersion(in.UserData, d.botVersion) {
		return CanHandleResult{Dialog: models.DialogFarewell}, nil
	}
	if d.generic.ActivateFarewell(in.Result) {
		return CanHandleResult{Dialog: models.DialogFarewell, CanHandle: true}, nil
	}
	return CanHandleResult{Dialog: models.DialogFarewell}, nil
}

func (d *FarewellDialog) initialStep(ctx context.Context, sc *StepContext) (StepResult, error) {
	acc := sc.Accessors()
	if err := acc.SetCurrentDialog(ctx, models.DialogFarewell); err != nil {
		return StepResult{}, err
	}
	if err := acc.SetDialogComplete(ctx, false); err != nil {
		return StepResult{}, err
	}
	return sc.Prompt(farewellNPSMessage, farewellActions()...), nil
}

func (d *FarewellDialog) finalStep(ctx context.Context, sc *StepContext) (StepResult, error) {
	clicked := d.generic.UserClickedButton(sc.Button())
	resp := d.disambiguator.ByButton(sc.Text(), clicked)

	var res *recognition.Result
	if !resp.InputIdentified {
		var err error
		res, err = sc.Recognition().Generate(ctx, sc.Text())
		if err != nil {
			return StepResult{}, err
		}
		resp = d.disambiguator.ByText(res)
	}

	if resp.InputIdentified && resp.Choice != "" {
		if err := sc.Accessors().SetConversationData(ctx, farewellFeedbackDataKey, resp.Choice); err != nil {
			return StepResult{}, err
		}
		sc.Send(farewellThanksMessage)
		return sc.Prompt(farewellGoodbyeMessage), nil
	}
	if resp.InputIdentified {
		// A button click that matched no feedback option.
		return Dispatch(ctx, sc, resp)
	}

	resp, err := d.generic.RedirectOnUnhandled(ctx, sc, res)
	if err != nil {
		return StepResult{}, err
	}
	return Dispatch(ctx, sc, resp)
}
