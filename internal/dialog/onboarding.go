package dialog

import (
	"context"
	"strconv"

	"github.com/dialogpipe/dialogpipe/internal/models"
	"github.com/dialogpipe/dialogpipe/internal/recognition"
	"github.com/dialogpipe/dialogpipe/internal/util"
)

const (
	onboardingWelcomeMessage = "Hi there. Welcome to DialogPipe, an assistant built with cutting edge dialog techniques."
	onboardingPromptMessage  = "Can we get started? These are some informatory questions you could ask."
	// Answer to "What can you do?".
	onboardingCapabilityMessage = "Currently I am only capable of demonstrating dialog capabilities. For example, if you ask me for a menu, I'll be able to find it."
	// Answer to "Who built you?".
	onboardingOwnershipMessage = "I was built by the DialogPipe team as a showcase of multi-step conversation orchestration."
)

func onboardingFirstActions() []models.SuggestedAction {
	return []models.SuggestedAction{
		{Label: models.ButtonWhatCanYouDo, Payload: "whatCanYouDo"},
		{Label: models.ButtonWhoBuiltYou, Payload: "whoBuiltYou"},
	}
}

func onboardingAfterCapabilityActions() []models.SuggestedAction {
	return []models.SuggestedAction{
		{Label: models.ButtonWhoBuiltYou, Payload: "whoBuiltYou"},
		{Label: models.ButtonMenu, Payload: "menu"},
	}
}

func onboardingAfterOwnershipActions() []models.SuggestedAction {
	return []models.SuggestedAction{
		{Label: models.ButtonWhatCanYouDo, Payload: "whatCanYouDo"},
		{Label: models.ButtonMenu, Payload: "menu"},
	}
}

// OnboardingDisambiguator interprets the answers to the onboarding prompts.
type OnboardingDisambiguator struct{}

func (d *OnboardingDisambiguator) aboutFunctionality(res *recognition.Result) bool {
	return res.HasEntity(models.EntityAbout) && entityValueContains(res, models.EntityAbout, "functionality", "what can you do")
}

func (d *OnboardingDisambiguator) aboutOwnership(res *recognition.Result) bool {
	return res.HasEntity(models.EntityAbout) && entityValueContains(res, models.EntityAbout, "ownership", "who built you")
}

// FirstStepByButton matches the first prompt's reply against its buttons. A
// click that matches nothing is flagged as an exception redirect.
func (d *OnboardingDisambiguator) FirstStepByButton(text string, clicked bool) models.DisambiguationResponse {
	if util.LabelsMatch(text, models.ButtonWhatCanYouDo) {
		return models.DisambiguationResponse{
			InputIdentified: true,
			Action:          models.ActionContinueWaterfall,
			Choice:          models.ButtonWhatCanYouDo,
			StepData:        &models.StepData{Message: onboardingCapabilityMessage, Actions: onboardingAfterCapabilityActions()},
		}
	}
	if util.LabelsMatch(text, models.ButtonWhoBuiltYou) {
		return models.DisambiguationResponse{
			InputIdentified: true,
			Action:          models.ActionContinueWaterfall,
			Choice:          models.ButtonWhoBuiltYou,
			StepData:        &models.StepData{Message: onboardingOwnershipMessage, Actions: onboardingAfterOwnershipActions()},
		}
	}
	if clicked {
		return models.DisambiguationResponse{InputIdentified: true, NextDialog: models.DialogException}
	}
	return models.DisambiguationResponse{}
}

// FirstStepByText matches the first prompt's reply against the about entity.
func (d *OnboardingDisambiguator) FirstStepByText(res *recognition.Result) models.DisambiguationResponse {
	if d.aboutFunctionality(res) {
		return models.DisambiguationResponse{
			InputIdentified: true,
			Action:          models.ActionContinueWaterfall,
			Choice:          models.ButtonWhatCanYouDo,
			StepData:        &models.StepData{Message: onboardingCapabilityMessage, Actions: onboardingAfterCapabilityActions()},
		}
	}
	if d.aboutOwnership(res) {
		return models.DisambiguationResponse{
			InputIdentified: true,
			Action:          models.ActionContinueWaterfall,
			Choice:          models.ButtonWhoBuiltYou,
			StepData:        &models.StepData{Message: onboardingOwnershipMessage, Actions: onboardingAfterOwnershipActions()},
		}
	}
	return models.DisambiguationResponse{}
}

// complement names the question still unanswered after the first step.
func (d *OnboardingDisambiguator) complement(firstStepChoice string) (button, message string) {
	if firstStepChoice == models.ButtonWhatCanYouDo {
		return models.ButtonWhoBuiltYou, onboardingOwnershipMessage
	}
	return models.ButtonWhatCanYouDo, onboardingCapabilityMessage
}

// SecondStepByButton matches the follow-up prompt's reply against the
// complementary question and the menu shortcut.
func (d *OnboardingDisambiguator) SecondStepByButton(text, firstStepChoice string, clicked bool) models.DisambiguationResponse {
	button, message := d.complement(firstStepChoice)
	if util.LabelsMatch(text, button) {
		return models.DisambiguationResponse{
			InputIdentified: true,
			Action:          models.ActionContinueWaterfall,
			Choice:          button,
			StepData:        &models.StepData{Message: message},
		}
	}
	if util.LabelsMatch(text, models.ButtonMenu) {
		return models.DisambiguationResponse{InputIdentified: true, NextDialog: models.DialogMenu, Choice: models.ButtonMenu}
	}
	if clicked {
		return models.DisambiguationResponse{InputIdentified: true, NextDialog: models.DialogException}
	}
	return models.DisambiguationResponse{}
}

// SecondStepByText matches the follow-up prompt's reply against the
// complementary about entity and the menu intent.
func (d *OnboardingDisambiguator) SecondStepByText(res *recognition.Result, firstStepChoice string) models.DisambiguationResponse {
	button, message := d.complement(firstStepChoice)
	matched := d.aboutFunctionality(res)
	if button == models.ButtonWhoBuiltYou {
		matched = d.aboutOwnership(res)
	}
	if matched {
		return models.DisambiguationResponse{
			InputIdentified: true,
			Action:          models.ActionContinueWaterfall,
			Choice:          button,
			StepData:        &models.StepData{Message: message},
		}
	}
	if res.HasIntentAboveThreshold(models.IntentMenu) {
		return models.DisambiguationResponse{InputIdentified: true, NextDialog: models.DialogMenu, Choice: models.ButtonMenu}
	}
	return models.DisambiguationResponse{}
}

// OnboardingDialog greets first-time users, answers the two introduction
// questions and hands the conversation to the menu.
type OnboardingDialog struct {
	generic       *GenericDisambiguator
	disambiguator *OnboardingDisambiguator
	botVersion    float64
}

// NewOnboardingDialog creates the onboarding dialog.
func NewOnboardingDialog(generic *GenericDisambiguator, botVersion float64) *OnboardingDialog {
	return &OnboardingDialog{
		generic:       generic,
		disambiguator: &OnboardingDisambiguator{},
		botVersion:    botVersion,
	}
}

// ID returns the dialog identifier.
func (d *OnboardingDialog) ID() models.DialogID { return models.DialogOnboarding }

// Steps returns the waterfall.
func (d *OnboardingDialog) Steps() []Step {
	return []Step{d.initialStep, d.secondStep, d.finalStep}
}

func (d *OnboardingDialog) initialStep(ctx context.Context, sc *StepContext) (StepResult, error) {
	acc := sc.Accessors()
	if err := acc.SetCurrentDialog(ctx, models.DialogOnboarding); err != nil {
		return StepResult{}, err
	}
	if err := acc.SetDialogComplete(ctx, false); err != nil {
		return StepResult{}, err
	}
	if err := acc.SetUserData(ctx, models.UserKeyOnboarded, "true"); err != nil {
		return StepResult{}, err
	}
	if err := acc.SetUserData(ctx, models.UserKeyVersion, strconv.FormatFloat(d.botVersion, 'f', -1, 64)); err != nil {
		return StepResult{}, err
	}

	sc.Send(onboardingWelcomeMessage)
	return sc.Prompt(onboardingPromptMessage, onboardingFirstActions()...), nil
}

func (d *OnboardingDialog) secondStep(ctx context.Context, sc *StepContext) (StepResult, error) {
	clicked := d.generic.UserClickedButton(sc.Button())
	resp := d.disambiguator.FirstStepByButton(sc.Text(), clicked)

	var res *recognition.Result
	if !resp.InputIdentified {
		var err error
		res, err = sc.Recognition().Generate(ctx, sc.Text())
		if err != nil {
			return StepResult{}, err
		}
		resp = d.disambiguator.FirstStepByText(res)
	}

	if resp.InputIdentified && resp.Action == models.ActionContinueWaterfall && resp.StepData != nil {
		if err := sc.Accessors().SetConversationData(ctx, models.DataKeyFirstStepChoice, resp.Choice); err != nil {
			return StepResult{}, err
		}
		return sc.Prompt(resp.StepData.Message, resp.StepData.Actions...), nil
	}

	if !resp.InputIdentified {
		var err error
		resp, err = d.generic.RedirectOnUnhandled(ctx, sc, res)
		if err != nil {
			return StepResult{}, err
		}
	}
	return Dispatch(ctx, sc, resp)
}

func (d *OnboardingDialog) finalStep(ctx context.Context, sc *StepContext) (StepResult, error) {
	firstStepChoice, err := sc.Accessors().ConversationData(ctx, models.DataKeyFirstStepChoice)
	if err != nil {
		return StepResult{}, err
	}

	clicked := d.generic.UserClickedButton(sc.Button())
	resp := d.disambiguator.SecondStepByButton(sc.Text(), firstStepChoice, clicked)

	var res *recognition.Result
	if !resp.InputIdentified {
		res, err = sc.Recognition().Generate(ctx, sc.Text())
		if err != nil {
			return StepResult{}, err
		}
		resp = d.disambiguator.SecondStepByText(res, firstStepChoice)
	}

	if resp.InputIdentified && resp.Action == models.ActionContinueWaterfall && resp.StepData != nil {
		sc.Send(resp.StepData.Message)
		return Replace(models.DialogMenu, nil), nil
	}
	if resp.InputIdentified && resp.NextDialog == models.DialogMenu {
		return Replace(models.DialogMenu, nil), nil
	}

	if !resp.InputIdentified {
		resp, err = d.generic.RedirectOnUnhandled(ctx, sc, res)
		if err != nil {
			return StepResult{}, err
		}
	}
	return Dispatch(ctx, sc, resp)
}
