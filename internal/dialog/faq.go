package dialog

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/dialogpipe/dialogpipe/internal/models"
	"github.com/dialogpipe/dialogpipe/internal/recognition"
)

const faqFollowUpMessage = "Is there anything else I can help you with?"

// FAQDialog answers a question from the knowledge base and hands the turn
// back to the main dialog with the FAQ-loop marker set, so an immediate second
// FAQ hit escalates to the exception dialog instead of looping.
type FAQDialog struct {
	kb recognition.KnowledgeBase
}

// NewFAQDialog creates the FAQ dialog.
func NewFAQDialog(kb recognition.KnowledgeBase) *FAQDialog {
	return &FAQDialog{kb: kb}
}

// ID returns the dialog identifier.
func (d *FAQDialog) ID() models.DialogID { return models.DialogFAQ }

// Steps returns the waterfall.
func (d *FAQDialog) Steps() []Step {
	return []Step{d.answerStep, d.routeStep}
}

// CanHandle claims the turn when no intent cleared the threshold but the
// knowledge base has an answer.
func (d *FAQDialog) CanHandle(ctx context.Context, in RoutingInput) (CanHandleResult, error) {
	if !in.Result.DoesntHaveTopIntent() {
		return CanHandleResult{Dialog: models.DialogFAQ}, nil
	}
	answers, err := d.kb.Lookup(ctx, in.Text)
	if err != nil {
		return CanHandleResult{Dialog: models.DialogFAQ}, models.Describe(err, "polling knowledge base for routing sweep")
	}
	return CanHandleResult{Dialog: models.DialogFAQ, CanHandle: len(answers) > 0}, nil
}

// bestAnswer returns the highest scored answer.
func bestAnswer(answers []recognition.Answer) recognition.Answer {
	best := answers[0]
	for _, a := range answers[1:] {
		if a.Score > best.Score {
			best = a
		}
	}
	return best
}

func (d *FAQDialog) answerStep(ctx context.Context, sc *StepContext) (StepResult, error) {
	acc := sc.Accessors()
	if err := acc.SetCurrentDialog(ctx, models.DialogFAQ); err != nil {
		return StepResult{}, err
	}
	if err := acc.SetDialogComplete(ctx, false); err != nil {
		return StepResult{}, err
	}

	var answers []recognition.Answer
	if payload := sc.Option(models.OptionFAQAnswers); payload != "" {
		if err := json.Unmarshal([]byte(payload), &answers); err != nil {
			slog.Error("FAQDialog answer payload decode failed", "error", err)
			return StepResult{}, models.Describe(err, "decoding prefetched answers")
		}
	} else {
		var err error
		answers, err = d.kb.Lookup(ctx, sc.Text())
		if err != nil {
			return StepResult{}, models.Describe(err, "looking up answer")
		}
	}

	if len(answers) == 0 {
		slog.Debug("FAQDialog had no answer, escalating to exception")
		return Replace(models.DialogException, nil), nil
	}

	sc.Send(bestAnswer(answers).Answer)
	return sc.Prompt(faqFollowUpMessage), nil
}

// routeStep hands the follow-up input back to the routing sweep. The
// faqAlreadyPerformed marker makes a second consecutive FAQ hit escalate.
func (d *FAQDialog) routeStep(ctx context.Context, sc *StepContext) (StepResult, error) {
	return Begin(models.DialogMain, map[string]string{
		models.OptionCallCanHandle: "true",
		models.OptionFAQPerformed:  "true",
	}), nil
}
