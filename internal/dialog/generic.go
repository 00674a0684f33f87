package dialog

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/dialogpipe/dialogpipe/internal/models"
	"github.com/dialogpipe/dialogpipe/internal/recognition"
)

// GenericDisambiguator holds the interpretation rules shared by every dialog:
// activation predicates for the routable dialogs, button detection, and the
// fallback chain for input no dialog-specific handler claimed.
type GenericDisambiguator struct {
	kb recognition.KnowledgeBase
}

// NewGenericDisambiguator creates the shared disambiguator.
func NewGenericDisambiguator(kb recognition.KnowledgeBase) (*GenericDisambiguator, error) {
	if kb == nil {
		return nil, models.ErrMissingKnowledge
	}
	return &GenericDisambiguator{kb: kb}, nil
}

// entityValueContains reports whether any resolved value of the entity
// contains one of the fragments.
func entityValueContains(res *recognition.Result, entity models.Entity, fragments ...string) bool {
	for _, v := range res.EntityValues(entity) {
		for _, fragment := range fragments {
			if strings.Contains(v, fragment) {
				return true
			}
		}
	}
	return false
}

// ActivateMenu reports whether the input asks for the menu: the menu intent,
// or a help entity resolving to a doubt/help value.
func (g *GenericDisambiguator) ActivateMenu(res *recognition.Result) bool {
	return res.HasIntentAboveThreshold(models.IntentMenu) ||
		(res.HasEntity(models.EntityHelp) && entityValueContains(res, models.EntityHelp, "doubt", "help"))
}

// ActivateFarewell reports whether the input expresses a farewell.
func (g *GenericDisambiguator) ActivateFarewell(res *recognition.Result) bool {
	return res.HasIntentAboveThreshold(models.IntentFarewell)
}

// UserClickedButton reports whether the turn value originated from a
// suggested-action click.
func (g *GenericDisambiguator) UserClickedButton(b *models.ButtonClick) bool {
	return b != nil && strings.EqualFold(b.Source, models.ButtonSource)
}

// ComeBack reports whether the input asks to return to where the user was.
func (g *GenericDisambiguator) ComeBack(res *recognition.Result) bool {
	return res.HasEntity(models.EntityAction) && entityValueContains(res, models.EntityAction, "return", "back")
}

// HasNoAnswer reports whether a knowledge-base lookup came back empty.
func (g *GenericDisambiguator) HasNoAnswer(answers []recognition.Answer) bool {
	return len(answers) == 0
}

// RedirectOnUnhandled is the shared fallback for input no dialog-specific
// handler claimed. Without a top intent it tries the knowledge base, then the
// come-back redirect to the previous dialog, then the exception dialog. With a
// top intent it hands the turn back to the main dialog for a routing sweep.
func (g *GenericDisambiguator) RedirectOnUnhandled(ctx context.Context, sc *StepContext, res *recognition.Result) (models.DisambiguationResponse, error) {
	if res.DoesntHaveTopIntent() {
		answers, err := g.kb.Lookup(ctx, sc.Text())
		if err != nil {
			return models.DisambiguationResponse{}, models.Describe(err, "looking up fallback answers")
		}
		if !g.HasNoAnswer(answers) {
			payload, err := json.Marshal(answers)
			if err != nil {
				return models.DisambiguationResponse{}, models.Describe(err, "encoding fallback answers")
			}
			slog.Debug("GenericDisambiguator fallback found knowledge base answers", "hits", len(answers))
			return models.DisambiguationResponse{
				InputIdentified: true,
				NextDialog:      models.DialogFAQ,
				Options:         map[string]string{models.OptionFAQAnswers: string(payload)},
			}, nil
		}

		if g.ComeBack(res) {
			previous, err := sc.Accessors().PreviousDialog(ctx)
			if err != nil {
				return models.DisambiguationResponse{}, err
			}
			target := previous
			if target == models.DialogNone {
				target = models.DialogMenu
			}
			slog.Debug("GenericDisambiguator fallback redirecting back", "dialog", target)
			return models.DisambiguationResponse{InputIdentified: true, NextDialog: target}, nil
		}

		return models.DisambiguationResponse{InputIdentified: true, NextDialog: models.DialogException}, nil
	}

	return models.DisambiguationResponse{
		InputIdentified: true,
		NextDialog:      models.DialogMain,
		Options:         map[string]string{models.OptionCallCanHandle: "true"},
	}, nil
}

// Dispatch turns a disambiguation verdict into a stack transition: continue
// the current waterfall, hand the turn to the main dialog, or mark the active
// dialog complete and replace it with the target.
func Dispatch(ctx context.Context, sc *StepContext, resp models.DisambiguationResponse) (StepResult, error) {
	if resp.Action == models.ActionContinueWaterfall {
		return Next(resp.Choice), nil
	}
	if resp.NextDialog == models.DialogMain {
		return Begin(models.DialogMain, resp.Options), nil
	}
	if !models.IsValidDialogID(resp.NextDialog) {
		return StepResult{}, models.Describe(models.ErrUnknownDialog, "dispatching disambiguation verdict")
	}
	if err := sc.Accessors().SetDialogComplete(ctx, true); err != nil {
		return StepResult{}, err
	}
	return Replace(resp.NextDialog, resp.Options), nil
}
