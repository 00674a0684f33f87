package dialog

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dialogpipe/dialogpipe/internal/models"
	"github.com/dialogpipe/dialogpipe/internal/recognition"
)

const (
	purchaseIntroMessage = "Oh great, In order for me to help you buy a TV, I first need you to provide me with some details about the type of TV you are looking for."

	brandFirstAttemptMessage  = "Could you please enter a brand name?"
	brandSecondAttemptMessage = "Sorry, invalid brand inserted, could you provide another brand name?"

	priceFirstAttemptMessage  = "Ok. Great! Now I need a price range specification. Could you provide one?"
	priceSecondAttemptMessage = "Sorry, I couldn't make out a price range there. Could you give me another one?"

	// Each capture sub-dialog re-prompts once before giving up on the slot.
	maximumNumberOfAttempts = 1

	valueKeyBrand = "brand"
	valueKeyPrice = "price"
)

// PurchaseDisambiguator captures the purchase slots from recognition results.
type PurchaseDisambiguator struct{}

// BrandByText extracts the brand slot.
func (d *PurchaseDisambiguator) BrandByText(res *recognition.Result) (models.DisambiguationResponse, error) {
	if !res.HasEntity(models.EntityBrand) {
		return models.DisambiguationResponse{}, nil
	}
	choice, err := res.ListEntityValue(models.EntityBrand)
	if err != nil {
		return models.DisambiguationResponse{}, err
	}
	return models.DisambiguationResponse{
		InputIdentified: true,
		Action:          models.ActionContinueWaterfall,
		Choice:          choice,
	}, nil
}

// PriceByText extracts the price range slot.
func (d *PurchaseDisambiguator) PriceByText(res *recognition.Result) (models.DisambiguationResponse, error) {
	if !res.HasEntity(models.EntityPrice) {
		return models.DisambiguationResponse{}, nil
	}
	choice, err := res.ListEntityValue(models.EntityPrice)
	if err != nil {
		return models.DisambiguationResponse{}, err
	}
	return models.DisambiguationResponse{
		InputIdentified: true,
		Action:          models.ActionContinueWaterfall,
		Choice:          choice,
	}, nil
}

// PurchaseDialog runs the TV purchase flow: an intro, then the brand and price
// capture sub-dialogs, then a closing summary.
type PurchaseDialog struct {
	generic       *GenericDisambiguator
	disambiguator *PurchaseDisambiguator
}

// NewPurchaseDialog creates the purchase flow dialog.
func NewPurchaseDialog(generic *GenericDisambiguator) *PurchaseDialog {
	return &PurchaseDialog{generic: generic, disambiguator: &PurchaseDisambiguator{}}
}

// ID returns the dialog identifier.
func (d *PurchaseDialog) ID() models.DialogID { return models.DialogPurchase }

// Steps returns the waterfall.
func (d *PurchaseDialog) Steps() []Step {
	return []Step{d.initialStep, d.priceStep, d.closingStep}
}

func (d *PurchaseDialog) initialStep(ctx context.Context, sc *StepContext) (StepResult, error) {
	acc := sc.Accessors()
	if err := acc.SetCurrentDialog(ctx, models.DialogPurchase); err != nil {
		return StepResult{}, err
	}
	if err := acc.SetDialogComplete(ctx, false); err != nil {
		return StepResult{}, err
	}
	sc.Send(purchaseIntroMessage)
	return Begin(models.DialogPurchaseBrand, nil), nil
}

func (d *PurchaseDialog) priceStep(ctx context.Context, sc *StepContext) (StepResult, error) {
	sc.SetValue(valueKeyBrand, sc.Result())
	return Begin(models.DialogPurchasePrice, nil), nil
}

func (d *PurchaseDialog) closingStep(ctx context.Context, sc *StepContext) (StepResult, error) {
	sc.SetValue(valueKeyPrice, sc.Result())
	sc.Send(fmt.Sprintf("Perfect. I'll look for %s TVs around %s and get back to you with some offers.",
		sc.Value(valueKeyBrand), sc.Value(valueKeyPrice)))
	return End(""), nil
}

// slotCaptureStep is the shared resume logic of the brand and price
// sub-dialogs: extract the slot, retry up to the attempt cap, then fall back
// to the shared redirect chain.
func slotCaptureStep(
	ctx context.Context,
	sc *StepContext,
	generic *GenericDisambiguator,
	self models.DialogID,
	extract func(*recognition.Result) (models.DisambiguationResponse, error),
) (StepResult, error) {
	res, err := sc.Recognition().Generate(ctx, sc.Text())
	if err != nil {
		return StepResult{}, err
	}

	resp, err := extract(res)
	if err != nil {
		return StepResult{}, err
	}
	if resp.InputIdentified && resp.Action == models.ActionContinueWaterfall {
		return End(resp.Choice), nil
	}

	attempts, _ := strconv.Atoi(sc.Value(models.OptionAttempts))
	if attempts < maximumNumberOfAttempts {
		return Replace(self, map[string]string{models.OptionAttempts: strconv.Itoa(attempts + 1)}), nil
	}

	resp, err = generic.RedirectOnUnhandled(ctx, sc, res)
	if err != nil {
		return StepResult{}, err
	}
	return Dispatch(ctx, sc, resp)
}

// BrandDialog captures the desired TV brand.
type BrandDialog struct {
	generic       *GenericDisambiguator
	disambiguator *PurchaseDisambiguator
}

// NewBrandDialog creates the brand capture sub-dialog.
func NewBrandDialog(generic *GenericDisambiguator) *BrandDialog {
	return &BrandDialog{generic: generic, disambiguator: &PurchaseDisambiguator{}}
}

// ID returns the dialog identifier.
func (d *BrandDialog) ID() models.DialogID { return models.DialogPurchaseBrand }

// Steps returns the waterfall.
func (d *BrandDialog) Steps() []Step {
	return []Step{d.promptStep, d.captureStep}
}

func (d *BrandDialog) promptStep(ctx context.Context, sc *StepContext) (StepResult, error) {
	attempts := sc.OptionInt(models.OptionAttempts)
	sc.SetValue(models.OptionAttempts, strconv.Itoa(attempts))
	if attempts > 0 {
		return sc.Prompt(brandSecondAttemptMessage), nil
	}
	return sc.Prompt(brandFirstAttemptMessage), nil
}

func (d *BrandDialog) captureStep(ctx context.Context, sc *StepContext) (StepResult, error) {
	return slotCaptureStep(ctx, sc, d.generic, models.DialogPurchaseBrand, d.disambiguator.BrandByText)
}

// PriceDialog captures the desired price range.
type PriceDialog struct {
	generic       *GenericDisambiguator
	disambiguator *PurchaseDisambiguator
}

// NewPriceDialog creates the price capture sub-dialog.
func NewPriceDialog(generic *GenericDisambiguator) *PriceDialog {
	return &PriceDialog{generic: generic, disambiguator: &PurchaseDisambiguator{}}
}

// ID returns the dialog identifier.
func (d *PriceDialog) ID() models.DialogID { return models.DialogPurchasePrice }

// Steps returns the waterfall.
func (d *PriceDialog) Steps() []Step {
	return []Step{d.promptStep, d.captureStep}
}

func (d *PriceDialog) promptStep(ctx context.Context, sc *StepContext) (StepResult, error) {
	attempts := sc.OptionInt(models.OptionAttempts)
	sc.SetValue(models.OptionAttempts, strconv.Itoa(attempts))
	if attempts > 0 {
		return sc.Prompt(priceSecondAttemptMessage), nil
	}
	return sc.Prompt(priceFirstAttemptMessage), nil
}

func (d *PriceDialog) captureStep(ctx context.Context, sc *StepContext) (StepResult, error) {
	return slotCaptureStep(ctx, sc, d.generic, models.DialogPurchasePrice, d.disambiguator.PriceByText)
}
