package models

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsValidDialogID(t *testing.T) {
	valid := []DialogID{
		DialogMain, DialogOnboarding, DialogMenu, DialogFarewell,
		DialogPurchase, DialogPurchaseBrand, DialogPurchasePrice,
		DialogFAQ, DialogException,
	}
	for _, id := range valid {
		if !IsValidDialogID(id) {
			t.Errorf("expected %q to be valid", id)
		}
	}
	invalid := []DialogID{DialogNone, "weather", "MAIN"}
	for _, id := range invalid {
		if IsValidDialogID(id) {
			t.Errorf("expected %q to be invalid", id)
		}
	}
}

func TestRoutingPriorityContainsOnlyValidDialogs(t *testing.T) {
	for i, id := range RoutingPriority {
		if !IsValidDialogID(id) {
			t.Errorf("routing priority entry %d is not a valid dialog: %q", i, id)
		}
	}
}

func TestDescribeFirstContextWins(t *testing.T) {
	base := errors.New("connection refused")
	inner := Describe(base, "looking up knowledge base")
	outer := Describe(fmt.Errorf("routing sweep: %w", inner), "handling turn")

	if got := Description(outer); got != "looking up knowledge base" {
		t.Errorf("Description = %q, want first attached context", got)
	}

	chain := DescriptionChain(outer)
	if len(chain) != 2 {
		t.Fatalf("DescriptionChain length = %d, want 2", len(chain))
	}
	if chain[0] != "looking up knowledge base" || chain[1] != "handling turn" {
		t.Errorf("DescriptionChain order wrong: %v", chain)
	}
}

func TestDescribePreservesSentinelIdentity(t *testing.T) {
	err := Describe(ErrMissingEntity, "reading brand entity")
	if !errors.Is(err, ErrMissingEntity) {
		t.Error("described error should match the wrapped sentinel via errors.Is")
	}
	if err.Error() != "reading brand entity: expected entity not present in recognition result" {
		t.Errorf("unexpected error text: %q", err.Error())
	}
}

func TestDescribeNil(t *testing.T) {
	if err := Describe(nil, "context"); err != nil {
		t.Errorf("Describe(nil) = %v, want nil", err)
	}
	if got := Description(errors.New("plain")); got != "" {
		t.Errorf("Description of plain error = %q, want empty", got)
	}
}
