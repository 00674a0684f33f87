// Package models error taxonomy shared across modules.
package models

import (
	"errors"
	"fmt"
)

// Error variables for better error handling and testability
var (
	ErrEmptyRecipient      = errors.New("recipient cannot be empty")
	ErrEmptyConversationID = errors.New("conversation id cannot be empty")
	ErrEmptyUserID         = errors.New("user id cannot be empty")
	ErrUnknownDialog       = errors.New("unknown dialog identifier")
	ErrMissingEntity       = errors.New("expected entity not present in recognition result")
	ErrMissingRecognizer   = errors.New("recognizer is required")
	ErrMissingKnowledge    = errors.New("knowledge base is required")
	ErrMissingStore        = errors.New("store is required")
	ErrMissingRegistry     = errors.New("dialog registry is required")
	ErrInvalidThreshold    = errors.New("recognition threshold must be between 0.0 and 1.0")
	ErrEmptySteps          = errors.New("waterfall dialog requires at least one step")
)

// DescribedError attaches a human-readable context description to an error.
// Descriptions form an immutable chain: re-describing an already described
// error adds an outer layer but never overwrites the inner one, so the
// original failing operation stays identifiable.
type DescribedError struct {
	desc string
	err  error
}

// Describe wraps err with a context description. Returns nil for a nil err.
func Describe(err error, desc string) error {
	if err == nil {
		return nil
	}
	return &DescribedError{desc: desc, err: err}
}

// Error returns the description followed by the underlying error text.
func (e *DescribedError) Error() string {
	return fmt.Sprintf("%s: %v", e.desc, e.err)
}

// Unwrap exposes the wrapped error for errors.Is/As.
func (e *DescribedError) Unwrap() error {
	return e.err
}

// Description returns the first context description attached to err, i.e. the
// one closest to the original failure, or "" if none is attached.
func Description(err error) string {
	desc := ""
	for err != nil {
		var de *DescribedError
		if errors.As(err, &de) {
			desc = de.desc
			err = de.err
			continue
		}
		break
	}
	return desc
}

// DescriptionChain returns all attached descriptions ordered from the first
// (closest to the failure) to the last.
func DescriptionChain(err error) []string {
	var outer []string
	for err != nil {
		var de *DescribedError
		if errors.As(err, &de) {
			outer = append(outer, de.desc)
			err = de.err
			continue
		}
		break
	}
	// collected outermost first, reverse into first-attached order
	for i, j := 0, len(outer)-1; i < j; i, j = i+1, j-1 {
		outer[i], outer[j] = outer[j], outer[i]
	}
	return outer
}
