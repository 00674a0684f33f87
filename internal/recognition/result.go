// Package recognition wraps the output of one NLU call behind pure,
// threshold-aware queries, and defines the recognizer and knowledge-base
// contracts the orchestrator consumes.
package recognition

import (
	"context"
	"sort"

	"github.com/dialogpipe/dialogpipe/internal/models"
)

// RawResult is the untyped payload of one recognition call: an
// intent-confidence mapping plus an entity mapping.
type RawResult struct {
	Intents  map[models.Intent]float64   `json:"intents"`
	Entities map[models.Entity][]string  `json:"entities"`
}

// Recognizer turns free text into a RawResult.
type Recognizer interface {
	Recognize(ctx context.Context, text string) (RawResult, error)
}

// Answer is one knowledge-base hit.
type Answer struct {
	Answer string  `json:"answer"`
	Score  float64 `json:"score"`
}

// KnowledgeBase looks up FAQ answers for free text. An empty result slice
// signals "no answer"; it is not an error.
type KnowledgeBase interface {
	Lookup(ctx context.Context, text string) ([]Answer, error)
}

// ScoredIntent pairs an intent with its confidence.
type ScoredIntent struct {
	Intent models.Intent
	Score  float64
}

// Result answers intent and entity queries over one recognition call's output,
// filtered by a confidence threshold. All methods are pure.
type Result struct {
	raw       RawResult
	threshold float64
	sorted    []ScoredIntent
}

// NewResult wraps a raw recognition output. The entity map always gains the
// marker key the downstream "only entity" test relies on.
func NewResult(raw RawResult, threshold float64) *Result {
	if raw.Entities == nil {
		raw.Entities = make(map[models.Entity][]string)
	}
	if _, ok := raw.Entities[models.EntityMarker]; !ok {
		raw.Entities[models.EntityMarker] = nil
	}
	r := &Result{raw: raw, threshold: threshold}
	for intent, score := range raw.Intents {
		if score >= threshold {
			r.sorted = append(r.sorted, ScoredIntent{Intent: intent, Score: score})
		}
	}
	sort.Slice(r.sorted, func(i, j int) bool {
		if r.sorted[i].Score != r.sorted[j].Score {
			return r.sorted[i].Score > r.sorted[j].Score
		}
		return r.sorted[i].Intent < r.sorted[j].Intent
	})
	return r
}

// Raw returns the wrapped raw output, for caching.
func (r *Result) Raw() RawResult { return r.raw }

// Threshold returns the configured confidence threshold.
func (r *Result) Threshold() float64 { return r.threshold }

// TopIntent returns the highest-confidence intent above threshold, or
// IntentNone when nothing qualifies.
func (r *Result) TopIntent() models.Intent {
	if len(r.sorted) == 0 {
		return models.IntentNone
	}
	return r.sorted[0].Intent
}

// SortedIntents returns all intents above threshold, descending confidence.
func (r *Result) SortedIntents() []ScoredIntent {
	return r.sorted
}

// HasIntentAboveThreshold reports whether the intent cleared the threshold.
func (r *Result) HasIntentAboveThreshold(intent models.Intent) bool {
	for _, si := range r.sorted {
		if si.Intent == intent {
			return true
		}
	}
	return false
}

// HasEntity reports whether any of the named entities is present.
func (r *Result) HasEntity(names ...models.Entity) bool {
	for _, name := range names {
		if _, ok := r.raw.Entities[name]; ok && name != models.EntityMarker {
			return true
		}
	}
	return false
}

// HasOnlyEntity reports whether name is the single entity present beyond the
// marker the recognition service always injects.
func (r *Result) HasOnlyEntity(name models.Entity) bool {
	if len(r.raw.Entities) != 2 {
		return false
	}
	_, hasMarker := r.raw.Entities[models.EntityMarker]
	_, hasName := r.raw.Entities[name]
	return hasMarker && hasName && name != models.EntityMarker
}

// EntityValues returns every resolved value of the named entity.
func (r *Result) EntityValues(name models.Entity) []string {
	return r.raw.Entities[name]
}

// ListEntityValue returns the first resolved value of a list-type entity.
// Callers are expected to check HasEntity first; a missing entity returns
// models.ErrMissingEntity.
func (r *Result) ListEntityValue(name models.Entity) (string, error) {
	values, ok := r.raw.Entities[name]
	if !ok || len(values) == 0 {
		return "", models.Describe(models.ErrMissingEntity, "reading "+string(name)+" entity value")
	}
	return values[0], nil
}

// DoesntHaveTopIntent reports that no intent cleared the threshold.
func (r *Result) DoesntHaveTopIntent() bool {
	return len(r.sorted) == 0
}

// DoesntHaveTopIntentBesides reports that no intent cleared the threshold, or
// that exactly one did and it is the given intent.
func (r *Result) DoesntHaveTopIntentBesides(intent models.Intent) bool {
	if len(r.sorted) == 0 {
		return true
	}
	return len(r.sorted) == 1 && r.sorted[0].Intent == intent
}
