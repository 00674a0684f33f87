package recognition

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dialogpipe/dialogpipe/internal/models"
)

// StaticRecognizer matches keyword tables against the input. It serves tests
// and keyless deployments where no LLM credential is configured.
type StaticRecognizer struct {
	intentKeywords map[models.Intent][]string
	entityKeywords map[models.Entity][]string
}

// NewStaticRecognizer builds a recognizer with the built-in keyword tables.
func NewStaticRecognizer() *StaticRecognizer {
	return &StaticRecognizer{
		intentKeywords: map[models.Intent][]string{
			models.IntentMenu:     {"menu", "options", "what can i do"},
			models.IntentFarewell: {"bye", "goodbye", "thats all", "that's all", "see you"},
			models.IntentPurchase: {"buy a tv", "purchase a tv", "want a tv", "buy television"},
		},
		entityKeywords: map[models.Entity][]string{
			models.EntityAbout:    {"what can you do", "who built you", "functionality", "ownership"},
			models.EntityHelp:     {"help", "doubt", "doubts"},
			// A come-back request is an action entity, never an intent.
			models.EntityAction:   {"go back", "come back"},
			models.EntityBrand:    {"samsung", "lg", "sony", "philips"},
			models.EntityPrice:    {"cheap", "expensive", "under", "up to"},
			models.EntityFeedback: {"loved it", "was ok", "didn't like", "didnt like"},
		},
	}
}

// Recognize scans the lowercased input for known keywords. Matches score a
// fixed high confidence so they clear any sane threshold.
func (sr *StaticRecognizer) Recognize(ctx context.Context, text string) (RawResult, error) {
	lowered := strings.ToLower(text)
	raw := RawResult{
		Intents:  make(map[models.Intent]float64),
		Entities: make(map[models.Entity][]string),
	}
	for intent, keywords := range sr.intentKeywords {
		for _, kw := range keywords {
			if strings.Contains(lowered, kw) {
				raw.Intents[intent] = 0.9
				break
			}
		}
	}
	for entity, keywords := range sr.entityKeywords {
		for _, kw := range keywords {
			if strings.Contains(lowered, kw) {
				raw.Entities[entity] = append(raw.Entities[entity], kw)
			}
		}
	}
	slog.Debug("StaticRecognizer recognized input", "intents", len(raw.Intents), "entities", len(raw.Entities))
	return raw, nil
}

// StaticKnowledgeBase answers lookups from a fixed question table.
type StaticKnowledgeBase struct {
	answers map[string]string
}

// NewStaticKnowledgeBase builds a knowledge base from question/answer pairs.
// Questions are matched as lowercase substrings of the input.
func NewStaticKnowledgeBase(pairs map[string]string) *StaticKnowledgeBase {
	answers := make(map[string]string, len(pairs))
	for q, a := range pairs {
		answers[strings.ToLower(q)] = a
	}
	return &StaticKnowledgeBase{answers: answers}
}

// Lookup returns every answer whose question appears in the input.
func (kb *StaticKnowledgeBase) Lookup(ctx context.Context, text string) ([]Answer, error) {
	lowered := strings.ToLower(text)
	var hits []Answer
	for q, a := range kb.answers {
		if strings.Contains(lowered, q) {
			hits = append(hits, Answer{Answer: a, Score: 1.0})
		}
	}
	slog.Debug("StaticKnowledgeBase lookup", "hits", len(hits))
	return hits, nil
}
