package recognition

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/dialogpipe/dialogpipe/internal/models"
	"github.com/dialogpipe/dialogpipe/internal/state"
)

// Helper caches one turn's recognition result in conversation data so a
// routing decision and the dialog it starts share a single recognition call.
type Helper struct {
	recognizer Recognizer
	threshold  float64
}

// NewHelper creates a Helper. The threshold applies to every Result it builds.
func NewHelper(recognizer Recognizer, threshold float64) (*Helper, error) {
	if recognizer == nil {
		return nil, models.ErrMissingRecognizer
	}
	if threshold < 0 || threshold > 1 {
		return nil, models.ErrInvalidThreshold
	}
	return &Helper{recognizer: recognizer, threshold: threshold}, nil
}

// cachedResult is the persisted shape of one recognition call.
type cachedResult struct {
	Raw RawResult `json:"raw"`
}

// Generate performs a fresh recognition call and wraps the output.
func (h *Helper) Generate(ctx context.Context, text string) (*Result, error) {
	raw, err := h.recognizer.Recognize(ctx, text)
	if err != nil {
		return nil, models.Describe(err, "generating recognition result")
	}
	return NewResult(raw, h.threshold), nil
}

// Save caches a result into conversation data for reuse within this turn.
func (h *Helper) Save(ctx context.Context, acc *state.Accessors, res *Result) error {
	payload, err := json.Marshal(cachedResult{Raw: res.Raw()})
	if err != nil {
		return models.Describe(err, "encoding recognition result")
	}
	return acc.SetConversationData(ctx, models.DataKeyRecognition, string(payload))
}

// Saved returns the turn-cached result, or nil when none is stored.
func (h *Helper) Saved(ctx context.Context, acc *state.Accessors) (*Result, error) {
	payload, err := acc.ConversationData(ctx, models.DataKeyRecognition)
	if err != nil {
		return nil, err
	}
	if payload == "" {
		return nil, nil
	}
	var cached cachedResult
	if err := json.Unmarshal([]byte(payload), &cached); err != nil {
		slog.Error("Helper cached recognition decode failed", "error", err)
		return nil, models.Describe(err, "decoding cached recognition result")
	}
	return NewResult(cached.Raw, h.threshold), nil
}

// Current returns the turn-cached result if present, otherwise generates,
// caches and returns a fresh one.
func (h *Helper) Current(ctx context.Context, acc *state.Accessors, text string) (*Result, error) {
	if res, err := h.Saved(ctx, acc); err != nil {
		return nil, err
	} else if res != nil {
		slog.Debug("Helper reusing turn-cached recognition result")
		return res, nil
	}
	res, err := h.Generate(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := h.Save(ctx, acc, res); err != nil {
		return nil, err
	}
	return res, nil
}

// Clear drops the turn cache. Called at end of turn so the next input is
// recognized fresh.
func (h *Helper) Clear(ctx context.Context, acc *state.Accessors) error {
	return acc.DeleteConversationData(ctx, models.DataKeyRecognition)
}
