package messaging

import (
	"context"
	"fmt"
	"sync"

	"github.com/dialogpipe/dialogpipe/internal/models"
)

// SentMessage is one recorded outbound message.
type SentMessage struct {
	To   string
	Body string
}

// SentActions is one recorded outbound action list.
type SentActions struct {
	To      string
	Body    string
	Actions []models.SuggestedAction
}

// Recorder is an in-memory Service for tests. It records everything sent and
// never talks to a transport.
type Recorder struct {
	mu           sync.Mutex
	SentMessages []SentMessage
	ActionSends  []SentActions
}

// NewRecorder creates a recording messaging service.
func NewRecorder() *Recorder {
	return &Recorder{
		SentMessages: []SentMessage{},
		ActionSends:  []SentActions{},
	}
}

// ValidateAndCanonicalizeRecipient accepts any non-empty recipient unchanged.
func (r *Recorder) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}
	return recipient, nil
}

// SendMessage records the message.
func (r *Recorder) SendMessage(ctx context.Context, to, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.SentMessages = append(r.SentMessages, SentMessage{To: to, Body: body})
	return nil
}

// SendActions records the action list and the rendered message.
func (r *Recorder) SendActions(ctx context.Context, to, body string, actions []models.SuggestedAction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ActionSends = append(r.ActionSends, SentActions{To: to, Body: body, Actions: actions})
	r.SentMessages = append(r.SentMessages, SentMessage{To: to, Body: body + "\n" + RenderActions(actions)})
	return nil
}
