package messaging

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dialogpipe/dialogpipe/internal/models"
)

// Service abstracts the outbound messaging channel. Implementations deliver
// the turn output produced by the dialog engine to a concrete transport.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates a recipient identifier and
	// returns its canonical form.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)
	// SendMessage sends a plain text message to the canonical recipient.
	SendMessage(ctx context.Context, to, body string) error
	// SendActions sends a text message followed by a rendered list of
	// suggested actions the user can reply with.
	SendActions(ctx context.Context, to, body string, actions []models.SuggestedAction) error
}

// RenderActions renders suggested actions as a numbered option list. Channels
// without native buttons (plain WhatsApp text) present choices this way and
// accept the label typed back as the reply.
func RenderActions(actions []models.SuggestedAction) string {
	var b strings.Builder
	for i, a := range actions {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. %s", i+1, a.Label)
	}
	return b.String()
}

// DeliverTurn walks the buffered turn output and delivers it over the
// service. Typing indicators are skipped and delay markers pause delivery, so
// multi-message answers arrive with the pacing the dialogs asked for.
func DeliverTurn(ctx context.Context, svc Service, to string, messages []models.Message) error {
	for _, msg := range messages {
		switch msg.Type {
		case models.MessageTypeTyping:
			continue
		case models.MessageTypeDelay:
			select {
			case <-time.After(time.Duration(msg.DelayMS) * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		case models.MessageTypeText:
			var err error
			if len(msg.Actions) > 0 {
				err = svc.SendActions(ctx, to, msg.Body, msg.Actions)
			} else {
				err = svc.SendMessage(ctx, to, msg.Body)
			}
			if err != nil {
				return fmt.Errorf("failed to deliver message: %w", err)
			}
		}
	}
	return nil
}
