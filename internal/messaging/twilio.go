package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/dialogpipe/dialogpipe/internal/models"
)

// phoneNumberRegex matches all non-numeric characters for canonicalization.
var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// Opts holds configuration options for the Twilio WhatsApp service.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromWhats  string
}

// Option defines a configuration option for the Twilio WhatsApp service.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromWhats sets the WhatsApp sender number in "whatsapp:+123" format.
func WithFromWhats(from string) Option {
	return func(o *Opts) { o.FromWhats = from }
}

// TwilioService delivers turn output over the Twilio WhatsApp API.
type TwilioService struct {
	client    *twilio.RestClient
	fromWhats string
}

// NewTwilioService creates a Twilio-backed messaging service. Options not
// provided fall back to the TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and
// TWILIO_FROM_NUMBER environment variables.
func NewTwilioService(opts ...Option) (*TwilioService, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromWhats == "" {
		cfg.FromWhats = os.Getenv("TWILIO_FROM_NUMBER")
	}

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromWhats == "" {
		return nil, fmt.Errorf("fromWhats number must be provided")
	}

	client := twilio.NewRestClientWithParams(
		twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		},
	)

	return &TwilioService{
		client:    client,
		fromWhats: cfg.FromWhats,
	}, nil
}

// ValidateAndCanonicalizeRecipient validates and canonicalizes a WhatsApp
// phone number. It removes all non-numeric characters and validates the
// result has at least 6 digits.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}

	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	wasModified := recipient != canonical

	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < 6 {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum 6 digits required)", canonical)
	}

	if wasModified {
		slog.Debug("TwilioService canonicalized recipient", "original", recipient, "canonical", canonical)
	}

	return canonical, nil
}

// SendMessage sends a WhatsApp message using the Twilio API.
func (s *TwilioService) SendMessage(ctx context.Context, to, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo("whatsapp:+" + to)
	params.SetFrom(s.fromWhats)
	params.SetBody(body)

	_, err := s.client.Api.CreateMessage(params)
	if err != nil {
		slog.Error("TwilioService SendMessage failed", "to", to, "error", err)
		return fmt.Errorf("failed to send message to %s: %w", to, err)
	}

	slog.Debug("TwilioService message sent", "to", to)
	return nil
}

// SendActions sends the body followed by a numbered option list. The Twilio
// Go SDK has no WhatsApp button support, so choices are rendered as text and
// the reply is matched against the labels.
func (s *TwilioService) SendActions(ctx context.Context, to, body string, actions []models.SuggestedAction) error {
	text := RenderActions(actions)
	if body != "" {
		text = body + "\n" + text
	}
	if err := s.SendMessage(ctx, to, text); err != nil {
		return err
	}
	slog.Debug("TwilioService actions sent", "to", to, "count", len(actions))
	return nil
}
