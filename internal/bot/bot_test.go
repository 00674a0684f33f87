package bot

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dialogpipe/dialogpipe/internal/dialog"
	"github.com/dialogpipe/dialogpipe/internal/models"
	"github.com/dialogpipe/dialogpipe/internal/recognition"
	"github.com/dialogpipe/dialogpipe/internal/store"
)

type failingRecognizer struct{}

func (failingRecognizer) Recognize(ctx context.Context, text string) (recognition.RawResult, error) {
	return recognition.RawResult{}, errors.New("recognition backend down")
}

func newTestBot(t *testing.T, st store.Store, recognizer recognition.Recognizer) *Bot {
	t.Helper()

	helper, err := recognition.NewHelper(recognizer, 0.7)
	if err != nil {
		t.Fatalf("NewHelper() error = %v", err)
	}
	kb := recognition.NewStaticKnowledgeBase(map[string]string{
		"return policy": "You can return any TV within 30 days.",
	})
	router, err := dialog.NewRouter(
		dialog.WithRecognitionHelper(helper),
		dialog.WithKnowledgeBase(kb),
	)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	b, err := New(
		WithStore(st),
		WithRouter(router),
		WithRecognitionHelper(helper),
		WithKnowledgeBase(kb),
		WithBotUserID("bot"),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return b
}

func textBodies(messages []models.Message) []string {
	var out []string
	for _, m := range messages {
		if m.Type == models.MessageTypeText {
			out = append(out, m.Body)
		}
	}
	return out
}

func TestHandleTurnStartsOnboarding(t *testing.T) {
	st := store.NewInMemoryStore()
	b := newTestBot(t, st, recognition.NewStaticRecognizer())

	messages, err := b.HandleTurn(context.Background(), &models.Turn{
		ConversationID: "conv1",
		UserID:         "user1",
	})
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}

	texts := textBodies(messages)
	if len(texts) < 2 {
		t.Fatalf("got %d text messages, want at least 2", len(texts))
	}
	if !strings.Contains(texts[0], "Welcome to DialogPipe") {
		t.Errorf("first message = %q, want welcome", texts[0])
	}
	last := messages[len(messages)-1]
	if !last.ExpectingInput {
		t.Error("final message should expect input")
	}
	if len(last.Actions) == 0 {
		t.Error("onboarding prompt should carry suggested actions")
	}

	user, err := st.GetUser("user1")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if user == nil || user.Data[models.UserKeyOnboarded] != "true" {
		t.Error("user should be marked onboarded after the first turn")
	}
}

func TestHandleTurnValidatesInput(t *testing.T) {
	st := store.NewInMemoryStore()
	b := newTestBot(t, st, recognition.NewStaticRecognizer())

	if _, err := b.HandleTurn(context.Background(), nil); err == nil {
		t.Error("expected error for nil turn")
	}
	if _, err := b.HandleTurn(context.Background(), &models.Turn{UserID: "u"}); !errors.Is(err, models.ErrEmptyConversationID) {
		t.Errorf("error = %v, want ErrEmptyConversationID", err)
	}
	if _, err := b.HandleTurn(context.Background(), &models.Turn{ConversationID: "c"}); !errors.Is(err, models.ErrEmptyUserID) {
		t.Errorf("error = %v, want ErrEmptyUserID", err)
	}
}

func TestHandleTurnFailureResetsConversationOnly(t *testing.T) {
	st := store.NewInMemoryStore()
	b := newTestBot(t, st, failingRecognizer{})

	turn := &models.Turn{ConversationID: "conv1", UserID: "user1"}
	if _, err := b.HandleTurn(context.Background(), turn); err != nil {
		t.Fatalf("first HandleTurn() error = %v", err)
	}

	// The second turn needs recognition, which fails.
	turn.Text = "something unintelligible"
	messages, err := b.HandleTurn(context.Background(), turn)
	if err != nil {
		t.Fatalf("failing HandleTurn() error = %v", err)
	}
	texts := textBodies(messages)
	if len(texts) != 2 {
		t.Fatalf("got %d text messages, want 2", len(texts))
	}
	if texts[0] != "The bot encountered an error or bug." {
		t.Errorf("first error message = %q", texts[0])
	}
	if texts[1] != "To continue to run this bot, please fix the bot source code." {
		t.Errorf("second error message = %q", texts[1])
	}

	conv, err := st.GetConversation("conv1")
	if err != nil {
		t.Fatalf("GetConversation() error = %v", err)
	}
	if conv != nil {
		t.Error("conversation state should be wiped after a failed turn")
	}
	stack, err := st.GetStack("conv1")
	if err != nil {
		t.Fatalf("GetStack() error = %v", err)
	}
	if len(stack) != 0 {
		t.Error("dialog stack should be wiped after a failed turn")
	}
	user, err := st.GetUser("user1")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if user == nil {
		t.Error("user state should survive a failed turn")
	}
}

func TestHandleMembersAddedSkipsBot(t *testing.T) {
	st := store.NewInMemoryStore()
	b := newTestBot(t, st, recognition.NewStaticRecognizer())

	greetings, err := b.HandleMembersAdded(context.Background(), "conv1", []string{"bot", "user1"})
	if err != nil {
		t.Fatalf("HandleMembersAdded() error = %v", err)
	}
	if len(greetings) != 1 {
		t.Fatalf("got %d greetings, want 1", len(greetings))
	}
	if greetings[0].UserID != "user1" {
		t.Errorf("greeted %q, want user1", greetings[0].UserID)
	}
	if len(textBodies(greetings[0].Messages)) == 0 {
		t.Error("greeting should contain text messages")
	}
}
