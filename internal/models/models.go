// Package models defines the core data structures for DialogPipe.
//
// It includes dialog, intent and entity identifiers, inbound turn and outbound
// message types, and the persisted conversation/user records shared across modules.
package models

import "time"

// DialogID identifies one dialog implementation. The set is closed: routing,
// begin and replace operations only accept identifiers listed here.
type DialogID string

const (
	// DialogMain is the top-level routing dialog.
	DialogMain DialogID = "main"
	// DialogOnboarding greets first-time users.
	DialogOnboarding DialogID = "onboarding"
	// DialogMenu presents the topic menu.
	DialogMenu DialogID = "menu"
	// DialogFarewell collects feedback and says goodbye.
	DialogFarewell DialogID = "farewell"
	// DialogPurchase runs the TV purchase flow.
	DialogPurchase DialogID = "purchase"
	// DialogPurchaseBrand captures the desired brand inside the purchase flow.
	DialogPurchaseBrand DialogID = "purchaseBrand"
	// DialogPurchasePrice captures the price range inside the purchase flow.
	DialogPurchasePrice DialogID = "purchasePrice"
	// DialogFAQ answers questions from the knowledge base.
	DialogFAQ DialogID = "faq"
	// DialogException is the always-reachable fallback.
	DialogException DialogID = "exception"
	// DialogNone is the zero value meaning "no dialog".
	DialogNone DialogID = ""
)

// IsValidDialogID checks if the given dialog identifier is part of the closed set.
func IsValidDialogID(id DialogID) bool {
	switch id {
	case DialogMain, DialogOnboarding, DialogMenu, DialogFarewell,
		DialogPurchase, DialogPurchaseBrand, DialogPurchasePrice,
		DialogFAQ, DialogException:
		return true
	default:
		return false
	}
}

// RoutingPriority lists the dialogs polled during a routing sweep, highest
// priority first. The FAQ-loop guard in the router matches DialogFAQ by
// identity, never by slice position, so this order can change without
// breaking the guard.
var RoutingPriority = []DialogID{DialogFAQ, DialogMenu, DialogFarewell}

// StepAction is a disambiguation verdict that stays inside the current waterfall.
type StepAction string

const (
	// ActionContinueWaterfall advances the current waterfall to its next step
	// within the same turn.
	ActionContinueWaterfall StepAction = "continueWaterfall"
)

// Intent identifies a recognized user intention.
type Intent string

const (
	IntentNone     Intent = "none"
	IntentMenu     Intent = "menu"
	IntentFarewell Intent = "farewell"
	IntentPurchase Intent = "purchaseTV"
)

// Entity identifies a recognized entity kind.
type Entity string

const (
	EntityAbout    Entity = "about"
	EntityHelp     Entity = "help"
	EntityAction   Entity = "action"
	EntityBrand    Entity = "brand"
	EntityPrice    Entity = "price"
	EntityFeedback Entity = "feedback"
	// EntityMarker is present in every recognition result's entity map; the
	// recognition service injects it alongside real matches, so "only one
	// entity" means the marker plus exactly one more key.
	EntityMarker Entity = "$instance"
)

// Button labels offered as suggested actions.
const (
	ButtonWhatCanYouDo     = "What can you do?"
	ButtonWhoBuiltYou      = "Who built you?"
	ButtonMenu             = "Menu"
	ButtonPurchaseTV       = "Purchase a TV"
	ButtonThatsAllForToday = "Thats All for Today!"
	ButtonDoubts           = "Doubts"
	ButtonLovedIt          = "I loved it!"
	ButtonThoughtItWasOk   = "I thought it was ok"
	ButtonDidntLikeIt      = "I didn't like it"
)

// ButtonSource marks a turn value that originated from a button click.
const ButtonSource = "button"

// ButtonClick carries the structured payload of a clicked suggested action.
type ButtonClick struct {
	Source  string `json:"source"`
	Label   string `json:"label,omitempty"`
	Payload string `json:"payload,omitempty"`
}

// Turn represents one inbound user input delivered by the transport.
type Turn struct {
	ConversationID string       `json:"conversation_id"`
	UserID         string       `json:"user_id"`
	Text           string       `json:"text"`
	Button         *ButtonClick `json:"button,omitempty"`
	Time           time.Time    `json:"time,omitempty"`
}

// MessageType distinguishes outbound activity kinds.
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeTyping MessageType = "typing"
	MessageTypeDelay  MessageType = "delay"
)

// SuggestedAction is one selectable option presented with a prompt.
type SuggestedAction struct {
	Label   string `json:"label"`
	Payload string `json:"payload,omitempty"`
}

// Message represents one outbound activity produced while handling a turn.
type Message struct {
	ID      string            `json:"id,omitempty"`
	Type    MessageType       `json:"type"`
	Body    string            `json:"body,omitempty"`
	DelayMS int               `json:"delay_ms,omitempty"`
	Actions []SuggestedAction `json:"actions,omitempty"`
	// ExpectingInput is set on the prompt that suspended the active dialog.
	ExpectingInput bool `json:"expecting_input,omitempty"`
}

// DisambiguationResponse is the transient verdict returned by every
// disambiguator method. It is consumed by the calling dialog step within the
// same turn and never persisted.
type DisambiguationResponse struct {
	InputIdentified bool
	// NextDialog is set when the verdict targets another dialog.
	NextDialog DialogID
	// Action is set when the verdict stays inside the current waterfall.
	Action StepAction
	// Choice carries the normalized option the user picked, if any.
	Choice string
	// StepData carries prompt material for continue-waterfall verdicts.
	StepData *StepData
	// Options are passed to the target dialog when NextDialog is set.
	Options map[string]string
}

// StepData bundles the message and suggested actions a continue-waterfall
// verdict wants the resumed step to present.
type StepData struct {
	Message string            `json:"message,omitempty"`
	Actions []SuggestedAction `json:"actions,omitempty"`
}

// ConversationRecord holds all conversation-scoped persisted properties.
type ConversationRecord struct {
	ConversationID    string            `json:"conversation_id"`
	CurrentDialog     DialogID          `json:"current_dialog"`
	PreviousDialog    DialogID          `json:"previous_dialog"`
	DialogComplete    bool              `json:"dialog_complete"`
	IsSecondException bool              `json:"is_second_exception"`
	Data              map[string]string `json:"data,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// UserRecord holds user-scoped persisted properties. It survives across
// conversations of the same user.
type UserRecord struct {
	UserID    string            `json:"user_id"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Keys used inside ConversationRecord.Data.
const (
	DataKeyRecognition     = "recognition"
	DataKeyFirstStepChoice = "firstStepChoice"
)

// Keys used inside UserRecord.Data.
const (
	UserKeyOnboarded    = "onboarded"
	UserKeyVersion      = "version"
	UserKeyActivateMenu = "activateMenu"
)

// StackEntry is one element of a conversation's dialog stack. Step is the
// index of the waterfall step that runs on the next matching turn.
type StackEntry struct {
	Dialog  DialogID          `json:"dialog"`
	Step    int               `json:"step"`
	Values  map[string]string `json:"values,omitempty"`
	Options map[string]string `json:"options,omitempty"`
}

// Option keys recognized on stack entries.
const (
	OptionCallCanHandle = "callCanHandle"
	OptionFAQPerformed  = "faqAlreadyPerformed"
	OptionAttempts      = "numberOfAttempts"
	OptionFAQAnswers    = "faqAnswers"
)
