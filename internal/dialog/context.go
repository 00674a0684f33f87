package dialog

import (
	"strconv"

	"github.com/google/uuid"

	"github.com/dialogpipe/dialogpipe/internal/models"
	"github.com/dialogpipe/dialogpipe/internal/recognition"
	"github.com/dialogpipe/dialogpipe/internal/state"
)

// interMessageDelayMS is the pause inserted before each outbound text so the
// channel can render a typing indicator.
const interMessageDelayMS = 1000

// TurnContext carries everything one inbound turn needs: the turn itself, the
// state accessors bound to its conversation, the recognition collaborators and
// the outbound message buffer.
type TurnContext struct {
	Turn        *models.Turn
	Accessors   *state.Accessors
	Recognition *recognition.Helper
	Knowledge   recognition.KnowledgeBase

	outbox []models.Message
}

// NewTurnContext binds a turn to its conversation state and collaborators.
func NewTurnContext(turn *models.Turn, acc *state.Accessors, rec *recognition.Helper, kb recognition.KnowledgeBase) *TurnContext {
	return &TurnContext{Turn: turn, Accessors: acc, Recognition: rec, Knowledge: kb}
}

// Messages returns every outbound activity buffered while handling the turn.
func (tc *TurnContext) Messages() []models.Message {
	return tc.outbox
}

func (tc *TurnContext) push(msg models.Message) {
	tc.outbox = append(tc.outbox, msg)
}

// SendText buffers a plain outbound text, preceded by the typing cadence.
func (tc *TurnContext) SendText(body string) {
	tc.push(models.Message{Type: models.MessageTypeTyping})
	tc.push(models.Message{Type: models.MessageTypeDelay, DelayMS: interMessageDelayMS})
	tc.push(models.Message{ID: uuid.NewString(), Type: models.MessageTypeText, Body: body})
}

// StepContext is the view a waterfall step gets of the current turn: the user
// input, the step's persisted values, the options its dialog was started with
// and the outbound buffer.
type StepContext struct {
	tc     *TurnContext
	entry  *models.StackEntry
	result string
}

// Text returns the raw inbound text of the turn.
func (sc *StepContext) Text() string {
	if sc.tc.Turn == nil {
		return ""
	}
	return sc.tc.Turn.Text
}

// Button returns the button click payload, or nil for typed input.
func (sc *StepContext) Button() *models.ButtonClick {
	if sc.tc.Turn == nil {
		return nil
	}
	return sc.tc.Turn.Button
}

// Result returns what the previous stage produced: the prompt answer when the
// dialog just resumed, or the value an ended child dialog passed back.
func (sc *StepContext) Result() string { return sc.result }

// Accessors exposes the conversation/user state accessors.
func (sc *StepContext) Accessors() *state.Accessors { return sc.tc.Accessors }

// Recognition exposes the turn-caching recognition helper.
func (sc *StepContext) Recognition() *recognition.Helper { return sc.tc.Recognition }

// Knowledge exposes the FAQ knowledge base.
func (sc *StepContext) Knowledge() recognition.KnowledgeBase { return sc.tc.Knowledge }

// Value reads one persisted value of the active stack entry, "" when unset.
func (sc *StepContext) Value(key string) string {
	return sc.entry.Values[key]
}

// SetValue stores one persisted value on the active stack entry.
func (sc *StepContext) SetValue(key, value string) {
	if sc.entry.Values == nil {
		sc.entry.Values = make(map[string]string)
	}
	sc.entry.Values[key] = value
}

// Option reads one start option of the active dialog, "" when unset.
func (sc *StepContext) Option(key string) string {
	return sc.entry.Options[key]
}

// OptionBool reads a start option as a boolean flag.
func (sc *StepContext) OptionBool(key string) bool {
	v, err := strconv.ParseBool(sc.entry.Options[key])
	return err == nil && v
}

// OptionInt reads a start option as an integer, 0 when unset or malformed.
func (sc *StepContext) OptionInt(key string) int {
	n, err := strconv.Atoi(sc.entry.Options[key])
	if err != nil {
		return 0
	}
	return n
}

// Send buffers an outbound text message.
func (sc *StepContext) Send(body string) {
	sc.tc.SendText(body)
}

// Prompt buffers a prompt message and suspends the waterfall until the next
// turn. An empty body sends the suggested actions on their own.
func (sc *StepContext) Prompt(body string, actions ...models.SuggestedAction) StepResult {
	sc.tc.push(models.Message{Type: models.MessageTypeTyping})
	sc.tc.push(models.Message{Type: models.MessageTypeDelay, DelayMS: interMessageDelayMS})
	sc.tc.push(models.Message{
		ID:             uuid.NewString(),
		Type:           models.MessageTypeText,
		Body:           body,
		Actions:        actions,
		ExpectingInput: true,
	})
	return StepResult{kind: resultWaiting}
}

type stepResultKind int

const (
	resultWaiting stepResultKind = iota
	resultNext
	resultBegin
	resultReplace
	resultEnd
	resultCancelAll
	resultCancelBegin
	resultRoute
)

// StepResult is the transition a step hands back to the engine.
type StepResult struct {
	kind    stepResultKind
	dialog  models.DialogID
	options map[string]string
	value   string

	faqAlreadyPerformed bool
}

// Next advances to the following step within the same turn, feeding it value
// as its result.
func Next(value string) StepResult {
	return StepResult{kind: resultNext, value: value}
}

// Begin pushes a child dialog; the current dialog resumes at its next step
// when the child ends.
func Begin(id models.DialogID, options map[string]string) StepResult {
	return StepResult{kind: resultBegin, dialog: id, options: options}
}

// Replace swaps the active dialog for another, restarting at step zero.
func Replace(id models.DialogID, options map[string]string) StepResult {
	return StepResult{kind: resultReplace, dialog: id, options: options}
}

// End finishes the active dialog, passing value back to its parent.
func End(value string) StepResult {
	return StepResult{kind: resultEnd, value: value}
}

// CancelAll clears the whole dialog stack and ends the turn.
func CancelAll() StepResult {
	return StepResult{kind: resultCancelAll}
}

// CancelAllAndBegin clears the stack and starts a fresh root dialog within the
// same turn.
func CancelAllAndBegin(id models.DialogID, options map[string]string) StepResult {
	return StepResult{kind: resultCancelBegin, dialog: id, options: options}
}

// Route asks the router for a routing sweep. On a match the stack is replaced
// by the selected dialog; otherwise the stack is cleared and the turn ends.
func Route(faqAlreadyPerformed bool) StepResult {
	return StepResult{kind: resultRoute, faqAlreadyPerformed: faqAlreadyPerformed}
}
