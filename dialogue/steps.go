// Package dialogue turns each chat's stream of messages into counter operations.
package dialogue

import (
	"context"

	"github.com/m3rciful/counterbot/counters"
)

// Step is what a chat is expected to send next.
type Step string

const (
	StepIdle                       Step = "idle"
	StepAwaitingName               Step = "awaiting_name"
	StepAwaitingInitialValue       Step = "awaiting_initial_value"
	StepAwaitingSelection          Step = "awaiting_selection"
	StepAwaitingAction             Step = "awaiting_action"
	StepAwaitingNewValue           Step = "awaiting_new_value"
	StepAwaitingDeleteConfirmation Step = "awaiting_delete_confirmation"
)

// Conversation is the parked state of one chat. A chat with no record is idle.
type Conversation struct {
	Step Step
	// Name is the pending name during creation.
	Name string
	// Choices is the list shown by /counters; selection indexes into it.
	Choices  []counters.Counter
	Selected counters.Counter
}

// Inbound is one text message from a chat.
type Inbound struct {
	ChatID     int64
	Text       string
	SenderName string
}

// Reply is one outgoing message. Keyboard rows are shown as a one-time reply keyboard.
type Reply struct {
	Text           string
	Markdown       bool
	Keyboard       [][]string
	RemoveKeyboard bool
}

// Responder delivers replies back to the chat that sent the Inbound.
type Responder interface {
	Respond(ctx context.Context, r Reply) error
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(ctx context.Context, r Reply) error

// Respond calls f.
func (f ResponderFunc) Respond(ctx context.Context, r Reply) error { return f(ctx, r) }
