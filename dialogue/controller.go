package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/m3rciful/counterbot/core/logger"
	"github.com/m3rciful/counterbot/core/metrics"
	"github.com/m3rciful/counterbot/core/telegram/commands"
	"github.com/m3rciful/counterbot/core/telegram/state"
	"github.com/m3rciful/counterbot/counters"
)

// Commands understood by the controller.
const (
	CmdStart         = "/start"
	CmdCreateCounter = "/createcounter"
	CmdListCounters  = "/listcounters"
	CmdCounters      = "/counters"
	CmdCancel        = "/cancel"
)

// Controller is the per-chat state machine. It owns the conversation tracker.
type Controller struct {
	store   counters.Store
	tracker state.Manager[Conversation]
	locks   chatLocks
}

// Option customizes a Controller.
type Option func(*Controller)

// WithTracker replaces the in-memory conversation tracker.
func WithTracker(m state.Manager[Conversation]) Option {
	return func(c *Controller) {
		if m != nil {
			c.tracker = m
		}
	}
}

// New builds a controller over store.
func New(store counters.Store, opts ...Option) *Controller {
	c := &Controller{
		store:   store,
		tracker: state.NewMemoryManager[Conversation](),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// InProgress reports whether the chat is parked mid-flow.
func (c *Controller) InProgress(chatID int64) bool {
	return c.tracker.InProgress(chatID)
}

// Step returns the chat's current step.
func (c *Controller) Step(chatID int64) Step {
	if conv, ok := c.tracker.Get(chatID); ok {
		return conv.Step
	}
	return StepIdle
}

// ActiveConversations returns the number of chats parked mid-flow.
func (c *Controller) ActiveConversations() int {
	return c.tracker.Len()
}

// Handle consumes one inbound message. Store failures are reported to the chat
// and logged; the returned error is a delivery failure from out.
func (c *Controller) Handle(ctx context.Context, in Inbound, out Responder) error {
	unlock := c.locks.lock(in.ChatID)
	defer unlock()

	conv, ok := c.tracker.Get(in.ChatID)
	if !ok {
		conv = Conversation{Step: StepIdle}
	}
	from := conv.Step

	t := &turn{ctl: c, ctx: ctx, in: in, conv: conv}
	if cmd := commands.Name(in.Text); isKnownCommand(cmd) {
		t.command(cmd)
	} else {
		t.text(strings.TrimSpace(in.Text))
	}

	c.commit(ctx, in.ChatID, from, t.conv)

	for _, r := range t.replies {
		if err := out.Respond(ctx, r); err != nil {
			return fmt.Errorf("dialogue: respond: %w", err)
		}
	}
	return nil
}

func (c *Controller) commit(ctx context.Context, chatID int64, from Step, conv Conversation) {
	if conv.Step == StepIdle {
		c.tracker.Clear(chatID)
	} else {
		c.tracker.Set(chatID, conv)
	}
	metrics.SetActiveConversations(c.tracker.Len())
	if from == conv.Step {
		return
	}
	metrics.IncTransition(string(from), string(conv.Step))
	logger.Debug(ctx, "dialogue", "transition",
		slog.Int64("chat_id", chatID),
		slog.String("step", string(from)),
		slog.String("next_step", string(conv.Step)),
	)
}

func isKnownCommand(cmd string) bool {
	switch cmd {
	case CmdStart, CmdCreateCounter, CmdListCounters, CmdCounters, CmdCancel:
		return true
	}
	return false
}

// turn holds the work of a single Handle call.
type turn struct {
	ctl     *Controller
	ctx     context.Context
	in      Inbound
	conv    Conversation
	replies []Reply
}

func (t *turn) say(text string) {
	t.replies = append(t.replies, Reply{Text: text})
}

func (t *turn) sayClear(text string) {
	t.replies = append(t.replies, Reply{Text: text, RemoveKeyboard: true})
}

func (t *turn) ask(text string, keyboard [][]string) {
	t.replies = append(t.replies, Reply{Text: text, Keyboard: keyboard})
}

func (t *turn) idle() {
	t.conv = Conversation{Step: StepIdle}
}

func (t *turn) partition() counters.Partition {
	return t.ctl.store.Chat(t.in.ChatID)
}

// failed logs a store error and reports it. NotFound gets its own message.
func (t *turn) failed(op string, err error, name, generic string) {
	if errors.Is(err, counters.ErrNotFound) {
		t.sayClear(gone(name))
		return
	}
	logger.Error(t.ctx, "dialogue", "store.fail",
		slog.Int64("chat_id", t.in.ChatID),
		slog.String("op", op),
		slog.String("err", err.Error()),
	)
	t.sayClear(generic)
}

// command runs a known command. Any parked flow is discarded first.
func (t *turn) command(cmd string) {
	parked := t.conv.Step != StepIdle
	t.idle()
	logger.Debug(t.ctx, "dialogue", "command",
		slog.Int64("chat_id", t.in.ChatID),
		slog.String("command", cmd),
	)

	switch cmd {
	case CmdStart:
		t.say(welcome(t.in.SenderName))
	case CmdCancel:
		if parked {
			t.sayClear(msgCancelled)
		} else {
			t.say(msgNothingToCancel)
		}
	case CmdCreateCounter:
		t.conv = Conversation{Step: StepAwaitingName}
		t.sayClear(msgAskName)
	case CmdListCounters:
		list, err := t.partition().List(t.ctx)
		switch {
		case err != nil:
			t.failed("list", err, "", errFetch)
		case len(list) == 0:
			t.say(msgNoCounters)
		default:
			t.replies = append(t.replies, Reply{Text: listing(list), Markdown: true})
		}
	case CmdCounters:
		list, err := t.partition().List(t.ctx)
		switch {
		case err != nil:
			t.failed("list", err, "", errFetch)
		case len(list) == 0:
			t.say(msgNoCounters)
		default:
			t.conv = Conversation{Step: StepAwaitingSelection, Choices: list}
			t.sayClear(selectionPrompt(list))
		}
	}
}

// text consumes plain text as the answer to the parked step. Idle chats ignore it.
func (t *turn) text(text string) {
	switch t.conv.Step {
	case StepAwaitingName:
		t.onName(text)
	case StepAwaitingInitialValue:
		t.onInitialValue(text)
	case StepAwaitingSelection:
		t.onSelection(text)
	case StepAwaitingAction:
		t.onAction(text)
	case StepAwaitingNewValue:
		t.onNewValue(text)
	case StepAwaitingDeleteConfirmation:
		t.onDeleteConfirmation(text)
	}
}

func (t *turn) onName(text string) {
	name, err := counters.NormalizeName(text)
	if err != nil {
		t.say(badName(err))
		return
	}
	t.conv = Conversation{Step: StepAwaitingInitialValue, Name: name}
	t.say(msgAskInitialValue)
}

// onInitialValue keeps asking until a valid number arrives.
func (t *turn) onInitialValue(text string) {
	value, err := counters.ParseValue(text)
	if err != nil {
		t.say(msgBadInitialValue)
		return
	}
	name := t.conv.Name
	t.idle()
	if _, err := t.partition().Create(t.ctx, name, value); err != nil {
		t.failed("create", err, name, errCreate)
		return
	}
	t.say(created(name, value))
}

// onSelection abandons the flow on bad input instead of asking again.
func (t *turn) onSelection(text string) {
	choices := t.conv.Choices
	t.idle()
	n, err := strconv.Atoi(text)
	if err != nil || n < 1 || n > len(choices) {
		t.say(msgBadSelection)
		return
	}
	picked := choices[n-1]
	current, err := t.partition().Get(t.ctx, picked.ID)
	if err != nil {
		t.failed("get", err, picked.Name, errFetch)
		return
	}
	t.conv = Conversation{Step: StepAwaitingAction, Selected: current}
	t.ask(selected(current), actionKeyboard)
}

func (t *turn) onAction(text string) {
	sel := t.conv.Selected
	t.idle()
	logger.Debug(t.ctx, "dialogue", "action",
		slog.Int64("chat_id", t.in.ChatID),
		slog.String("action", text),
		slog.Int64("counter_id", sel.ID),
	)

	switch text {
	case ActionIncrement:
		t.increment(sel, 1, errIncrement)
	case ActionDecrement:
		t.increment(sel, -1, errDecrement)
	case ActionChange:
		t.conv = Conversation{Step: StepAwaitingNewValue, Selected: sel}
		t.sayClear(askNewValue(sel.Name))
	case ActionDelete:
		t.conv = Conversation{Step: StepAwaitingDeleteConfirmation, Selected: sel}
		t.ask(confirmDelete(sel.Name), confirmKeyboard)
	case ActionCancel:
		t.sayClear(msgActionCancelled)
	default:
		t.sayClear(msgBadAction)
	}
}

// increment reports the value committed by the store, not a local computation.
func (t *turn) increment(sel counters.Counter, delta int64, generic string) {
	value, err := t.partition().IncrementBy(t.ctx, sel.ID, delta)
	if counters.IsValidation(err) {
		t.sayClear(atLimit(sel.Name))
		return
	}
	if err != nil {
		t.failed("increment", err, sel.Name, generic)
		return
	}
	t.sayClear(incremented(sel.Name, delta, value))
}

// onNewValue abandons the flow on a malformed number.
func (t *turn) onNewValue(text string) {
	sel := t.conv.Selected
	t.idle()
	value, err := counters.ParseValue(text)
	if err != nil {
		t.say(msgBadNewValue)
		return
	}
	if err := t.partition().SetValue(t.ctx, sel.ID, value); err != nil {
		t.failed("set", err, sel.Name, errChange)
		return
	}
	t.say(updated(sel.Name, value))
}

func (t *turn) onDeleteConfirmation(text string) {
	sel := t.conv.Selected
	t.idle()
	if !strings.EqualFold(text, "yes") {
		t.sayClear(msgDeleteCancelled)
		return
	}
	if err := t.partition().Delete(t.ctx, sel.ID); err != nil {
		t.failed("delete", err, sel.Name, errDelete)
		return
	}
	t.sayClear(deleted(sel.Name))
}
