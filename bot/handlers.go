// Package bot binds the dialogue controller to Telegram.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/counterbot/core/logger"
	tg "github.com/m3rciful/counterbot/core/telegram"
	"github.com/m3rciful/counterbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/counterbot/core/telegram/helpers"
	"github.com/m3rciful/counterbot/core/telegram/keyboard"
	"github.com/m3rciful/counterbot/counters"
	"github.com/m3rciful/counterbot/dialogue"
)

// CmdStats is the hidden admin diagnostics command.
const CmdStats = "/stats"

// Handlers adapts tele.Context updates to dialogue.Inbound and back.
type Handlers struct {
	ctl   *dialogue.Controller
	store counters.Store
}

// NewHandlers wires the controller and the store used by /stats.
func NewHandlers(ctl *dialogue.Controller, store counters.Store) *Handlers {
	return &Handlers{ctl: ctl, store: store}
}

// Register adds every bot command to reg.
func (h *Handlers) Register(reg *tg.Registry) {
	reg.RegisterCommand(dialogue.CmdStart, commands.Command{
		Handler:     h.dispatch,
		Description: "Welcome message and help",
	})
	reg.RegisterCommand(dialogue.CmdCreateCounter, commands.Command{
		Handler:     h.dispatch,
		Description: "Create a new counter",
	})
	reg.RegisterCommand(dialogue.CmdListCounters, commands.Command{
		Handler:     h.dispatch,
		Description: "View all your counters",
	})
	reg.RegisterCommand(dialogue.CmdCounters, commands.Command{
		Handler:     h.dispatch,
		Description: "Manage your counters",
	})
	reg.RegisterCommand(dialogue.CmdCancel, commands.Command{
		Handler:     h.dispatch,
		Description: "Abandon the current step",
	})
	reg.RegisterCommand(CmdStats, commands.Command{
		Handler:     h.stats,
		Description: "Bot statistics",
		AdminOnly:   true,
		Hidden:      true,
	})
}

// InProgress reports whether the chat is mid-flow; the text router uses it.
func (h *Handlers) InProgress(chatID int64) bool {
	return h.ctl.InProgress(chatID)
}

// ManagerHandler feeds a plain text message to the controller.
func (h *Handlers) ManagerHandler(c tele.Context) error {
	return h.dispatch(c)
}

func (h *Handlers) dispatch(c tele.Context) error {
	chat := c.Chat()
	if chat == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	in := dialogue.Inbound{
		ChatID:     chat.ID,
		Text:       c.Text(),
		SenderName: displayName(c),
	}
	return h.ctl.Handle(ctx, in, responder{c: c})
}

func (h *Handlers) stats(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	st, err := h.store.Stats(ctx)
	if err != nil {
		logger.Error(ctx, "bot", "stats", slog.String("err", err.Error()))
		return tghelpers.SendText(c, "Statistics are unavailable right now.")
	}
	text := fmt.Sprintf("Counters: %d\nChats with counters: %d\nActive conversations: %d",
		st.Counters, st.Chats, h.ctl.ActiveConversations())
	return tghelpers.SendText(c, text)
}

// displayName prefers the sender's first name, as a greeting would.
func displayName(c tele.Context) string {
	if u := c.Sender(); u != nil {
		if name := strings.TrimSpace(u.FirstName); name != "" {
			return name
		}
		if u.Username != "" {
			return u.Username
		}
	}
	if chat := c.Chat(); chat != nil {
		return strings.TrimSpace(chat.FirstName)
	}
	return ""
}

// responder sends dialogue replies through the shared async sender.
type responder struct {
	c tele.Context
}

func (r responder) Respond(_ context.Context, reply dialogue.Reply) error {
	markup := Markup(reply)
	if reply.Markdown {
		return tghelpers.SendMD(r.c, reply.Text, markup)
	}
	if markup != nil {
		return tghelpers.SendMarkup(r.c, reply.Text, markup)
	}
	return tghelpers.SendText(r.c, reply.Text)
}

// Markup converts reply keyboard hints into Telegram markup, or nil for none.
func Markup(reply dialogue.Reply) *tele.ReplyMarkup {
	switch {
	case len(reply.Keyboard) > 0:
		return keyboard.OneTimeButtons(reply.Keyboard...)
	case reply.RemoveKeyboard:
		return keyboard.RemoveKeyboard()
	}
	return nil
}
