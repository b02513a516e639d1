package router

import (
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/counterbot/core/telegram"
	"github.com/m3rciful/counterbot/core/telegram/middleware"
)

// FSM owns multi-step conversations and consumes plain text for chats that
// are mid-flow.
type FSM interface {
	InProgress(chatID int64) bool
	ManagerHandler(c tele.Context) error
}

// TextOptions configures TextRoutes.
type TextOptions struct {
	// UnknownText answers text nobody else claimed. Nil means stay silent.
	UnknownText tele.HandlerFunc
}

// TextRoutes builds the OnText route. Text naming a public command by alias
// runs that command; otherwise the FSM gets chats that are mid-flow, then the
// registry text fallback and UnknownText are tried.
func TextRoutes(fsm FSM, reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && !cmd.AdminOnly {
				return serve(c, handlerName(key), cmd.Handler)
			}
		}
		if fsm != nil && c.Chat() != nil && fsm.InProgress(c.Chat().ID) {
			return serve(c, "fsm", fsm.ManagerHandler)
		}
		if reg != nil && reg.TextFallback() != nil {
			return serve(c, "fallback", reg.TextFallback())
		}
		if opts.UnknownText != nil {
			return serve(c, "unknown_text", opts.UnknownText)
		}
		summarize(c, "unknown_text", "skip", 0, nil)
		return nil
	}

	return []tg.Route{{
		Endpoint: tele.OnText,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}}
}
