package helpers

import (
	"context"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/counterbot/core/logger"
)

const (
	ctxSlot  = "counterbot.ctx"
	sentSlot = "counterbot.sent"
)

// BuildContext returns the request context kept on c, creating it from the
// update, chat and sender identifiers on first use.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := c.Get(ctxSlot).(context.Context); ok {
		return ctx
	}
	var chatID, userID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		userID = user.ID
	}
	updateID := c.Update().ID

	ctx := logger.WithUpdateMeta(context.Background(), updateID, userID, chatID)
	ctx = logger.WithRID(ctx, logger.BuildRID(updateID, chatID, userID))
	c.Set(ctxSlot, ctx)
	return ctx
}

// WithHandler names the handler in the request context kept on c.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := logger.WithHandler(BuildContext(c), handler)
	c.Set(ctxSlot, ctx)
	return ctx
}

type sentStats struct {
	messages int
	keyboard bool
}

// Sent reports how many messages the current update handed to the transport
// and whether any of them carried a keyboard.
func Sent(c tele.Context) (int, bool) {
	s, _ := c.Get(sentSlot).(*sentStats)
	if s == nil {
		return 0, false
	}
	return s.messages, s.keyboard
}

func noteSent(c tele.Context, keyboard bool) {
	s, _ := c.Get(sentSlot).(*sentStats)
	if s == nil {
		s = &sentStats{}
		c.Set(sentSlot, s)
	}
	s.messages++
	s.keyboard = s.keyboard || keyboard
}
