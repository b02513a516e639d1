package middleware

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/counterbot/core/logger"
	tghelpers "github.com/m3rciful/counterbot/core/telegram/helpers"
)

const seenSlot = "counterbot.seen"

// LoggerMiddleware prepares the request context of an update and writes a
// sampled debug line for it. An update passing through it twice is logged once.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if c.Get(seenSlot) == nil {
			c.Set(seenSlot, true)
			ctx := tghelpers.BuildContext(c)
			if logger.Enabled(ctx, slog.LevelDebug) && logger.SampleDebug() {
				logger.Debug(ctx, "tg", "update.received", updateAttrs(c)...)
			}
		}
		return next(c)
	}
}

func updateAttrs(c tele.Context) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("status", "ok"),
		slog.String("kind", UpdateKind(c)),
	}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	if user := c.Sender(); user != nil {
		attrs = append(attrs,
			slog.String("username", logger.Clip(user.Username, 64)),
			slog.String("lang", user.LanguageCode),
		)
	}
	if text := c.Text(); text != "" {
		attrs = append(attrs, slog.String("payload", logger.Clip(text, 256)))
	}
	return attrs
}
