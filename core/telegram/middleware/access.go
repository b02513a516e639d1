package middleware

import (
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/counterbot/core/logger"
	tghelpers "github.com/m3rciful/counterbot/core/telegram/helpers"
)

// AdminOptions configures AdminOnlyMiddleware.
type AdminOptions struct {
	AdminID  int64
	OnReject tele.HandlerFunc
}

// AdminOnlyMiddleware passes only updates sent by AdminID. A zero AdminID rejects everyone.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if u := c.Sender(); opts.AdminID != 0 && u != nil && u.ID == opts.AdminID {
				return next(c)
			}
			logger.Warn(tghelpers.BuildContext(c), "tg", "access.denied")
			if opts.OnReject != nil {
				return opts.OnReject(c)
			}
			return nil
		}
	}
}
