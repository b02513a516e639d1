package middleware

import (
	"strings"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/counterbot/core/config"
	"github.com/m3rciful/counterbot/core/metrics"
)

// UpdateKind classifies an update for rate limiting and metrics:
// "command", "message", "callback" or "other".
func UpdateKind(c tele.Context) string {
	upd := c.Update()
	switch {
	case upd.Message != nil && strings.HasPrefix(upd.Message.Text, "/"):
		return coreconfig.UpdateCommand
	case upd.Message != nil:
		return coreconfig.UpdateMessage
	case upd.Callback != nil:
		return coreconfig.UpdateCallback
	}
	return "other"
}

// UpdateMetricsMiddleware counts inbound updates by kind.
func UpdateMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		metrics.IncUpdate(UpdateKind(c))
		return next(c)
	}
}
