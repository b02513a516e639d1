package router

import (
	"context"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/counterbot/core/logger"
	tg "github.com/m3rciful/counterbot/core/telegram"
	"github.com/m3rciful/counterbot/core/telegram/commands"
	"github.com/m3rciful/counterbot/core/telegram/middleware"
)

// CommandRouteOptions configures CommandRoutes.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes turns every registered command into a route. Admin-only
// commands are guarded by AdminID.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	guard := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	})

	cmds := reg.Commands()
	routes := make([]tg.Route, 0, len(cmds))
	for endpoint, cmd := range cmds {
		routes = append(routes, tg.Route{
			Endpoint: endpoint,
			Handler:  commandHandler(endpoint, cmd, guard),
		})
	}

	logger.Info(context.Background(), "tg.wire", "complete",
		slog.Int("commands", len(routes)),
	)
	return routes
}

func commandHandler(endpoint string, cmd commands.Command, guard tele.MiddlewareFunc) tele.HandlerFunc {
	name := handlerName(endpoint)
	h := func(c tele.Context) error { return serve(c, name, cmd.Handler) }
	if cmd.AdminOnly {
		h = guard(h)
	}
	return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
}
