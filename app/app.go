// Package app assembles the counter bot from its parts.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/counterbot/bot"
	"github.com/m3rciful/counterbot/core/bootstrap"
	"github.com/m3rciful/counterbot/core/health"
	"github.com/m3rciful/counterbot/core/logger"
	"github.com/m3rciful/counterbot/core/metrics"
	tg "github.com/m3rciful/counterbot/core/telegram"
	"github.com/m3rciful/counterbot/core/telegram/router"
	"github.com/m3rciful/counterbot/counters"
	"github.com/m3rciful/counterbot/dialogue"
)

// App holds the initialized infrastructure and domain services.
type App struct {
	cfg      *Config
	db       *sqlx.DB
	handlers *bot.Handlers
	health   *health.Server
}

// Bootstrap initializes logging, the database and the dialogue controller.
func Bootstrap(cfg *Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	res, err := bootstrap.Run(bootstrap.Options{
		Config:     &cfg.Config,
		Database:   cfg.Database,
		Migrations: counters.Migrations(),
	})
	if err != nil {
		return nil, err
	}
	return newApp(cfg, res.DB), nil
}

func newApp(cfg *Config, db *sqlx.DB) *App {
	metrics.MustRegister(nil)

	store := counters.NewSQLStore(db)
	a := &App{
		cfg:      cfg,
		db:       db,
		handlers: bot.NewHandlers(dialogue.New(store), store),
	}
	if !cfg.Health.Disabled {
		a.health = health.NewServer(cfg.Health, nil)
	}
	return a
}

// TelegramRunOptions builds the registry, routes and lifecycle hooks for the runtime.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	reg := tg.NewRegistry()
	a.handlers.Register(reg)

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: a.cfg.Telegram.AdminID,
	})
	routes = append(routes, router.TextRoutes(a.handlers, reg, router.TextOptions{})...)

	return tg.RunOptions{
		Config:      &a.cfg.Config,
		Registry:    reg,
		Middlewares: tg.DefaultMiddlewares(&a.cfg.Config, nil),
		Routes:      routes,
		OnStart:     a.start,
		OnStop:      a.stop,
	}, nil
}

func (a *App) start(ctx context.Context, _ tg.Runtime) error {
	if a.health == nil {
		return nil
	}
	if err := a.health.Start(ctx); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	return nil
}

func (a *App) stop(ctx context.Context, _ tg.Runtime) error {
	var errs []error
	if a.health != nil {
		if err := a.health.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("app: close db: %w", err))
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		logger.Error(ctx, "app", "stop", slog.String("err", err.Error()))
	}
	return err
}
