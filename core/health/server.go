// Package health serves the liveness page and Prometheus metrics over HTTP.
package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m3rciful/counterbot/core/logger"
)

const defaultPort = 2000

const runningPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>counterbot</title></head>
<body><center><h1>Bot 24H ON!</h1></center></body>
</html>
`

// Config describes the liveness listener.
type Config struct {
	Disabled bool   `yaml:"disabled" envconfig:"HEALTH_DISABLED"`
	Listen   string `yaml:"listen" envconfig:"HEALTH_LISTEN"`
	Port     int    `yaml:"port" envconfig:"PORT"`
}

// Normalize applies the default port.
func (c *Config) Normalize() error {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("health.port out of range: %d", c.Port)
	}
	return nil
}

// Addr returns the host:port the server listens on.
func (c Config) Addr() string {
	return net.JoinHostPort(strings.TrimSpace(c.Listen), strconv.Itoa(c.Port))
}

// Server is the HTTP liveness endpoint used by uptime monitors.
type Server struct {
	cfg  Config
	srv  *http.Server
	done chan error
}

// NewServer builds the server; metrics are served from gatherer
// (the Prometheus default gatherer when nil).
func NewServer(cfg Config, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		cfg: cfg,
		srv: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           Routes(gatherer),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Routes returns the HTTP handler tree.
func Routes(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(runningPage))
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("health: listen %s: %w", s.srv.Addr, err)
	}
	s.done = make(chan error, 1)
	go func() {
		err := s.srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.done <- err
	}()
	logger.Info(ctx, "http", "listen",
		slog.String("status", "ok"),
		slog.String("listen", ln.Addr().String()),
	)
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.done == nil {
		return nil
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("health: shutdown: %w", err)
	}
	err := <-s.done
	s.done = nil
	return err
}
