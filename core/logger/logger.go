package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/m3rciful/counterbot/core/buildinfo"
	coreconfig "github.com/m3rciful/counterbot/core/config"
)

const flushEvery = 250 * time.Millisecond

var (
	initOnce sync.Once
	closeMu  sync.Mutex
	closed   bool

	root    *slog.Logger
	out     *bufferedWriter
	files   []io.Closer
	level   slog.LevelVar
	debug   sampler
	traceOn bool
)

// InitLogger installs the process-wide structured logger. Later calls are no-ops.
func InitLogger(cfg *coreconfig.Config) error {
	var err error
	initOnce.Do(func() {
		var logging coreconfig.LoggingConfig
		if cfg != nil {
			logging = cfg.Logging
		}

		sinks, closers, openErr := openSinks(logging)
		if openErr != nil {
			err = openErr
			return
		}
		files = closers
		out = newBufferedWriter(io.MultiWriter(sinks...), 64*1024, flushEvery)

		level.Set(parseLevel(logging.Level))
		debug.set(parseSample(logging.DebugSample))
		traceOn = truthy(os.Getenv("TRACE")) || truthy(os.Getenv("LOG_TRACE"))

		root = slog.New(newLineHandler(&level, out, pickFormat(logging), pickOrder(logging.KeysOrder)))
		slog.SetDefault(root)

		Info(context.Background(), "app", "startup",
			slog.String("go_version", runtime.Version()),
			slog.String("build_version", buildinfo.Version),
			slog.String("build_commit", buildinfo.Commit),
			slog.String("build_time", buildinfo.Date),
			slog.String("cfg_profile", profile(logging)),
		)
	})
	return err
}

// Shutdown flushes pending output and closes log files. It is safe to call twice.
func Shutdown() error {
	closeMu.Lock()
	defer closeMu.Unlock()
	if closed {
		return nil
	}
	closed = true

	var errs []error
	if out != nil {
		errs = append(errs, out.Close())
	}
	for _, f := range files {
		errs = append(errs, f.Close())
	}
	return errors.Join(errs...)
}

// Debug logs a debug event for component.
func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	emit(ctx, slog.LevelDebug, component, event, attrs)
}

// Info logs an info event for component.
func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	emit(ctx, slog.LevelInfo, component, event, attrs)
}

// Warn logs a warning event for component.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	emit(ctx, slog.LevelWarn, component, event, attrs)
}

// Error logs an error event for component.
func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	emit(ctx, slog.LevelError, component, event, attrs)
}

// Enabled reports whether records at lvl are written. It is false before InitLogger.
func Enabled(ctx context.Context, lvl slog.Level) bool {
	return root != nil && root.Enabled(ctx, lvl)
}

// SampleDebug reports whether a high-volume debug record should be written.
// TRACE=1 disables sampling.
func SampleDebug() bool {
	return traceOn || debug.allow()
}

func emit(ctx context.Context, lvl slog.Level, component, event string, attrs []slog.Attr) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !Enabled(ctx, lvl) {
		return
	}
	all := make([]slog.Attr, 0, len(attrs)+2)
	if component != "" {
		all = append(all, slog.String("component", component))
	}
	if event != "" {
		all = append(all, slog.String("event", event))
	}
	root.LogAttrs(ctx, lvl, event, append(all, attrs...)...)
}

func openSinks(cfg coreconfig.LoggingConfig) ([]io.Writer, []io.Closer, error) {
	sinks := []io.Writer{os.Stdout}
	dir, name := strings.TrimSpace(cfg.Dir), strings.TrimSpace(cfg.BotFile)
	if dir == "" || name == "" {
		return sinks, nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("logger: create log dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: open log file %s: %w", path, err)
	}
	return append(sinks, f), []io.Closer{f}, nil
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// pickFormat honours logging.format and falls back to kv for dev/debug profiles.
func pickFormat(cfg coreconfig.LoggingConfig) format {
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "json":
		return formatJSON
	case "kv", "text", "pretty":
		return formatKV
	}
	switch profile(cfg) {
	case "debug", "dev":
		return formatKV
	}
	return formatJSON
}

func pickOrder(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "default" {
		return defaultKeyOrder
	}
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return defaultKeyOrder
	}
	return keys
}

func profile(cfg coreconfig.LoggingConfig) string {
	if p := strings.ToLower(strings.TrimSpace(cfg.Profile)); p != "" {
		return p
	}
	return "prod"
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
