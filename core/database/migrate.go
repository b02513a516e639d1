package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/m3rciful/counterbot/core/logger"
)

const readyTimeout = 30 * time.Second

// RunMigrations applies every pending up migration found in the cfg.Driver
// directory of migrations. Drivers keep separate directories because their
// DDL dialects differ. Running it on an up-to-date schema is a no-op.
func RunMigrations(cfg Config, migrations fs.FS) error {
	ctx := context.Background()
	if migrations == nil {
		return fmt.Errorf("no migrations source provided")
	}
	if err := WaitFor(cfg, readyTimeout); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}

	src, err := iofs.New(migrations, cfg.Driver)
	if err != nil {
		return fmt.Errorf("open migrations source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, cfg.MigrateURL())
	if err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Warn(ctx, "db", "db.migrate.close", slog.Any("err", errors.Join(srcErr, dbErr)))
		}
	}()

	from := schemaVersion(m)
	start := time.Now()
	err = m.Up()
	took := time.Since(start)
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error(ctx, "db", "db.migrate",
			slog.String("status", "fail"),
			slog.String("driver", cfg.Driver),
			slog.Uint64("from_ver", from),
			slog.Duration("duration", took),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("migration execution failed: %w", err)
	}

	to := schemaVersion(m)
	applied := appliedFiles(migrations, cfg.Driver, from, to)
	attrs := []slog.Attr{
		slog.String("status", "ok"),
		slog.String("driver", cfg.Driver),
		slog.Uint64("from_ver", from),
		slog.Uint64("to_ver", to),
		slog.Int("files", len(applied)),
		slog.Duration("duration", took),
	}
	if preview, more := logger.SummarizeStrings(applied, 6); preview != "" {
		attrs = append(attrs, slog.String("files_preview", preview), slog.Bool("files_truncated", more))
	}
	logger.Info(ctx, "db", "db.migrate", attrs...)
	return nil
}

// schemaVersion returns the applied version, or 0 for an empty schema.
func schemaVersion(m *migrate.Migrate) uint64 {
	v, _, err := m.Version()
	if err != nil {
		return 0
	}
	return uint64(v)
}

// appliedFiles lists the up files in dir whose version lies in (from, to].
func appliedFiles(fsys fs.FS, dir string, from, to uint64) []string {
	if to <= from {
		return nil
	}
	matches, err := fs.Glob(fsys, dir+"/*.up.sql")
	if err != nil {
		return nil
	}
	var out []string
	for _, p := range matches {
		name := path.Base(p)
		prefix, _, _ := strings.Cut(name, "_")
		if v, err := strconv.ParseUint(prefix, 10, 64); err == nil && v > from && v <= to {
			out = append(out, name)
		}
	}
	return out
}
