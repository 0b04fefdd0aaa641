package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/cryptobot/core/logger"
)

// RunMigrations applies all up migrations found under the driver named
// directory of migrations (for example "postgres/0001_init.up.sql").
// SQLite is migrated through db itself so in-memory databases see the schema;
// postgres uses a dedicated connection like the migrate CLI does.
func RunMigrations(ctx context.Context, cfg Config, db *sqlx.DB, migrations fs.FS) error {
	if ctx == nil {
		ctx = context.Background()
	}
	dir := cfg.Driver
	files := listMigrationFiles(migrations, dir)
	args := []slog.Attr{
		slog.String("driver", cfg.Driver),
		slog.String("path", dir),
		slog.Int("files_total", len(files)),
	}
	if preview, truncated := logger.SummarizeStrings(files, 6); preview != "" {
		args = append(args, slog.String("files_preview", preview))
		if truncated {
			args = append(args, slog.Bool("files_truncated", true))
		}
	}
	logger.Debug(ctx, logger.CompMigrate, "resolve", args...)

	src, err := iofs.New(migrations, dir)
	if err != nil {
		logger.Error(ctx, logger.CompMigrate, "db.migrate", logger.Err(err))
		return fmt.Errorf("open embedded migrations: %w", err)
	}

	var m *migrate.Migrate
	switch cfg.Driver {
	case DriverSQLite:
		if db == nil {
			return fmt.Errorf("sqlite migrations require an open database")
		}
		drv, derr := sqlite.WithInstance(db.DB, &sqlite.Config{})
		if derr != nil {
			return fmt.Errorf("init sqlite migration driver: %w", derr)
		}
		m, err = migrate.NewWithInstance("iofs", src, DriverSQLite, drv)
	default:
		if werr := WaitForPostgres(ctx, cfg.DSN(), 30*time.Second); werr != nil {
			logger.Error(ctx, logger.CompMigrate, "db.migrate", logger.Err(werr))
			return fmt.Errorf("database not ready: %w", werr)
		}
		m, err = migrate.NewWithSourceInstance("iofs", src, cfg.MigrateURL())
		if err == nil {
			defer func() { _, _ = m.Close() }()
		}
	}
	if err != nil {
		logger.Error(ctx, logger.CompMigrate, "db.migrate", logger.Err(err))
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}

	fromVer, _, _ := m.Version()

	start := time.Now()
	upErr := m.Up()
	took := time.Since(start)

	switch {
	case upErr == nil:
	case errors.Is(upErr, migrate.ErrNoChange):
		logger.Info(ctx, logger.CompMigrate, "summary",
			slog.Uint64("from_ver", uint64(fromVer)),
			slog.Uint64("to_ver", uint64(fromVer)),
			slog.Int("files", 0),
			slog.Duration("duration", took),
		)
		return nil
	default:
		logger.Error(ctx, logger.CompMigrate, "apply", logger.Err(upErr), slog.Duration("duration", took))
		return fmt.Errorf("migration execution failed: %w", upErr)
	}

	toVer, _, _ := m.Version()
	applied := selectApplied(files, uint64(fromVer), uint64(toVer))
	if len(applied) > 0 {
		preview, truncated := logger.SummarizeStrings(applied, 6)
		logger.Debug(ctx, logger.CompMigrate, "apply",
			slog.Int("files_total", len(applied)),
			slog.String("files_preview", preview),
			slog.Bool("files_truncated", truncated),
		)
	}

	logger.Info(ctx, logger.CompMigrate, "summary",
		slog.Uint64("from_ver", uint64(fromVer)),
		slog.Uint64("to_ver", uint64(toVer)),
		slog.Int("files", len(applied)),
		slog.Duration("duration", took),
	)
	return nil
}

func listMigrationFiles(fsys fs.FS, dir string) []string {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if name := e.Name(); strings.HasSuffix(name, ".up.sql") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func parseVersion(name string) uint64 {
	parts := strings.SplitN(name, "_", 2)
	v, _ := strconv.ParseUint(parts[0], 10, 64)
	return v
}

func selectApplied(files []string, from, to uint64) []string {
	if to <= from {
		return nil
	}
	var out []string
	for _, f := range files {
		if v := parseVersion(f); v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}
