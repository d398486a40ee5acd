// Package migrate applies the ledger schema (users, credit_orders,
// credit_usages, webhook_events) with goose.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/creditpacks-backend/pkg/config"
	"github.com/angelmondragon/creditpacks-backend/pkg/db"
	"github.com/angelmondragon/creditpacks-backend/pkg/logger"
)

const DefaultDir = "pkg/migrate/migrations"

// Dialect maps the configured driver onto the goose dialect name.
func Dialect(cfg config.DBConfig) string {
	if cfg.IsSQLite() {
		return "sqlite3"
	}
	return "postgres"
}

func prepare(conn *sql.DB, dialect, dir string) error {
	switch {
	case conn == nil:
		return errors.New("db is required")
	case dir == "":
		return errors.New("dir is required")
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return nil
}

// Run executes a goose command such as up, down, status or down-to. goose
// prints its own progress to stdout.
func Run(ctx context.Context, conn *sql.DB, dialect, dir, command string, args ...string) error {
	if err := prepare(conn, dialect, dir); err != nil {
		return err
	}
	if err := goose.RunContext(ctx, command, conn, dir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// MigrateToVersion moves the schema up or down until version is current.
func MigrateToVersion(ctx context.Context, conn *sql.DB, dialect, dir, version string) error {
	target, err := strconv.ParseInt(version, 10, 64)
	if err != nil || target < 0 {
		return fmt.Errorf("invalid version %q (want YYYYMMDDHHMMSS)", version)
	}
	if err := prepare(conn, dialect, dir); err != nil {
		return err
	}
	current, err := goose.GetDBVersionContext(ctx, conn)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	step, name := goose.UpToContext, "up-to"
	switch {
	case current == target:
		return nil
	case current > target:
		step, name = goose.DownToContext, "down-to"
	}
	if err := step(ctx, conn, dir, target); err != nil {
		return fmt.Errorf("goose %s %d: %w", name, target, err)
	}
	return nil
}

// MaybeRunDev applies pending migrations at boot when running in dev with
// CREDITS_AUTO_MIGRATE set. Every other environment migrates via cmd/migrate.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	conn, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}

	dialect := Dialect(cfg.DB)
	ctx = logg.WithFields(ctx, map[string]any{"dir": DefaultDir, "dialect": dialect})
	logg.Info(ctx, "migrate.auto.start")
	if err := Run(ctx, conn, dialect, DefaultDir, "up"); err != nil {
		return err
	}
	logg.Info(ctx, "migrate.auto.done")
	return nil
}
