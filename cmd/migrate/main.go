package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/creditpacks-backend/pkg/config"
	"github.com/angelmondragon/creditpacks-backend/pkg/db"
	"github.com/angelmondragon/creditpacks-backend/pkg/logger"
	"github.com/angelmondragon/creditpacks-backend/pkg/migrate"
)

type options struct {
	dir     string
	name    string
	version string
}

// offline commands work on the migration files alone.
var offline = map[string]func(options) error{
	"create": func(o options) error {
		if o.name == "" {
			return errors.New("-name is required for create")
		}
		path, err := migrate.CreateSQLMigration(o.dir, o.name)
		if err == nil {
			fmt.Println("created", path)
		}
		return err
	},
	"validate": func(o options) error {
		if err := migrate.ValidateDir(o.dir); err != nil {
			return err
		}
		fmt.Println("migrations valid")
		return nil
	},
}

// online commands need the ledger database.
var online = map[string]func(ctx context.Context, conn *sql.DB, dialect string, o options) error{
	"up": func(ctx context.Context, conn *sql.DB, dialect string, o options) error {
		return migrate.Run(ctx, conn, dialect, o.dir, "up")
	},
	"down": func(ctx context.Context, conn *sql.DB, dialect string, o options) error {
		return migrate.Run(ctx, conn, dialect, o.dir, "down")
	},
	"status": func(ctx context.Context, conn *sql.DB, dialect string, o options) error {
		return migrate.Run(ctx, conn, dialect, o.dir, "status")
	},
	"version": func(ctx context.Context, conn *sql.DB, dialect string, o options) error {
		if o.version == "" {
			return errors.New("-version is required for version")
		}
		return migrate.MigrateToVersion(ctx, conn, dialect, o.dir, o.version)
	},
}

func commands() string {
	names := make([]string, 0, len(offline)+len(online))
	for name := range offline {
		names = append(names, name)
	}
	for name := range online {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, "|")
}

func main() {
	cmd := flag.String("cmd", "up", "migration command: "+commands())
	dir := flag.String("dir", migrate.DefaultDir, "goose migrations directory")
	name := flag.String("name", "", "migration name (create)")
	version := flag.String("version", "", "target version YYYYMMDDHHMMSS (version)")
	flag.Parse()

	_ = godotenv.Load()
	if err := run(*cmd, options{dir: *dir, name: *name, version: *version}); err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s: %v\n", *cmd, err)
		os.Exit(1)
	}
}

func run(cmd string, o options) error {
	if fn, ok := offline[cmd]; ok {
		return fn(o)
	}
	fn, ok := online[cmd]
	if !ok {
		return fmt.Errorf("unknown command %q (want %s)", cmd, commands())
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dialect := migrate.Dialect(cfg.DB)
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":     cfg.App.Env,
		"cmd":     cmd,
		"dir":     o.dir,
		"dialect": dialect,
	})

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer client.Close()
	conn, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("unwrap sql.DB: %w", err)
	}

	logg.Info(ctx, "migrate.start")
	if err := fn(ctx, conn, dialect, o); err != nil {
		logg.Error(ctx, "migrate.failed", err)
		return err
	}
	logg.Info(ctx, "migrate.done")
	return nil
}
