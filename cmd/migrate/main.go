package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"warframe_bot/internal/config"
	"warframe_bot/migrations"
)

type command struct {
	name string
	help string
	run  func(ctx context.Context, db *sql.DB) error
}

var commands = []command{
	{"up", "Migrate to the latest version", func(ctx context.Context, db *sql.DB) error { return goose.UpContext(ctx, db, ".") }},
	{"up-one", "Migrate one version up", func(ctx context.Context, db *sql.DB) error { return goose.UpByOneContext(ctx, db, ".") }},
	{"down", "Roll back one version", func(ctx context.Context, db *sql.DB) error { return goose.DownContext(ctx, db, ".") }},
	{"status", "Show migration status", func(ctx context.Context, db *sql.DB) error { return goose.StatusContext(ctx, db, ".") }},
	{"version", "Show current version", func(ctx context.Context, db *sql.DB) error { return goose.VersionContext(ctx, db, ".") }},
	{"reset", "Roll back all migrations", func(ctx context.Context, db *sql.DB) error { return goose.ResetContext(ctx, db, ".") }},
	{"redo", "Roll back and re-apply the latest migration", func(ctx context.Context, db *sql.DB) error { return goose.RedoContext(ctx, db, ".") }},
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintln(out, "Usage: migrate [-db path] <command>")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Manages the SQLite subscriber schema. The bolt driver needs no migrations.")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(out, "  %-10s  %s\n", c.name, c.help)
	}
	fmt.Fprintln(out)
	flag.PrintDefaults()
}

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := config.LoadEnvFile(".env"); err != nil {
		log.Error("load env file", "error", err)
		os.Exit(1)
	}

	dbPath := flag.String("db", config.DatabasePath(), "path to sqlite database")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	if driver := config.StorageDriver(); driver != config.DriverSQLite {
		log.Error("migrations apply to the sqlite driver only", "storage_driver", driver)
		os.Exit(1)
	}

	name := flag.Arg(0)
	var cmd *command
	for i := range commands {
		if commands[i].name == name {
			cmd = &commands[i]
			break
		}
	}
	if cmd == nil {
		log.Error("unknown command", "command", name)
		flag.Usage()
		os.Exit(2)
	}

	if err := migrate(*dbPath, cmd); err != nil {
		log.Error("migrate", "command", name, "db", *dbPath, "error", err)
		os.Exit(1)
	}
}

func migrate(path string, cmd *command) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := migrations.Setup(); err != nil {
		return err
	}
	return cmd.run(ctx, db)
}
