package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/BradenHooton/kamino-gate/internal/config"
	"github.com/BradenHooton/kamino-gate/internal/database"
	_ "github.com/lib/pq"
)

const usage = `usage: migrate <command>

commands:
  up      apply all pending migrations
  down    roll back the most recent migration
  status  print the applied state of every migration
`

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	timeout := flag.Duration("timeout", 2*time.Minute, "overall time limit")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, db, flag.Arg(0)); err != nil {
		logger.Error("migration command failed", slog.String("command", flag.Arg(0)), slog.Any("error", err))
		cancel()
		os.Exit(1)
	}

	logger.Info("migration command completed", slog.String("command", flag.Arg(0)))
}

func run(ctx context.Context, db *sql.DB, command string) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	switch command {
	case "up":
		return database.Migrate(ctx, db)
	case "down":
		return database.Rollback(ctx, db)
	case "status":
		return database.Status(ctx, db)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}
