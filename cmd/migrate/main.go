package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/samirrijal/busradar/internal/adapters/postgres"
	"github.com/samirrijal/busradar/internal/pkg/config"
	"github.com/samirrijal/busradar/internal/pkg/logging"
)

var upMigrations = []string{
	"migrations/001_init_extensions.sql",
	"migrations/002_bus_stops.sql",
}

var downMigrations = []string{
	"migrations/002_bus_stops.down.sql",
}

func main() {
	if len(os.Args) < 2 {
		slog.Error("usage: migrate <up|down>")
		os.Exit(2)
	}

	cfg, err := config.Load("busradar-migrate")
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		slog.Error("db", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var files []string
	switch os.Args[1] {
	case "up":
		files = upMigrations
	case "down":
		files = downMigrations
	default:
		slog.Error("unknown command", "command", os.Args[1])
		os.Exit(2)
	}

	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			slog.Error("read migration", "file", f, "error", err)
			os.Exit(1)
		}
		if _, err := db.Pool.Exec(ctx, string(data)); err != nil {
			slog.Error("exec migration", "file", f, "error", err)
			os.Exit(1)
		}
		slog.Info("migration applied", "file", f)
	}

	slog.Info("all migrations applied", "direction", os.Args[1])
}
