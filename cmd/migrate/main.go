package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"

	"github.com/studioops/studioops/internal/app"
)

func main() {
	_ = godotenv.Load()

	var (
		dir  = flag.String("dir", "db/migrations", "path to migration files")
		down = flag.Bool("down", false, "roll back one migration instead of applying all")
	)
	flag.Parse()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	m, err := migrate.New(fmt.Sprintf("file://%s", *dir), cfg.PGDSN)
	if err != nil {
		logger.Error("init migrate", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Warn("close migrate", slog.Any("source_error", srcErr), slog.Any("db_error", dbErr))
		}
	}()

	if *down {
		err = m.Steps(-1)
	} else {
		err = m.Up()
	}
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("no migrations to apply")
		return
	}
	if err != nil {
		logger.Error("run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	version, dirty, err := m.Version()
	if err != nil {
		logger.Error("read migration version", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("migrations applied", slog.Any("version", version), slog.Bool("dirty", dirty))
}
