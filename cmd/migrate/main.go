package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/pagecraft/engine/pkg/config"
	"github.com/pagecraft/engine/pkg/database"
	"github.com/pagecraft/engine/pkg/logger"
)

func main() {
	cfg := config.MustLoad()
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	db, err := database.Open(context.Background(), database.Options{
		Driver:  cfg.DatabaseDriver,
		DSN:     cfg.DatabaseURL,
		Verbose: true,
		Logger:  logger.Named("gorm"),
	})
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	if err := runMigrations(db, cfg.DatabaseDriver); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}

	fmt.Fprintln(os.Stdout, "migrations completed")
}
