package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/colyze-dev/colyze/internal/config"
	"github.com/colyze-dev/colyze/internal/devserver"
	"github.com/colyze-dev/colyze/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// The dev server logs requests, so it defaults to info and JSON
	level, format := cfg.Logging.Level, cfg.Logging.Format
	if os.Getenv("LOG_LEVEL") == "" {
		level = "info"
	}
	if os.Getenv("LOG_FORMAT") == "" {
		format = "json"
	}
	logger.Init(level, format)
	log := logger.GetLogger()

	if cfg.Dev.Secret == "" {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			log.Fatal().Err(err).Msg("Failed to generate JWT secret")
		}
		cfg.Dev.Secret = hex.EncodeToString(secret)
		log.Warn().Msg("COLYZE_DEV_SECRET not set, sessions will not survive a restart")
	}

	srv, err := devserver.New(cfg.Dev, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create server")
	}
	defer srv.Close()

	empty, err := srv.Empty()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to inspect database")
	}
	if empty {
		if err := srv.SeedDemo(); err != nil {
			log.Fatal().Err(err).Msg("Failed to seed demo data")
		}
		log.Info().Msg("Loaded demo data")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.StartResetScheduler(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start reset scheduler")
	}

	if err := srv.Start(ctx); err != nil {
		log.Error().Err(err).Msg("Server failed")
	}
}
