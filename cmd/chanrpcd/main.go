package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/chanrpc/internal/config"
	"github.com/danmuck/chanrpc/internal/observability"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "cmd/chanrpcd/config.toml", "path to the server config")
	flag.Parse()

	logger := observability.InitLogger("chanrpcd")
	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	app, err := newApp(cfg, logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build server")
	}
	defer app.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("addr", cfg.Addr).Str("session_store", cfg.Session.Store).Msg("chanrpcd started")
	if err := app.server.ListenAndServe(ctx); err != nil {
		log.Error().Err(err).Msg("chanrpcd stopped")
		return
	}
	log.Info().Msg("chanrpcd stopped")
}

// loadConfig falls back to defaults when the file does not exist.
func loadConfig(path string) (config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		log.Warn().Str("path", path).Msg("config not found, using defaults")
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	log.Info().Str("path", path).Msg("loaded config")
	return cfg, nil
}
