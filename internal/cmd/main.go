package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vaultrun/netcode/internal/gateway"
	"github.com/vaultrun/netcode/internal/room"
	"github.com/vaultrun/netcode/internal/session"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if level, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	configPath := getEnv("CONFIG_PATH", "config.yaml")
	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Warn().Err(err).Str("path", configPath).Msg("config not loaded, using defaults")
		cfg = defaultConfig()
	}
	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	cfg.Session.MaxOccupancy = getEnvAsInt("MAX_OCCUPANCY", cfg.Session.MaxOccupancy)

	directory := room.NewDirectory()
	registry := session.NewRegistry(cfg.sessionConfig(), clockwork.NewRealClock(), directory)
	svc := gateway.NewService(registry, cfg.connConfig())
	server := setupServer(cfg, svc)

	go func() {
		log.Info().Str("addr", server.Addr).Msg("sync server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.shutdownTimeout())
	defer cancel()

	// Sessions close before the listener so clients get the in-band notice.
	if err := registry.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("session shutdown incomplete")
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	log.Info().Msg("shutdown complete")
}
