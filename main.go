package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MikeDev101/roomlink/pkg/config"
	"github.com/MikeDev101/roomlink/pkg/logging"
	srv "github.com/MikeDev101/roomlink/pkg/signaling"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if err := logging.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.Fatal().Err(err).Msg("Invalid log level")
	}

	s := srv.Initialize(cfg)
	app := s.NewApp()

	go func() {
		log.Info().Str("addr", cfg.Address()).Msg("Starting signaling server")
		if err := app.Listen(cfg.Address()); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Info().Msg("Shutting down server...")

	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}
