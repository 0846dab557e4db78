package main

import (
	"github.com/dvcrn/fetchbridge/fetch"
	"github.com/dvcrn/fetchbridge/internal/config"
	"github.com/dvcrn/fetchbridge/internal/logger"
	"github.com/dvcrn/fetchbridge/internal/server"
)

func main() {
	cfg := config.Load()

	client := fetch.NewClient(
		fetch.WithBaseURL(cfg.BaseURL),
		fetch.WithProgressInterval(cfg.ProgressInterval),
	)

	srv := server.NewServer(client)

	if err := srv.Start(":" + cfg.Port); err != nil {
		logger.Get().Fatal().Err(err).Msg("Failed to start server")
	}
}
