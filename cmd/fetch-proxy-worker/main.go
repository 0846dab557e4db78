//go:build js && wasm

package main

import (
	"github.com/dvcrn/fetchbridge/fetch"
	"github.com/dvcrn/fetchbridge/internal/config"
	"github.com/dvcrn/fetchbridge/internal/logger"
	"github.com/dvcrn/fetchbridge/internal/server"
	"github.com/syumai/workers"
)

var srv *server.Server

func init() {
	cfg := config.Load()

	// Network requests go through the Workers fetch API
	client := fetch.NewClient(
		fetch.WithBaseURL(cfg.BaseURL),
		fetch.WithProgressInterval(cfg.ProgressInterval),
	)
	srv = server.NewServer(client)

	logger.Get().Info().Msg("Fetch proxy worker initialized")
}

func main() {
	// Serve using workers - it handles all the HTTP server setup
	workers.Serve(srv)
}
