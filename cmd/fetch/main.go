package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dvcrn/fetchbridge/internal/logger"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logger.Get().Error().Err(err).Msg("fetch failed")
		cancel()
		os.Exit(1)
	}
}
