package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	c := &cli{open: openLive}
	err := c.root().ExecuteContext(ctx)
	c.close()
	stop()
	if err != nil {
		log.Error().Err(err).Msg("maintenance command failed")
		os.Exit(1)
	}
}
