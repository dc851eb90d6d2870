package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/RishiKendai/matchcode/internal/cli"
	"github.com/rs/zerolog/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := cli.NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("matchctl failed")
		os.Exit(1)
	}
}
