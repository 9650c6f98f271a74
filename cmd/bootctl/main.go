// Command bootctl drives the bootstrap lifecycle coordinator from the command
// line, either as a production host or as an interactive editor session.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openfroyo/bootcoord/cmd/bootctl/commands"
	"github.com/openfroyo/bootcoord/pkg/telemetry"
)

// Set with -ldflags at release time.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	// Used until a command builds its own logger from bootcoord.yaml.
	// LOG_LEVEL caps every logger, including the configured one.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		zerolog.SetGlobalLevel(telemetry.ParseLevel(lvl))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.Execute(ctx, Version, Commit, BuildDate)
	if ctx.Err() != nil {
		log.Info().Msg("Interrupted, host drained")
	}
	stop()
	if err != nil {
		log.Error().Err(err).Msg("bootctl failed")
		os.Exit(1)
	}
}
