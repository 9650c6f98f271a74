package commands

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/bootcoord/pkg/hostsync"
)

func newRunCommand(version string) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run as a production host",
		Long: `Start a production host: bootstrap the runtime resource asynchronously,
serve metrics until interrupted, then tear everything down.

Shutdown waits for an in-flight bootstrap to finish before tearing it down.`,
		Example: `  # Run with the default config
  bootctl run

  # Fail if the bootstrap takes longer than 30s
  bootctl run --wait 30s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			rt, err := newRuntime(ctx, cfg, false, version)
			if err != nil {
				return err
			}

			loopCtx, stopLoop := context.WithCancel(context.WithoutCancel(ctx))
			defer stopLoop()
			go func() { _ = rt.syncer.Run(loopCtx) }()

			srv, err := rt.tel.StartMetricsServer()
			if err != nil {
				_ = rt.Close(context.Background())
				return err
			}
			if srv != nil {
				log.Info().Str("addr", srv.Addr).Msg("Serving metrics")
			}

			runErr := serveProduction(ctx, loopCtx, rt, wait)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if _, err := rt.syncer.Dispatch(shutdownCtx, hostsync.Quitting); err != nil {
				log.Error().Err(err).Msg("Shutdown dispatch failed")
			}
			if srv != nil {
				if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Warn().Err(err).Msg("Metrics server shutdown failed")
				}
			}
			if err := rt.Close(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("Shutdown incomplete")
			}

			log.Info().Msg("Stopped")
			return runErr
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 0, "fail if the bootstrap has not completed within this duration (0 waits forever)")

	return cmd
}

// serveProduction fires ProcessStart and blocks until ctx is done.
func serveProduction(ctx, loopCtx context.Context, rt *runtime, wait time.Duration) error {
	if _, err := rt.syncer.Dispatch(loopCtx, hostsync.ProcessStart); err != nil {
		return err
	}

	waitCtx := ctx
	if wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, wait)
		defer cancel()
	}
	if err := rt.coord.WaitInitialized(waitCtx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	for _, r := range rt.coord.Snapshot() {
		log.Info().
			Str("key", r.Key).
			Str("resource", r.Name).
			Int("instances", r.Instances).
			Msg("Boot resource live")
	}
	log.Info().Msg("Bootstrap complete, running until interrupted")

	<-ctx.Done()
	return nil
}
