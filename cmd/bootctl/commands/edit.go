package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/bootcoord/pkg/hostsync"
	"github.com/openfroyo/bootcoord/pkg/prefs"
)

func newEditCommand(version string) *cobra.Command {
	var document string

	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Run an interactive host session",
		Long: `Start an interactive host and drive it with commands read from stdin.

In edit mode the coordinator bootstraps both the editor and runtime resources and
blocks until they are live, but only while the editor init preference is set.
Saving or closing the document tears the bootstrap down first so its objects are
never written into the document. "play" switches to run mode, where the
resources are bootstrapped asynchronously regardless of the preference.

Changes to the preference made by another process (bootctl pref set) are picked
up while the session runs.`,
		Example: `  # Start a session with a document open
  bootctl edit --document Main

  # Script a session
  printf 'toggle\nsave main.yaml\nplay\nstop\nquit\n' | bootctl edit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			rt, err := newRuntime(ctx, cfg, true, version)
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := rt.Close(shutdownCtx); err != nil {
					log.Warn().Err(err).Msg("Shutdown incomplete")
				}
			}()

			// The loop outlives ctx so Quitting is still handled after an interrupt.
			loopCtx, stopLoop := context.WithCancel(context.WithoutCancel(ctx))
			defer stopLoop()
			go func() { _ = rt.syncer.Run(loopCtx) }()

			if document != "" {
				if err := rt.graph.OpenDocument(document); err != nil {
					return err
				}
			}

			if cfg.Prefs.Watch {
				watcher := prefs.NewWatcher(rt.prefs, rt.store.Path(), prefs.EditorInitEnabled, cfg.Prefs.Debounce)
				if err := watcher.Watch(ctx, func(bool) { rt.syncer.Post(hostsync.PreferenceToggled) }); err != nil {
					log.Warn().Err(err).Msg("Preference watching disabled")
				} else {
					defer watcher.Close()
				}
			}

			s := &session{rt: rt, out: cmd.OutOrStdout()}
			if err := s.dispatch(loopCtx, hostsync.ProcessStart); err != nil {
				return err
			}

			log.Info().
				Str("document", document).
				Bool("editor_init", rt.prefs.EditorInit(ctx)).
				Msg("Interactive session started")
			fmt.Fprintln(cmd.OutOrStdout(), `Type "help" for commands.`)

			if err := s.serve(ctx, cmd.InOrStdin()); err != nil {
				return err
			}

			// A no-op if the session already ended with quit.
			return s.dispatch(loopCtx, hostsync.Quitting)
		},
	}

	cmd.Flags().StringVar(&document, "document", "Untitled", "document to open at startup")

	return cmd
}
