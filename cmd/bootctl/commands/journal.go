package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfroyo/bootcoord/pkg/stores"
)

func newJournalCommand() *cobra.Command {
	var (
		limit     int
		eventType string
		since     time.Duration
		prune     int
	)

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show recorded lifecycle events",
		Long: `Print the lifecycle journal: phase changes, resolution failures, and host
events recorded by previous runs. Text output lists the newest entry last;
JSON output lists it first.`,
		Example: `  # Show the last 20 entries
  bootctl journal --limit 20

  # Only resolution failures from the last hour
  bootctl journal --type boot.resolution_failed --since 1h

  # Keep the newest 100 entries
  bootctl journal --prune 100`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if prune > 0 {
				n, err := store.PruneJournal(ctx, prune)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Pruned %d entries\n", n)
				return nil
			}

			filter := stores.JournalFilter{Type: eventType, Limit: limit}
			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}
			entries, err := store.ListJournal(ctx, filter)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			// Newest last, like a log.
			for i := len(entries) - 1; i >= 0; i-- {
				e := entries[i]
				key := e.Key
				if key == "" {
					key = "-"
				}
				fmt.Fprintf(out, "%s  %-6s %-24s %-22s %s\n",
					e.CreatedAt.Format(time.RFC3339), e.Level, e.Type, key, e.Message)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum number of entries")
	cmd.Flags().StringVar(&eventType, "type", "", "only show events of this type")
	cmd.Flags().DurationVar(&since, "since", 0, "only show events newer than this")
	cmd.Flags().IntVar(&prune, "prune", 0, "delete all but the newest N entries and exit")

	return cmd
}
