package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/bootcoord/pkg/catalog"
)

func newInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a bootcoord workspace",
		Long: `Create the definition catalog with the well-known runtime and editor Boot
Resources, the state database, and a config file.

Existing definitions are never overwritten. The config file is only rewritten
with --force.`,
		Example: `  # Initialize in the current directory
  bootctl init

  # Initialize with a custom config path
  bootctl init --config ./deploy/bootcoord.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			path := configPath
			if path == "" {
				path = DefaultConfigPath
			}
			log.Info().Str("config", path).Msg("Initializing workspace")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			created, err := catalog.Scaffold(cfg.Catalog.Dir)
			if err != nil {
				return err
			}
			for _, p := range created {
				fmt.Fprintf(out, "✓ Created definition: %s\n", p)
			}
			if len(created) == 0 {
				fmt.Fprintf(out, "✓ Catalog already complete: %s\n", cfg.Catalog.Dir)
			}

			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			_ = store.Close()
			fmt.Fprintf(out, "✓ Initialized state database: %s\n", cfg.State.Path)

			_, statErr := os.Stat(path)
			switch {
			case statErr == nil && !force:
				fmt.Fprintf(out, "✓ Config file already exists: %s\n", path)
			case statErr == nil || errors.Is(statErr, os.ErrNotExist):
				if err := cfg.Write(path); err != nil {
					return fmt.Errorf("failed to write config file: %w", err)
				}
				fmt.Fprintf(out, "✓ Created config file: %s\n", path)
			default:
				return fmt.Errorf("failed to stat config file: %w", statErr)
			}

			fmt.Fprintln(out, "\nWorkspace initialized. Next steps:")
			fmt.Fprintln(out, "  1. Add templates to the definitions in", cfg.Catalog.Dir)
			fmt.Fprintln(out, "  2. Validate them: bootctl validate")
			fmt.Fprintln(out, "  3. Start a host: bootctl run, or bootctl edit")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")

	return cmd
}
