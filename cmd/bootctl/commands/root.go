package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfroyo/bootcoord/pkg/config"
)

// DefaultConfigPath is read when --config is not given.
const DefaultConfigPath = "bootcoord.yaml"

var (
	// Global flags
	configPath string
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bootctl",
		Short: "Bootstrap lifecycle coordinator",
		Long: `bootctl resolves Boot Resources from a definition catalog, instantiates the
objects they describe into a scene, and tears them down again as the host moves
between edit mode, run mode, document saves, and shutdown.

Commands:
  - run: production host, bootstraps asynchronously until interrupted
  - edit: interactive host session driven from stdin
  - pref: read and write the editor init preference
  - init, validate: manage the definition catalog
  - journal: inspect recorded lifecycle events`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default "+DefaultConfigPath+")")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newRunCommand(version))
	rootCmd.AddCommand(newEditCommand(version))
	rootCmd.AddCommand(newPrefCommand())
	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newJournalCommand())

	return rootCmd
}

// loadConfig reads --config, or the default path if it exists.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath, true)
	}
	return config.Load(DefaultConfigPath, false)
}
