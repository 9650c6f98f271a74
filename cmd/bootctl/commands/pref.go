package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/openfroyo/bootcoord/pkg/prefs"
	"github.com/openfroyo/bootcoord/pkg/telemetry"
)

func newPrefCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pref",
		Short: "Manage the editor init preference",
		Long: `Read and write boolean preferences in the state database.

The key defaults to ` + prefs.EditorInitEnabled + `, which controls whether an
interactive host bootstraps in edit mode. A running "bootctl edit" session
notices changes made here.`,
	}

	cmd.AddCommand(newPrefGetCommand())
	cmd.AddCommand(newPrefSetCommand())
	cmd.AddCommand(newPrefToggleCommand())

	return cmd
}

func prefKey(args []string, idx int) string {
	if len(args) > idx {
		return args[idx]
	}
	return prefs.EditorInitEnabled
}

// withPrefs opens the state database for one preference operation.
func withPrefs(cmd *cobra.Command, fn func(*prefs.Store) error) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(prefs.New(store, telemetry.FromContext(ctx)))
}

func newPrefGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get [key]",
		Short: "Print a preference",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := prefKey(args, 0)
			return withPrefs(cmd, func(ps *prefs.Store) error {
				v, err := ps.Bool(cmd.Context(), key, false)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %t\n", key, v)
				return nil
			})
		},
	}
}

func newPrefSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <true|false> [key]",
		Short: "Set a preference",
		Example: `  # Bootstrap in edit mode
  bootctl pref set true`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.ParseBool(args[0])
			if err != nil {
				return fmt.Errorf("invalid value %q: %w", args[0], err)
			}
			key := prefKey(args, 1)
			return withPrefs(cmd, func(ps *prefs.Store) error {
				if err := ps.SetBool(cmd.Context(), key, v); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %t\n", key, v)
				return nil
			})
		},
	}
}

func newPrefToggleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle [key]",
		Short: "Flip a preference",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := prefKey(args, 0)
			return withPrefs(cmd, func(ps *prefs.Store) error {
				v, err := ps.Toggle(cmd.Context(), key)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %t\n", key, v)
				return nil
			})
		},
	}
}
