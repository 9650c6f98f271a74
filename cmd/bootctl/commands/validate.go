package commands

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/bootcoord/pkg/catalog"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [dir]",
		Short: "Validate Boot Resource definitions",
		Long: `Parse and validate every CUE and YAML definition in the catalog.

This command checks:
  - CUE and YAML syntax
  - Schema conformance (address, name, templates)
  - Duplicate addresses across files`,
		Example: `  # Validate the configured catalog
  bootctl validate

  # Validate a specific directory
  bootctl validate ./catalog`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) > 0 {
				dir = args[0]
			} else {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				dir = cfg.Catalog.Dir
			}

			log.Info().Str("dir", dir).Msg("Validating definitions")

			reports, err := catalog.ValidateDir(dir)
			if err != nil {
				return err
			}

			failed := 0
			for _, r := range reports {
				if r.Err != nil {
					failed++
				}
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				type result struct {
					File    string `json:"file"`
					Address string `json:"address,omitempty"`
					Error   string `json:"error,omitempty"`
				}
				results := make([]result, 0, len(reports))
				for _, r := range reports {
					res := result{File: r.File, Address: r.Address}
					if r.Err != nil {
						res.Error = r.Err.Error()
					}
					results = append(results, res)
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(results); err != nil {
					return err
				}
			} else {
				for _, r := range reports {
					if r.Err != nil {
						fmt.Fprintf(out, "✗ %s: %v\n", r.File, r.Err)
						continue
					}
					fmt.Fprintf(out, "✓ %s (%s)\n", r.File, r.Address)
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d definition(s) invalid", failed, len(reports))
			}
			if !jsonOutput {
				fmt.Fprintf(out, "\n%d definition(s) valid\n", len(reports))
			}
			return nil
		},
	}

	return cmd
}
