package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/smazurov/framescale/internal/backend"
	"github.com/smazurov/framescale/internal/config"
	"github.com/spf13/cobra"
)

// CreateAlgorithmsCmd creates the algorithms command.
func CreateAlgorithmsCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "algorithms",
		Short: "List upscaling algorithms",
		Long: `Lists every algorithm accepted by --algorithm together with its supported ratios, ` +
			`the executable used by command-line backends and whether that executable can be found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			backends, err := config.LoadBackends(configFile)
			if err != nil {
				return err
			}
			registry := backend.DefaultRegistry(backends, os.TempDir())

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ALGORITHM\tRATIOS\tEXECUTABLE\tSTATUS")
			for _, id := range registry.Algorithms() {
				alg, resolveErr := registry.Resolve(id)
				if resolveErr != nil {
					return resolveErr
				}
				status := "ready"
				if alg.Check() != nil {
					status = "unavailable"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", id, formatRatios(alg.Ratios), executable(alg.Family.Name, backends), status)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "framescale.toml", "Configuration file with [backends] overrides")
	return cmd
}

func formatRatios(ratios []int) string {
	parts := make([]string, len(ratios))
	for i, r := range ratios {
		parts[i] = fmt.Sprintf("x%d", r)
	}
	return strings.Join(parts, " ")
}

func executable(family string, overrides map[string]backend.CommandConfig) string {
	if o, ok := overrides[family]; ok && o.Command != "" {
		return o.Command
	}
	if exe, ok := backend.DefaultExecutables[family]; ok {
		return exe
	}
	if family == backend.FamilyResample {
		return "(built in)"
	}
	return "(set [backends." + family + "] command)"
}
