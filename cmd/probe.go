package cmd

import (
	"encoding/json"

	"github.com/smazurov/framescale/internal/probe"
	"github.com/spf13/cobra"
)

// CreateProbeCmd creates the probe command.
func CreateProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe [input]",
		Short: "Show what ffprobe reports for an input",
		Long:  `Runs ffprobe on the input and prints the dimensions, frame rate and frame count the pipeline would use.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := probe.Probe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
}
