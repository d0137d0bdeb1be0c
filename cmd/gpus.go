package cmd

import (
	"fmt"
	"io"

	"github.com/smazurov/framescale/internal/backend"
	"github.com/smazurov/framescale/internal/gpu"
	"github.com/spf13/cobra"
)

// CreateGPUsCmd creates the gpus command.
func CreateGPUsCmd() *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "gpus",
		Short: "List GPUs and the worker assignment",
		Long: `Lists the GPUs reported by nvidia-smi and shows which GPU each upscaling worker would use. ` +
			`Without GPUs every worker runs its backend on the CPU.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			devices, err := gpu.Detect(cmd.Context())
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "GPU discovery failed: %v\n", err)
			}
			printGPUs(cmd.OutOrStdout(), devices, workers)
			return nil
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Workers to show the assignment for, 0 uses one per GPU")
	return cmd
}

func printGPUs(w io.Writer, devices []gpu.Device, workers int) {
	if len(devices) == 0 {
		fmt.Fprintln(w, "No GPUs detected")
	}
	for _, d := range devices {
		fmt.Fprintf(w, "GPU %d: %s\n", d.Index, d.Name)
	}

	if workers <= 0 {
		workers = max(1, len(devices))
	}
	fmt.Fprintln(w)
	for i := range workers {
		if id := gpu.Assign(i, len(devices)); id == backend.CPU {
			fmt.Fprintf(w, "worker %d -> cpu\n", i)
		} else {
			fmt.Fprintf(w, "worker %d -> gpu %d\n", i, id)
		}
	}
}
