// Package gpu discovers GPUs and assigns them to upscaling workers.
package gpu

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/smazurov/framescale/internal/backend"
)

// Device is one GPU reported by nvidia-smi.
type Device struct {
	Index int
	Name  string
}

// Detect lists NVIDIA GPUs with `nvidia-smi --list-gpus`.
func Detect(ctx context.Context) ([]Device, error) {
	out, err := exec.CommandContext(ctx, "nvidia-smi", "--list-gpus").Output()
	if err != nil {
		return nil, fmt.Errorf("nvidia-smi: %w", err)
	}
	return Parse(string(out)), nil
}

// Parse reads `nvidia-smi --list-gpus` output, one device per non-empty line:
//
//	GPU 0: NVIDIA GeForce RTX 3080 (UUID: GPU-...)
func Parse(output string) []Device {
	var devices []Device
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		name := line
		if _, rest, ok := strings.Cut(line, ": "); ok {
			name = rest
		}
		if i := strings.Index(name, " (UUID"); i >= 0 {
			name = name[:i]
		}
		devices = append(devices, Device{Index: len(devices), Name: name})
	}
	return devices
}

// Count returns the number of GPUs, treating discovery failure as zero.
func Count(ctx context.Context) int {
	devices, err := Detect(ctx)
	if err != nil {
		return 0
	}
	return len(devices)
}

// Assign maps a worker to a GPU round-robin. With no GPUs every worker runs
// on the CPU.
func Assign(worker, count int) int {
	if count <= 0 {
		return backend.CPU
	}
	return worker % count
}
