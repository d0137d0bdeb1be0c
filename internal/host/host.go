// Package host reports CPU and memory facts used to size the pipeline.
package host

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Info is a snapshot of host resources.
type Info struct {
	LogicalCPUs     int
	PhysicalCPUs    int
	TotalMemory     uint64
	AvailableMemory uint64
}

// Collect reads CPU counts and memory from the host.
func Collect(ctx context.Context) (Info, error) {
	var info Info

	logical, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return info, fmt.Errorf("cpu counts: %w", err)
	}
	info.LogicalCPUs = logical

	// Physical count is informational; some platforms cannot report it.
	if physical, perr := cpu.CountsWithContext(ctx, false); perr == nil {
		info.PhysicalCPUs = physical
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return info, fmt.Errorf("virtual memory: %w", err)
	}
	info.TotalMemory = vm.Total
	info.AvailableMemory = vm.Available
	return info, nil
}

// DefaultWorkers picks a worker count: one per GPU, otherwise half the
// logical CPUs.
func DefaultWorkers(info Info, gpus int) int {
	if gpus > 0 {
		return gpus
	}
	return max(1, info.LogicalCPUs/2)
}

// QueueLimit caps the work queue so that queued jobs fit in half of the
// available memory. Each queued job holds two decoded frames.
// A zero AvailableMemory leaves requested untouched.
func QueueLimit(info Info, frameBytes, requested int) int {
	if requested < 1 {
		requested = 1
	}
	if info.AvailableMemory == 0 || frameBytes <= 0 {
		return requested
	}
	perJob := uint64(2 * frameBytes)
	fit := int(info.AvailableMemory / 2 / perJob)
	return max(1, min(requested, fit))
}

// Usage is a point-in-time utilisation reading.
type Usage struct {
	CPUPercent        float64
	AvailableMemory   uint64
	MemoryUsedPercent float64
}

// Sample reads CPU utilisation since the previous call and current memory use.
// The first call on a process reports CPU since boot.
func Sample(ctx context.Context) (Usage, error) {
	var u Usage

	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return u, fmt.Errorf("cpu percent: %w", err)
	}
	if len(percents) > 0 {
		u.CPUPercent = percents[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return u, fmt.Errorf("virtual memory: %w", err)
	}
	u.AvailableMemory = vm.Available
	u.MemoryUsedPercent = vm.UsedPercent
	return u, nil
}
