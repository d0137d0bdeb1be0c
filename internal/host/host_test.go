package host

import (
	"context"
	"testing"
)

func TestDefaultWorkers(t *testing.T) {
	tests := []struct {
		name string
		info Info
		gpus int
		want int
	}{
		{"one per gpu", Info{LogicalCPUs: 16}, 2, 2},
		{"half the cpus", Info{LogicalCPUs: 16}, 0, 8},
		{"at least one", Info{LogicalCPUs: 1}, 0, 1},
		{"unknown cpus", Info{}, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultWorkers(tt.info, tt.gpus); got != tt.want {
				t.Errorf("DefaultWorkers() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestQueueLimit(t *testing.T) {
	const frame = 1920 * 1080 * 3

	tests := []struct {
		name      string
		available uint64
		requested int
		want      int
	}{
		{"unknown memory", 0, 30, 30},
		{"plenty of memory", 64 << 30, 30, 30},
		{"tight memory", uint64(2 * 2 * frame * 5), 30, 5},
		{"not even one job", 1024, 30, 1},
		{"non-positive request", 64 << 30, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := QueueLimit(Info{AvailableMemory: tt.available}, frame, tt.requested)
			if got != tt.want {
				t.Errorf("QueueLimit() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCollect(t *testing.T) {
	info, err := Collect(context.Background())
	if err != nil {
		t.Skipf("host facts unavailable: %v", err)
	}
	if info.LogicalCPUs < 1 {
		t.Errorf("LogicalCPUs = %d, want >= 1", info.LogicalCPUs)
	}
}
