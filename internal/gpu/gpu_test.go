package gpu

import (
	"testing"

	"github.com/smazurov/framescale/internal/backend"
)

func TestParse(t *testing.T) {
	output := `GPU 0: NVIDIA GeForce RTX 3080 (UUID: GPU-0a1b2c3d-0000-0000-0000-000000000000)
GPU 1: NVIDIA A100-SXM4-40GB (UUID: GPU-11111111-2222-3333-4444-555555555555)

`
	devices := Parse(output)
	if len(devices) != 2 {
		t.Fatalf("Parse() returned %d devices, want 2", len(devices))
	}
	if devices[0].Name != "NVIDIA GeForce RTX 3080" {
		t.Errorf("devices[0].Name = %q", devices[0].Name)
	}
	if devices[1].Index != 1 || devices[1].Name != "NVIDIA A100-SXM4-40GB" {
		t.Errorf("devices[1] = %+v", devices[1])
	}
}

func TestParseEmpty(t *testing.T) {
	if devices := Parse(""); len(devices) != 0 {
		t.Errorf("Parse(\"\") = %v, want none", devices)
	}
}

func TestAssign(t *testing.T) {
	tests := []struct {
		worker, count, want int
	}{
		{0, 2, 0},
		{1, 2, 1},
		{2, 2, 0},
		{5, 3, 2},
		{0, 0, backend.CPU},
		{7, 0, backend.CPU},
		{3, -1, backend.CPU},
	}

	for _, tt := range tests {
		if got := Assign(tt.worker, tt.count); got != tt.want {
			t.Errorf("Assign(%d, %d) = %d, want %d", tt.worker, tt.count, got, tt.want)
		}
	}
}
