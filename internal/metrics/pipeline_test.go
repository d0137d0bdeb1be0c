package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPipelineCounters(t *testing.T) {
	before := testutil.ToFloat64(framesEncoded)
	IncFramesEncoded()
	IncFramesEncoded()
	if got := testutil.ToFloat64(framesEncoded) - before; got != 2 {
		t.Errorf("frames_encoded_total grew by %v, want 2", got)
	}

	beforeAlg := testutil.ToFloat64(framesUpscaled.WithLabelValues("srmd"))
	IncFramesUpscaled("srmd")
	if got := testutil.ToFloat64(framesUpscaled.WithLabelValues("srmd")) - beforeAlg; got != 1 {
		t.Errorf("frames_upscaled_total{srmd} grew by %v, want 1", got)
	}
}

func TestBackendConstructionsLabels(t *testing.T) {
	c := backendConstructions.WithLabelValues("waifu2x", "2")
	before := testutil.ToFloat64(c)
	IncBackendConstructions("waifu2x", 2)
	if got := testutil.ToFloat64(c) - before; got != 1 {
		t.Errorf("constructions_total{waifu2x,2} grew by %v, want 1", got)
	}
	ObserveUpscale("waifu2x", 2, 150*time.Millisecond)
}

func TestGauges(t *testing.T) {
	SetPaused(true)
	if got := testutil.ToFloat64(paused); got != 1 {
		t.Errorf("paused = %v, want 1", got)
	}
	SetPaused(false)
	if got := testutil.ToFloat64(paused); got != 0 {
		t.Errorf("paused = %v, want 0", got)
	}

	SetQueueDepth(7)
	if got := testutil.ToFloat64(queueDepth); got != 7 {
		t.Errorf("queue_depth = %v, want 7", got)
	}

	base := testutil.ToFloat64(workersBusy)
	WorkerBusy(1)
	WorkerBusy(1)
	WorkerBusy(-1)
	if got := testutil.ToFloat64(workersBusy) - base; got != 1 {
		t.Errorf("workers_busy moved by %v, want 1", got)
	}

	SetHostMemory(1<<30, 42.5)
	if got := testutil.ToFloat64(hostMemoryAvailable); got != float64(1<<30) {
		t.Errorf("memory_available_bytes = %v", got)
	}
}
