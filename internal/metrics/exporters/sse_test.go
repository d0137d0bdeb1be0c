package exporters

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/framescale/internal/events"
	"github.com/smazurov/framescale/internal/metrics"
)

type recordingBus struct {
	mu     sync.Mutex
	events []events.StageMetricsEvent
}

func (b *recordingBus) Publish(ev events.Event) {
	if sme, ok := ev.(events.StageMetricsEvent); ok {
		b.mu.Lock()
		b.events = append(b.events, sme)
		b.mu.Unlock()
	}
}

func (b *recordingBus) forStage(stage string) []events.StageMetricsEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []events.StageMetricsEvent
	for _, ev := range b.events {
		if ev.Stage == stage {
			out = append(out, ev)
		}
	}
	return out
}

func startExporter(t *testing.T, bus EventPublisher) *SSEExporter {
	t.Helper()
	exporter := NewSSEExporter(bus)
	exporter.interval = 10 * time.Millisecond
	exporter.Start(t.Context())
	t.Cleanup(exporter.Stop)
	return exporter
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timeout waiting for condition")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSSEExporterPublishesFormattedMetrics(t *testing.T) {
	stage := "sse-format-encoder"
	t.Cleanup(func() { metrics.DeleteFFmpegMetrics(stage) })
	metrics.SetFFmpegFPS(stage, 30)
	metrics.SetFFmpegDroppedFrames(stage, 5)
	metrics.SetFFmpegDuplicateFrames(stage, 2)
	metrics.SetFFmpegSpeed(stage, 0.25)

	bus := &recordingBus{}
	startExporter(t, bus)
	waitFor(t, func() bool { return len(bus.forStage(stage)) > 0 })

	ev := bus.forStage(stage)[0]
	want := events.StageMetricsEvent{Stage: stage, FPS: "30.00", Frame: "0", Speed: "0.250", DroppedFrames: "5", DuplicateFrames: "2"}
	if ev != want {
		t.Errorf("event = %+v, want %+v", ev, want)
	}
}

func TestSSEExporterOnlyPublishesChanges(t *testing.T) {
	stage := "sse-change-decoder"
	t.Cleanup(func() { metrics.DeleteFFmpegMetrics(stage) })
	metrics.SetFFmpegFrame(stage, 10)

	bus := &recordingBus{}
	startExporter(t, bus)
	waitFor(t, func() bool { return len(bus.forStage(stage)) == 1 })

	// Several ticks without a new report
	time.Sleep(60 * time.Millisecond)
	if n := len(bus.forStage(stage)); n != 1 {
		t.Fatalf("published %d events for an unchanged stage, want 1", n)
	}

	metrics.SetFFmpegFrame(stage, 20)
	waitFor(t, func() bool { return len(bus.forStage(stage)) == 2 })
	if got := bus.forStage(stage)[1].Frame; got != "20" {
		t.Errorf("Frame = %q, want \"20\"", got)
	}
}

func TestSSEExporterRepublishesRecreatedStage(t *testing.T) {
	stage := "sse-recreated"
	t.Cleanup(func() { metrics.DeleteFFmpegMetrics(stage) })
	metrics.SetFFmpegFrame(stage, 1)

	bus := &recordingBus{}
	startExporter(t, bus)
	waitFor(t, func() bool { return len(bus.forStage(stage)) == 1 })

	metrics.DeleteFFmpegMetrics(stage)
	time.Sleep(30 * time.Millisecond)
	metrics.SetFFmpegFrame(stage, 1)
	waitFor(t, func() bool { return len(bus.forStage(stage)) == 2 })
}

func TestSSEExporterStop(t *testing.T) {
	stage := "sse-stop"
	t.Cleanup(func() { metrics.DeleteFFmpegMetrics(stage) })

	bus := &recordingBus{}
	exporter := NewSSEExporter(bus)
	exporter.interval = 10 * time.Millisecond

	// Stop before Start must not block or panic
	exporter.Stop()

	exporter.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	exporter.Stop()
	exporter.Stop()

	metrics.SetFFmpegFrame(stage, 99)
	time.Sleep(30 * time.Millisecond)
	if n := len(bus.forStage(stage)); n != 0 {
		t.Errorf("published %d events after Stop", n)
	}
}

func TestGetEventTypesForEndpoint(t *testing.T) {
	if _, ok := GetEventTypesForEndpoint("events")["stage-metrics"]; !ok {
		t.Error("expected stage-metrics on the events endpoint")
	}
	if types := GetEventTypesForEndpoint("unknown"); len(types) != 0 {
		t.Errorf("expected no types for unknown endpoint, got %v", types)
	}
}
