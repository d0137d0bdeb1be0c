package exporters

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/smazurov/framescale/internal/events"
	"github.com/smazurov/framescale/internal/metrics"
)

// EventPublisher interface for publishing events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// SSEExporter polls the ffmpeg stage metrics and publishes a
// StageMetricsEvent whenever a stage reported something new. A finished
// stage therefore goes quiet instead of repeating its last report.
type SSEExporter struct {
	bus      EventPublisher
	interval time.Duration
	last     map[string]events.StageMetricsEvent

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSSEExporter creates an exporter polling once per second.
func NewSSEExporter(bus EventPublisher) *SSEExporter {
	return &SSEExporter{
		bus:      bus,
		interval: time.Second,
		last:     make(map[string]events.StageMetricsEvent),
	}
}

// Start begins polling until ctx is done or Stop is called.
func (s *SSEExporter) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.publishChanged()
			}
		}
	}()
}

// Stop ends polling and waits for the goroutine to exit.
func (s *SSEExporter) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *SSEExporter) publishChanged() {
	current := metrics.GetAllFFmpegMetrics()
	for stage := range s.last {
		if _, ok := current[stage]; !ok {
			delete(s.last, stage)
		}
	}
	for stage, m := range current {
		ev := stageEvent(stage, m)
		if prev, ok := s.last[stage]; ok && prev == ev {
			continue
		}
		s.last[stage] = ev
		s.bus.Publish(ev)
	}
}

func stageEvent(stage string, m *metrics.FFmpegStageMetrics) events.StageMetricsEvent {
	return events.StageMetricsEvent{
		Stage:           stage,
		FPS:             strconv.FormatFloat(m.FPS, 'f', 2, 64),
		Frame:           strconv.FormatFloat(m.Frame, 'f', 0, 64),
		Speed:           strconv.FormatFloat(m.Speed, 'f', 3, 64),
		DroppedFrames:   strconv.FormatFloat(m.DroppedFrames, 'f', 0, 64),
		DuplicateFrames: strconv.FormatFloat(m.DuplicateFrames, 'f', 0, 64),
	}
}

// GetEventTypes returns event types for SSE endpoint registration.
func GetEventTypes() map[string]any {
	return map[string]any{
		"stage-metrics": events.StageMetricsEvent{},
	}
}

// GetEventTypesForEndpoint returns the event types routed to endpoint.
func GetEventTypesForEndpoint(endpoint string) map[string]any {
	types := GetEventTypes()
	result := make(map[string]any)
	for name, route := range GetEventRoutes() {
		if route == endpoint {
			result[name] = types[name]
		}
	}
	return result
}

// GetEventRoutes maps each event type to the SSE endpoint that also carries it.
func GetEventRoutes() map[string]string {
	return map[string]string{
		"stage-metrics": "events",
	}
}
