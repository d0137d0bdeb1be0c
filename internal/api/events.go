package api

import (
	"context"
	"maps"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/framescale/internal/events"
	"github.com/smazurov/framescale/internal/metrics/exporters"
)

// registerSSERoutes registers the run event stream.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time frame progress, stage state and pause changes of the run",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func() map[string]any {
		eventTypes := map[string]any{
			"frame-encoded":       events.FrameEncodedEvent{},
			"frame-upscaled":      events.FrameUpscaledEvent{},
			"frame-skipped":       events.FrameSkippedEvent{},
			"stage-state-changed": events.StageStateChangedEvent{},
			"pause-changed":       events.PauseChangedEvent{},
			"run-finished":        events.RunFinishedEvent{},
		}

		maps.Copy(eventTypes, exporters.GetEventTypesForEndpoint("events"))

		return eventTypes
	}(), func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 64)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.FrameEncodedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.FrameUpscaledEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.FrameSkippedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.StageStateChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.PauseChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.RunFinishedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.StageMetricsEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Current pause state doubles as the connection confirmation
		if s.controller != nil {
			if err := send.Data(events.PauseChangedEvent{
				Paused:    s.controller.Status().Paused,
				Timestamp: time.Now().Format(time.RFC3339),
			}); err != nil {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
