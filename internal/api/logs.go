package api

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/framescale/internal/api/models"
	"github.com/smazurov/framescale/internal/events"
	"github.com/smazurov/framescale/internal/logging"
)

// LogPublisher returns a logging callback that republishes every log entry
// on bus with a monotonic sequence number.
func LogPublisher(bus *events.Bus) logging.Callback {
	var seq atomic.Uint64
	return func(entry logging.Entry) {
		bus.Publish(logEvent(seq.Add(1), entry))
	}
}

func logEvent(seq uint64, entry logging.Entry) events.LogEntryEvent {
	return events.LogEntryEvent{
		Seq:        seq,
		Timestamp:  entry.Time.Format(time.RFC3339Nano),
		Level:      entry.Level,
		Module:     entry.Module,
		Message:    entry.Message,
		Attributes: entry.Attrs,
	}
}

// registerLogRoutes registers the log snapshot and streaming endpoints.
func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Logs",
		Description: "Most recent entries of the in-memory log history, optionally limited to one module",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *models.LogsRequest) (*models.LogsResponse, error) {
		data := models.LogsData{
			Entries: []events.LogEntryEvent{},
			Lines:   []string{},
		}
		for _, entry := range logging.Recent().Last(input.Lines, input.Module) {
			data.Entries = append(data.Entries, logEvent(0, entry))
			data.Lines = append(data.Lines, logging.FormatLine(entry))
		}
		data.Count = len(data.Entries)
		return &models.LogsResponse{Body: data}, nil
	})

	sse.Register(s.api, huma.Operation{
		OperationID: "logs-stream",
		Method:      http.MethodGet,
		Path:        "/api/logs/stream",
		Summary:     "Log Stream",
		Description: "Real-time log streaming via Server-Sent Events. Sends historical logs first, then streams new logs.",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"message": events.LogEntryEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		// Subscribe before replaying so nothing falls between history and live
		eventCh := make(chan any, 100)
		unsubscribe := events.SubscribeToChannel[events.LogEntryEvent](s.eventBus, eventCh)
		defer unsubscribe()

		for _, entry := range logging.Recent().Snapshot() {
			if err := send.Data(logEvent(0, entry)); err != nil {
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
