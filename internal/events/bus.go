package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting.
// Handlers run asynchronously, one goroutine per subscriber.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers. A nil bus drops the event.
// Usage: bus.Publish(FrameEncodedEvent{...})
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	// Use type switch to call the generic Publish with the correct type
	switch e := ev.(type) {
	case FrameEncodedEvent:
		event.Publish(b.dispatcher, e)
	case FrameUpscaledEvent:
		event.Publish(b.dispatcher, e)
	case FrameSkippedEvent:
		event.Publish(b.dispatcher, e)
	case StageStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case PauseChangedEvent:
		event.Publish(b.dispatcher, e)
	case RunFinishedEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	case StageMetricsEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function
// The handler type determines which events it receives (type inference)
// Returns an unsubscribe function
// Usage: unsub := bus.Subscribe(func(e FrameEncodedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	// kelindar/event resolves the event type from the generic parameter,
	// so each handler signature needs its own case
	switch h := handler.(type) {
	case func(FrameEncodedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(FrameUpscaledEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(FrameSkippedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StageStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(PauseChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(RunFinishedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StageMetricsEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		// Return a no-op function if handler type is not recognized
		return func() {}
	}
}
