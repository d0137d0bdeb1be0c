package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan FrameEncodedEvent, 1)

	unsub := bus.Subscribe(func(e FrameEncodedEvent) {
		received <- e
	})
	defer unsub()

	event := FrameEncodedEvent{
		Index:     4,
		Processed: 5,
		Total:     10,
		Timestamp: "2026-01-27T10:30:00Z",
	}
	bus.Publish(event)

	got := <-received
	if got.Processed != event.Processed {
		t.Errorf("Expected processed %d, got %d", event.Processed, got.Processed)
	}
}

func TestBus_MultipleSubscribers(_ *testing.T) {
	bus := New()
	received1 := make(chan PauseChangedEvent, 1)
	received2 := make(chan PauseChangedEvent, 1)

	unsub1 := bus.Subscribe(func(e PauseChangedEvent) {
		received1 <- e
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(e PauseChangedEvent) {
		received2 <- e
	})
	defer unsub2()

	bus.Publish(PauseChangedEvent{Paused: true})

	<-received1
	<-received2
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan StageStateChangedEvent, 1)

	unsub := bus.Subscribe(func(e StageStateChangedEvent) {
		received <- e
	})

	bus.Publish(StageStateChangedEvent{Stage: "decoder", State: "running"})
	<-received

	unsub()

	bus.Publish(StageStateChangedEvent{Stage: "decoder", State: "stopped"})
	select {
	case <-received:
		t.Fatal("Should not have received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
		// Expected - no event
	}
}

func TestBus_TypeSafety(t *testing.T) {
	bus := New()

	encodedReceived := make(chan bool, 1)
	skippedReceived := make(chan bool, 1)

	unsub1 := bus.Subscribe(func(_ FrameEncodedEvent) {
		encodedReceived <- true
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(_ FrameSkippedEvent) {
		skippedReceived <- true
	})
	defer unsub2()

	bus.Publish(FrameSkippedEvent{Index: 3})

	<-skippedReceived
	select {
	case <-encodedReceived:
		t.Fatal("FrameEncodedEvent handler received FrameSkippedEvent")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_ThreadSafety(_ *testing.T) {
	bus := New()
	const publishers = 10
	const perPublisher = 100

	var mu sync.Mutex
	count := 0
	done := make(chan struct{})

	unsub := bus.Subscribe(func(_ FrameEncodedEvent) {
		mu.Lock()
		count++
		if count == publishers*perPublisher {
			close(done)
		}
		mu.Unlock()
	})
	defer unsub()

	var wg sync.WaitGroup
	for p := range publishers {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := range perPublisher {
				bus.Publish(FrameEncodedEvent{Index: p*perPublisher + i})
			}
		}(p)
	}
	wg.Wait()
	<-done
}

func TestBus_AllEventTypes(t *testing.T) {
	bus := New()

	tests := []struct {
		name  string
		event Event
	}{
		{"FrameEncoded", FrameEncodedEvent{Index: 1}},
		{"FrameUpscaled", FrameUpscaledEvent{Index: 1, Steps: []int{2}}},
		{"FrameSkipped", FrameSkippedEvent{Index: 2}},
		{"StageStateChanged", StageStateChangedEvent{Stage: "encoder", State: "running"}},
		{"PauseChanged", PauseChangedEvent{Paused: true}},
		{"RunFinished", RunFinishedEvent{Processed: 10}},
		{"LogEntry", LogEntryEvent{Message: "hello"}},
		{"StageMetrics", StageMetricsEvent{Stage: "encoder"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(_ *testing.T) {
			received := make(chan Event, 1)

			var unsub func()
			switch tt.event.(type) {
			case FrameEncodedEvent:
				unsub = bus.Subscribe(func(e FrameEncodedEvent) { received <- e })
			case FrameUpscaledEvent:
				unsub = bus.Subscribe(func(e FrameUpscaledEvent) { received <- e })
			case FrameSkippedEvent:
				unsub = bus.Subscribe(func(e FrameSkippedEvent) { received <- e })
			case StageStateChangedEvent:
				unsub = bus.Subscribe(func(e StageStateChangedEvent) { received <- e })
			case PauseChangedEvent:
				unsub = bus.Subscribe(func(e PauseChangedEvent) { received <- e })
			case RunFinishedEvent:
				unsub = bus.Subscribe(func(e RunFinishedEvent) { received <- e })
			case LogEntryEvent:
				unsub = bus.Subscribe(func(e LogEntryEvent) { received <- e })
			case StageMetricsEvent:
				unsub = bus.Subscribe(func(e StageMetricsEvent) { received <- e })
			}
			defer unsub()

			bus.Publish(tt.event)
			<-received
		})
	}
}

func TestBus_NilPublish(_ *testing.T) {
	var bus *Bus
	bus.Publish(RunFinishedEvent{}) // must not panic
}

func TestBus_UnknownHandler(_ *testing.T) {
	unsub := New().Subscribe(func(string) {})
	unsub()
}

func TestEventJSONFieldNames(t *testing.T) {
	tests := []struct {
		name  string
		event any
		key   string
	}{
		{"FrameEncodedEvent", FrameEncodedEvent{Processed: 3}, "processed"},
		{"FrameUpscaledEvent", FrameUpscaledEvent{DurationMs: 1.5}, "duration_ms"},
		{"RunFinishedEvent", RunFinishedEvent{Elapsed: 2}, "elapsed_seconds"},
		{"StageStateChangedEvent", StageStateChangedEvent{Stage: "decoder"}, "stage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.event)
			if err != nil {
				t.Fatalf("Failed to marshal: %v", err)
			}

			var result map[string]any
			if unmarshalErr := json.Unmarshal(data, &result); unmarshalErr != nil {
				t.Fatalf("Failed to unmarshal: %v", unmarshalErr)
			}

			if _, ok := result[tt.key]; !ok {
				t.Errorf("%s JSON missing %q: %s", tt.name, tt.key, data)
			}
		})
	}
}

func TestSubscribeToChannel(t *testing.T) {
	bus := New()
	ch := make(chan any, 10)

	unsub := SubscribeToChannel[FrameEncodedEvent](bus, ch)
	defer unsub()

	event := FrameEncodedEvent{Index: 7, Processed: 8}
	bus.Publish(event)

	received := <-ch
	encoded, ok := received.(FrameEncodedEvent)
	if !ok {
		t.Fatalf("Expected FrameEncodedEvent, got %T", received)
	}
	if encoded.Index != event.Index {
		t.Errorf("Expected index %d, got %d", event.Index, encoded.Index)
	}
}

func TestSubscribeToChannel_NonBlocking(_ *testing.T) {
	bus := New()
	ch := make(chan any) // No buffer

	unsub := SubscribeToChannel[PauseChangedEvent](bus, ch)
	defer unsub()

	done := make(chan bool, 1)
	go func() {
		bus.Publish(PauseChangedEvent{Paused: true})
		done <- true
	}()

	<-done // Should complete without blocking
}
