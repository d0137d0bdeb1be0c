package pipeline

import (
	"sync"
	"time"

	"github.com/smazurov/framescale/internal/events"
	"github.com/smazurov/framescale/internal/logging"
	"github.com/smazurov/framescale/internal/process"
)

// Stage names used in logs, events and metrics labels.
const (
	StageDecoder  = "decoder"
	StageEncoder  = "encoder"
	StageUpscaler = "upscaler"
)

// DefaultPollInterval bounds every wait so pause and stop take effect quickly.
const DefaultPollInterval = 100 * time.Millisecond

// Stage tracks the lifecycle state and terminal error of one pipeline stage
// and publishes every transition on the bus.
type Stage struct {
	name   string
	bus    *events.Bus
	logger logging.Logger

	mu    sync.RWMutex
	state process.State
	err   error
}

// NewStage creates an idle stage. bus may be nil.
func NewStage(name string, bus *events.Bus) *Stage {
	return &Stage{
		name:   name,
		bus:    bus,
		logger: logging.GetLogger(name),
		state:  process.StateIdle,
	}
}

// Name returns the stage name.
func (s *Stage) Name() string {
	return s.name
}

// Logger returns the stage's module logger.
func (s *Stage) Logger() logging.Logger {
	return s.logger
}

// State returns the current state.
func (s *Stage) State() process.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Err returns the terminal error, if any.
func (s *Stage) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Set moves the stage to state.
func (s *Stage) Set(state process.State) {
	s.mu.Lock()
	if s.state == state {
		s.mu.Unlock()
		return
	}
	s.state = state
	s.mu.Unlock()

	s.logger.Debug("Stage state changed", "state", state)
	s.bus.Publish(events.StageStateChangedEvent{
		Stage:     s.name,
		State:     string(state),
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// Finish records the terminal error and moves to stopped or error.
func (s *Stage) Finish(err error) error {
	state := process.StateStopped
	msg := ""
	if err != nil {
		state = process.StateError
		msg = err.Error()
	}

	s.mu.Lock()
	s.state = state
	s.err = err
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("Stage failed", "error", err)
	} else {
		s.logger.Info("Stage finished")
	}
	s.bus.Publish(events.StageStateChangedEvent{
		Stage:     s.name,
		State:     string(state),
		Error:     msg,
		Timestamp: time.Now().Format(time.RFC3339),
	})
	return err
}
