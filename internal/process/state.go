package process

// State represents the current state of a pipeline stage or subprocess.
type State string

// Stage states.
const (
	StateIdle     State = "idle"     // Not started
	StateStarting State = "starting" // Being started
	StateRunning  State = "running"  // Active
	StatePaused   State = "paused"   // Holding work until resumed
	StateStopping State = "stopping" // Being stopped
	StateStopped  State = "stopped"  // Finished
	StateError    State = "error"    // Failed to start or crashed
)

// Terminal reports whether no further transitions are expected.
func (s State) Terminal() bool {
	return s == StateStopped || s == StateError
}
