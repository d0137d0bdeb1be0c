package events

// Event type constants for kelindar/event.
const (
	TypeFrameEncoded uint32 = iota + 1
	TypeFrameUpscaled
	TypeFrameSkipped
	TypeStageStateChanged
	TypePauseChanged
	TypeRunFinished
	TypeLogEntry
	TypeStageMetrics
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// FrameEncodedEvent is published when the encoder has written a frame.
type FrameEncodedEvent struct {
	Index     int    `json:"index" example:"41" doc:"Frame index written to the encoder"`
	Processed int    `json:"processed" example:"42" doc:"Frames written so far"`
	Total     int    `json:"total" example:"1200" doc:"Expected frame count, 0 if unknown"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for FrameEncodedEvent.
func (e FrameEncodedEvent) Type() uint32 { return TypeFrameEncoded }

// FrameUpscaledEvent is published when a worker has run the backend on a frame.
type FrameUpscaledEvent struct {
	Index      int     `json:"index" example:"41" doc:"Frame index"`
	Worker     int     `json:"worker" example:"0" doc:"Worker that processed the frame"`
	Steps      []int   `json:"steps" example:"[2,2]" doc:"Backend ratios applied in order"`
	DurationMs float64 `json:"duration_ms" example:"812.5" doc:"Time spent in the backend"`
}

// Type returns the event type identifier for FrameUpscaledEvent.
func (e FrameUpscaledEvent) Type() uint32 { return TypeFrameUpscaled }

// FrameSkippedEvent is published when a frame reused its predecessor's result.
type FrameSkippedEvent struct {
	Index      int     `json:"index" example:"42" doc:"Frame index"`
	Worker     int     `json:"worker" example:"1" doc:"Worker that copied the frame"`
	Difference float64 `json:"difference" example:"0.35" doc:"Difference ratio to the previous frame in percent"`
}

// Type returns the event type identifier for FrameSkippedEvent.
func (e FrameSkippedEvent) Type() uint32 { return TypeFrameSkipped }

// StageStateChangedEvent represents a pipeline stage changing state.
type StageStateChangedEvent struct {
	Stage     string `json:"stage" example:"decoder" doc:"Stage name: decoder, encoder or upscaler"`
	State     string `json:"state" example:"running" doc:"New state"`
	Error     string `json:"error,omitempty" doc:"Terminal error, if any"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StageStateChangedEvent.
func (e StageStateChangedEvent) Type() uint32 { return TypeStageStateChanged }

// PauseChangedEvent is published when the pause flag flips.
type PauseChangedEvent struct {
	Paused    bool   `json:"paused" example:"true" doc:"Whether the pipeline is paused"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for PauseChangedEvent.
func (e PauseChangedEvent) Type() uint32 { return TypePauseChanged }

// RunFinishedEvent is published once when a run ends, successfully or not.
type RunFinishedEvent struct {
	Processed int     `json:"processed" example:"1200" doc:"Frames written to the output"`
	Skipped   int     `json:"skipped" example:"310" doc:"Frames that reused the previous result"`
	Elapsed   float64 `json:"elapsed_seconds" example:"3600.5" doc:"Wall time of the run"`
	Error     string  `json:"error,omitempty" doc:"Aggregated error, empty on success"`
}

// Type returns the event type identifier for RunFinishedEvent.
func (e RunFinishedEvent) Type() uint32 { return TypeRunFinished }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2026-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"encoder" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }

// StageMetricsEvent carries the latest ffmpeg progress of a stage.
type StageMetricsEvent struct {
	Stage           string `json:"stage" example:"encoder" doc:"Stage name"`
	FPS             string `json:"fps" example:"23.98" doc:"Frames per second"`
	Frame           string `json:"frame" example:"240" doc:"Last frame reported by ffmpeg"`
	Speed           string `json:"speed" example:"0.25" doc:"Speed relative to realtime"`
	DroppedFrames   string `json:"dropped_frames" example:"0" doc:"Dropped frames"`
	DuplicateFrames string `json:"duplicate_frames" example:"0" doc:"Duplicated frames"`
}

// Type returns the event type identifier for StageMetricsEvent.
func (e StageMetricsEvent) Type() uint32 { return TypeStageMetrics }
