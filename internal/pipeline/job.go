package pipeline

import "github.com/smazurov/framescale/internal/frame"

// Job is one decoded frame on its way to a worker. Previous is nil for
// frame 0. Jobs are produced once by the decoder and consumed once by a
// worker.
type Job struct {
	Index    int
	Previous *frame.Image
	Current  *frame.Image
	Settings *Settings
}
