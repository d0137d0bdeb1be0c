// Package upscale is the worker pool between the work queue and the output
// buffer.
//
// Each worker takes one job at a time. A frame whose difference to its
// predecessor is below the run's threshold reuses the predecessor's result
// once that slot is filled. Any other frame is scaled by a chain of backend
// ratios chosen by Decompose and then resized to exactly the output size.
//
// Processors are cached per worker by algorithm and ratio, and worker i runs
// on GPU i mod the detected GPU count, or on the CPU when there is none.
package upscale
