// Package metrics provides Prometheus metrics for the frame pipeline, the
// ffmpeg processes it drives and the host it runs on.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "framescale"

var (
	ffmpegFPS = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ffmpeg",
		Name:      "fps",
		Help:      "Current FFmpeg frames per second",
	}, []string{"stage"})

	ffmpegFrame = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ffmpeg",
		Name:      "frame",
		Help:      "Last frame number reported by FFmpeg",
	}, []string{"stage"})

	ffmpegDroppedFrames = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ffmpeg",
		Name:      "dropped_frames_total",
		Help:      "Total dropped frames",
	}, []string{"stage"})

	ffmpegDuplicateFrames = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ffmpeg",
		Name:      "duplicate_frames_total",
		Help:      "Total duplicate frames",
	}, []string{"stage"})

	ffmpegSpeed = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ffmpeg",
		Name:      "processing_speed",
		Help:      "FFmpeg processing speed multiplier",
	}, []string{"stage"})

	// Local cache for SSE exporter access.
	ffmpegCache   = make(map[string]*FFmpegStageMetrics)
	ffmpegCacheMu sync.RWMutex
)

// FFmpegStageMetrics holds the last progress values of one ffmpeg process.
type FFmpegStageMetrics struct {
	FPS             float64
	Frame           float64
	DroppedFrames   float64
	DuplicateFrames float64
	Speed           float64
}

// SetFFmpegFPS sets the current FPS for a stage.
func SetFFmpegFPS(stage string, fps float64) {
	ffmpegFPS.WithLabelValues(stage).Set(fps)
	updateCache(stage, func(m *FFmpegStageMetrics) { m.FPS = fps })
}

// SetFFmpegFrame sets the last reported frame number for a stage.
func SetFFmpegFrame(stage string, frame float64) {
	ffmpegFrame.WithLabelValues(stage).Set(frame)
	updateCache(stage, func(m *FFmpegStageMetrics) { m.Frame = frame })
}

// SetFFmpegDroppedFrames sets the dropped frames count for a stage.
func SetFFmpegDroppedFrames(stage string, count float64) {
	ffmpegDroppedFrames.WithLabelValues(stage).Set(count)
	updateCache(stage, func(m *FFmpegStageMetrics) { m.DroppedFrames = count })
}

// SetFFmpegDuplicateFrames sets the duplicate frames count for a stage.
func SetFFmpegDuplicateFrames(stage string, count float64) {
	ffmpegDuplicateFrames.WithLabelValues(stage).Set(count)
	updateCache(stage, func(m *FFmpegStageMetrics) { m.DuplicateFrames = count })
}

// SetFFmpegSpeed sets the processing speed for a stage.
func SetFFmpegSpeed(stage string, speed float64) {
	ffmpegSpeed.WithLabelValues(stage).Set(speed)
	updateCache(stage, func(m *FFmpegStageMetrics) { m.Speed = speed })
}

// DeleteFFmpegMetrics removes all metrics for a stage.
func DeleteFFmpegMetrics(stage string) {
	ffmpegFPS.DeleteLabelValues(stage)
	ffmpegFrame.DeleteLabelValues(stage)
	ffmpegDroppedFrames.DeleteLabelValues(stage)
	ffmpegDuplicateFrames.DeleteLabelValues(stage)
	ffmpegSpeed.DeleteLabelValues(stage)

	ffmpegCacheMu.Lock()
	delete(ffmpegCache, stage)
	ffmpegCacheMu.Unlock()
}

// GetFFmpegMetrics returns current metric values for a stage.
func GetFFmpegMetrics(stage string) *FFmpegStageMetrics {
	ffmpegCacheMu.RLock()
	defer ffmpegCacheMu.RUnlock()
	if m, ok := ffmpegCache[stage]; ok {
		dup := *m
		return &dup
	}
	return nil
}

// GetAllFFmpegMetrics returns metrics for every stage that reported progress.
func GetAllFFmpegMetrics() map[string]*FFmpegStageMetrics {
	ffmpegCacheMu.RLock()
	defer ffmpegCacheMu.RUnlock()
	result := make(map[string]*FFmpegStageMetrics, len(ffmpegCache))
	for stage, m := range ffmpegCache {
		dup := *m
		result[stage] = &dup
	}
	return result
}

func updateCache(stage string, update func(*FFmpegStageMetrics)) {
	ffmpegCacheMu.Lock()
	defer ffmpegCacheMu.Unlock()
	m, ok := ffmpegCache[stage]
	if !ok {
		m = &FFmpegStageMetrics{}
		ffmpegCache[stage] = m
	}
	update(m)
}
