package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesDecoded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "frames_decoded_total",
		Help:      "Frames read from the decoder",
	})

	framesUpscaled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "frames_upscaled_total",
		Help:      "Frames run through a backend",
	}, []string{"algorithm"})

	framesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "frames_skipped_total",
		Help:      "Frames that reused the previous frame's result",
	})

	framesEncoded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "frames_encoded_total",
		Help:      "Frames written to the encoder",
	})

	framesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "frames_failed_total",
		Help:      "Frames whose buffer slot was poisoned by a failure",
	})

	backendConstructions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "backend",
		Name:      "constructions_total",
		Help:      "Backend processors constructed",
	}, []string{"algorithm", "ratio"})

	upscaleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "backend",
		Name:      "process_seconds",
		Help:      "Time spent in one backend invocation",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"algorithm", "ratio"})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "queue_depth",
		Help:      "Jobs waiting in the work queue",
	})

	paused = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "paused",
		Help:      "1 while the pipeline is paused",
	})

	workersBusy = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "workers_busy",
		Help:      "Upscale workers currently holding a job",
	})
)

// IncFramesDecoded counts one frame read from the decoder.
func IncFramesDecoded() { framesDecoded.Inc() }

// IncFramesUpscaled counts one frame processed by a backend.
func IncFramesUpscaled(algorithm string) { framesUpscaled.WithLabelValues(algorithm).Inc() }

// IncFramesSkipped counts one frame taken through the skip path.
func IncFramesSkipped() { framesSkipped.Inc() }

// IncFramesEncoded counts one frame written to the encoder.
func IncFramesEncoded() { framesEncoded.Inc() }

// IncFramesFailed counts one poisoned slot.
func IncFramesFailed() { framesFailed.Inc() }

// IncBackendConstructions counts a backend processor construction.
func IncBackendConstructions(algorithm string, ratio int) {
	backendConstructions.WithLabelValues(algorithm, strconv.Itoa(ratio)).Inc()
}

// ObserveUpscale records the duration of one backend invocation.
func ObserveUpscale(algorithm string, ratio int, d time.Duration) {
	upscaleDuration.WithLabelValues(algorithm, strconv.Itoa(ratio)).Observe(d.Seconds())
}

// SetQueueDepth sets the number of queued jobs.
func SetQueueDepth(n int) { queueDepth.Set(float64(n)) }

// SetPaused records the pause flag.
func SetPaused(p bool) {
	if p {
		paused.Set(1)
		return
	}
	paused.Set(0)
}

// WorkerBusy adjusts the busy worker gauge by delta.
func WorkerBusy(delta int) { workersBusy.Add(float64(delta)) }
