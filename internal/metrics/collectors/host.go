package collectors

import (
	"context"
	"time"

	"github.com/smazurov/framescale/internal/host"
	"github.com/smazurov/framescale/internal/logging"
	"github.com/smazurov/framescale/internal/metrics"
)

// HostCollector samples host CPU and memory use on an interval.
type HostCollector struct {
	logger   logging.Logger
	interval time.Duration
	sample   func(context.Context) (host.Usage, error)
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewHostCollector creates a new host collector.
func NewHostCollector() *HostCollector {
	return &HostCollector{
		logger:   logging.GetLogger("metrics"),
		interval: 5 * time.Second,
		sample:   host.Sample,
	}
}

// Start begins collecting host metrics.
func (h *HostCollector) Start(ctx context.Context) error {
	h.ctx, h.cancel = context.WithCancel(ctx)
	h.done = make(chan struct{})
	go h.run()
	return nil
}

// Stop stops the host collector and waits for it to exit.
func (h *HostCollector) Stop() error {
	if h.cancel != nil {
		h.cancel()
		<-h.done
	}
	return nil
}

func (h *HostCollector) run() {
	defer close(h.done)
	h.logger.Debug("Starting host metrics collection", "interval", h.interval)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.collectMetrics()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.collectMetrics()
		}
	}
}

func (h *HostCollector) collectMetrics() {
	u, err := h.sample(h.ctx)
	if err != nil {
		h.logger.Warn("Failed to sample host usage", "error", err)
		return
	}
	metrics.SetHostCPUPercent(u.CPUPercent)
	metrics.SetHostMemory(u.AvailableMemory, u.MemoryUsedPercent)
}
