package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	hostCPUPercent = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "host",
		Name:      "cpu_percent",
		Help:      "Host CPU utilisation percentage",
	})

	hostMemoryAvailable = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "host",
		Name:      "memory_available_bytes",
		Help:      "Host memory available for new allocations",
	})

	hostMemoryUsedPercent = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "host",
		Name:      "memory_used_percent",
		Help:      "Host memory utilisation percentage",
	})
)

// SetHostCPUPercent sets the host CPU utilisation.
func SetHostCPUPercent(p float64) {
	hostCPUPercent.Set(p)
}

// SetHostMemory sets available memory and used percentage.
func SetHostMemory(available uint64, usedPercent float64) {
	hostMemoryAvailable.Set(float64(available))
	hostMemoryUsedPercent.Set(usedPercent)
}
