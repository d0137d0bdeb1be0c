// Package exporters provides HTTP and SSE exporters for metrics.
package exporters

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPHandler returns the Prometheus metrics HTTP handler served at /metrics.
// This collects all promauto-registered metrics automatically, including the
// Go runtime and process collectors of the default registry.
func HTTPHandler() http.Handler {
	return promhttp.Handler()
}
