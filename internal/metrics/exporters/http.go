// Package exporters serves metrics over HTTP and pushes pipeline progress
// to the event bus.
package exporters

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPHandler returns the Prometheus metrics handler for GET /metrics. It
// serves everything registered with the default registerer.
func HTTPHandler() http.Handler {
	return promhttp.Handler()
}
