// Package metrics exposes the Prometheus registry for the reasoner: request
// counts and latencies for the HTTP surface, plus simulation- and
// reload-specific instrumentation for the propagation engine.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every metric the service exports.
type Registry struct {
	// HTTP metrics.
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPResponseSize     *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Simulation metrics.
	SimulationsTotal          *prometheus.CounterVec
	SimulationDuration        *prometheus.HistogramVec
	SimulationAffectedNodes   prometheus.Histogram
	SimulationMaxTicks        prometheus.Histogram
	SimulationUnknownFraction prometheus.Histogram

	// Comparator metrics.
	ComparisonsTotal *prometheus.CounterVec

	// Knowledge pack metrics.
	PackReloadsTotal      prometheus.Counter
	PackReloadErrorsTotal prometheus.Counter
	PackNodesTotal        prometheus.Gauge
	PackEdgesTotal        prometheus.Gauge
	PackRulesTotal        prometheus.Gauge

	registry *prometheus.Registry
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the process-wide metrics registry, constructing
// it on first use.
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// GetPrometheusRegistry returns the underlying Prometheus registry, for
// wiring into a promhttp.Handler.
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
