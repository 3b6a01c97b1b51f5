package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// NewRegistry constructs a fresh registry with every metric initialized.
// Tests should use this rather than DefaultRegistry to avoid cross-test
// registration collisions on the process-wide singleton.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{registry: reg}

	r.initHTTPMetrics()
	r.initSimulationMetrics()
	r.initPackMetrics()

	return r
}

func (r *Registry) initHTTPMetrics() {
	r.HTTPRequestsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "physio_http_requests_total",
			Help: "Total number of HTTP requests served.",
		},
		[]string{"method", "path", "status"},
	)

	r.HTTPRequestDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "physio_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	r.HTTPResponseSize = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "physio_http_response_size_bytes",
			Help:    "HTTP response body size in bytes.",
			Buckets: prometheus.ExponentialBuckets(64, 4, 8),
		},
		[]string{"method", "path"},
	)

	r.HTTPRequestsInFlight = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "physio_http_requests_in_flight",
			Help: "Number of HTTP requests currently being handled.",
		},
	)
}

func (r *Registry) initSimulationMetrics() {
	r.SimulationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "physio_simulations_total",
			Help: "Total number of propagation runs, by outcome.",
		},
		[]string{"outcome"},
	)

	r.SimulationDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "physio_simulation_duration_seconds",
			Help:    "Wall-clock time to run one propagation to a fixed point.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	r.SimulationAffectedNodes = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "physio_simulation_affected_nodes",
			Help:    "Number of affected nodes returned per simulation.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
		},
	)

	r.SimulationMaxTicks = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "physio_simulation_max_ticks",
			Help:    "Highest tick layer reached per simulation.",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
	)

	r.SimulationUnknownFraction = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "physio_simulation_unknown_fraction",
			Help:    "Fraction of affected nodes resolved to the unknown direction per simulation.",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	r.ComparisonsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "physio_comparisons_total",
			Help: "Total number of baseline/intervention comparisons run.",
		},
		[]string{"outcome"},
	)
}

func (r *Registry) initPackMetrics() {
	r.PackReloadsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "physio_pack_reloads_total",
			Help: "Total number of successful knowledge-pack reloads.",
		},
	)

	r.PackReloadErrorsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "physio_pack_reload_errors_total",
			Help: "Total number of knowledge-pack reloads rejected due to a fatal load error.",
		},
	)

	r.PackNodesTotal = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "physio_pack_nodes_total",
			Help: "Number of nodes in the currently active graph.",
		},
	)

	r.PackEdgesTotal = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "physio_pack_edges_total",
			Help: "Number of edges in the currently active graph.",
		},
	)

	r.PackRulesTotal = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "physio_pack_rules_total",
			Help: "Number of rules in the currently active graph.",
		},
	)
}
