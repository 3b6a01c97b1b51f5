package metrics

import (
	"time"

	"github.com/lattice-health/physioreason/pkg/model"
)

// RecordHTTPRequest records one served HTTP request.
func (r *Registry) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordResponseSize records the body size of one served HTTP response.
func (r *Registry) RecordResponseSize(method, path string, size float64) {
	r.HTTPResponseSize.WithLabelValues(method, path).Observe(size)
}

// IncHTTPRequestsInFlight marks the start of an HTTP request being handled.
func (r *Registry) IncHTTPRequestsInFlight() {
	r.HTTPRequestsInFlight.Inc()
}

// DecHTTPRequestsInFlight marks the end of an HTTP request being handled.
func (r *Registry) DecHTTPRequestsInFlight() {
	r.HTTPRequestsInFlight.Dec()
}

// RecordSimulation records one propagation run's outcome and shape.
func (r *Registry) RecordSimulation(outcome string, duration time.Duration, affected []model.AffectedNode, maxTicks int) {
	r.SimulationsTotal.WithLabelValues(outcome).Inc()
	r.SimulationDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	if outcome != "ok" {
		return
	}
	r.SimulationAffectedNodes.Observe(float64(len(affected)))
	r.SimulationMaxTicks.Observe(float64(maxTicks))

	if len(affected) == 0 {
		return
	}
	unknown := 0
	for _, a := range affected {
		if a.Direction == model.DirUnknown {
			unknown++
		}
	}
	r.SimulationUnknownFraction.Observe(float64(unknown) / float64(len(affected)))
}

// RecordComparison records one comparator run's outcome.
func (r *Registry) RecordComparison(outcome string) {
	r.ComparisonsTotal.WithLabelValues(outcome).Inc()
}

// RecordPackReload records a successful reload and the resulting graph size.
func (r *Registry) RecordPackReload(nodeCount, edgeCount, ruleCount int) {
	r.PackReloadsTotal.Inc()
	r.PackNodesTotal.Set(float64(nodeCount))
	r.PackEdgesTotal.Set(float64(edgeCount))
	r.PackRulesTotal.Set(float64(ruleCount))
}

// RecordPackReloadError records a reload rejected by a fatal load error;
// the previously active graph's gauges are left untouched.
func (r *Registry) RecordPackReloadError() {
	r.PackReloadErrorsTotal.Inc()
}
