package metrics

import (
	"testing"
	"time"

	"github.com/lattice-health/physioreason/pkg/model"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, m interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	var metric dto.Metric
	if err := m.Write(&metric); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if metric.Counter != nil {
		return metric.Counter.GetValue()
	}
	if metric.Gauge != nil {
		return metric.Gauge.GetValue()
	}
	return 0
}

func histogramCount(t *testing.T, m interface{ Write(*dto.Metric) error }) uint64 {
	t.Helper()
	var metric dto.Metric
	if err := m.Write(&metric); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	return metric.GetHistogram().GetSampleCount()
}

func TestRecordHTTPRequest_IncrementsCounterAndObservesDuration(t *testing.T) {
	r := NewRegistry()
	r.RecordHTTPRequest("POST", "/simulate", "200", 15*time.Millisecond)

	got := counterValue(t, r.HTTPRequestsTotal.WithLabelValues("POST", "/simulate", "200"))
	if got != 1 {
		t.Errorf("HTTPRequestsTotal = %v, want 1", got)
	}
	duration := r.HTTPRequestDuration.WithLabelValues("POST", "/simulate", "200").(interface{ Write(*dto.Metric) error })
	if n := histogramCount(t, duration); n != 1 {
		t.Errorf("HTTPRequestDuration sample count = %d, want 1", n)
	}
}

func TestRecordSimulation_OkOutcomeObservesShape(t *testing.T) {
	r := NewRegistry()
	affected := []model.AffectedNode{
		{NodeID: "a", Direction: model.DirUp},
		{NodeID: "b", Direction: model.DirUnknown},
	}
	r.RecordSimulation("ok", 5*time.Millisecond, affected, 3)

	got := counterValue(t, r.SimulationsTotal.WithLabelValues("ok"))
	if got != 1 {
		t.Errorf("SimulationsTotal{ok} = %v, want 1", got)
	}
	if n := histogramCount(t, r.SimulationAffectedNodes); n != 1 {
		t.Errorf("SimulationAffectedNodes sample count = %d, want 1", n)
	}
}

func TestRecordSimulation_ErrorOutcomeSkipsShapeHistograms(t *testing.T) {
	r := NewRegistry()
	r.RecordSimulation("error", time.Millisecond, nil, 0)

	got := counterValue(t, r.SimulationsTotal.WithLabelValues("error"))
	if got != 1 {
		t.Errorf("SimulationsTotal{error} = %v, want 1", got)
	}
	if n := histogramCount(t, r.SimulationAffectedNodes); n != 0 {
		t.Errorf("SimulationAffectedNodes sample count = %d, want 0", n)
	}
}

func TestRecordPackReload_UpdatesGauges(t *testing.T) {
	r := NewRegistry()
	r.RecordPackReload(42, 100, 7)

	if got := counterValue(t, r.PackNodesTotal); got != 42 {
		t.Errorf("PackNodesTotal = %v, want 42", got)
	}
	if got := counterValue(t, r.PackEdgesTotal); got != 100 {
		t.Errorf("PackEdgesTotal = %v, want 100", got)
	}
	if got := counterValue(t, r.PackRulesTotal); got != 7 {
		t.Errorf("PackRulesTotal = %v, want 7", got)
	}
}

func TestRecordPackReloadError_IncrementsCounter(t *testing.T) {
	r := NewRegistry()
	r.RecordPackReloadError()
	if got := counterValue(t, r.PackReloadErrorsTotal); got != 1 {
		t.Errorf("PackReloadErrorsTotal = %v, want 1", got)
	}
}

func TestDefaultRegistry_ReturnsSingleton(t *testing.T) {
	a := DefaultRegistry()
	b := DefaultRegistry()
	if a != b {
		t.Error("DefaultRegistry should return the same instance across calls")
	}
}
