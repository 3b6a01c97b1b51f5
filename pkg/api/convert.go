package api

import (
	"github.com/lattice-health/physioreason/pkg/model"
	"github.com/lattice-health/physioreason/pkg/validation"
)

func toPerturbation(p validation.PerturbationRequest) model.Perturbation {
	return model.Perturbation{
		NodeID: p.NodeID,
		Op:     model.PerturbationOp(p.Op),
		Value:  p.Value,
	}
}

func toPerturbations(ps []validation.PerturbationRequest) []model.Perturbation {
	out := make([]model.Perturbation, 0, len(ps))
	for _, p := range ps {
		out = append(out, toPerturbation(p))
	}
	return out
}

func toOptions(o validation.SimulationOptionsRequest) model.SimulationOptions {
	return model.SimulationOptions{
		MaxHops:         o.MaxHops,
		MinConfidence:   o.MinConfidence,
		TimeWindow:      model.TimeWindow(o.TimeWindow),
		DimUnaffected:   o.DimUnaffected,
		ConflictEpsilon: o.ConflictEpsilon,
	}
}

func toSimulationRequest(payload *validation.SimulationRequestPayload) model.SimulationRequest {
	return model.SimulationRequest{
		Perturbations: toPerturbations(payload.Perturbations),
		Context:       payload.Context,
		Options:       toOptions(payload.Options),
	}
}

func toDiagnosticPayloads(diags []model.Diagnostic) []diagnosticPayload {
	out := make([]diagnosticPayload, 0, len(diags))
	for _, d := range diags {
		out = append(out, diagnosticPayload{Document: d.Document, Record: d.Record, Message: d.Message})
	}
	return out
}
