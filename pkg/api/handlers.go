package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/lattice-health/physioreason/pkg/compare"
	"github.com/lattice-health/physioreason/pkg/health"
	"github.com/lattice-health/physioreason/pkg/logging"
	"github.com/lattice-health/physioreason/pkg/model"
	"github.com/lattice-health/physioreason/pkg/propagate"
	"github.com/lattice-health/physioreason/pkg/rules"
	"github.com/lattice-health/physioreason/pkg/trace"
	"github.com/lattice-health/physioreason/pkg/validation"
)

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	graph := s.source.Graph()
	respondNegotiated(w, r, http.StatusOK, graphResponse{
		Nodes:     graph.Nodes(),
		Edges:     graph.Edges(),
		Rules:     graph.Rules(),
		Syndromes: graph.Syndromes(),
	})
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var payload validation.SimulationRequestPayload
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}
	if err := validation.ValidateSimulationRequest(&payload); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	req := toSimulationRequest(&payload)
	graph := s.source.Graph()

	resp, err := s.runSimulation(graph, req)
	if err != nil {
		s.respondSimulationError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Baseline     validation.SimulationRequestPayload `json:"baseline"`
		Intervention validation.SimulationRequestPayload `json:"intervention"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}
	if err := validation.ValidateSimulationRequest(&payload.Baseline); err != nil {
		respondError(w, http.StatusBadRequest, "baseline: "+err.Error())
		return
	}
	if err := validation.ValidateSimulationRequest(&payload.Intervention); err != nil {
		respondError(w, http.StatusBadRequest, "intervention: "+err.Error())
		return
	}

	graph := s.source.Graph()

	baselineResp, err := s.runSimulation(graph, toSimulationRequest(&payload.Baseline))
	if err != nil {
		s.respondSimulationError(w, err)
		return
	}
	interventionResp, err := s.runSimulation(graph, toSimulationRequest(&payload.Intervention))
	if err != nil {
		s.respondSimulationError(w, err)
		return
	}

	changed := compare.Classify(baselineResp.AffectedNodes, interventionResp.AffectedNodes)
	s.metrics.RecordComparison("ok")

	respondJSON(w, http.StatusOK, model.CompareResponse{
		Baseline:     baselineResp,
		Intervention: interventionResp,
		ChangedNodes: changed,
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	graph, diags, err := s.source.Reload()
	if err != nil {
		id := newDiagnosticID()
		s.logger.Error("reload rejected",
			logging.String("diagnostic_id", id),
			logging.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "pack reload failed: "+err.Error())
		return
	}

	respondJSON(w, http.StatusOK, reloadResponse{
		Status:        "ok",
		NodeCount:     graph.NodeCount(),
		SyndromeCount: len(graph.Syndromes()),
		Diagnostics:   toDiagnosticPayloads(diags),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.health.Check())
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	resp := s.health.CheckReadiness()
	status := http.StatusOK
	if resp.Status != health.StatusHealthy {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, resp)
}

// runSimulation applies context-baseline injection and rule evaluation
// ahead of propagation, then builds traces for every affected node.
func (s *Server) runSimulation(graph *model.Graph, req model.SimulationRequest) (model.SimulationResponse, error) {
	start := time.Now()

	if req.Options.ConflictEpsilon == 0 {
		req.Options.ConflictEpsilon = s.cfg.DefaultOptions.ConflictEpsilon
	}

	seeded := rules.ApplyContextBaselines(req.Perturbations, req.Context)
	ruleContributed, warnings := rules.Evaluate(graph.Rules(), req.Context, seeded)
	for _, w := range warnings {
		s.logger.Warn("rule evaluation warning", logging.String("warning", w))
	}
	finalPerturbations := rules.Merge(seeded, ruleContributed)

	result, err := propagate.Execute(graph, finalPerturbations, req.Context, req.Options)
	if err != nil {
		s.metrics.RecordSimulation("error", time.Since(start), nil, 0)
		return model.SimulationResponse{}, err
	}

	affected := result.AffectedNodes()
	traces := trace.Build(result, 0)

	s.metrics.RecordSimulation("ok", time.Since(start), affected, result.MaxTick)

	return model.SimulationResponse{
		AffectedNodes: affected,
		Traces:        traces,
		MaxTicks:      result.MaxTick,
	}, nil
}

func (s *Server) respondSimulationError(w http.ResponseWriter, err error) {
	var simErr *model.SimulationError
	if errors.As(err, &simErr) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondError(w, http.StatusInternalServerError, err.Error())
}
