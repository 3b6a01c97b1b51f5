package api

import "github.com/lattice-health/physioreason/pkg/model"

// errorResponse is the wire shape of every non-2xx response, per the
// documented {detail: string} error contract.
type errorResponse struct {
	Detail string `json:"detail"`
}

// graphResponse is the payload for GET /graph.
type graphResponse struct {
	Nodes     []model.Node     `json:"nodes" yaml:"nodes"`
	Edges     []model.Edge     `json:"edges" yaml:"edges"`
	Rules     []model.Rule     `json:"rules" yaml:"rules"`
	Syndromes []model.Syndrome `json:"syndromes" yaml:"syndromes"`
}

// reloadResponse is the payload for POST /reload.
type reloadResponse struct {
	Status        string              `json:"status"`
	NodeCount     int                 `json:"node_count"`
	SyndromeCount int                 `json:"syndrome_count"`
	Diagnostics   []diagnosticPayload `json:"diagnostics,omitempty"`
}

type diagnosticPayload struct {
	Document string `json:"document"`
	Record   string `json:"record"`
	Message  string `json:"message"`
}
