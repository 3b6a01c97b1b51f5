// Package gate decides which edges of the knowledge graph participate in a
// given simulation run. An edge tagged with a context requirement (e.g. an
// ACE-inhibitor-specific pathway) only fires when the simulation's patient
// context satisfies every flag the edge names.
package gate

import "github.com/lattice-health/physioreason/pkg/model"

// Live reports whether edge is active under the given simulation context.
// An edge with no context requirement is always live. A required flag that
// is absent from context is treated as false, never as "unknown" — the
// caller must opt a pathway in explicitly.
func Live(edge model.Edge, context map[string]bool) bool {
	for flag, want := range edge.Context {
		if context[flag] != want {
			return false
		}
	}
	return true
}
