// Package trace reconstructs human-readable causal paths from a completed
// propagation run and, where a syndrome template matches, attaches a
// macro-summary clinical phrase.
package trace

import (
	"fmt"
	"sort"

	"github.com/lattice-health/physioreason/pkg/model"
	"github.com/lattice-health/physioreason/pkg/propagate"
)

// DefaultTopK is the number of highest-confidence paths retained per
// affected node when the caller does not override it.
const DefaultTopK = 5

// Build reconstructs up to topK paths for every node whose direction is not
// unchanged, following the run's back-pointers to any seed. If topK <= 0,
// DefaultTopK is used.
func Build(result *propagate.Result, topK int) map[string][]model.TraceStep {
	if topK <= 0 {
		topK = DefaultTopK
	}

	traces := make(map[string][]model.TraceStep)
	for nodeID, state := range result.States {
		if state.Direction == model.DirUnchanged {
			continue
		}
		paths := reconstructPaths(result, nodeID)
		sortPaths(paths)
		if len(paths) > topK {
			paths = paths[:topK]
		}
		if len(paths) > 0 {
			traces[nodeID] = renderSteps(result.Graph, paths)
		}
	}
	return traces
}

// rawPath is one reconstructed chain of arrivals from a seed to a node.
type rawPath struct {
	nodeIDs    []string
	edges      []*model.Edge
	confidence float64
}

// reconstructPaths walks the arrival back-pointers for nodeID, producing
// every distinct seed-to-node chain reachable within the run's tick bound.
// Recursion always strictly decreases the tick ceiling, so a cyclic graph
// cannot recur indefinitely regardless of how the propagation revisited it.
func reconstructPaths(result *propagate.Result, nodeID string) []rawPath {
	var walk func(id string, maxTick int) []rawPath
	walk = func(id string, maxTick int) []rawPath {
		var out []rawPath
		for _, a := range result.Arrivals[id] {
			if a.Tick > maxTick {
				continue
			}
			if a.Edge == nil {
				// Seed arrival: path of length one.
				out = append(out, rawPath{nodeIDs: []string{id}, confidence: 1.0})
				continue
			}
			for _, prefix := range walk(a.FromNode, a.Tick-1) {
				out = append(out, rawPath{
					nodeIDs:    append(append([]string{}, prefix.nodeIDs...), id),
					edges:      append(append([]*model.Edge{}, prefix.edges...), a.Edge),
					confidence: prefix.confidence * a.Edge.Weight,
				})
			}
		}
		return out
	}

	return walk(nodeID, result.MaxTick)
}

func sortPaths(paths []rawPath) {
	sort.Slice(paths, func(i, j int) bool {
		if paths[i].confidence != paths[j].confidence {
			return paths[i].confidence > paths[j].confidence
		}
		if len(paths[i].nodeIDs) != len(paths[j].nodeIDs) {
			return len(paths[i].nodeIDs) < len(paths[j].nodeIDs)
		}
		return lexicographicLess(paths[i].nodeIDs, paths[j].nodeIDs)
	})
}

func lexicographicLess(a, b []string) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

func renderSteps(graph *model.Graph, paths []rawPath) []model.TraceStep {
	out := make([]model.TraceStep, 0, len(paths))
	for _, p := range paths {
		steps := make([]string, 0, len(p.edges))
		for _, e := range p.edges {
			steps = append(steps, renderStep(graph, e))
		}
		out = append(out, model.TraceStep{
			Path:       p.nodeIDs,
			Steps:      steps,
			Confidence: p.confidence,
			Summary:    matchSyndrome(graph, p.nodeIDs),
		})
	}
	return out
}

func renderStep(graph *model.Graph, e *model.Edge) string {
	arrow := "↑"
	if e.Rel == model.RelDecreases {
		arrow = "↓"
	}
	srcLabel := labelOf(graph, e.Source)
	tgtLabel := labelOf(graph, e.Target)
	step := fmt.Sprintf("%s %s %s", srcLabel, arrow, tgtLabel)
	if e.Description != "" {
		step = fmt.Sprintf("%s (%s)", step, e.Description)
	}
	return step
}

func labelOf(graph *model.Graph, id string) string {
	if n, ok := graph.Node(id); ok && n.Label != "" {
		return n.Label
	}
	return id
}

// matchSyndrome returns a macro-summary sentence when the path contains one
// of the graph's syndrome sequences as a subsequence, in order. Absent a
// match, the empty string is returned and the field is omitted.
func matchSyndrome(graph *model.Graph, path []string) string {
	for _, s := range graph.Syndromes() {
		if isSubsequence(s.Sequence, path) {
			return s.Label
		}
	}
	return ""
}

func isSubsequence(sequence, path []string) bool {
	if len(sequence) == 0 {
		return false
	}
	i := 0
	for _, id := range path {
		if id == sequence[i] {
			i++
			if i == len(sequence) {
				return true
			}
		}
	}
	return false
}
