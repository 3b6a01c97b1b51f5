// Package compare runs a baseline and an intervention propagation and
// classifies how each affected node's state differs between the two runs.
package compare

import (
	"sort"

	"github.com/lattice-health/physioreason/pkg/model"
)

// changeThreshold is the minimum |confidence delta| that separates
// "strengthened"/"weakened" from "unchanged".
const changeThreshold = 0.05

// Classify diffs two already-computed sets of affected nodes and returns
// the per-node change classification, sorted by node id for a deterministic
// response body.
func Classify(baseline, intervention []model.AffectedNode) []model.ComparedNode {
	baseByID := indexByID(baseline)
	interByID := indexByID(intervention)

	ids := make(map[string]struct{}, len(baseByID)+len(interByID))
	for id := range baseByID {
		ids[id] = struct{}{}
	}
	for id := range interByID {
		ids[id] = struct{}{}
	}

	sortedIDs := make([]string, 0, len(ids))
	for id := range ids {
		sortedIDs = append(sortedIDs, id)
	}
	sort.Strings(sortedIDs)

	out := make([]model.ComparedNode, 0, len(sortedIDs))
	for _, id := range sortedIDs {
		b, inBaseline := baseByID[id]
		i, inIntervention := interByID[id]
		out = append(out, classifyOne(id, b, inBaseline, i, inIntervention))
	}
	return out
}

func classifyOne(nodeID string, b model.AffectedNode, inBaseline bool, i model.AffectedNode, inIntervention bool) model.ComparedNode {
	cn := model.ComparedNode{NodeID: nodeID}

	if inBaseline {
		cn.BaselineDirection = b.Direction
		cn.BaselineConfidence = b.Confidence
	}
	if inIntervention {
		cn.InterventionDirection = i.Direction
		cn.InterventionConfidence = i.Confidence
	}

	switch {
	case inIntervention && !inBaseline:
		cn.ChangeType = model.ChangeNew
		cn.ConfidenceDelta = i.Confidence
	case inBaseline && !inIntervention:
		cn.ChangeType = model.ChangeResolved
		cn.ConfidenceDelta = -b.Confidence
	default:
		cn.ConfidenceDelta = i.Confidence - b.Confidence
		switch {
		case b.Direction != i.Direction:
			cn.ChangeType = model.ChangeDirectionFlip
		case cn.ConfidenceDelta >= changeThreshold:
			cn.ChangeType = model.ChangeStrengthened
		case -cn.ConfidenceDelta >= changeThreshold:
			cn.ChangeType = model.ChangeWeakened
		default:
			cn.ChangeType = model.ChangeUnchanged
		}
	}

	return cn
}

func indexByID(nodes []model.AffectedNode) map[string]model.AffectedNode {
	idx := make(map[string]model.AffectedNode, len(nodes))
	for _, n := range nodes {
		idx[n.NodeID] = n
	}
	return idx
}
