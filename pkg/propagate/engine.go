// Package propagate implements the signed, weighted, context-gated
// breadth-ordered traversal at the heart of the reasoner: given a graph and
// a set of effective perturbations (already resolved by pkg/rules and
// pkg/gate's caller), it computes which nodes change, in what direction,
// with what confidence, and along which paths.
package propagate

import (
	"fmt"
	"math"
	"sort"

	"github.com/lattice-health/physioreason/pkg/gate"
	"github.com/lattice-health/physioreason/pkg/model"
)

// Arrival is one accepted causal step into a node: either a seed (Edge is
// nil) or a propagated influence carried across a single edge.
type Arrival struct {
	FromNode   string
	Edge       *model.Edge
	Direction  model.Direction
	Confidence float64
	Tick       int
}

// NodeState is a node's merged post-propagation state.
type NodeState struct {
	Direction  model.Direction
	Confidence float64
	FirstTick  int
	Blocked    bool
	Timescale  model.Delay
}

// Result is the full internal record of one propagation run, consumed by
// pkg/trace to reconstruct paths and by the caller to build AffectedNodes.
type Result struct {
	Graph    *model.Graph
	Seeds    map[string]bool
	States   map[string]NodeState
	Arrivals map[string][]Arrival
	MaxTick  int
}

// Execute runs the propagation algorithm to a fixed point. perturbations
// must already be the effective set (rule-contributed perturbations merged
// with user perturbations); this function does not consult pkg/rules.
func Execute(graph *model.Graph, perturbations []model.Perturbation, context map[string]bool, options model.SimulationOptions) (*Result, error) {
	res := &Result{
		Graph:    graph,
		Seeds:    make(map[string]bool),
		States:   make(map[string]NodeState),
		Arrivals: make(map[string][]Arrival),
	}

	requiresByTarget := buildRequiresIndex(graph)

	frontier := map[int][]string{}
	for _, p := range perturbations {
		node, ok := graph.Resolve(p.NodeID)
		if !ok {
			return nil, &model.SimulationError{Op: "resolve seed", Cause: fmt.Errorf("%w: %s", model.ErrUnresolvedSeed, p.NodeID)}
		}

		dir, blocked, err := seedDirection(node, p)
		if err != nil {
			return nil, &model.SimulationError{Op: "seed direction", Cause: err}
		}

		res.Seeds[node.ID] = true
		res.States[node.ID] = NodeState{Direction: dir, Confidence: 1.0, FirstTick: 0, Blocked: blocked, Timescale: model.DelayImmediate}
		res.Arrivals[node.ID] = []Arrival{{FromNode: "", Edge: nil, Direction: dir, Confidence: 1.0, Tick: 0}}
		frontier[0] = append(frontier[0], node.ID)
	}

	for tick := 0; tick <= options.MaxHops; tick++ {
		nodeIDs := dedupSorted(frontier[tick])
		if len(nodeIDs) == 0 {
			continue
		}
		res.MaxTick = tick

		candidates := make(map[string][]Arrival)
		for _, nodeID := range nodeIDs {
			state := res.States[nodeID]
			if state.Blocked {
				continue
			}
			for _, edge := range graph.Outgoing(nodeID) {
				edge := edge
				if edge.Rel != model.RelIncreases && edge.Rel != model.RelDecreases {
					continue
				}
				if !gate.Live(edge, context) {
					continue
				}
				if edge.Rel == model.RelIncreases && !requirementsSatisfied(requiresByTarget, edge.Target, res.States) {
					continue
				}

				newTick := tick + 1
				if newTick > options.MaxHops {
					continue
				}
				if options.TimeWindow.Rank() != -1 && edge.Delay.Rank() > options.TimeWindow.Rank() {
					continue
				}

				dir := state.Direction
				if edge.Rel == model.RelDecreases {
					dir = dir.Flip()
				}
				confidence := state.Confidence * edge.Weight
				if confidence < options.MinConfidence {
					continue
				}

				candidates[edge.Target] = append(candidates[edge.Target], Arrival{
					FromNode:   nodeID,
					Edge:       &edge,
					Direction:  dir,
					Confidence: confidence,
					Tick:       newTick,
				})
			}
		}

		for target, newArrivals := range candidates {
			existing := res.Arrivals[target]
			merged := mergeArrivals(append(append([]Arrival{}, existing...), newArrivals...), options.ConflictEpsilon)

			prior, hadPrior := res.States[target]
			improved := !hadPrior || merged.direction != prior.Direction || merged.confidence > prior.Confidence
			if !improved {
				continue
			}

			timescale := dominantTimescale(newArrivals, merged.direction)
			firstTick := newArrivals[0].Tick
			if hadPrior {
				firstTick = minInt(prior.FirstTick, firstTick)
			}

			res.States[target] = NodeState{
				Direction:  merged.direction,
				Confidence: merged.confidence,
				FirstTick:  firstTick,
				Timescale:  timescale,
			}
			res.Arrivals[target] = append(existing, newArrivals...)
			frontier[newArrivals[0].Tick] = append(frontier[newArrivals[0].Tick], target)
		}
	}

	return res, nil
}

// seedDirection resolves a perturbation into an initial seed direction:
// increase/decrease set direction directly; block behaves like decrease
// but suppresses outgoing propagation from the node; set compares
// the supplied value against the node's normal-range midpoint (or zero, if
// the node carries no normal range).
func seedDirection(node model.Node, p model.Perturbation) (model.Direction, bool, error) {
	switch p.Op {
	case model.OpIncrease:
		return model.DirUp, false, nil
	case model.OpDecrease:
		return model.DirDown, false, nil
	case model.OpBlock:
		return model.DirDown, true, nil
	case model.OpSet:
		if p.Value == nil {
			return "", false, fmt.Errorf("perturbation on %s: \"set\" requires a value", p.NodeID)
		}
		threshold := 0.0
		if node.NormalRange != nil {
			threshold = node.NormalRange.Mid()
		}
		if *p.Value > threshold {
			return model.DirUp, false, nil
		}
		return model.DirDown, false, nil
	default:
		return "", false, fmt.Errorf("perturbation on %s: unknown operation %q", p.NodeID, p.Op)
	}
}

type mergedState struct {
	direction  model.Direction
	confidence float64
}

// mergeArrivals groups arrivals by direction, combines each group with a
// probabilistic OR, then resolves the winner. If the two
// highest-confidence groups are within epsilon of each other and disagree
// on direction, the result is unknown at the higher confidence.
func mergeArrivals(arrivals []Arrival, epsilon float64) mergedState {
	byDirection := make(map[model.Direction]float64)
	for _, a := range arrivals {
		byDirection[a.Direction] = probOR(byDirection[a.Direction], a.Confidence)
	}

	type group struct {
		direction  model.Direction
		confidence float64
	}
	groups := make([]group, 0, len(byDirection))
	for dir, conf := range byDirection {
		groups = append(groups, group{direction: dir, confidence: conf})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].confidence > groups[j].confidence })

	if len(groups) == 0 {
		return mergedState{direction: model.DirUnchanged, confidence: 0}
	}
	if len(groups) == 1 {
		return mergedState{direction: groups[0].direction, confidence: groups[0].confidence}
	}

	winner, runnerUp := groups[0], groups[1]
	if winner.direction != runnerUp.direction && math.Abs(winner.confidence-runnerUp.confidence) <= epsilon {
		return mergedState{direction: model.DirUnknown, confidence: winner.confidence}
	}
	return mergedState{direction: winner.direction, confidence: winner.confidence}
}

// probOR combines two independent-support confidences: 1 - (1-a)(1-b).
func probOR(a, b float64) float64 {
	return 1 - (1-a)*(1-b)
}

func dominantTimescale(arrivals []Arrival, winningDirection model.Direction) model.Delay {
	best := model.DelayImmediate
	bestConf := -1.0
	for _, a := range arrivals {
		if a.Direction != winningDirection || a.Edge == nil {
			continue
		}
		if a.Confidence > bestConf {
			bestConf = a.Confidence
			best = a.Edge.Delay
		}
	}
	return best
}

// buildRequiresIndex maps a target node id to the source ids of "requires"
// edges pointing at it: an incoming `increases` edge targeting that node
// is suppressed unless every required source is currently `up`.
func buildRequiresIndex(graph *model.Graph) map[string][]string {
	idx := make(map[string][]string)
	for _, e := range graph.Edges() {
		if e.Rel == model.RelRequires {
			idx[e.Target] = append(idx[e.Target], e.Source)
		}
	}
	return idx
}

func requirementsSatisfied(requiresByTarget map[string][]string, target string, states map[string]NodeState) bool {
	sources, ok := requiresByTarget[target]
	if !ok {
		return true
	}
	for _, s := range sources {
		if states[s].Direction != model.DirUp {
			return false
		}
	}
	return true
}

func dedupSorted(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// AffectedNodes converts the run's per-node states into the response shape,
// sorted by node id for a deterministic, comparable response body.
func (r *Result) AffectedNodes() []model.AffectedNode {
	ids := make([]string, 0, len(r.States))
	for id := range r.States {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]model.AffectedNode, 0, len(ids))
	for _, id := range ids {
		s := r.States[id]
		out = append(out, model.AffectedNode{
			NodeID:     id,
			Direction:  s.Direction,
			Magnitude:  model.MagnitudeOf(s.Confidence),
			Confidence: s.Confidence,
			Timescale:  s.Timescale,
			Tick:       s.FirstTick,
		})
	}
	return out
}
