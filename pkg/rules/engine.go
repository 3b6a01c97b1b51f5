// Package rules evaluates authored when/then rules that inject
// perturbations derived from patient context before propagation runs, and
// carries the context-baseline effects table supplemented from the
// original implementation's context_baselines module.
package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lattice-health/physioreason/pkg/model"
)

// EvaluatedPerturbation is one perturbation contributed by a fired rule.
type EvaluatedPerturbation struct {
	model.Perturbation
	RuleID string
}

// Evaluate runs every rule once against the context and the seed directions
// derived from the caller's perturbations, and returns the perturbations
// contributed by rules whose `when` expression evaluated true. A rule whose
// `when` fails to parse, and a single `then` entry with an unknown or
// malformed op, are skipped with a warning (the rule's other `then` entries
// still apply); callers are expected to have already dropped rules referencing unknown
// nodes at load time (pkg/pack does this).
func Evaluate(graphRules []model.Rule, context map[string]bool, userPerturbations []model.Perturbation) ([]EvaluatedPerturbation, []string) {
	seeds := make(map[string]model.Direction, len(userPerturbations))
	for _, p := range userPerturbations {
		switch p.Op {
		case model.OpIncrease:
			seeds[p.NodeID] = model.DirUp
		case model.OpDecrease:
			seeds[p.NodeID] = model.DirDown
		case model.OpBlock:
			seeds[p.NodeID] = model.DirDown
		case model.OpSet:
			// A "set" seed's direction depends on the node's normal range,
			// which the rule engine does not have access to; treat it as
			// unresolved for `when` purposes rather than guessing.
		}
	}

	ec := evalContext{context: context, seeds: seeds}

	var out []EvaluatedPerturbation
	var warnings []string

	for _, rule := range graphRules {
		expr, err := Parse(rule.When)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("rule %s: %v", rule.ID, err))
			continue
		}
		if !expr.eval(ec) {
			continue
		}
		for nodeID, opStr := range rule.Then {
			pert, err := parseThenOp(nodeID, opStr)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("rule %s: %v", rule.ID, err))
				continue
			}
			out = append(out, EvaluatedPerturbation{Perturbation: pert, RuleID: rule.ID})
		}
	}

	return out, warnings
}

// parseThenOp parses a `then` mapping value, which is either one of
// "increase"/"decrease"/"block" or "set <value>".
func parseThenOp(nodeID, opStr string) (model.Perturbation, error) {
	fields := strings.Fields(opStr)
	if len(fields) == 0 {
		return model.Perturbation{}, fmt.Errorf("then[%s]: empty operation", nodeID)
	}

	op := model.PerturbationOp(fields[0])
	switch op {
	case model.OpIncrease, model.OpDecrease, model.OpBlock:
		return model.Perturbation{NodeID: nodeID, Op: op}, nil
	case model.OpSet:
		if len(fields) != 2 {
			return model.Perturbation{}, fmt.Errorf("then[%s]: \"set\" requires exactly one value", nodeID)
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return model.Perturbation{}, fmt.Errorf("then[%s]: invalid set value %q", nodeID, fields[1])
		}
		return model.Perturbation{NodeID: nodeID, Op: op, Value: &v}, nil
	default:
		return model.Perturbation{}, fmt.Errorf("then[%s]: unknown operation %q", nodeID, opStr)
	}
}

// Merge combines rule-contributed perturbations with user perturbations.
// User perturbations always win on a node id conflict.
func Merge(userPerturbations []model.Perturbation, ruleContributed []EvaluatedPerturbation) []model.Perturbation {
	seen := make(map[string]bool, len(userPerturbations))
	out := make([]model.Perturbation, 0, len(userPerturbations)+len(ruleContributed))
	for _, p := range userPerturbations {
		seen[p.NodeID] = true
		out = append(out, p)
	}
	for _, rp := range ruleContributed {
		if seen[rp.NodeID] {
			continue
		}
		seen[rp.NodeID] = true
		out = append(out, rp.Perturbation)
	}
	return out
}
