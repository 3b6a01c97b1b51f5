package rules

import "github.com/lattice-health/physioreason/pkg/model"

// contextEffect is one baseline shift a clinical context flag applies before
// any user perturbation is considered.
type contextEffect struct {
	nodeID string
	op     model.PerturbationOp
}

// ContextBaselineEffects are the physiologic shifts already in effect when a
// clinical context flag is selected, independent of what the user
// perturbs.
var ContextBaselineEffects = map[string][]contextEffect{
	"ace_inhibitor": {
		{"renal.raas.at1_receptor", model.OpDecrease},
		{"renal.raas.aldosterone", model.OpDecrease},
	},
	"beta_blocker": {
		{"cardio.signaling.gs_protein", model.OpDecrease},
		{"cardio.hemodynamics.heart_rate", model.OpDecrease},
	},
	"heart_failure": {
		{"cardio.hemodynamics.stroke_volume", model.OpDecrease},
		{"cardio.metabolism.myocardial_o2_supply", model.OpDecrease},
		{"renal.metabolism.anp_bnp", model.OpIncrease},
	},
	"dehydration": {
		{"renal.volume.ecf_volume", model.OpDecrease},
		{"renal.metabolism.osmolarity", model.OpIncrease},
		{"renal.metabolism.adh", model.OpIncrease},
	},
	"ckd": {
		{"renal.tubule.na_reabsorption", model.OpDecrease},
		{"renal.metabolism.potassium", model.OpIncrease},
	},
	"copd": {
		{"pulm.mechanics.resistance", model.OpIncrease},
		{"pulm.gasexchange.vq_mismatch", model.OpIncrease},
		{"pulm.gasexchange.diffusion_capacity", model.OpDecrease},
	},
}

// ApplyContextBaselines injects the baseline perturbations for every active
// context flag, ahead of the user's own perturbations. A user perturbation
// on a node always wins over a context default for that same node.
func ApplyContextBaselines(perturbations []model.Perturbation, context map[string]bool) []model.Perturbation {
	merged := make([]model.Perturbation, len(perturbations))
	copy(merged, perturbations)

	userNodes := make(map[string]bool, len(perturbations))
	for _, p := range perturbations {
		userNodes[p.NodeID] = true
	}
	added := make(map[string]bool)

	for flag, effects := range ContextBaselineEffects {
		if !context[flag] {
			continue
		}
		for _, effect := range effects {
			if userNodes[effect.nodeID] || added[effect.nodeID] {
				continue
			}
			merged = append(merged, model.Perturbation{NodeID: effect.nodeID, Op: effect.op})
			added[effect.nodeID] = true
		}
	}

	return merged
}
