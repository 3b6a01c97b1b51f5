// Package validation validates the HTTP-facing request DTOs before they
// reach the propagation engine, in the same struct-tag-plus-manual-checks
// style used for storage requests in the graph-database lineage this
// package descends from.
package validation

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate

	nodeIDPattern = regexp.MustCompile(`^[a-z0-9]+(\.[a-z0-9_]+)*$`)

	// MaxPerturbations bounds the size of a single simulation request.
	MaxPerturbations = 50
	// MaxHopsCeiling is the largest max_hops an option set may request.
	MaxHopsCeiling = 50
)

func init() {
	validate = validator.New()
}

// PerturbationRequest mirrors model.Perturbation for wire-level validation.
type PerturbationRequest struct {
	NodeID string   `json:"node_id" validate:"required"`
	Op     string   `json:"op" validate:"required,oneof=increase decrease block set"`
	Value  *float64 `json:"value,omitempty"`
}

// SimulationOptionsRequest mirrors model.SimulationOptions for wire-level validation.
type SimulationOptionsRequest struct {
	MaxHops         int     `json:"max_hops" validate:"required,min=0"`
	MinConfidence   float64 `json:"min_confidence" validate:"gte=0,lte=1"`
	TimeWindow      string  `json:"time_window" validate:"required,oneof=immediate minutes hours days all"`
	DimUnaffected   bool    `json:"dim_unaffected"`
	ConflictEpsilon float64 `json:"conflict_epsilon" validate:"gte=0,lte=1"`
}

// SimulationRequestPayload mirrors model.SimulationRequest for wire-level validation.
type SimulationRequestPayload struct {
	Perturbations []PerturbationRequest    `json:"perturbations" validate:"omitempty,dive"`
	Context       map[string]bool          `json:"context"`
	Options       SimulationOptionsRequest `json:"options"`
}

// ValidateSimulationRequest validates a decoded simulation request payload.
func ValidateSimulationRequest(req *SimulationRequestPayload) error {
	if req == nil {
		return errors.New("simulation request cannot be nil")
	}

	if err := validate.Struct(req); err != nil {
		return formatValidationError(err)
	}

	if len(req.Perturbations) > MaxPerturbations {
		return fmt.Errorf("perturbations: at most %d allowed, got %d", MaxPerturbations, len(req.Perturbations))
	}
	for i, p := range req.Perturbations {
		if err := ValidateNodeID(p.NodeID); err != nil {
			return fmt.Errorf("perturbations[%d]: %w", i, err)
		}
		if p.Op == "set" && p.Value == nil {
			return fmt.Errorf("perturbations[%d]: op \"set\" requires a value", i)
		}
	}

	if req.Options.MaxHops > MaxHopsCeiling {
		return fmt.Errorf("options.max_hops: must not exceed %d, got %d", MaxHopsCeiling, req.Options.MaxHops)
	}

	return nil
}

// ValidateNodeID validates a dotted node identifier.
func ValidateNodeID(id string) error {
	if id == "" {
		return errors.New("node id cannot be empty")
	}
	if !nodeIDPattern.MatchString(id) {
		return fmt.Errorf("node id %q must be lowercase dot-separated segments", id)
	}
	return nil
}

// formatValidationError converts validator errors into a single readable message.
func formatValidationError(err error) error {
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	for _, e := range validationErrs {
		field := e.Field()
		tag := e.Tag()
		param := e.Param()

		switch tag {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "oneof":
			return fmt.Errorf("%s: must be one of [%s]", field, param)
		case "min":
			return fmt.Errorf("%s: must be at least %s", field, param)
		case "gte":
			return fmt.Errorf("%s: must be >= %s", field, param)
		case "lte":
			return fmt.Errorf("%s: must be <= %s", field, param)
		case "dive":
			return fmt.Errorf("%s: invalid element", field)
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, tag)
		}
	}

	return err
}
