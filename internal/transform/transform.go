// internal/transform/transform.go

// Package transform provides the built-in middleware steps that can be
// registered on a shipper pipeline, either directly or from config specs.
package transform

import (
	"fmt"

	"github.com/orgoj/hecship/internal/config"
	"github.com/orgoj/hecship/internal/shipper"
)

// FromSpecs builds middleware from validated config specs, preserving the
// config order as the registration order.
func FromSpecs(specs []config.TransformSpec) ([]shipper.Middleware, error) {
	steps := make([]shipper.Middleware, 0, len(specs))
	for i, spec := range specs {
		var step shipper.Middleware
		var err error

		switch spec.Type {
		case "truncate":
			step, err = Truncate(spec.Limit)
		case "static":
			step, err = Static(spec.Name, spec.Value)
		case "filter":
			step, err = Filter(spec.Field, spec.Patterns)
		default:
			err = fmt.Errorf("unknown transform type '%s'", spec.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("transforms[%d]: %w", i, err)
		}
		steps = append(steps, step)
	}
	return steps, nil
}
