// internal/shipper/middleware.go

package shipper

import (
	"fmt"
	"sync"

	"github.com/orgoj/hecship/internal/config"
	"github.com/orgoj/hecship/internal/event"
)

// Middleware is one transform step in the pipeline. A step may mutate the
// context in place; returning a non-nil error aborts the chain and the
// flush makes no network attempt. There is no timeout around a step: one
// that blocks forever stalls its flush indefinitely.
type Middleware func(ctx *event.Context) error

// MiddlewareError wraps an error raised by a pipeline step. It is routed
// only to the error sink.
type MiddlewareError struct {
	Step int // zero-based registration index of the failing step
	Err  error
}

func (e *MiddlewareError) Error() string {
	return fmt.Sprintf("middleware step %d failed: %v", e.Step, e.Err)
}

func (e *MiddlewareError) Unwrap() error {
	return e.Err
}

// pipeline is an ordered sequence of transform steps. Registration order is
// execution order; steps cannot be removed.
type pipeline struct {
	mu    sync.Mutex
	steps []Middleware
}

func newPipeline() *pipeline {
	return &pipeline{}
}

// register appends a step.
func (p *pipeline) register(step Middleware) error {
	if step == nil {
		return &config.ConfigError{Field: "middleware", Reason: "step must be a non-nil function"}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.steps = append(p.steps, step)
	return nil
}

// run applies every step to ctx, strictly in registration order and never
// concurrently. The first error short-circuits the chain; mutations already
// applied remain visible on ctx.
func (p *pipeline) run(ctx *event.Context) error {
	p.mu.Lock()
	steps := p.steps
	p.mu.Unlock()

	for i, step := range steps {
		if err := step(ctx); err != nil {
			return &MiddlewareError{Step: i, Err: err}
		}
	}
	return nil
}
