// internal/shipper/queue.go

package shipper

import (
	"sync"

	"github.com/orgoj/hecship/internal/event"
)

// accumulator holds pending contexts together with their precomputed
// serialized body sizes. Both slices grow and shrink in lockstep under one
// mutex, so no caller can ever observe a partial state.
type accumulator struct {
	mu       sync.Mutex
	contexts []*event.Context
	sizes    []int
}

func newAccumulator() *accumulator {
	return &accumulator{}
}

// enqueue appends ctx with its body size and returns the new cumulative
// size.
func (a *accumulator) enqueue(ctx *event.Context, size int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.contexts = append(a.contexts, ctx)
	a.sizes = append(a.sizes, size)
	return a.sumLocked()
}

// totalSize sums the recorded sizes. The sum is recomputed on every call
// rather than cached, so it self-corrects after any drain.
func (a *accumulator) totalSize() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sumLocked()
}

func (a *accumulator) sumLocked() int {
	total := 0
	for _, s := range a.sizes {
		total += s
	}
	return total
}

func (a *accumulator) length() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.contexts)
}

// drainAll atomically replaces the live slices with empty ones and returns
// the previous contents as a snapshot. The swap happens in one critical
// section before any asynchronous work begins, so a drained batch is fully
// decoupled from subsequent enqueues.
func (a *accumulator) drainAll() ([]*event.Context, []int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	contexts, sizes := a.contexts, a.sizes
	a.contexts, a.sizes = nil, nil
	return contexts, sizes
}

// takeNewest removes and returns only the most recently enqueued context,
// leaving older entries in place for a later flush. Returns nil when the
// queue is empty.
func (a *accumulator) takeNewest() *event.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := len(a.contexts)
	if n == 0 {
		return nil
	}
	ctx := a.contexts[n-1]
	a.contexts = a.contexts[:n-1]
	a.sizes = a.sizes[:n-1]
	return ctx
}
