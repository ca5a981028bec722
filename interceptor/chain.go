// Package interceptor implements the middleware chain that wraps every
// stage invocation: retry with backoff/jitter, idempotency caching, and the
// immutability/context-size hardening checks.
package interceptor

import (
	"sort"

	"github.com/stageflow/stageflow/pipectx"
	"github.com/stageflow/stageflow/stage"
)

// Next invokes the stage itself, or the next interceptor in the chain.
type Next func() stage.Output

// Interceptor wraps a stage invocation. Around may short-circuit by
// returning without calling next, or call next and observe/transform its
// result. Interceptors run in ascending Priority order on entry and
// descending order on exit (each Around call nests the next).
type Interceptor interface {
	Priority() int
	Around(sctx pipectx.StageContext, next Next) stage.Output
}

// Chain is an ordered, immutable sequence of interceptors.
type Chain struct {
	interceptors []Interceptor
}

// NewChain builds a Chain from interceptors, sorted by ascending priority.
// Equal priorities preserve the order passed in (stable sort), matching the
// scheduler's declaration-order tie-break philosophy.
func NewChain(interceptors ...Interceptor) *Chain {
	sorted := append([]Interceptor(nil), interceptors...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})
	return &Chain{interceptors: sorted}
}

// Execute runs sctx through every interceptor in priority order, with
// runner as the innermost Next.
func (c *Chain) Execute(sctx pipectx.StageContext, runner Next) stage.Output {
	next := runner
	for i := len(c.interceptors) - 1; i >= 0; i-- {
		interceptor := c.interceptors[i]
		captured := next
		next = func() stage.Output { return interceptor.Around(sctx, captured) }
	}
	return next()
}
