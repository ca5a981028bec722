package cancel

import (
	"context"
	"fmt"
	"time"
)

// CleanupFunc releases a resource registered with a CleanupRegistry. ctx
// carries the per-callback timeout budget computed by RunAll.
type CleanupFunc func(ctx context.Context) error

// minCleanupTimeout is the floor RunAll applies to each callback's budget so
// a large n (or a near-zero totalTimeout) never starves a callback down to
// nothing.
const minCleanupTimeout = 10 * time.Millisecond

// Registry is a LIFO stack of cleanup callbacks. Callbacks run in reverse
// registration order so that the resource acquired last (and therefore most
// likely to depend on nothing acquired after it) is released first.
type Registry struct {
	entries []entry
	logger  Logger
}

type entry struct {
	name string
	fn   CleanupFunc
}

// NewRegistry constructs an empty cleanup registry. logger may be nil.
func NewRegistry(logger Logger) *Registry {
	return &Registry{logger: logger}
}

// Register pushes fn onto the stack. name is used only for diagnostics; pass
// "" if no name is meaningful.
func (r *Registry) Register(fn CleanupFunc, name string) {
	if fn == nil {
		return
	}
	r.entries = append(r.entries, entry{name: name, fn: fn})
}

// RunAll executes every registered callback in LIFO order and then clears the
// registry. Each callback is capped at max(minCleanupTimeout, remaining /
// remainingCount), recomputed before every callback rather than divided
// once upfront, so a callback that finishes quickly does not shrink the
// budget available to callbacks that still haven't run. Callback failures
// (returned errors, panics, or timeouts) are collected, not re-raised; RunAll
// starts every registered callback, and a callback that exceeds its budget is
// recorded as timed out and not awaited further.
func (r *Registry) RunAll(ctx context.Context, totalTimeout time.Duration) []error {
	entries := r.entries
	r.entries = nil

	var failures []error
	deadline := time.Now().Add(totalTimeout)
	for i := len(entries) - 1; i >= 0; i-- {
		remaining := i + 1
		budget := time.Until(deadline) / time.Duration(remaining)
		if budget < minCleanupTimeout {
			budget = minCleanupTimeout
		}
		if err := r.runOne(ctx, entries[i], budget); err != nil {
			failures = append(failures, err)
		}
	}
	return failures
}

func (r *Registry) runOne(ctx context.Context, e entry, budget time.Duration) error {
	cbCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				errCh <- fmt.Errorf("cleanup %q panicked: %v", e.name, rec)
				return
			}
		}()
		errCh <- e.fn(cbCtx)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			if r.logger != nil {
				r.logger.Error(ctx, "cleanup callback failed", "name", e.name, "err", err.Error())
			}
			return fmt.Errorf("cleanup %q: %w", e.name, err)
		}
		return nil
	case <-cbCtx.Done():
		if r.logger != nil {
			r.logger.Error(ctx, "cleanup callback timed out", "name", e.name, "budget", budget.String())
		}
		return fmt.Errorf("cleanup %q: timed out after %s", e.name, budget)
	}
}

// Len reports how many callbacks are currently registered.
func (r *Registry) Len() int { return len(r.entries) }
