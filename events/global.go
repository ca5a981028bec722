package events

import (
	"context"
	"sync/atomic"
)

// sinkKey is the context key under which the current sink is installed.
// Using context.Context for propagation gives task-local inheritance with
// explicit child-task propagation for free: a child context derived from one
// carrying a sink automatically sees it, and a goroutine that forgets to
// thread ctx through simply sees no sink (falls back to global, then no-op)
// rather than silently observing an unrelated run's sink.
type sinkKey struct{}

// WithSink returns a child of ctx with sink installed as the current sink.
func WithSink(ctx context.Context, sink Sink) context.Context {
	return context.WithValue(ctx, sinkKey{}, sink)
}

// globalSink is a process-wide fallback used only when no sink has been
// installed on the context. It exists for callers that cannot thread a
// context (e.g. package-level helpers invoked outside a run); using it in
// place of context propagation breaks isolation between concurrent runs and
// should be treated as opt-in, not the default wiring.
var globalSink atomic.Value // holds Sink

// SetGlobal installs a process-wide fallback sink. Prefer WithSink for
// per-run isolation; reserve SetGlobal for single-run processes and tests.
func SetGlobal(sink Sink) {
	globalSink.Store(&sink)
}

// ClearGlobal removes the process-wide fallback sink.
func ClearGlobal() {
	globalSink.Store((*Sink)(nil))
}

// Current returns the sink installed on ctx, falling back to the global
// sink, falling back to NoOpSink if neither is set.
func Current(ctx context.Context) Sink {
	if sink, ok := ctx.Value(sinkKey{}).(Sink); ok && sink != nil {
		return sink
	}
	if v, _ := globalSink.Load().(*Sink); v != nil && *v != nil {
		return *v
	}
	return NoOpSink{}
}
