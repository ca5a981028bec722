package pipectx

import (
	"context"
	"sync"

	"github.com/stageflow/stageflow/events"
)

// DictContextAdapter is a degenerate context backed by a flat key/value map,
// for callers (tool handlers invoked outside a full pipeline run, unit
// tests) that need the context bag's get/set shape without a graph, an
// output bag, or a cancellation token. Event emission never raises: with no
// sink installed it silently discards, matching PipelineContext's fallback
// to events.NoOpSink.
type DictContextAdapter struct {
	mu   sync.RWMutex
	data map[string]any
	sink events.Sink
}

// NewDictContextAdapter constructs an adapter over an empty map, optionally
// wired to sink (nil installs a no-op sink).
func NewDictContextAdapter(sink events.Sink) *DictContextAdapter {
	if sink == nil {
		sink = events.NoOpSink{}
	}
	return &DictContextAdapter{data: make(map[string]any), sink: sink}
}

// Get returns the value stored under key.
func (a *DictContextAdapter) Get(key string) (any, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.data[key]
	return v, ok
}

// Set stores value under key, overwriting any prior value. Unlike
// ContextBag, the adapter has no conflict detection: it is a flat scratch
// map, not a run's shared state.
func (a *DictContextAdapter) Set(key string, value any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data[key] = value
}

// ToDict returns a snapshot copy of the adapter's contents.
func (a *DictContextAdapter) ToDict() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]any, len(a.data))
	for k, v := range a.data {
		out[k] = v
	}
	return out
}

// Emit delivers name/data through the adapter's sink. It never raises: a
// panicking or erroring downstream sink is the sink's own problem, not the
// adapter's.
func (a *DictContextAdapter) Emit(ctx context.Context, name string, data map[string]any) {
	defer func() { _ = recover() }()
	a.sink.Emit(ctx, name, data)
}

// TryEmit attempts non-blocking delivery through the adapter's sink,
// reporting false on any failure including a recovered panic.
func (a *DictContextAdapter) TryEmit(ctx context.Context, name string, data map[string]any) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return a.sink.TryEmit(ctx, name, data)
}
