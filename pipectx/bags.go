// Package pipectx holds the mutable per-run state a pipeline execution
// shares across its stages: the thread-safe context and output bags, the
// declared-dependency view handed to each stage, and the PipelineContext /
// StageContext handles stages actually see.
package pipectx

import (
	"reflect"
	"sync"

	"github.com/stageflow/stageflow/errs"
	"github.com/stageflow/stageflow/stage"
)

// ContextBag is a thread-safe key/value store shared by every stage in a
// run. Set fails with a DataConflictError if key already holds a value;
// bags never silently overwrite.
type ContextBag struct {
	mu   sync.RWMutex
	data map[string]any
}

// NewContextBag constructs an empty ContextBag.
func NewContextBag() *ContextBag {
	return &ContextBag{data: make(map[string]any)}
}

// Set stores value under key, failing if key is already present.
func (b *ContextBag) Set(key string, value any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.data[key]; exists {
		return &errs.DataConflictError{Key: key}
	}
	b.data[key] = value
	return nil
}

// Get returns the value stored under key, if any.
func (b *ContextBag) Get(key string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.data[key]
	return v, ok
}

// ToDict returns a shallow snapshot copy of the bag's contents.
func (b *ContextBag) ToDict() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]any, len(b.data))
	for k, v := range b.data {
		out[k] = v
	}
	return out
}

// outputKey identifies an entry in OutputBag.
type outputKey struct {
	stage   string
	attempt int
}

// WriteKind distinguishes the write discipline OutputBag.Set should apply:
// a plain write rejects any conflicting existing entry, a retry write may
// overwrite its own stage's prior attempt, and a guard write may overwrite
// the guard's own prior attempt until it finalizes.
type WriteKind int

const (
	// WriteNormal rejects overwriting an existing (stage, attempt) entry.
	WriteNormal WriteKind = iota
	// WriteRetry permits overwriting the latest attempt for the same stage
	// while the stage is still being retried.
	WriteRetry
	// WriteGuard permits overwriting a guard stage's own prior attempt
	// until the guard finalizes.
	WriteGuard
)

// OutputBag is an append-only, thread-safe store of stage outputs keyed by
// (stage_name, attempt). Conflicting writes to an already-finalized key
// fail with an OutputConflictError; retry and guard writes may overwrite an
// existing entry for the same key until that stage finalizes.
type OutputBag struct {
	mu        sync.RWMutex
	entries   map[outputKey]stage.Output
	finalized map[string]bool
}

// NewOutputBag constructs an empty OutputBag.
func NewOutputBag() *OutputBag {
	return &OutputBag{
		entries:   make(map[outputKey]stage.Output),
		finalized: make(map[string]bool),
	}
}

// Set records out as stageName's output for attempt. kind determines whether
// an existing entry for the same key may be overwritten.
func (b *OutputBag) Set(stageName string, attempt int, out stage.Output, kind WriteKind) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := outputKey{stage: stageName, attempt: attempt}
	existing, exists := b.entries[key]
	if exists && b.finalized[stageName] {
		if !reflect.DeepEqual(existing, out) {
			return &errs.OutputConflictError{Stage: stageName, Attempt: attempt}
		}
		return nil
	}
	if exists && kind == WriteNormal && !reflect.DeepEqual(existing, out) {
		return &errs.OutputConflictError{Stage: stageName, Attempt: attempt}
	}
	b.entries[key] = out
	return nil
}

// Finalize marks stageName's output as terminal: a later Set that would
// change an entry already recorded for the stage is rejected unless the
// payload is identical; an attempt with no recorded entry can still be
// written.
func (b *OutputBag) Finalize(stageName string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.finalized[stageName] = true
}

// Get returns the output recorded for (stageName, attempt).
func (b *OutputBag) Get(stageName string, attempt int) (stage.Output, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out, ok := b.entries[outputKey{stage: stageName, attempt: attempt}]
	return out, ok
}

// Latest returns the highest-attempt output recorded for stageName.
func (b *OutputBag) Latest(stageName string) (stage.Output, int, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	best := -1
	var bestOut stage.Output
	for k, v := range b.entries {
		if k.stage == stageName && k.attempt > best {
			best = k.attempt
			bestOut = v
		}
	}
	return bestOut, best, best >= 0
}

// ToDict returns a snapshot of the bag keyed by stage name to its latest
// attempt's result data, the shape stage.Output.Data() exposes.
func (b *OutputBag) ToDict() map[string]map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	latest := make(map[string]int)
	for k := range b.entries {
		if a, ok := latest[k.stage]; !ok || k.attempt > a {
			latest[k.stage] = k.attempt
		}
	}
	out := make(map[string]map[string]any, len(latest))
	for name, attempt := range latest {
		out[name] = b.entries[outputKey{stage: name, attempt: attempt}].Data()
	}
	return out
}
