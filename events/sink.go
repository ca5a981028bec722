// Package events defines the event sink contract stageflow pipelines emit
// into: stage lifecycle events, pipeline-wide summaries, and diagnostic
// events from the interceptor chain and tool executor. Sinks must never
// raise into callers; delivery failures are logged and, where applicable,
// reflected in sink metrics instead.
package events

import "context"

// Sink is the contract every event destination implements. Emit is the
// blocking, always-attempted form; TryEmit is the non-blocking,
// backpressure-aware form used on hot paths that must never stall.
type Sink interface {
	// Emit delivers data under name, blocking if the sink needs to (e.g. to
	// enqueue behind a full buffer). It never returns an error to the caller;
	// delivery failures are the sink's own concern.
	Emit(ctx context.Context, name string, data map[string]any)
	// TryEmit attempts non-blocking delivery and reports whether the event
	// was accepted. A false return means the event was dropped.
	TryEmit(ctx context.Context, name string, data map[string]any) bool
}

// NoOpSink discards every event. It is the zero value returned by Current
// when no sink has been installed.
type NoOpSink struct{}

// Emit implements Sink by discarding the event.
func (NoOpSink) Emit(context.Context, string, map[string]any) {}

// TryEmit implements Sink by discarding the event and reporting success,
// matching the contract that a no-op sink never signals backpressure.
func (NoOpSink) TryEmit(context.Context, string, map[string]any) bool { return true }
