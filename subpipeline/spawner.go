package subpipeline

import (
	"context"
	"errors"

	"github.com/stageflow/stageflow/cancel"
	"github.com/stageflow/stageflow/errs"
	"github.com/stageflow/stageflow/identity"
	"github.com/stageflow/stageflow/pipectx"
	"github.com/stageflow/stageflow/scheduler"
)

const defaultMaxDepth = 5

type (
	// Spawner runs child pipelines within a parent PipelineContext, enforcing
	// a maximum nesting depth and cascading the parent's cancellation token
	// into every child it creates.
	Spawner struct {
		maxDepth int
		tracker  *ChildRunTracker
	}

	// Option customizes a Spawner at construction time.
	Option func(*Spawner)

	// Runner executes a child pipeline to completion, returning its summary.
	// Typically *scheduler.Scheduler.Execute bound to the child's graph.
	Runner func(ctx context.Context, child *pipectx.PipelineContext) (scheduler.RunResult, error)
)

// WithMaxDepth overrides the default max nesting depth of 5.
func WithMaxDepth(n int) Option {
	return func(s *Spawner) { s.maxDepth = n }
}

// WithTracker supplies a shared ChildRunTracker, e.g. so a caller can
// traverse or report on the whole run tree. Defaults to a private tracker.
func WithTracker(tracker *ChildRunTracker) Option {
	return func(s *Spawner) { s.tracker = tracker }
}

// NewSpawner constructs a Spawner.
func NewSpawner(opts ...Option) *Spawner {
	s := &Spawner{maxDepth: defaultMaxDepth, tracker: NewChildRunTracker()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tracker returns the spawner's ChildRunTracker.
func (s *Spawner) Tracker() *ChildRunTracker { return s.tracker }

// Spawn builds a child PipelineContext under parent and runs it with run.
// Returns *errs.MaxDepthExceededError without running anything if spawning
// would exceed max_depth. The parent token's cancellation cascades into the
// child's token via a registered callback, and pipeline.spawned_child,
// pipeline.child_completed/child_failed, and pipeline.cancelled are emitted
// at the parent level around the run.
func (s *Spawner) Spawn(ctx context.Context, parent *pipectx.PipelineContext, snapshot identity.Snapshot, topology, executionMode string, run Runner) (scheduler.RunResult, error) {
	depth := depthOf(parent) + 1
	if depth > s.maxDepth {
		return scheduler.RunResult{}, &errs.MaxDepthExceededError{Depth: depth, MaxDepth: s.maxDepth}
	}

	childToken := cancel.NewToken(nil)
	child := parent.NewChild(snapshot, topology, executionMode, parent.Sink(), childToken)

	parentID := parent.Snapshot().Identity().PipelineRunID
	childID := snapshot.Identity().PipelineRunID
	s.tracker.Link(parentID, childID, depth)
	defer s.tracker.Unlink(childID)

	parent.Token().OnCancel(func(reason string) {
		childToken.Cancel(reason)
	})

	parent.Emit(ctx, "pipeline.spawned_child", map[string]any{
		"parent_run_id": parentID,
		"child_run_id":  childID,
		"depth":         depth,
		"topology":      topology,
	})

	result, err := run(ctx, child)

	var cancelledErr *errs.PipelineCancelledError
	switch {
	case errors.As(err, &cancelledErr):
		parent.Emit(ctx, "pipeline.cancelled", map[string]any{
			"parent_run_id": parentID,
			"child_run_id":  childID,
			"reason":        cancelledErr.Reason,
		})
	case err != nil || result.Status == "failed":
		payload := map[string]any{"parent_run_id": parentID, "child_run_id": childID, "status": result.Status}
		if err != nil {
			payload["error"] = err.Error()
		}
		parent.Emit(ctx, "pipeline.child_failed", payload)
	default:
		parent.Emit(ctx, "pipeline.child_completed", map[string]any{
			"parent_run_id": parentID,
			"child_run_id":  childID,
			"status":        result.Status,
		})
	}

	return result, err
}

// depthOf counts how many ancestor PipelineContexts pc has; a root context
// (no parent) is depth 0.
func depthOf(pc *pipectx.PipelineContext) int {
	depth := 0
	for p := pc.Parent(); p != nil; p = p.Parent() {
		depth++
	}
	return depth
}
