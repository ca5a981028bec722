package subpipeline_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stageflow/stageflow/cancel"
	"github.com/stageflow/stageflow/errs"
	"github.com/stageflow/stageflow/identity"
	"github.com/stageflow/stageflow/pipectx"
	"github.com/stageflow/stageflow/scheduler"
	"github.com/stageflow/stageflow/subpipeline"
)

type recordingSink struct {
	mu     sync.Mutex
	events []string
}

func (s *recordingSink) Emit(_ context.Context, name string, _ map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, name)
}
func (s *recordingSink) TryEmit(ctx context.Context, name string, data map[string]any) bool {
	s.Emit(ctx, name, data)
	return true
}
func (s *recordingSink) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	copy(out, s.events)
	return out
}

func newRoot(sink *recordingSink) *pipectx.PipelineContext {
	snap := identity.CreateSnapshot(identity.RunIdentity{PipelineRunID: "root"})
	return pipectx.New(snap, "parent-topology", "", sink, cancel.NewToken(nil))
}

func TestSpawnerLinksAndEmitsChildCompleted(t *testing.T) {
	sink := &recordingSink{}
	root := newRoot(sink)
	spawner := subpipeline.NewSpawner()

	childSnap := identity.CreateSnapshot(identity.RunIdentity{PipelineRunID: "child-1"})
	result, err := spawner.Spawn(context.Background(), root, childSnap, "child-topology", "", func(ctx context.Context, child *pipectx.PipelineContext) (scheduler.RunResult, error) {
		assert.Equal(t, root, child.Parent())
		return scheduler.RunResult{Status: "completed"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "completed", result.Status)
	assert.Equal(t, []string{"pipeline.spawned_child", "pipeline.child_completed"}, sink.names())
	assert.Empty(t, spawner.Tracker().Children("root"), "child link is removed once the run finishes")
}

func TestSpawnerEmitsChildFailedOnFailedStatus(t *testing.T) {
	sink := &recordingSink{}
	root := newRoot(sink)
	spawner := subpipeline.NewSpawner()

	childSnap := identity.CreateSnapshot(identity.RunIdentity{PipelineRunID: "child-2"})
	result, err := spawner.Spawn(context.Background(), root, childSnap, "child-topology", "", func(ctx context.Context, child *pipectx.PipelineContext) (scheduler.RunResult, error) {
		return scheduler.RunResult{Status: "failed"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "failed", result.Status)
	assert.Equal(t, []string{"pipeline.spawned_child", "pipeline.child_failed"}, sink.names())
}

func TestSpawnerEmitsCancelledOnPipelineCancelledError(t *testing.T) {
	sink := &recordingSink{}
	root := newRoot(sink)
	spawner := subpipeline.NewSpawner()

	childSnap := identity.CreateSnapshot(identity.RunIdentity{PipelineRunID: "child-3"})
	_, err := spawner.Spawn(context.Background(), root, childSnap, "child-topology", "", func(ctx context.Context, child *pipectx.PipelineContext) (scheduler.RunResult, error) {
		return scheduler.RunResult{Status: "canceled"}, &errs.PipelineCancelledError{Reason: "user-request"}
	})
	require.Error(t, err)
	assert.Equal(t, []string{"pipeline.spawned_child", "pipeline.cancelled"}, sink.names())
}

func TestSpawnerCascadesParentCancellationToChildToken(t *testing.T) {
	sink := &recordingSink{}
	root := newRoot(sink)
	spawner := subpipeline.NewSpawner()

	childSnap := identity.CreateSnapshot(identity.RunIdentity{PipelineRunID: "child-4"})
	var childToken *cancel.Token
	_, err := spawner.Spawn(context.Background(), root, childSnap, "child-topology", "", func(ctx context.Context, child *pipectx.PipelineContext) (scheduler.RunResult, error) {
		childToken = child.Token()
		root.Token().Cancel("shutting down")
		return scheduler.RunResult{Status: "canceled"}, &errs.PipelineCancelledError{Reason: "shutting down"}
	})
	require.Error(t, err)
	require.NotNil(t, childToken)
	assert.True(t, childToken.Canceled())
	assert.Equal(t, "shutting down", childToken.Reason())
}

func TestSpawnerRejectsSpawnBeyondMaxDepth(t *testing.T) {
	sink := &recordingSink{}
	root := newRoot(sink)
	spawner := subpipeline.NewSpawner(subpipeline.WithMaxDepth(1))

	child1Snap := identity.CreateSnapshot(identity.RunIdentity{PipelineRunID: "child-1"})
	var grandchildErr error
	_, err := spawner.Spawn(context.Background(), root, child1Snap, "t", "", func(ctx context.Context, child *pipectx.PipelineContext) (scheduler.RunResult, error) {
		grandchildSnap := identity.CreateSnapshot(identity.RunIdentity{PipelineRunID: "grandchild-1"})
		_, grandchildErr = spawner.Spawn(ctx, child, grandchildSnap, "t", "", func(ctx context.Context, gc *pipectx.PipelineContext) (scheduler.RunResult, error) {
			t.Fatal("grandchild should not have run")
			return scheduler.RunResult{}, nil
		})
		return scheduler.RunResult{Status: "completed"}, nil
	})
	require.NoError(t, err)
	require.Error(t, grandchildErr)
	var depthErr *errs.MaxDepthExceededError
	require.ErrorAs(t, grandchildErr, &depthErr)
	assert.Equal(t, 2, depthErr.Depth)
	assert.Equal(t, 1, depthErr.MaxDepth)
}
