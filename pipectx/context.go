package pipectx

import (
	"context"
	"sync/atomic"

	"github.com/stageflow/stageflow/cancel"
	"github.com/stageflow/stageflow/events"
	"github.com/stageflow/stageflow/identity"
)

// PipelineContext is the mutable per-run state shared by every stage task in
// a single pipeline execution. Its snapshot field must never be mutated in
// place; the immutability interceptor asserts equality across a stage call
// to catch violations.
type PipelineContext struct {
	snapshot      identity.Snapshot
	topology      string
	executionMode string

	contextBag *ContextBag
	outputBag  *OutputBag

	sink  events.Sink
	token *cancel.Token

	canceled atomic.Bool

	parent *PipelineContext
}

// New constructs a root PipelineContext (no parent) for a fresh run.
func New(snapshot identity.Snapshot, topology, executionMode string, sink events.Sink, token *cancel.Token) *PipelineContext {
	if sink == nil {
		sink = events.NoOpSink{}
	}
	return &PipelineContext{
		snapshot:      snapshot,
		topology:      topology,
		executionMode: executionMode,
		contextBag:    NewContextBag(),
		outputBag:     NewOutputBag(),
		sink:          sink,
		token:         token,
	}
}

// NewChild constructs a sub-pipeline's PipelineContext, linking parent so
// cascading cancellation and diagnostics can trace the run tree. The child
// gets its own bags: a sub-pipeline does not share its parent's context or
// output bag.
func (p *PipelineContext) NewChild(snapshot identity.Snapshot, topology, executionMode string, sink events.Sink, token *cancel.Token) *PipelineContext {
	child := New(snapshot, topology, executionMode, sink, token)
	child.parent = p
	return child
}

// Snapshot returns the run's immutable context snapshot.
func (p *PipelineContext) Snapshot() identity.Snapshot { return p.snapshot }

// Topology returns the pipeline topology name, if set.
func (p *PipelineContext) Topology() string { return p.topology }

// ExecutionMode returns the run's execution mode, used by the tool
// executor's allowed-behaviors gate.
func (p *PipelineContext) ExecutionMode() string { return p.executionMode }

// ContextBag returns the run's shared key/value store.
func (p *PipelineContext) ContextBag() *ContextBag { return p.contextBag }

// OutputBag returns the run's append-only stage output store.
func (p *PipelineContext) OutputBag() *OutputBag { return p.outputBag }

// Sink returns the event sink this run emits into.
func (p *PipelineContext) Sink() events.Sink { return p.sink }

// Token returns the run's cancellation token.
func (p *PipelineContext) Token() *cancel.Token { return p.token }

// Parent returns the enclosing run's PipelineContext, or nil if this is a
// root run.
func (p *PipelineContext) Parent() *PipelineContext { return p.parent }

// Canceled reports the run's cancellation flag. This is distinct from
// Token().Canceled(): the flag is set by the scheduler once it has begun
// unwinding on cancellation, after which new stage launches are blocked.
func (p *PipelineContext) Canceled() bool { return p.canceled.Load() }

// MarkCanceled sets the run's cancellation flag.
func (p *PipelineContext) MarkCanceled() { p.canceled.Store(true) }

// Emit blocks delivering name/data through the run's sink.
func (p *PipelineContext) Emit(ctx context.Context, name string, data map[string]any) {
	p.sink.Emit(ctx, name, data)
}

// TryEmit delivers name/data through the run's sink without blocking.
func (p *PipelineContext) TryEmit(ctx context.Context, name string, data map[string]any) bool {
	return p.sink.TryEmit(ctx, name, data)
}

// StageContext is the per-stage view over PipelineContext a running stage
// actually receives: it adds the stage's name and its declared-dependency
// input projection.
type StageContext struct {
	*PipelineContext
	StageName string
	Inputs    StageInputs
	Attempt   int
	Kind      string
}

// NewStageContext builds the per-stage view for stageName's attempt-th
// execution, wiring inputs restricted to dependsOn. kind is the stage's
// classification (graph.StageSpec.Kind, passed as a string to avoid a
// pipectx -> graph import cycle).
func NewStageContext(pc *PipelineContext, stageName string, dependsOn []string, attempt int, strict bool, kind string) StageContext {
	return StageContext{
		PipelineContext: pc,
		StageName:       stageName,
		Inputs:          NewStageInputs(stageName, dependsOn, pc.outputBag, strict),
		Attempt:         attempt,
		Kind:            kind,
	}
}
