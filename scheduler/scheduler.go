package scheduler

import (
	"context"
	"sort"

	"github.com/stageflow/stageflow/errs"
	"github.com/stageflow/stageflow/graph"
	"github.com/stageflow/stageflow/interceptor"
	"github.com/stageflow/stageflow/pipectx"
	"github.com/stageflow/stageflow/stage"
)

// Scheduler is the unified DAG scheduler (spec §4.2). Construct with
// NewScheduler and Options; a single Scheduler value is reusable across runs
// since it holds no per-run state.
type Scheduler struct {
	graph        *graph.StageGraph
	chain        *interceptor.Chain
	failureMode  FailureMode
	strictInputs bool
	pipelineName string
	legacy       bool
}

// Option customizes a Scheduler at construction.
type Option func(*Scheduler)

// WithFailureMode sets the pipeline-level failure policy. Defaults to
// BestEffort.
func WithFailureMode(mode FailureMode) Option {
	return func(s *Scheduler) { s.failureMode = mode }
}

// WithStrictInputs controls whether launched stages get a strict-mode
// StageInputs view (undeclared dependency access fails loudly). Defaults to
// true.
func WithStrictInputs(strict bool) Option {
	return func(s *Scheduler) { s.strictInputs = strict }
}

// WithPipelineName overrides the name reported in pipeline.wide; defaults to
// the run's PipelineContext.Topology(), falling back to "pipeline".
func WithPipelineName(name string) Option {
	return func(s *Scheduler) { s.pipelineName = name }
}

// NewScheduler constructs a unified Scheduler over g, running every launched
// stage through chain. strictInputs defaults to true.
func NewScheduler(g *graph.StageGraph, chain *interceptor.Chain, opts ...Option) *Scheduler {
	s := &Scheduler{graph: g, chain: chain, strictInputs: true}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type completion struct {
	name    string
	out     stage.Output
	attempt int
}

// Execute drives every stage in the graph to completion against pc, honoring
// dependency readiness, conditional skipping, guard-retry, and cancellation.
// It returns errs.PipelineCancelledError, and only that error, if the run
// observes a stage.Cancel output.
func (s *Scheduler) Execute(ctx context.Context, pc *pipectx.PipelineContext) (RunResult, error) {
	g := s.graph
	ready := make(map[string]bool, g.Len())
	for _, r := range g.Roots() {
		ready[r] = true
	}
	launched := make(map[string]bool, g.Len())
	completed := make(map[string]stage.Output, g.Len())
	forcedSkip := make(map[string]bool)
	done := make(chan completion, g.Len())

	var (
		inFlight        int
		failureOccurred bool
		canceledRun     bool
		cancelReason    string
	)

	for len(ready) > 0 || inFlight > 0 {
		if !canceledRun {
			if failureOccurred && s.failureMode == FailFast {
				ready = make(map[string]bool)
			} else {
				for _, name := range g.DeclarationOrder() {
					if !ready[name] || launched[name] {
						continue
					}
					launched[name] = true
					inFlight++
					spec, _ := g.Spec(name)
					go func(spec graph.StageSpec) {
						out := s.runStage(ctx, pc, spec)
						done <- completion{name: spec.Name, out: out, attempt: 1}
					}(spec)
				}
				ready = make(map[string]bool)
			}
		} else {
			ready = make(map[string]bool)
		}

		if inFlight == 0 {
			break
		}
		comp := <-done
		inFlight--
		completed[comp.name] = comp.out

		switch comp.out.Status() {
		case stage.StatusCancel:
			canceledRun = true
			cancelReason = comp.out.Reason()
			pc.MarkCanceled()
			pc.Token().Cancel(cancelReason)
			pc.Emit(ctx, "pipeline.cancelled", map[string]any{"reason": cancelReason})
		case stage.StatusFail:
			if s.failureMode != BestEffort {
				failureOccurred = true
			}
			if s.failureMode == ContinueOnFailure {
				s.cascadeSkip(ctx, pc, comp.name, completed, forcedSkip)
			}
		}

		if !canceledRun {
			for _, succ := range g.Successors(comp.name) {
				if launched[succ] || forcedSkip[succ] {
					continue
				}
				if _, already := completed[succ]; already {
					continue
				}
				spec, _ := g.Spec(succ)
				allTerminal := true
				for _, dep := range spec.DependsOn {
					if _, ok := completed[dep]; !ok {
						allTerminal = false
						break
					}
				}
				if allTerminal {
					ready[succ] = true
				}
			}
		}
	}

	if canceledRun {
		return RunResult{Status: "canceled"}, &errs.PipelineCancelledError{Reason: cancelReason}
	}

	return s.summarize(ctx, pc, completed), nil
}

func (s *Scheduler) summarize(ctx context.Context, pc *pipectx.PipelineContext, completed map[string]stage.Output) RunResult {
	name := s.pipelineName
	if name == "" {
		name = pc.Topology()
	}
	if name == "" {
		name = "pipeline"
	}
	counts := make(map[string]int)
	details := make([]StageDetail, 0, len(completed))
	status := "completed"
	var publicError string
	for _, stageName := range s.graph.DeclarationOrder() {
		out, ok := completed[stageName]
		if !ok {
			continue
		}
		counts[string(out.Status())]++
		if out.Status() == stage.StatusFail {
			status = "failed"
			if publicError == "" {
				publicError = stage.PublicError(out)
			}
		}
		details = append(details, StageDetail{
			Name:    stageName,
			Status:  out.Status(),
			Attempt: 1,
			Error:   out.Error(),
		})
	}
	payload := map[string]any{
		"pipeline_name": name,
		"status":        status,
		"stage_counts":  counts,
		"stage_details": details,
	}
	if publicError != "" {
		payload["public_error"] = publicError
	}
	pc.Emit(ctx, "pipeline.wide", payload)
	return RunResult{
		PipelineName: name,
		Status:       status,
		StageCounts:  counts,
		StageDetails: details,
		PublicError:  publicError,
	}
}

// cascadeSkip force-skips every transitive successor of failedName that
// hasn't already completed, launched, or been skipped, recording
// stage.Skip("dependency_failed") outputs without ever invoking their
// runners.
func (s *Scheduler) cascadeSkip(ctx context.Context, pc *pipectx.PipelineContext, failedName string, completed map[string]stage.Output, forcedSkip map[string]bool) {
	queue := append([]string(nil), s.graph.Successors(failedName)...)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if forcedSkip[name] {
			continue
		}
		if _, ok := completed[name]; ok {
			continue
		}
		forcedSkip[name] = true
		out := stage.Skip("dependency_failed")
		completed[name] = out
		_ = pc.OutputBag().Set(name, 1, out, pipectx.WriteNormal)
		pc.OutputBag().Finalize(name)
		pc.Emit(ctx, "stage.skipped", map[string]any{
			"stage":  name,
			"reason": "dependency_failed",
		})
		queue = append(queue, s.graph.Successors(name)...)
	}
}

func (s *Scheduler) runStage(ctx context.Context, pc *pipectx.PipelineContext, spec graph.StageSpec) stage.Output {
	pc.Emit(ctx, "stage.started", map[string]any{"stage": spec.Name})

	sctx := pipectx.NewStageContext(pc, spec.Name, spec.DependsOn, 1, s.strictInputs, string(spec.Kind))

	if !s.legacy && spec.Conditional {
		if reason, ok := sctx.Inputs.Get("skip_reason"); ok {
			if reasonStr, isStr := reason.(string); isStr && reasonStr != "" {
				out := stage.Skip(reasonStr)
				s.recordTerminal(ctx, pc, spec.Name, 1, out)
				return out
			}
		}
	}

	if spec.Guard != nil {
		return s.runGuarded(ctx, pc, spec)
	}

	runner := func() stage.Output { return spec.Runner.Execute(sctx) }
	out := s.chain.Execute(sctx, runner)
	if out.Status() == stage.StatusRetry {
		out = stage.Fail(out.Reason(), false, stage.WithCause(out.Cause()))
	}
	s.recordTerminal(ctx, pc, spec.Name, 1, out)
	return out
}

func (s *Scheduler) recordTerminal(ctx context.Context, pc *pipectx.PipelineContext, name string, attempt int, out stage.Output) {
	_ = pc.OutputBag().Set(name, attempt, out, pipectx.WriteNormal)
	pc.OutputBag().Finalize(name)

	payload := map[string]any{
		"stage":     name,
		"attempt":   attempt,
		"data_keys": sortedKeys(out.Data()),
	}
	switch out.Status() {
	case stage.StatusFail:
		payload["error"] = out.Error()
		pc.Emit(ctx, "stage.failed", payload)
	case stage.StatusSkip:
		payload["reason"] = out.Reason()
		pc.Emit(ctx, "stage.skipped", payload)
	default:
		pc.Emit(ctx, "stage.completed", payload)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
