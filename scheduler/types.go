// Package scheduler drives stage execution across a validated graph.StageGraph,
// respecting dependency readiness, conditional skipping, guard-retry, and
// pipeline-wide cancellation. Scheduler is the unified engine (§4.2); a
// second constructor, NewLegacyScheduler, preserves the simpler variant that
// treats conditional as a no-op for backward compatibility.
package scheduler

import "github.com/stageflow/stageflow/stage"

// FailureMode controls how the scheduler reacts to a stage returning
// stage.Fail.
type FailureMode int

const (
	// BestEffort attempts every reachable stage regardless of failures
	// elsewhere in the graph. This is the default.
	BestEffort FailureMode = iota
	// FailFast aborts launching any new ready stage once a FAIL is observed,
	// but allows already in-flight stages to finish.
	FailFast
	// ContinueOnFailure marks every transitive successor of a failed stage as
	// SKIP with skip_reason "dependency_failed", without launching them,
	// while unrelated branches continue normally.
	ContinueOnFailure
)

// StageDetail summarizes one stage's terminal outcome for the pipeline.wide
// event and RunResult.
type StageDetail struct {
	Name    string
	Status  stage.Status
	Attempt int
	Error   string
}

// RunResult is the total, non-error outcome of a scheduler run. Execute
// returns a RunResult on every path; on pipeline cancellation that RunResult
// carries only Status "canceled" and comes with errs.PipelineCancelledError
// (per spec §7: "the scheduler
// itself is total ... except for PipelineCancelled").
type RunResult struct {
	PipelineName string
	Status       string // "completed" | "failed" | "canceled"
	StageCounts  map[string]int
	StageDetails []StageDetail
	// PublicError is a user-safe, deterministic summary of the first FAIL
	// stage encountered in declaration order, built by stage.PublicError.
	// Empty unless Status is "failed".
	PublicError string
}
