package errs

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type (
	// PipelineValidationError is the fatal, build-time error raised when a
	// pipeline graph fails structural validation (missing dependency,
	// conflicting composition, or an empty builder). It is never retried.
	PipelineValidationError struct {
		Info ContractErrorInfo
	}

	// CycleDetectedError is the fatal, build-time error raised when the
	// dependency graph contains a cycle. CyclePath captures the GRAY-stack
	// slice at the point of detection, e.g. ["a", "b", "c", "a"].
	CycleDetectedError struct {
		Info      ContractErrorInfo
		CyclePath []string
	}

	// DataConflictError is raised by ContextBag.Set when a key already holds a
	// value. It is a programmer error: the bag never silently overwrites.
	DataConflictError struct {
		Key string
	}

	// OutputConflictError is raised by OutputBag.Set when a non-retry,
	// non-guard write would overwrite an existing (stage, attempt) entry with a
	// different payload.
	OutputConflictError struct {
		Stage   string
		Attempt int
	}

	// UndeclaredDependencyError is raised by StageInputs when a stage accesses
	// a key for a dependency it did not declare in depends_on.
	UndeclaredDependencyError struct {
		Stage      string
		Dependency string
	}

	// PipelineCancelledError is the terminal condition the scheduler surfaces
	// from Execute when the run was canceled, after in-flight stages have been
	// awaited and the cleanup registry has run. It is the one error the
	// scheduler is permitted to return; every other outcome is reported
	// through the returned RunResult instead.
	PipelineCancelledError struct {
		Reason string
	}

	// ToolNotFound is raised when a call record names an action_type the
	// registry has no definition or factory for.
	ToolNotFound struct {
		ActionType string
	}

	// UnresolvedToolCall wraps the reason parse_and_resolve could not turn a
	// call record into a resolved action: malformed JSON arguments, or an
	// unknown action_type (in which case Err is a *ToolNotFound).
	UnresolvedToolCall struct {
		Err error
	}

	// ToolDenied is raised when a tool's allowed_behaviors is non-empty and
	// the run's execution_mode is not a member.
	ToolDenied struct {
		ActionType string
		Reason     string
	}

	// ToolApprovalDenied is raised when the approval service explicitly
	// denies a tool call. It intentionally does not carry a request_id.
	ToolApprovalDenied struct {
		ActionType string
	}

	// ToolApprovalTimeout is raised when the approval service does not decide
	// within the tool's configured approval timeout.
	ToolApprovalTimeout struct {
		RequestID string
		Timeout   time.Duration
	}

	// ToolUndoError is raised when a registered undo handler fails.
	ToolUndoError struct {
		ActionID string
		Err      error
	}

	// ToolExecutionError wraps a tool handler's returned error (or recovered
	// panic) as it propagates out of the executor.
	ToolExecutionError struct {
		ActionType string
		Err        error
	}

	// MaxDepthExceededError is raised by the sub-pipeline spawner when
	// spawning a child would exceed the configured max_depth.
	MaxDepthExceededError struct {
		Depth    int
		MaxDepth int
	}
)

// NewPipelineValidationError builds a PipelineValidationError for code with
// occurrence-specific context.
func NewPipelineValidationError(code string, context map[string]any) *PipelineValidationError {
	info, ok := Lookup(code)
	if !ok {
		info = ContractErrorInfo{Code: code, Summary: "pipeline validation error"}
	}
	return &PipelineValidationError{Info: info.WithContext(context)}
}

func (e *PipelineValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Info.Code, e.Info.Summary)
	if e.Info.FixHint != "" {
		fmt.Fprintf(&b, " (%s)", e.Info.FixHint)
	}
	return b.String()
}

// NewCycleDetectedError builds a CycleDetectedError carrying the detected
// cycle path.
func NewCycleDetectedError(cyclePath []string) *CycleDetectedError {
	info, _ := Lookup(CodeCycle)
	return &CycleDetectedError{
		Info:      info.WithContext(map[string]any{"cycle_path": cyclePath}),
		CyclePath: cyclePath,
	}
}

func (e *CycleDetectedError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s: %s: %s", e.Info.Code, e.Info.Summary, strings.Join(e.CyclePath, " -> "))
}

func (e *DataConflictError) Error() string {
	return fmt.Sprintf("context bag: key %q already set", e.Key)
}

func (e *OutputConflictError) Error() string {
	return fmt.Sprintf("output bag: conflicting write for stage %q attempt %d", e.Stage, e.Attempt)
}

func (e *UndeclaredDependencyError) Error() string {
	return fmt.Sprintf("stage %q accessed output of undeclared dependency %q", e.Stage, e.Dependency)
}

func (e *PipelineCancelledError) Error() string {
	return fmt.Sprintf("pipeline canceled: %s", e.Reason)
}

func (e *ToolNotFound) Error() string {
	return fmt.Sprintf("No tool registered for action %q", e.ActionType)
}

func (e *UnresolvedToolCall) Error() string { return e.Err.Error() }
func (e *UnresolvedToolCall) Unwrap() error { return e.Err }

func (e *ToolDenied) Error() string {
	return fmt.Sprintf("tool %q denied: %s", e.ActionType, e.Reason)
}

func (e *ToolApprovalDenied) Error() string {
	return fmt.Sprintf("tool %q approval denied", e.ActionType)
}

func (e *ToolApprovalTimeout) Error() string {
	return fmt.Sprintf("tool approval request %q timed out after %s", e.RequestID, e.Timeout)
}

func (e *ToolUndoError) Error() string {
	return fmt.Sprintf("undo action %q failed: %v", e.ActionID, e.Err)
}
func (e *ToolUndoError) Unwrap() error { return e.Err }

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %q execution failed: %v", e.ActionType, e.Err)
}
func (e *ToolExecutionError) Unwrap() error { return e.Err }

func (e *MaxDepthExceededError) Error() string {
	return fmt.Sprintf("subpipeline: spawning at depth %d exceeds max_depth %d", e.Depth, e.MaxDepth)
}

// Sentinel errors usable with errors.Is for broad category checks.
var (
	// ErrDataConflict matches any *DataConflictError.
	ErrDataConflict = errors.New("data conflict")
	// ErrOutputConflict matches any *OutputConflictError.
	ErrOutputConflict = errors.New("output conflict")
	// ErrUndeclaredDependency matches any *UndeclaredDependencyError.
	ErrUndeclaredDependency = errors.New("undeclared dependency")
	// ErrPipelineCancelled matches any *PipelineCancelledError.
	ErrPipelineCancelled = errors.New("pipeline canceled")
)

func (e *DataConflictError) Is(target error) bool         { return target == ErrDataConflict }
func (e *OutputConflictError) Is(target error) bool       { return target == ErrOutputConflict }
func (e *UndeclaredDependencyError) Is(target error) bool { return target == ErrUndeclaredDependency }
func (e *PipelineCancelledError) Is(target error) bool    { return target == ErrPipelineCancelled }
