package errs_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/stageflow/stageflow/errs"
)

func TestLookupReturnsRegisteredContractInfo(t *testing.T) {
	info, ok := errs.Lookup(errs.CodeCycle)
	assert.True(t, ok)
	assert.Equal(t, errs.CodeCycle, info.Code)
	assert.NotEmpty(t, info.Summary)
	assert.NotEmpty(t, info.FixHint)
}

func TestLookupUnknownCodeReturnsFalse(t *testing.T) {
	_, ok := errs.Lookup("CONTRACT-999-NOPE")
	assert.False(t, ok)
}

func TestWithContextDoesNotMutateRegistryEntry(t *testing.T) {
	info, _ := errs.Lookup(errs.CodeMissingDep)
	withCtx := info.WithContext(map[string]any{"stage": "b"})

	assert.Nil(t, info.Context)
	assert.Equal(t, map[string]any{"stage": "b"}, withCtx.Context)

	again, _ := errs.Lookup(errs.CodeMissingDep)
	assert.Nil(t, again.Context, "registry entries must stay free of occurrence-specific context")
}

func TestNewPipelineValidationErrorFallsBackForUnknownCode(t *testing.T) {
	err := errs.NewPipelineValidationError("CONTRACT-999-NOPE", map[string]any{"x": 1})
	assert.Equal(t, "CONTRACT-999-NOPE: pipeline validation error", err.Error())
}

func TestPipelineValidationErrorMessageIncludesFixHint(t *testing.T) {
	err := errs.NewPipelineValidationError(errs.CodeEmpty, nil)
	assert.Contains(t, err.Error(), errs.CodeEmpty)
	assert.Contains(t, err.Error(), "register at least one stage")
}

func TestNewCycleDetectedErrorFormatsPath(t *testing.T) {
	err := errs.NewCycleDetectedError([]string{"a", "b", "c", "a"})
	assert.Contains(t, err.Error(), "a -> b -> c -> a")
	assert.Equal(t, []string{"a", "b", "c", "a"}, err.CyclePath)
}

func TestUnresolvedToolCallUnwrapsToToolNotFound(t *testing.T) {
	inner := &errs.ToolNotFound{ActionType: "send_email"}
	wrapped := &errs.UnresolvedToolCall{Err: inner}

	assert.Equal(t, inner.Error(), wrapped.Error())

	var target *errs.ToolNotFound
	assert.True(t, errors.As(wrapped, &target))
	assert.Equal(t, "send_email", target.ActionType)
}

func TestToolApprovalDeniedHasNoRequestIDField(t *testing.T) {
	err := &errs.ToolApprovalDenied{ActionType: "refund"}
	assert.Equal(t, `tool "refund" approval denied`, err.Error())
}

func TestToolApprovalTimeoutMessageIncludesDuration(t *testing.T) {
	err := &errs.ToolApprovalTimeout{RequestID: "req-1", Timeout: 5 * time.Second}
	assert.Contains(t, err.Error(), "req-1")
	assert.Contains(t, err.Error(), "5s")
}

func TestToolUndoErrorUnwraps(t *testing.T) {
	inner := errors.New("redis unavailable")
	err := &errs.ToolUndoError{ActionID: "a-1", Err: inner}
	assert.ErrorIs(t, err, inner)
}

func TestToolExecutionErrorUnwraps(t *testing.T) {
	inner := errors.New("handler panicked")
	err := &errs.ToolExecutionError{ActionType: "send_email", Err: inner}
	assert.ErrorIs(t, err, inner)
}

func TestMaxDepthExceededErrorMessage(t *testing.T) {
	err := &errs.MaxDepthExceededError{Depth: 6, MaxDepth: 5}
	assert.Contains(t, err.Error(), "6")
	assert.Contains(t, err.Error(), "5")
}

func TestSentinelIsMatchesByCategory(t *testing.T) {
	assert.ErrorIs(t, &errs.DataConflictError{Key: "x"}, errs.ErrDataConflict)
	assert.ErrorIs(t, &errs.OutputConflictError{Stage: "a", Attempt: 1}, errs.ErrOutputConflict)
	assert.ErrorIs(t, &errs.UndeclaredDependencyError{Stage: "a", Dependency: "b"}, errs.ErrUndeclaredDependency)
	assert.ErrorIs(t, &errs.PipelineCancelledError{Reason: "shutdown"}, errs.ErrPipelineCancelled)
}

func TestNilPipelineValidationErrorErrorDoesNotPanic(t *testing.T) {
	var err *errs.PipelineValidationError
	assert.Equal(t, "<nil>", err.Error())
}
