package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stageflow/stageflow/errs"
	"github.com/stageflow/stageflow/pipectx"
	"github.com/stageflow/stageflow/telemetry"
)

const defaultApprovalTimeout = 30 * time.Second

type (
	// Executor drives the gated lifecycle of a single tool call: behavior
	// allow-list, approval gate, invocation, and undo-metadata storage.
	Executor struct {
		registry *Registry
		approval ApprovalService
		undo     UndoStore
		fields   CallRecordFields
		logger   telemetry.Logger
	}

	// Option customizes an Executor at construction time.
	Option func(*Executor)
)

// WithApprovalService sets the service consulted for tools that require
// approval. Defaults to AutoDeny, so an unconfigured executor fails closed.
func WithApprovalService(svc ApprovalService) Option {
	return func(e *Executor) { e.approval = svc }
}

// WithUndoStore sets where undo metadata is persisted. If unset, undoable
// tools still run but their results are never recorded for Undo.
func WithUndoStore(store UndoStore) Option {
	return func(e *Executor) { e.undo = store }
}

// WithCallRecordFields overrides the default OpenAI-style call record field
// names used by ParseAndResolve.
func WithCallRecordFields(fields CallRecordFields) Option {
	return func(e *Executor) { e.fields = fields }
}

// WithLogger attaches a logger used for diagnostics that do not themselves
// become a sink event (e.g. an undo-metadata store failure).
func WithLogger(logger telemetry.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// NewExecutor constructs an Executor bound to registry.
func NewExecutor(registry *Registry, opts ...Option) *Executor {
	e := &Executor{
		registry: registry,
		approval: AutoDeny{},
		fields:   DefaultCallRecordFields(),
		logger:   telemetry.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ParseAndResolve extracts and resolves call against e's registry and field
// configuration.
func (e *Executor) ParseAndResolve(call map[string]any, callID string) (*ResolvedCall, ToolDefinition, error) {
	return ParseAndResolve(e.registry, call, e.fields, callID)
}

// Execute drives def's gated lifecycle for call, emitting strictly in order:
// tool.invoked, an optional behavior-gate denial (tool.denied), an optional
// approval gate (approval.requested, then approval.decided, or tool.denied on
// approval timeout; an explicit denial emits nothing further), tool.started,
// then tool.completed or tool.failed.
func (e *Executor) Execute(ctx context.Context, pc *pipectx.PipelineContext, call *ResolvedCall, def ToolDefinition) (Result, error) {
	payload := e.basePayload(pc, call)
	pc.Emit(ctx, "tool.invoked", clonePayload(payload))

	if len(def.AllowedBehaviors) > 0 && !containsString(def.AllowedBehaviors, pc.ExecutionMode()) {
		denied := clonePayload(payload)
		denied["reason"] = "behavior_not_allowed"
		pc.Emit(ctx, "tool.denied", denied)
		return Result{}, &errs.ToolDenied{ActionType: call.ActionType, Reason: "behavior_not_allowed"}
	}

	if def.RequiresApproval {
		result, err := e.runApprovalGate(ctx, pc, call, def, payload)
		if err != nil {
			return result, err
		}
	}

	pc.Emit(ctx, "tool.started", clonePayload(payload))
	result, err := e.invoke(ctx, def, call)
	if err != nil {
		failed := clonePayload(payload)
		failed["error"] = err.Error()
		pc.Emit(ctx, "tool.failed", failed)
		return Result{}, &errs.ToolExecutionError{ActionType: call.ActionType, Err: err}
	}
	pc.Emit(ctx, "tool.completed", clonePayload(payload))

	if def.Undoable && result.UndoMetadata != nil && e.undo != nil {
		actionID := call.CallID
		if actionID == "" {
			actionID = uuid.NewString()
		}
		record := UndoRecord{ActionType: call.ActionType, Metadata: result.UndoMetadata}
		if storeErr := e.undo.Put(ctx, actionID, record, def.UndoTTL); storeErr != nil {
			e.logger.Error(ctx, "tools: store undo metadata failed", "action_type", call.ActionType, "action_id", actionID, "err", storeErr)
		} else {
			result.ActionID = actionID
		}
	}
	return result, nil
}

func (e *Executor) runApprovalGate(ctx context.Context, pc *pipectx.PipelineContext, call *ResolvedCall, def ToolDefinition, payload map[string]any) (Result, error) {
	requestID := uuid.NewString()
	var prompt string
	if def.ApprovalPrompt != nil {
		p, err := def.ApprovalPrompt(ctx, call)
		if err != nil {
			return Result{}, fmt.Errorf("tools: build approval prompt for %q: %w", call.ActionType, err)
		}
		prompt = p
	}

	requested := clonePayload(payload)
	requested["request_id"] = requestID
	requested["prompt"] = prompt
	pc.Emit(ctx, "approval.requested", requested)

	timeout := def.ApprovalTimeout
	if timeout <= 0 {
		timeout = defaultApprovalTimeout
	}
	approvalCtx, cancel := context.WithTimeout(ctx, timeout)
	approved, err := e.approval.RequestApproval(approvalCtx, requestID, call.ActionType, prompt)
	cancel()

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		denied := clonePayload(payload)
		denied["reason"] = "approval_timeout"
		pc.Emit(ctx, "tool.denied", denied)
		return Result{}, &errs.ToolApprovalTimeout{RequestID: requestID, Timeout: timeout}
	case err != nil:
		return Result{}, fmt.Errorf("tools: approval service for %q: %w", call.ActionType, err)
	case !approved:
		return Result{}, &errs.ToolApprovalDenied{ActionType: call.ActionType}
	}

	decided := clonePayload(payload)
	decided["request_id"] = requestID
	decided["approved"] = true
	pc.Emit(ctx, "approval.decided", decided)
	return Result{}, nil
}

func (e *Executor) invoke(ctx context.Context, def ToolDefinition, call *ResolvedCall) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %q handler panicked: %v", call.ActionType, r)
		}
	}()
	return def.Handler(ctx, call)
}

// Undo reverses a prior successful call identified by actionID, looking its
// owning ToolDefinition back up in the registry from the stored UndoRecord.
// Returns false (no error) if no metadata or no undo handler is registered.
func (e *Executor) Undo(ctx context.Context, pc *pipectx.PipelineContext, actionID string) (bool, error) {
	if e.undo == nil {
		return false, nil
	}
	record, ok, err := e.undo.Get(ctx, actionID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	def, ok := e.registry.Resolve(record.ActionType)
	if !ok || def.UndoHandler == nil {
		return false, nil
	}

	payload := e.basePayload(pc, &ResolvedCall{ActionType: record.ActionType, CallID: actionID})
	payload["action_id"] = actionID

	if err := def.UndoHandler(ctx, actionID, record.Metadata); err != nil {
		failed := clonePayload(payload)
		failed["error"] = err.Error()
		pc.Emit(ctx, "tool.undo_failed", failed)
		return false, &errs.ToolUndoError{ActionID: actionID, Err: err}
	}
	_ = e.undo.Delete(ctx, actionID)
	pc.Emit(ctx, "tool.undone", clonePayload(payload))
	return true, nil
}

// basePayload builds the enriched context every lifecycle event carries:
// pipeline_run_id, request_id (string-or-null), and execution_mode.
func (e *Executor) basePayload(pc *pipectx.PipelineContext, call *ResolvedCall) map[string]any {
	id := pc.Snapshot().Identity()
	var requestID any
	if id.RequestID != "" {
		requestID = id.RequestID
	}
	payload := map[string]any{
		"pipeline_run_id": id.PipelineRunID,
		"request_id":      requestID,
		"execution_mode":  pc.ExecutionMode(),
	}
	if call != nil {
		payload["action_type"] = call.ActionType
		payload["tool_call_id"] = call.CallID
	}
	return payload
}

func clonePayload(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
