// Package tools governs side-effecting operations a stage may invoke:
// registration by action type, call-record resolution, and a gated
// execution lifecycle (behavior allow-list, approval, undo).
package tools

import (
	"context"
	"sync"
	"time"

	"github.com/stageflow/stageflow/errs"
)

type (
	// Result is what a tool handler returns on success.
	Result struct {
		// Data is the tool's JSON-shaped return payload.
		Data map[string]any
		// UndoMetadata, if non-nil on an undoable tool, is stored in the
		// UndoStore keyed by the call's action ID.
		UndoMetadata map[string]any
		// ActionID is populated by the executor after a successful undo-metadata
		// store, echoing the key future Undo calls must pass.
		ActionID string
	}

	// ResolvedCall is a call record after parse_and_resolve has extracted its
	// action type and decoded its argument map.
	ResolvedCall struct {
		ActionType string
		Args       map[string]any
		CallID     string
	}

	// Handler performs the tool's actual side effect.
	Handler func(ctx context.Context, call *ResolvedCall) (Result, error)

	// UndoHandler reverses a prior successful call, given the metadata it
	// stored at execution time.
	UndoHandler func(ctx context.Context, actionID string, metadata map[string]any) error

	// ApprovalPrompt builds the human-facing prompt shown for a call pending
	// approval.
	ApprovalPrompt func(ctx context.Context, call *ResolvedCall) (string, error)

	// ToolDefinition is a single registered tool's behavior and gating policy.
	ToolDefinition struct {
		ActionType string
		Handler    Handler

		// AllowedBehaviors restricts which execution modes may invoke this
		// tool. Empty means no restriction.
		AllowedBehaviors []string

		RequiresApproval bool
		ApprovalTimeout  time.Duration
		ApprovalPrompt   ApprovalPrompt

		Undoable    bool
		UndoTTL     time.Duration
		UndoHandler UndoHandler
	}

	// Factory lazily builds a ToolDefinition. The registry materializes and
	// memoizes the result on first lookup.
	Factory func() ToolDefinition

	// Registry maps action_type to either an eagerly registered
	// ToolDefinition or a lazy Factory.
	Registry struct {
		mu        sync.Mutex
		defs      map[string]ToolDefinition
		factories map[string]Factory
	}
)

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		defs:      make(map[string]ToolDefinition),
		factories: make(map[string]Factory),
	}
}

// Register adds an eagerly constructed ToolDefinition under actionType,
// replacing anything previously registered under that name.
func (r *Registry) Register(actionType string, def ToolDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	def.ActionType = actionType
	r.defs[actionType] = def
	delete(r.factories, actionType)
}

// RegisterFactory adds a lazy ToolDefinition builder under actionType.
// factory runs at most once; its result is memoized.
func (r *Registry) RegisterFactory(actionType string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[actionType] = factory
	delete(r.defs, actionType)
}

// Resolve looks up the ToolDefinition registered (or lazily built) under
// actionType.
func (r *Registry) Resolve(actionType string) (ToolDefinition, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if def, ok := r.defs[actionType]; ok {
		return def, true
	}
	factory, ok := r.factories[actionType]
	if !ok {
		return ToolDefinition{}, false
	}
	def := factory()
	def.ActionType = actionType
	r.defs[actionType] = def
	delete(r.factories, actionType)
	return def, true
}

// toolNotFoundError wraps ToolNotFound as the UnresolvedToolCall reason used
// when a call record names an action the registry has nothing for.
func toolNotFoundError(actionType string) error {
	return &errs.UnresolvedToolCall{Err: &errs.ToolNotFound{ActionType: actionType}}
}
