package tools

import (
	"encoding/json"
	"fmt"

	"github.com/stageflow/stageflow/errs"
)

// CallRecordFields names the keys parse_and_resolve reads out of a call
// record. The zero value is not usable; use DefaultCallRecordFields for the
// OpenAI-style default shape: {"function": {"name": ..., "arguments": "..."}}.
type CallRecordFields struct {
	Container string
	Name      string
	Arguments string
}

// DefaultCallRecordFields returns the OpenAI-style field names.
func DefaultCallRecordFields() CallRecordFields {
	return CallRecordFields{Container: "function", Name: "name", Arguments: "arguments"}
}

// ParseAndResolve extracts an action type and a JSON-decoded argument map
// from call, then resolves a ToolDefinition for that action type from
// registry. callID, if non-empty, is attached to the returned ResolvedCall
// for event correlation and undo bookkeeping.
//
// Failure modes: a JSON decode error on the arguments field, or an unknown
// action type, both raise *errs.UnresolvedToolCall.
func ParseAndResolve(registry *Registry, call map[string]any, fields CallRecordFields, callID string) (*ResolvedCall, ToolDefinition, error) {
	container, _ := call[fields.Container].(map[string]any)
	if container == nil {
		container = call
	}

	name, _ := container[fields.Name].(string)
	if name == "" {
		return nil, ToolDefinition{}, &errs.UnresolvedToolCall{Err: fmt.Errorf("No tool registered: call record has no %s.%s", fields.Container, fields.Name)}
	}

	args := map[string]any{}
	switch raw := container[fields.Arguments].(type) {
	case nil:
		// No arguments field: treat as an empty argument map.
	case string:
		if raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return nil, ToolDefinition{}, &errs.UnresolvedToolCall{Err: fmt.Errorf("Invalid JSON in tool call arguments: %w", err)}
			}
		}
	case map[string]any:
		args = raw
	default:
		return nil, ToolDefinition{}, &errs.UnresolvedToolCall{Err: fmt.Errorf("Invalid JSON in tool call arguments: unsupported type %T", raw)}
	}

	def, ok := registry.Resolve(name)
	if !ok {
		return nil, ToolDefinition{}, toolNotFoundError(name)
	}

	return &ResolvedCall{ActionType: name, Args: args, CallID: callID}, def, nil
}
