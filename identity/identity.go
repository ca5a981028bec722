// Package identity defines the identity and snapshot layer of the pipeline
// context model: RunIdentity (the six opaque run-scoped IDs), ContextSnapshot
// (the immutable per-run payload), and the extension bundle that lets callers
// round-trip typed plugin data through serialization without the framework
// ever needing to know about the plugin's type.
package identity

import "github.com/google/uuid"

// RunIdentity carries the six opaque IDs that correlate a pipeline run across
// logs, traces, and downstream systems. Every field is optional; any left
// empty are populated with a fresh UUID by CreateSnapshot. Fields serialize
// as string-or-null (see Snapshot.ToDict).
type RunIdentity struct {
	PipelineRunID string
	RequestID     string
	SessionID     string
	UserID        string
	OrgID         string
	InteractionID string

	// Labels carries caller-provided metadata (tenant, priority, ...). Not one
	// of the six opaque IDs, but travels with run identity the way the
	// teacher's run.Context.Labels does.
	Labels map[string]string
	// Attempt counts how many times this run has been attempted or resumed.
	Attempt int
}

// withGeneratedIDs returns a copy of r with every empty opaque ID field
// replaced by a fresh UUID. Called exactly once, by CreateSnapshot.
func (r RunIdentity) withGeneratedIDs() RunIdentity {
	if r.PipelineRunID == "" {
		r.PipelineRunID = uuid.NewString()
	}
	if r.RequestID == "" {
		r.RequestID = uuid.NewString()
	}
	if r.SessionID == "" {
		r.SessionID = uuid.NewString()
	}
	if r.UserID == "" {
		r.UserID = uuid.NewString()
	}
	if r.OrgID == "" {
		r.OrgID = uuid.NewString()
	}
	if r.InteractionID == "" {
		r.InteractionID = uuid.NewString()
	}
	return r
}

func stringOrNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// toDict serializes the identity as one flat map keyed pipeline_run_id,
// request_id, .... Snapshot.ToDict places this map both under the composed
// key ("run_id") and flattened into its own top level.
func (r RunIdentity) toDict() map[string]any {
	return map[string]any{
		"pipeline_run_id": stringOrNil(r.PipelineRunID),
		"request_id":      stringOrNil(r.RequestID),
		"session_id":      stringOrNil(r.SessionID),
		"user_id":         stringOrNil(r.UserID),
		"org_id":          stringOrNil(r.OrgID),
		"interaction_id":  stringOrNil(r.InteractionID),
		"labels":          r.Labels,
		"attempt":         r.Attempt,
	}
}

func identityFromDict(m map[string]any) RunIdentity {
	get := func(k string) string {
		v, _ := m[k].(string)
		return v
	}
	var labels map[string]string
	if raw, ok := m["labels"].(map[string]string); ok {
		labels = raw
	} else if raw, ok := m["labels"].(map[string]any); ok {
		labels = make(map[string]string, len(raw))
		for k, v := range raw {
			if s, ok := v.(string); ok {
				labels[k] = s
			}
		}
	}
	attempt := 0
	switch v := m["attempt"].(type) {
	case int:
		attempt = v
	case float64:
		attempt = int(v)
	}
	return RunIdentity{
		PipelineRunID: get("pipeline_run_id"),
		RequestID:     get("request_id"),
		SessionID:     get("session_id"),
		UserID:        get("user_id"),
		OrgID:         get("org_id"),
		InteractionID: get("interaction_id"),
		Labels:        labels,
		Attempt:       attempt,
	}
}
