package identity

import "encoding/json"

type (
	// Message is a single turn in the conversation history carried by a
	// snapshot's ConversationRecord.
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	// RoutingDecision records a router stage's choice, if the pipeline has
	// already routed by the time the snapshot is read.
	RoutingDecision struct {
		Route      string         `json:"route"`
		Confidence float64        `json:"confidence,omitempty"`
		Metadata   map[string]any `json:"metadata,omitempty"`
	}

	// ConversationRecord bundles the message history with an optional routing
	// decision.
	ConversationRecord struct {
		Messages []Message        `json:"messages"`
		Routing  *RoutingDecision `json:"routing,omitempty"`
	}

	// EnrichmentsRecord bundles the side information gathered about the run
	// before or during execution.
	EnrichmentsRecord struct {
		Profile    map[string]any   `json:"profile,omitempty"`
		Memory     map[string]any   `json:"memory,omitempty"`
		Documents  []map[string]any `json:"documents,omitempty"`
		WebResults []map[string]any `json:"web_results,omitempty"`
	}

	// Snapshot is the immutable, per-run context payload. Every With* method
	// returns a new Snapshot; nested collections may be structurally shared
	// with the receiver since nothing in this package mutates them in place.
	Snapshot struct {
		identity      RunIdentity
		conversation  ConversationRecord
		enrichments   EnrichmentsRecord
		extensions    Extensions
		inputText     string
		topology      string
		metadata      map[string]any
		executionMode string
	}
)

// CreateSnapshot builds a new Snapshot from identity, auto-generating any of
// identity's six opaque IDs left empty.
func CreateSnapshot(id RunIdentity, opts ...SnapshotOption) Snapshot {
	s := Snapshot{identity: id.withGeneratedIDs()}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	return s
}

// SnapshotOption customizes a Snapshot at construction time via CreateSnapshot.
type SnapshotOption func(*Snapshot)

// WithConversationOpt sets the initial conversation record.
func WithConversationOpt(c ConversationRecord) SnapshotOption {
	return func(s *Snapshot) { s.conversation = c }
}

// WithEnrichmentsOpt sets the initial enrichments record.
func WithEnrichmentsOpt(e EnrichmentsRecord) SnapshotOption {
	return func(s *Snapshot) { s.enrichments = e }
}

// Identity returns the run identity.
func (s Snapshot) Identity() RunIdentity { return s.identity }

// Conversation returns the conversation record.
func (s Snapshot) Conversation() ConversationRecord { return s.conversation }

// Enrichments returns the enrichments record.
func (s Snapshot) Enrichments() EnrichmentsRecord { return s.enrichments }

// Extensions returns the typed plugin bundle.
func (s Snapshot) Extensions() Extensions { return s.extensions }

// InputText returns the optional raw input text for the run.
func (s Snapshot) InputText() string { return s.inputText }

// Topology returns the optional pipeline topology name.
func (s Snapshot) Topology() string { return s.topology }

// Metadata returns the optional free-form metadata map.
func (s Snapshot) Metadata() map[string]any { return s.metadata }

// ExecutionMode returns the optional execution mode (used by the tool
// executor's allowed-behaviors gate).
func (s Snapshot) ExecutionMode() string { return s.executionMode }

// WithConversation returns a copy of s with the conversation record replaced.
func (s Snapshot) WithConversation(c ConversationRecord) Snapshot {
	s.conversation = c
	return s
}

// WithEnrichments returns a copy of s with the enrichments record replaced.
func (s Snapshot) WithEnrichments(e EnrichmentsRecord) Snapshot {
	s.enrichments = e
	return s
}

// WithExtension returns a copy of s with typeName's payload set to value's
// JSON encoding.
func (s Snapshot) WithExtension(typeName string, value any) (Snapshot, error) {
	ext, err := s.extensions.With(typeName, value)
	if err != nil {
		return Snapshot{}, err
	}
	s.extensions = ext
	return s, nil
}

// WithInputText returns a copy of s with InputText replaced.
func (s Snapshot) WithInputText(text string) Snapshot {
	s.inputText = text
	return s
}

// WithTopology returns a copy of s with Topology replaced.
func (s Snapshot) WithTopology(topology string) Snapshot {
	s.topology = topology
	return s
}

// WithMetadata returns a copy of s with Metadata replaced.
func (s Snapshot) WithMetadata(metadata map[string]any) Snapshot {
	s.metadata = metadata
	return s
}

// WithExecutionMode returns a copy of s with ExecutionMode replaced.
func (s Snapshot) WithExecutionMode(mode string) Snapshot {
	s.executionMode = mode
	return s
}

// ToDict serializes the snapshot to a plain map, suitable for JSON encoding.
// Both the composed keys (run_id, enrichments, ...) and the legacy flattened
// identity keys (pipeline_run_id, request_id, ...) are present, for wire
// compatibility with consumers written against either shape.
func (s Snapshot) ToDict() map[string]any {
	out := map[string]any{
		"run_id":         s.identity.toDict(),
		"conversation":   s.conversation,
		"enrichments":    s.enrichments,
		"extensions":     s.extensions,
		"input_text":     stringOrNil(s.inputText),
		"topology":       stringOrNil(s.topology),
		"metadata":       s.metadata,
		"execution_mode": stringOrNil(s.executionMode),
	}
	for k, v := range s.identity.toDict() {
		out[k] = v
	}
	return out
}

// FromDict reconstructs a Snapshot from a map previously produced by ToDict.
// Unknown extension types in the payload are preserved, not rejected.
func FromDict(m map[string]any) (Snapshot, error) {
	s := Snapshot{}
	if runID, ok := m["run_id"].(map[string]any); ok {
		s.identity = identityFromDict(runID)
	} else {
		s.identity = identityFromDict(m)
	}
	if conv, ok := m["conversation"]; ok {
		if err := roundTrip(conv, &s.conversation); err != nil {
			return Snapshot{}, err
		}
	}
	if enr, ok := m["enrichments"]; ok {
		if err := roundTrip(enr, &s.enrichments); err != nil {
			return Snapshot{}, err
		}
	}
	if ext, ok := m["extensions"]; ok {
		var e Extensions
		if err := roundTrip(ext, &e); err != nil {
			return Snapshot{}, err
		}
		s.extensions = e
	}
	if v, ok := m["input_text"].(string); ok {
		s.inputText = v
	}
	if v, ok := m["topology"].(string); ok {
		s.topology = v
	}
	if v, ok := m["metadata"].(map[string]any); ok {
		s.metadata = v
	}
	if v, ok := m["execution_mode"].(string); ok {
		s.executionMode = v
	}
	return s, nil
}

// roundTrip re-marshals src (typically a map[string]any decoded from JSON)
// into dst via JSON, which is the simplest correct way to reconstruct typed
// nested structures (ConversationRecord, EnrichmentsRecord, Extensions) from
// an untyped map without hand-writing per-field coercions.
func roundTrip(src any, dst any) error {
	raw, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}
