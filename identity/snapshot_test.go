package identity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stageflow/stageflow/identity"
)

func TestCreateSnapshotGeneratesMissingIDs(t *testing.T) {
	s := identity.CreateSnapshot(identity.RunIdentity{})
	id := s.Identity()
	assert.NotEmpty(t, id.PipelineRunID)
	assert.NotEmpty(t, id.RequestID)
	assert.NotEmpty(t, id.SessionID)
	assert.NotEmpty(t, id.UserID)
	assert.NotEmpty(t, id.OrgID)
	assert.NotEmpty(t, id.InteractionID)
}

func TestCreateSnapshotPreservesProvidedIDs(t *testing.T) {
	s := identity.CreateSnapshot(identity.RunIdentity{PipelineRunID: "run-1", SessionID: "sess-1"})
	id := s.Identity()
	assert.Equal(t, "run-1", id.PipelineRunID)
	assert.Equal(t, "sess-1", id.SessionID)
	assert.NotEmpty(t, id.RequestID)
}

func TestWithMethodsReturnNewSnapshot(t *testing.T) {
	s1 := identity.CreateSnapshot(identity.RunIdentity{PipelineRunID: "run-1"})
	s2 := s1.WithInputText("hello")
	assert.Empty(t, s1.InputText())
	assert.Equal(t, "hello", s2.InputText())
}

func TestSnapshotRoundTrip(t *testing.T) {
	s, err := identity.CreateSnapshot(identity.RunIdentity{PipelineRunID: "run-1", SessionID: "sess-1"}).
		WithConversation(identity.ConversationRecord{Messages: []identity.Message{{Role: "user", Content: "hi"}}}).
		WithEnrichments(identity.EnrichmentsRecord{Profile: map[string]any{"tier": "gold"}}).
		WithExtension("acme.trace_ctx", map[string]any{"trace_id": "abc123"})
	require.NoError(t, err)
	s = s.WithInputText("hello").WithTopology("support").WithExecutionMode("interactive")

	dict := s.ToDict()
	assert.Equal(t, "run-1", dict["pipeline_run_id"])
	assert.Equal(t, "sess-1", dict["session_id"])

	restored, err := identity.FromDict(dict)
	require.NoError(t, err)

	assert.Equal(t, s.Identity().PipelineRunID, restored.Identity().PipelineRunID)
	assert.Equal(t, s.Identity().SessionID, restored.Identity().SessionID)
	assert.Equal(t, s.Conversation(), restored.Conversation())
	assert.Equal(t, s.Enrichments(), restored.Enrichments())
	assert.Equal(t, s.InputText(), restored.InputText())
	assert.Equal(t, s.Topology(), restored.Topology())
	assert.Equal(t, s.ExecutionMode(), restored.ExecutionMode())

	var traceCtx map[string]any
	found, err := restored.Extensions().Decode("acme.trace_ctx", &traceCtx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "abc123", traceCtx["trace_id"])
}

func TestToDictFlattensLabelsAndAttemptUnderBothKeys(t *testing.T) {
	s := identity.CreateSnapshot(identity.RunIdentity{
		PipelineRunID: "run-1",
		Labels:        map[string]string{"tenant": "acme"},
		Attempt:       3,
	})

	dict := s.ToDict()

	runID, ok := dict["run_id"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]string{"tenant": "acme"}, runID["labels"])
	assert.Equal(t, 3, runID["attempt"])

	assert.Equal(t, map[string]string{"tenant": "acme"}, dict["labels"])
	assert.Equal(t, 3, dict["attempt"])
}

func TestUnknownExtensionTypeSurvivesRoundTrip(t *testing.T) {
	s, err := identity.CreateSnapshot(identity.RunIdentity{}).WithExtension("some.unknown.plugin", map[string]any{"x": 1})
	require.NoError(t, err)

	dict := s.ToDict()
	restored, err := identity.FromDict(dict)
	require.NoError(t, err)

	_, ok := restored.Extensions()["some.unknown.plugin"]
	assert.True(t, ok, "unknown extension type must survive deserialization")
}

func TestSchemaValidatorRejectsInvalidExtension(t *testing.T) {
	v := identity.NewSchemaValidator()
	schema := map[string]any{
		"type":     "object",
		"required": []any{"trace_id"},
		"properties": map[string]any{
			"trace_id": map[string]any{"type": "string"},
		},
	}
	require.NoError(t, v.Register("acme.trace_ctx", schema))

	ext := identity.Extensions{}
	_, err := ext.ValidateExtension(v, "acme.trace_ctx", map[string]any{"trace_id": "abc"})
	assert.NoError(t, err)

	_, err = ext.ValidateExtension(v, "acme.trace_ctx", map[string]any{"wrong_field": "abc"})
	assert.Error(t, err)
}
