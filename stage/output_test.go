package stage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stageflow/stageflow/stage"
)

func TestOKCarriesData(t *testing.T) {
	out := stage.OK(stage.WithData(map[string]any{"v": 1}))
	assert.Equal(t, stage.StatusOK, out.Status())
	assert.Equal(t, map[string]any{"v": 1}, out.Data())
	assert.Empty(t, out.Error())
	assert.Empty(t, out.Reason())
}

func TestSkipCarriesReason(t *testing.T) {
	out := stage.Skip("dependency_failed")
	assert.Equal(t, stage.StatusSkip, out.Status())
	assert.Equal(t, "dependency_failed", out.Reason())
}

func TestFailCarriesRetryable(t *testing.T) {
	out := stage.Fail("boom", true)
	assert.Equal(t, stage.StatusFail, out.Status())
	assert.Equal(t, "boom", out.Error())
	assert.True(t, out.Retryable())
}

func TestCancelCarriesReason(t *testing.T) {
	out := stage.Cancel("user-request")
	assert.Equal(t, stage.StatusCancel, out.Status())
	assert.Equal(t, "user-request", out.Reason())
}

func TestRetryCarriesReasonAndRetryable(t *testing.T) {
	out := stage.Retry("stagnant", true)
	assert.Equal(t, stage.StatusRetry, out.Status())
	assert.Equal(t, "stagnant", out.Reason())
	assert.True(t, out.Retryable())
}

func TestArtifactsAndEventsPreserveOrder(t *testing.T) {
	out := stage.OK(
		stage.WithArtifacts(stage.Artifact{Name: "a"}, stage.Artifact{Name: "b"}),
		stage.WithEvents(stage.Event{Name: "e1"}, stage.Event{Name: "e2"}),
	)
	assert.Equal(t, []stage.Artifact{{Name: "a"}, {Name: "b"}}, out.Artifacts())
	assert.Equal(t, []stage.Event{{Name: "e1"}, {Name: "e2"}}, out.Events())
}

func TestWithCauseIsNilByDefault(t *testing.T) {
	out := stage.OK()
	assert.NoError(t, out.Cause())
}

func TestWithCauseAttachesUnderlyingError(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	out := stage.Fail("boom", true, stage.WithCause(cause))
	assert.Equal(t, cause, out.Cause())
}

func TestPublicErrorEmptyForNonFailStatuses(t *testing.T) {
	assert.Empty(t, stage.PublicError(stage.OK()))
	assert.Empty(t, stage.PublicError(stage.Skip("dependency_failed")))
	assert.Empty(t, stage.PublicError(stage.Cancel("user-request")))
	assert.Empty(t, stage.PublicError(stage.Retry("stagnant", true)))
}

func TestPublicErrorClassifiesTimeoutCause(t *testing.T) {
	out := stage.Fail("upstream timed out talking to db-primary.internal:5432", true,
		stage.WithCause(context.DeadlineExceeded))
	assert.Equal(t, stage.PublicErrorTimeout, stage.PublicError(out))
}

func TestPublicErrorNeverLeaksRawErrorText(t *testing.T) {
	secret := errors.New("leaked api key sk-should-not-appear-anywhere")
	out := stage.Fail(secret.Error(), false, stage.WithCause(secret))
	got := stage.PublicError(out)
	assert.Equal(t, stage.PublicErrorUnclassified, got)
	assert.NotContains(t, got, "sk-should-not-appear-anywhere")
}

func TestPublicErrorWithoutCauseIsUnclassified(t *testing.T) {
	out := stage.Fail("boom", false)
	assert.Equal(t, stage.PublicErrorUnclassified, stage.PublicError(out))
}
