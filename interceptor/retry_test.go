package interceptor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stageflow/stageflow/interceptor"
	"github.com/stageflow/stageflow/stage"
)

func TestRetryInterceptorReattemptsUntilOK(t *testing.T) {
	sink := &recordingSink{}
	sctx := newStageContextWithSink(t, sink, "WORK", nil)
	calls := 0
	ri := interceptor.NewRetryInterceptor(0, interceptor.RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    10 * time.Millisecond,
		Backoff:     interceptor.BackoffConstant,
		Jitter:      interceptor.JitterNone,
	})
	out := ri.Around(sctx, func() stage.Output {
		calls++
		if calls < 3 {
			return stage.Retry("not ready", true)
		}
		return stage.OK()
	})
	assert.Equal(t, stage.StatusOK, out.Status())
	assert.Equal(t, 3, calls)
	assert.Contains(t, sink.names(), "stage.retry_scheduled")
}

func TestRetryInterceptorStopsOnNonRetryableOutput(t *testing.T) {
	sctx := newStageContextWithSink(t, &recordingSink{}, "WORK", nil)
	calls := 0
	ri := interceptor.NewRetryInterceptor(0, interceptor.RetryConfig{MaxAttempts: 5})
	out := ri.Around(sctx, func() stage.Output {
		calls++
		return stage.Fail("boom", false)
	})
	assert.Equal(t, 1, calls)
	assert.Equal(t, stage.StatusFail, out.Status())
}

func TestRetryInterceptorConvertsExhaustionToFail(t *testing.T) {
	sink := &recordingSink{}
	sctx := newStageContextWithSink(t, sink, "WORK", nil)
	ri := interceptor.NewRetryInterceptor(0, interceptor.RetryConfig{
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		Backoff:     interceptor.BackoffConstant,
	})
	out := ri.Around(sctx, func() stage.Output {
		return stage.Retry("still stuck", true)
	})
	require.Equal(t, stage.StatusFail, out.Status())
	assert.Equal(t, "still stuck", out.Error())
	assert.Contains(t, sink.names(), "stage.retry_exhausted")
}

func TestRetryInterceptorDefaultClassifierLabelsTimeout(t *testing.T) {
	sink := &recordingSink{}
	sctx := newStageContextWithSink(t, sink, "WORK", nil)
	calls := 0
	ri := interceptor.NewRetryInterceptor(0, interceptor.RetryConfig{
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		Backoff:     interceptor.BackoffConstant,
	})
	ri.Around(sctx, func() stage.Output {
		calls++
		return stage.Retry("deadline blew", true, stage.WithCause(context.DeadlineExceeded))
	})
	assert.Equal(t, 2, calls)

	scheduled := sink.payloadFor("stage.retry_scheduled")
	require.NotNil(t, scheduled)
	assert.Equal(t, "timeout", scheduled["reason"])

	exhausted := sink.payloadFor("stage.retry_exhausted")
	require.NotNil(t, exhausted)
	assert.Equal(t, "timeout", exhausted["reason"])
}

func TestRetryInterceptorDefaultClassifierLabelsUnclassifiedWithoutCause(t *testing.T) {
	sink := &recordingSink{}
	sctx := newStageContextWithSink(t, sink, "WORK", nil)
	ri := interceptor.NewRetryInterceptor(0, interceptor.RetryConfig{
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		Backoff:     interceptor.BackoffConstant,
	})
	ri.Around(sctx, func() stage.Output {
		return stage.Retry("not ready", true)
	})

	scheduled := sink.payloadFor("stage.retry_scheduled")
	require.NotNil(t, scheduled)
	assert.Equal(t, "unclassified", scheduled["reason"])
}

func TestRetryInterceptorHonorsCustomClassifier(t *testing.T) {
	sink := &recordingSink{}
	sctx := newStageContextWithSink(t, sink, "WORK", nil)
	rateLimited := errors.New("rate limited")
	ri := interceptor.NewRetryInterceptor(0, interceptor.RetryConfig{
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		Backoff:     interceptor.BackoffConstant,
		Classifier: func(err error) (bool, string) {
			if errors.Is(err, rateLimited) {
				return true, "rate_limited"
			}
			return false, "unclassified"
		},
	})
	ri.Around(sctx, func() stage.Output {
		return stage.Retry("slow down", true, stage.WithCause(rateLimited))
	})

	scheduled := sink.payloadFor("stage.retry_scheduled")
	require.NotNil(t, scheduled)
	assert.Equal(t, "rate_limited", scheduled["reason"])
}

func TestRetryInterceptorDefaultsMaxAttemptsToOne(t *testing.T) {
	sctx := newStageContextWithSink(t, &recordingSink{}, "WORK", nil)
	calls := 0
	ri := interceptor.NewRetryInterceptor(0, interceptor.RetryConfig{})
	ri.Around(sctx, func() stage.Output {
		calls++
		return stage.Retry("nope", true)
	})
	assert.Equal(t, 1, calls)
}
