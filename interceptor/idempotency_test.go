package interceptor_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stageflow/stageflow/interceptor"
	"github.com/stageflow/stageflow/stage"
)

func TestIdempotencyInterceptorCachesSecondCall(t *testing.T) {
	store := interceptor.NewMemoryIdempotencyStore()
	idemp := interceptor.NewIdempotencyInterceptor(0, store)
	sctx := newStageContextWithSink(t, &recordingSink{}, "WORK", nil)

	var calls int32
	runner := func() stage.Output {
		atomic.AddInt32(&calls, 1)
		return stage.OK(stage.WithData(map[string]any{"result": 1}))
	}

	first := idemp.Around(sctx, runner)
	second := idemp.Around(sctx, runner)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, first.Data(), second.Data())
}

func TestIdempotencyInterceptorPassesThroughNonIncludedKind(t *testing.T) {
	store := interceptor.NewMemoryIdempotencyStore()
	idemp := interceptor.NewIdempotencyInterceptor(0, store)
	sctx := newStageContextWithSink(t, &recordingSink{}, "ROUTER", nil)

	var calls int32
	runner := func() stage.Output {
		atomic.AddInt32(&calls, 1)
		return stage.OK()
	}
	idemp.Around(sctx, runner)
	idemp.Around(sctx, runner)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestIdempotencyInterceptorHonorsExtraKinds(t *testing.T) {
	store := interceptor.NewMemoryIdempotencyStore()
	idemp := interceptor.NewIdempotencyInterceptor(0, store, stage.KindGuard)
	sctx := newStageContextWithSink(t, &recordingSink{}, "GUARD", nil)

	var calls int32
	runner := func() stage.Output {
		atomic.AddInt32(&calls, 1)
		return stage.OK()
	}
	idemp.Around(sctx, runner)
	idemp.Around(sctx, runner)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestIdempotencyInterceptorSerializesConcurrentBuildsPerFingerprint(t *testing.T) {
	store := interceptor.NewMemoryIdempotencyStore()
	idemp := interceptor.NewIdempotencyInterceptor(0, store)

	var calls int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sctx := newStageContextWithSink(t, &recordingSink{}, "WORK", nil)
			idemp.Around(sctx, func() stage.Output {
				atomic.AddInt32(&calls, 1)
				return stage.OK()
			})
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
