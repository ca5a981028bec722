package interceptor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stageflow/stageflow/cancel"
	"github.com/stageflow/stageflow/identity"
	"github.com/stageflow/stageflow/interceptor"
	"github.com/stageflow/stageflow/pipectx"
	"github.com/stageflow/stageflow/stage"
)

type recordingInterceptor struct {
	priority int
	name     string
	log      *[]string
}

func (r recordingInterceptor) Priority() int { return r.priority }
func (r recordingInterceptor) Around(sctx pipectx.StageContext, next interceptor.Next) stage.Output {
	*r.log = append(*r.log, "enter:"+r.name)
	out := next()
	*r.log = append(*r.log, "exit:"+r.name)
	return out
}

func newStageContext(t *testing.T) pipectx.StageContext {
	t.Helper()
	snap := identity.CreateSnapshot(identity.RunIdentity{})
	pc := pipectx.New(snap, "demo", "", nil, cancel.NewToken(nil))
	return pipectx.NewStageContext(pc, "s", nil, 1, true, "WORK")
}

func TestChainRunsInPriorityOrderNesting(t *testing.T) {
	var log []string
	chain := interceptor.NewChain(
		recordingInterceptor{priority: 2, name: "b", log: &log},
		recordingInterceptor{priority: 1, name: "a", log: &log},
	)
	sctx := newStageContext(t)
	out := chain.Execute(sctx, func() stage.Output { return stage.OK() })
	assert.Equal(t, stage.StatusOK, out.Status())
	assert.Equal(t, []string{"enter:a", "enter:b", "exit:b", "exit:a"}, log)
}

func TestChainShortCircuitSkipsInnerInterceptors(t *testing.T) {
	var log []string
	shortCircuit := recordingInterceptorFunc{priority: 1, fn: func(sctx pipectx.StageContext, next interceptor.Next) stage.Output {
		log = append(log, "short-circuit")
		return stage.Skip("gate closed")
	}}
	inner := recordingInterceptor{priority: 2, name: "inner", log: &log}
	chain := interceptor.NewChain(shortCircuit, inner)
	sctx := newStageContext(t)
	called := false
	out := chain.Execute(sctx, func() stage.Output { called = true; return stage.OK() })
	require.False(t, called)
	assert.Equal(t, stage.StatusSkip, out.Status())
	assert.Equal(t, []string{"short-circuit"}, log)
}

type recordingInterceptorFunc struct {
	priority int
	fn       func(sctx pipectx.StageContext, next interceptor.Next) stage.Output
}

func (r recordingInterceptorFunc) Priority() int { return r.priority }
func (r recordingInterceptorFunc) Around(sctx pipectx.StageContext, next interceptor.Next) stage.Output {
	return r.fn(sctx, next)
}
