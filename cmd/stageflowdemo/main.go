// Command stageflowdemo runs a three-stage linear pipeline (fetch ->
// transform -> summarize) end to end, printing every emitted event and the
// final RunResult. It exists to give a new stageflow user something
// runnable to read before wiring their own stages.
package main

import (
	"context"
	"fmt"

	"github.com/stageflow/stageflow/cancel"
	"github.com/stageflow/stageflow/graph"
	"github.com/stageflow/stageflow/identity"
	"github.com/stageflow/stageflow/interceptor"
	"github.com/stageflow/stageflow/pipectx"
	"github.com/stageflow/stageflow/scheduler"
	"github.com/stageflow/stageflow/stage"
)

// consoleSink is a minimal events.Sink that logs every emission to stdout.
// Production callers would instead route through events.NewBus or
// events.NewBackpressureAwareEventSink into their own telemetry pipeline.
type consoleSink struct{}

func (consoleSink) Emit(_ context.Context, name string, data map[string]any) {
	fmt.Printf("event: %-28s %v\n", name, data)
}

func (s consoleSink) TryEmit(ctx context.Context, name string, data map[string]any) bool {
	s.Emit(ctx, name, data)
	return true
}

func fetch(sctx pipectx.StageContext) stage.Output {
	return stage.OK(stage.WithData(map[string]any{
		"records": []any{"alpha", "beta", "gamma"},
	}))
}

func transform(sctx pipectx.StageContext) stage.Output {
	raw, ok := sctx.Inputs.Get("records")
	if !ok {
		return stage.Fail("transform: missing records from fetch", false)
	}
	records, _ := raw.([]any)
	upper := make([]any, len(records))
	for i, r := range records {
		upper[i] = fmt.Sprintf("%v!", r)
	}
	return stage.OK(stage.WithData(map[string]any{"records": upper}))
}

func summarize(sctx pipectx.StageContext) stage.Output {
	raw, _ := sctx.Inputs.Get("records")
	records, _ := raw.([]any)
	return stage.OK(stage.WithData(map[string]any{
		"summary": fmt.Sprintf("processed %d records", len(records)),
	}))
}

func main() {
	b := graph.NewBuilder("stageflowdemo")
	b.Stage("fetch", graph.StageFunc(fetch), nil)
	b.Stage("transform", graph.StageFunc(transform), []string{"fetch"})
	b.Stage("summarize", graph.StageFunc(summarize), []string{"transform"})

	g, err := b.Build()
	if err != nil {
		panic(err)
	}

	chain := interceptor.NewChain(
		interceptor.NewRetryInterceptor(0, interceptor.RetryConfig{MaxAttempts: 3}),
		interceptor.NewIdempotencyInterceptor(10, interceptor.NewMemoryIdempotencyStore()),
	)
	sched := scheduler.NewScheduler(g, chain)

	snapshot := identity.CreateSnapshot(identity.RunIdentity{}).WithInputText("demo run")
	pc := pipectx.New(snapshot, "stageflowdemo", "", consoleSink{}, cancel.NewToken(nil))

	ctx := context.Background()
	result, err := sched.Execute(ctx, pc)
	if err != nil {
		panic(err)
	}

	out, _, ok := pc.OutputBag().Latest("summarize")
	fmt.Println()
	fmt.Println("pipeline:", result.PipelineName, "status:", result.Status)
	if ok {
		fmt.Println("summary:", out.Data()["summary"])
	}
}
