package scheduler

import (
	"fmt"

	"github.com/stageflow/stageflow/graph"
	"github.com/stageflow/stageflow/interceptor"
)

// NewLegacyScheduler constructs a Scheduler that treats every stage's
// Conditional flag as a no-op: conditional stages always run, and no
// stage.skipped event is ever synthesized from a skip_reason input. Kept for
// compatibility with pipelines that predate conditional skipping (spec
// §4.2's "Legacy engine" paragraph).
//
// Guard-retry stages are rejected at construction: the legacy engine MUST
// NOT be used for guard-retry stages.
func NewLegacyScheduler(g *graph.StageGraph, chain *interceptor.Chain, opts ...Option) (*Scheduler, error) {
	for _, name := range g.DeclarationOrder() {
		spec, _ := g.Spec(name)
		if spec.Guard != nil {
			return nil, fmt.Errorf("scheduler: legacy engine cannot run guard-retry stage %q", name)
		}
	}
	s := NewScheduler(g, chain, opts...)
	s.legacy = true
	return s, nil
}
