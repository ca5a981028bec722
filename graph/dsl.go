package graph

import "fmt"

// WithLinearChain registers count stages named "stage-1".."stage-N", each
// depending on the previous one; stage-1 depends on firstDependsOn (if
// non-empty). count <= 0 is a no-op.
func (b *Builder) WithLinearChain(count int, runnerFor func(i int) Stage, firstDependsOn []string) *Builder {
	if count <= 0 {
		return b
	}
	prev := append([]string(nil), firstDependsOn...)
	for i := 1; i <= count; i++ {
		name := fmt.Sprintf("stage-%d", i)
		b.Stage(name, runnerFor(i), prev)
		prev = []string{name}
	}
	return b
}

// WithParallelStages registers count stages named "parallel-1".."parallel-N",
// each depending only on dependsOn (no dependency among themselves). count
// <= 0 is a no-op.
func (b *Builder) WithParallelStages(count int, runnerFor func(i int) Stage, dependsOn []string) *Builder {
	if count <= 0 {
		return b
	}
	for i := 1; i <= count; i++ {
		name := fmt.Sprintf("parallel-%d", i)
		b.Stage(name, runnerFor(i), append([]string(nil), dependsOn...))
	}
	return b
}

// WithFanOutFanIn registers a fanout stage, `workers` parallel worker
// stages depending on it, and a fanin stage depending on all workers.
// workers <= 0 is a no-op (no stages registered at all, including fanout
// and fanin, since a fan-in with no fan-out is meaningless).
func (b *Builder) WithFanOutFanIn(fanout Stage, workers int, workerFor func(i int) Stage, fanin Stage) *Builder {
	if workers <= 0 {
		return b
	}
	b.Stage("fanout", fanout, nil)
	workerNames := make([]string, 0, workers)
	for i := 1; i <= workers; i++ {
		name := fmt.Sprintf("worker-%d", i)
		b.Stage(name, workerFor(i), []string{"fanout"})
		workerNames = append(workerNames, name)
	}
	b.Stage("fanin", fanin, workerNames)
	return b
}

// Branch names one conditional branch stage for WithConditionalBranch.
type Branch struct {
	Name   string
	Runner Stage
}

// WithConditionalBranch registers a router stage, one conditionally-skippable
// branch stage per entry in branches (each depending on the router, in
// declaration order), and a merge stage depending on every branch. An empty
// branches is a no-op.
func (b *Builder) WithConditionalBranch(router Stage, branches []Branch, merge Stage) *Builder {
	if len(branches) == 0 {
		return b
	}
	b.Stage("router", router, nil)
	branchNames := make([]string, 0, len(branches))
	for _, br := range branches {
		b.Stage(br.Name, br.Runner, []string{"router"}, WithConditional())
		branchNames = append(branchNames, br.Name)
	}
	b.Stage("merge", merge, branchNames)
	return b
}
