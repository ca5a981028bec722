package graph

// StageGraph is the immutable, validated DAG produced by Builder.Build.
// Nodes are stage specs; edges run dependency to dependent. Topological
// levels and successor sets are computed once at build time so the
// scheduler never has to recompute reachability on the hot path.
type StageGraph struct {
	specs      map[string]StageSpec
	order      []string // declaration order, used for stable tie-breaks
	successors map[string][]string
	levels     [][]string
}

// Specs returns the stage name to spec map. Callers must not mutate it.
func (g *StageGraph) Specs() map[string]StageSpec { return g.specs }

// Spec returns the spec for name, if declared.
func (g *StageGraph) Spec(name string) (StageSpec, bool) {
	s, ok := g.specs[name]
	return s, ok
}

// DeclarationOrder returns stage names in the order they were declared to
// the builder, the tie-break order the scheduler uses when multiple stages
// become ready simultaneously.
func (g *StageGraph) DeclarationOrder() []string { return g.order }

// Successors returns the stages that directly depend on name.
func (g *StageGraph) Successors(name string) []string { return g.successors[name] }

// Levels returns the graph's topological levels: Levels()[0] is every stage
// with no dependencies, Levels()[i] depends only on stages in levels < i.
func (g *StageGraph) Levels() [][]string { return g.levels }

// Roots returns every stage with no declared dependencies.
func (g *StageGraph) Roots() []string {
	if len(g.levels) == 0 {
		return nil
	}
	return g.levels[0]
}

// Len returns the number of stages in the graph.
func (g *StageGraph) Len() int { return len(g.specs) }

func computeLevels(specs map[string]StageSpec, order []string) [][]string {
	level := make(map[string]int, len(specs))
	var resolve func(name string) int
	resolve = func(name string) int {
		if l, ok := level[name]; ok {
			return l
		}
		spec := specs[name]
		if len(spec.DependsOn) == 0 {
			level[name] = 0
			return 0
		}
		max := -1
		for _, dep := range spec.DependsOn {
			l := resolve(dep)
			if l > max {
				max = l
			}
		}
		level[name] = max + 1
		return max + 1
	}
	for _, name := range order {
		resolve(name)
	}
	var maxLevel int
	for _, l := range level {
		if l > maxLevel {
			maxLevel = l
		}
	}
	levels := make([][]string, maxLevel+1)
	for _, name := range order {
		l := level[name]
		levels[l] = append(levels[l], name)
	}
	return levels
}

// computeSuccessors builds the dependency-to-dependents index, appending in
// declaration order so Successors(x) is stable across runs: the scheduler's
// ready-stage tie-break depends on this for reproducible event traces.
func computeSuccessors(specs map[string]StageSpec, order []string) map[string][]string {
	successors := make(map[string][]string, len(specs))
	for _, name := range order {
		for _, dep := range specs[name].DependsOn {
			successors[dep] = append(successors[dep], name)
		}
	}
	return successors
}
