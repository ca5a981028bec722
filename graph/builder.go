package graph

import (
	"fmt"
	"reflect"

	"github.com/stageflow/stageflow/errs"
	"github.com/stageflow/stageflow/stage"
)

type color int

const (
	white color = iota
	gray
	black
)

// Builder accumulates stage specs and validates them into a StageGraph.
// The zero value is a usable empty builder.
type Builder struct {
	name  string
	order []string
	specs map[string]StageSpec
}

// NewBuilder constructs an empty, named Builder. name is used only to
// derive Compose's synthesized name; it has no bearing on validation.
func NewBuilder(name string) *Builder {
	return &Builder{name: name, specs: make(map[string]StageSpec)}
}

// Stage registers a stage spec with the builder. opts apply to the spec
// before registration. Stage does not validate dependencies against
// declared names; that check (and cycle detection) runs at Build.
func (b *Builder) Stage(name string, runner Stage, dependsOn []string, opts ...SpecOption) *Builder {
	spec := StageSpec{Name: name, Runner: runner, DependsOn: append([]string(nil), dependsOn...), Kind: stage.KindWork}
	for _, opt := range opts {
		if opt != nil {
			opt(&spec)
		}
	}
	if b.specs == nil {
		b.specs = make(map[string]StageSpec)
	}
	if _, exists := b.specs[name]; !exists {
		b.order = append(b.order, name)
	}
	b.specs[name] = spec
	return b
}

// SpecOption customizes a StageSpec registered via Builder.Stage.
type SpecOption func(*StageSpec)

// WithConditional marks the stage as conditionally skippable (§4.3).
func WithConditional() SpecOption { return func(s *StageSpec) { s.Conditional = true } }

// WithKind sets the stage's classification, used by interceptors (e.g. the
// idempotency interceptor applies only to KindWork by default).
func WithKind(kind stage.Kind) SpecOption {
	return func(s *StageSpec) { s.Kind = kind }
}

// WithGuard attaches a guard-retry policy to the stage.
func WithGuard(policy GuardRetryPolicy) SpecOption {
	return func(s *StageSpec) { s.Guard = &policy }
}

// Compose returns a new Builder holding the union of b's and other's stage
// specs, named "{b.name}+{other.name}". A stage name declared identically on
// both sides collapses into one entry; a stage name declared with a
// different runner, dependency list, or conditional flag on each side fails
// with CodeConflict.
func (b *Builder) Compose(other *Builder) (*Builder, error) {
	merged := NewBuilder(fmt.Sprintf("%s+%s", b.name, other.name))
	for _, name := range b.order {
		merged.order = append(merged.order, name)
		merged.specs[name] = b.specs[name]
	}
	for _, name := range other.order {
		existing, exists := merged.specs[name]
		incoming := other.specs[name]
		if !exists {
			merged.order = append(merged.order, name)
			merged.specs[name] = incoming
			continue
		}
		if !specsEqual(existing, incoming) {
			return nil, errs.NewPipelineValidationError(errs.CodeConflict, map[string]any{"stage": name})
		}
	}
	return merged, nil
}

func specsEqual(a, b StageSpec) bool {
	sameRunner := reflect.DeepEqual(a.Runner, b.Runner)
	// reflect.DeepEqual never reports two non-nil funcs as equal, so func
	// runners (StageFunc) are compared by type and code pointer instead.
	ra, rb := reflect.ValueOf(a.Runner), reflect.ValueOf(b.Runner)
	if ra.Kind() == reflect.Func && rb.Kind() == reflect.Func {
		sameRunner = ra.Type() == rb.Type() && ra.Pointer() == rb.Pointer()
	}
	return sameRunner &&
		reflect.DeepEqual(a.DependsOn, b.DependsOn) &&
		a.Conditional == b.Conditional
}

// Build validates the accumulated specs and compiles them into an
// executable StageGraph. Validation order: empty check, name-shape check,
// missing-dependency check, then cycle detection.
func (b *Builder) Build() (*StageGraph, error) {
	if len(b.specs) == 0 {
		return nil, errs.NewPipelineValidationError(errs.CodeEmpty, nil)
	}
	for _, name := range b.order {
		if err := validateName(name); err != nil {
			return nil, err
		}
	}
	if err := validateMissingDeps(b.specs); err != nil {
		return nil, err
	}
	if err := detectCycle(b.specs, b.order); err != nil {
		return nil, err
	}
	specsCopy := make(map[string]StageSpec, len(b.specs))
	for k, v := range b.specs {
		specsCopy[k] = v
	}
	orderCopy := append([]string(nil), b.order...)
	g := &StageGraph{
		specs:      specsCopy,
		order:      orderCopy,
		successors: computeSuccessors(specsCopy, orderCopy),
	}
	g.levels = computeLevels(specsCopy, orderCopy)
	return g, nil
}

// validateMissingDeps is a single pass: collect declared names, then scan
// each spec's depends_on for a name that wasn't declared.
func validateMissingDeps(specs map[string]StageSpec) error {
	for name, spec := range specs {
		for _, dep := range spec.DependsOn {
			if _, ok := specs[dep]; !ok {
				return errs.NewPipelineValidationError(errs.CodeMissingDep, map[string]any{
					"stage":      name,
					"dependency": dep,
				})
			}
		}
	}
	return nil
}

// detectCycle runs iterative DFS with WHITE/GRAY/BLACK coloring. On
// encountering a GRAY successor (a back edge), it captures the current
// GRAY stack as the cycle path, including the repeated name at both ends.
func detectCycle(specs map[string]StageSpec, order []string) error {
	colors := make(map[string]color, len(specs))
	type frame struct {
		name string
		idx  int
	}
	for _, start := range order {
		if colors[start] != white {
			continue
		}
		stack := []frame{{name: start}}
		colors[start] = gray
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			deps := specs[top.name].DependsOn
			if top.idx >= len(deps) {
				colors[top.name] = black
				stack = stack[:len(stack)-1]
				continue
			}
			dep := deps[top.idx]
			top.idx++
			switch colors[dep] {
			case white:
				colors[dep] = gray
				stack = append(stack, frame{name: dep})
			case gray:
				path := make([]string, 0, len(stack)+1)
				for _, f := range stack {
					path = append(path, f.name)
				}
				path = append(path, dep)
				return errs.NewCycleDetectedError(cyclePathFrom(path, dep))
			case black:
				// already fully explored, no cycle through this edge
			}
		}
	}
	return nil
}

// cyclePathFrom trims path to start at the first occurrence of target so
// the reported cycle doesn't include an unrelated prefix when the cycle
// doesn't involve the DFS root.
func cyclePathFrom(path []string, target string) []string {
	for i, name := range path {
		if name == target {
			return path[i:]
		}
	}
	return path
}
