package pipectx

import (
	"github.com/stageflow/stageflow/errs"
)

// StageInputs is the read-only view of the output bag a running stage sees,
// restricted to the dependencies it declared in depends_on. In strict mode
// (the default), reading a key scoped to an undeclared dependency fails with
// UndeclaredDependencyError instead of silently returning nothing.
type StageInputs struct {
	stageName string
	declared  map[string]bool
	bag       *OutputBag
	strict    bool
}

// NewStageInputs builds the declared-dependency view for stageName against
// bag. dependsOn lists the dependency stage names the owning stage declared.
func NewStageInputs(stageName string, dependsOn []string, bag *OutputBag, strict bool) StageInputs {
	declared := make(map[string]bool, len(dependsOn))
	for _, d := range dependsOn {
		declared[d] = true
	}
	return StageInputs{stageName: stageName, declared: declared, bag: bag, strict: strict}
}

// GetFrom returns the value stored under key in depStage's latest output, if
// depStage was declared as a dependency (or strict mode is off) and it
// produced that key.
func (in StageInputs) GetFrom(depStage, key string) (any, error) {
	if in.strict && !in.declared[depStage] {
		return nil, &errs.UndeclaredDependencyError{Stage: in.stageName, Dependency: depStage}
	}
	out, _, ok := in.bag.Latest(depStage)
	if !ok {
		return nil, nil
	}
	data := out.Data()
	if data == nil {
		return nil, nil
	}
	v, ok := data[key]
	if !ok {
		return nil, nil
	}
	return v, nil
}

// Get looks up key across every declared dependency's latest output. If
// exactly one declared dependency produced key, its value is returned; if
// more than one did, Get returns an UndeclaredDependencyError-free ambiguity
// signal via ok=false so callers fall back to GetFrom for disambiguation.
func (in StageInputs) Get(key string) (value any, ok bool) {
	var found any
	count := 0
	for dep := range in.declared {
		out, _, has := in.bag.Latest(dep)
		if !has {
			continue
		}
		if v, present := out.Data()[key]; present {
			found = v
			count++
		}
	}
	if count != 1 {
		return nil, false
	}
	return found, true
}

// Declared reports whether depStage was declared as a dependency.
func (in StageInputs) Declared(depStage string) bool {
	return in.declared[depStage]
}

// Snapshot returns every declared dependency's latest output data, keyed by
// dependency stage name. Used by the idempotency interceptor to compute a
// stable fingerprint over a stage's declared inputs.
func (in StageInputs) Snapshot() map[string]map[string]any {
	out := make(map[string]map[string]any, len(in.declared))
	for dep := range in.declared {
		if produced, _, ok := in.bag.Latest(dep); ok {
			out[dep] = produced.Data()
		}
	}
	return out
}
