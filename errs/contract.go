// Package errs defines the stable error taxonomy shared across the pipeline
// builder and the DAG scheduler: documented contract error codes, the
// sentinel-wrapped error types that carry them, and the runtime conflict
// errors raised by the context bags.
package errs

import "sync"

// ContractErrorInfo is the stable, documented description attached to a
// contract error code. Callers are expected to show Summary/FixHint to
// humans and treat Code as the machine-stable identifier.
type ContractErrorInfo struct {
	// Code is the stable error code, e.g. "CONTRACT-004-CYCLE".
	Code string
	// Summary is a one-line human description of the failure class.
	Summary string
	// FixHint suggests the most common remedy.
	FixHint string
	// DocURL points to extended documentation, if any.
	DocURL string
	// Context carries free-form diagnostic details specific to the occurrence
	// (e.g. the offending stage name). Populated by the error site, not the
	// registry entry.
	Context map[string]any
}

const (
	// CodeMissingDep is raised when a stage declares a dependency on a stage
	// name that was never registered with the builder.
	CodeMissingDep = "CONTRACT-004-MISSING_DEP"
	// CodeCycle is raised when the dependency graph contains a cycle.
	CodeCycle = "CONTRACT-004-CYCLE"
	// CodeConflict is raised when composing two builders that declare the same
	// stage name with different runners, dependencies, or conditional flags.
	CodeConflict = "CONTRACT-004-CONFLICT"
	// CodeEmpty is raised when build() is called on a builder with no stages.
	CodeEmpty = "CONTRACT-004-EMPTY"
)

var registry = map[string]ContractErrorInfo{
	CodeMissingDep: {
		Code:    CodeMissingDep,
		Summary: "a stage declares a dependency on a stage name that was never registered",
		FixHint: "add the missing stage to the builder before calling build(), or remove it from depends_on",
		DocURL:  "https://pkg.go.dev/github.com/stageflow/stageflow/graph#Builder",
	},
	CodeCycle: {
		Code:    CodeCycle,
		Summary: "the dependency graph contains a cycle",
		FixHint: "break the cycle by removing one of the edges in cycle_path",
		DocURL:  "https://pkg.go.dev/github.com/stageflow/stageflow/graph#Builder",
	},
	CodeConflict: {
		Code:    CodeConflict,
		Summary: "composing two builders that declare the same stage name with different specs",
		FixHint: "rename one of the conflicting stages, or make both specs identical so they collapse",
		DocURL:  "https://pkg.go.dev/github.com/stageflow/stageflow/graph#Builder.Compose",
	},
	CodeEmpty: {
		Code:    CodeEmpty,
		Summary: "build() was called on a builder with no registered stages",
		FixHint: "register at least one stage before calling build()",
		DocURL:  "https://pkg.go.dev/github.com/stageflow/stageflow/graph#Builder.Build",
	},
}

var registryMu sync.RWMutex

// Lookup returns the registered ContractErrorInfo for code. The returned
// value's Context field is always nil; callers that need to attach
// occurrence-specific context should copy the value and set Context
// themselves (see WithContext).
func Lookup(code string) (ContractErrorInfo, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	info, ok := registry[code]
	return info, ok
}

// WithContext returns a copy of info with Context set to ctx.
func (info ContractErrorInfo) WithContext(ctx map[string]any) ContractErrorInfo {
	info.Context = ctx
	return info
}
