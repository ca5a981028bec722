// Package graph implements pipeline construction: stage specs, the
// compiled DAG, and the builder that validates and assembles them.
package graph

import (
	"strings"
	"time"

	"github.com/stageflow/stageflow/errs"
	"github.com/stageflow/stageflow/pipectx"
	"github.com/stageflow/stageflow/stage"
)

// Stage is the capability every stage runner implements.
type Stage interface {
	Execute(sctx pipectx.StageContext) stage.Output
}

// StageFunc adapts a plain function to Stage.
type StageFunc func(sctx pipectx.StageContext) stage.Output

// Execute implements Stage.
func (f StageFunc) Execute(sctx pipectx.StageContext) stage.Output { return f(sctx) }

// GuardRetryPolicy configures the guard-retry runtime for a stage: repeated
// attempts until the stage returns a non-RETRY output whose payload differs
// from the previous attempt's, returns FAIL, exhausts max_attempts or
// stagnation_window (consecutive attempts whose payload hash equals the
// previous one), or exceeds timeout.
type GuardRetryPolicy struct {
	MaxAttempts      int
	StagnationWindow int
	Timeout          time.Duration
}

// StageSpec is the immutable declaration of a single stage within a
// pipeline: its name, runner, declared dependencies, and execution
// classification. Invariants enforced by the builder: name is non-empty and
// unique within a pipeline; name does not appear in its own depends_on.
type StageSpec struct {
	Name        string
	Runner      Stage
	DependsOn   []string
	Conditional bool
	Kind        stage.Kind
	Guard       *GuardRetryPolicy
}

// codeInvalidName is not one of the four stable contract codes; it covers
// the name-shape check (empty or whitespace-only) which the stable codes
// don't name individually.
const codeInvalidName = "CONTRACT-004-INVALID_NAME"

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errs.NewPipelineValidationError(codeInvalidName, map[string]any{"reason": "stage name must not be empty or whitespace"})
	}
	return nil
}
