package scheduler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/stageflow/stageflow/graph"
	"github.com/stageflow/stageflow/pipectx"
	"github.com/stageflow/stageflow/stage"
)

// runGuarded drives a stage under a graph.GuardRetryPolicy: it reattempts the
// stage, hashing each attempt's output payload to detect stagnation, until
// the stage converges, exhausts its attempt/stagnation budget, or exceeds its
// wall-clock timeout (spec §4.4).
func (s *Scheduler) runGuarded(ctx context.Context, pc *pipectx.PipelineContext, spec graph.StageSpec) stage.Output {
	policy := spec.Guard
	deadline := time.Now().Add(policy.Timeout)

	var (
		prevHash      string
		stagnationRun int
		wasStagnant   bool
		last          stage.Output
		lastAttempt   int
		exhausted     bool
		timedOut      bool
	)

	for attempt := 1; ; attempt++ {
		if policy.Timeout > 0 && time.Now().After(deadline) {
			timedOut = true
			break
		}

		sctx := pipectx.NewStageContext(pc, spec.Name, spec.DependsOn, attempt, s.strictInputs, string(spec.Kind))
		pc.Emit(ctx, "guard_retry.attempt", map[string]any{"stage": spec.Name, "attempt": attempt})

		runner := func() stage.Output { return spec.Runner.Execute(sctx) }
		out := s.chain.Execute(sctx, runner)
		last = out
		lastAttempt = attempt
		_ = pc.OutputBag().Set(spec.Name, attempt, out, pipectx.WriteGuard)

		if out.Status() == stage.StatusFail {
			break
		}

		hash := hashPayload(out.Data())
		stagnant := attempt > 1 && hash == prevHash
		if stagnant {
			stagnationRun++
			wasStagnant = true
		} else {
			if wasStagnant {
				pc.Emit(ctx, "guard_retry.recovered", map[string]any{"stage": spec.Name, "attempt": attempt})
			}
			stagnationRun = 0
			wasStagnant = false
		}
		prevHash = hash

		converged := !stagnant && out.Status() != stage.StatusRetry
		if converged {
			break
		}
		if attempt >= policy.MaxAttempts || (policy.StagnationWindow > 0 && stagnationRun >= policy.StagnationWindow) {
			exhausted = true
			break
		}

		pc.Emit(ctx, "guard_retry.scheduled", map[string]any{"stage": spec.Name, "attempt": attempt + 1})
	}

	switch {
	case timedOut:
		last = stage.Fail("guard timeout", false)
	case exhausted:
		if last.Status() == stage.StatusRetry {
			last = stage.Fail(last.Reason(), false)
		}
		pc.Emit(ctx, "guard_retry.exhausted", map[string]any{"stage": spec.Name})
	}

	// Record the terminal output (including a timeout or exhaustion FAIL) as
	// the stage's latest entry before finalizing.
	_ = pc.OutputBag().Set(spec.Name, lastAttempt, last, pipectx.WriteGuard)
	pc.OutputBag().Finalize(spec.Name)
	if last.Status() == stage.StatusFail {
		pc.Emit(ctx, "stage.failed", map[string]any{"stage": spec.Name, "error": last.Error()})
	} else {
		pc.Emit(ctx, "stage.completed", map[string]any{"stage": spec.Name, "data_keys": sortedKeys(last.Data())})
	}
	return last
}

// hashPayload computes a stable hash over data by relying on
// encoding/json's built-in sorted-key map serialization, so map iteration
// order never affects the stagnation signal.
func hashPayload(data map[string]any) string {
	raw, err := json.Marshal(data)
	if err != nil {
		raw = []byte{}
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
