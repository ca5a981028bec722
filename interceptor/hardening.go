package interceptor

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"golang.org/x/time/rate"

	"github.com/stageflow/stageflow/pipectx"
	"github.com/stageflow/stageflow/stage"
)

// ImmutabilityInterceptor serializes ctx.Snapshot() before invoking next and
// compares it with the serialized snapshot after, panicking if a stage
// mutated the shared snapshot, including in place through a map it exposes
// (such as Metadata()). Run this early (low priority) so it wraps every other
// interceptor's view of the stage call.
type ImmutabilityInterceptor struct {
	priority int
}

// NewImmutabilityInterceptor constructs an ImmutabilityInterceptor at
// priority.
func NewImmutabilityInterceptor(priority int) *ImmutabilityInterceptor {
	return &ImmutabilityInterceptor{priority: priority}
}

// Priority implements Interceptor.
func (h *ImmutabilityInterceptor) Priority() int { return h.priority }

// Around implements Interceptor.
func (h *ImmutabilityInterceptor) Around(sctx pipectx.StageContext, next Next) stage.Output {
	// A Snapshot copy shares its maps with the stored snapshot, so comparing
	// copies would miss in-place mutation; compare serialized forms instead.
	before, _ := json.Marshal(sctx.Snapshot().ToDict())
	out := next()
	after, _ := json.Marshal(sctx.Snapshot().ToDict())
	if !reflect.DeepEqual(before, after) {
		panic(fmt.Sprintf("stageflow: stage %q mutated its context snapshot", sctx.StageName))
	}
	return out
}

// ContextSizeInterceptor samples the serialized size of the run's context
// bag after each stage and emits context.size_warning when growth exceeds
// ThresholdBytes, throttled by a token-bucket limiter so a pathologically
// chatty stage can't flood the sink with warnings.
type ContextSizeInterceptor struct {
	priority       int
	thresholdBytes int
	limiter        *rate.Limiter

	lastSize int
}

// NewContextSizeInterceptor constructs a ContextSizeInterceptor at
// priority. warningsPerSecond bounds how often context.size_warning may be
// emitted (burst 1); thresholdBytes is the growth, in bytes, that triggers
// a warning.
func NewContextSizeInterceptor(priority, thresholdBytes int, warningsPerSecond rate.Limit) *ContextSizeInterceptor {
	return &ContextSizeInterceptor{
		priority:       priority,
		thresholdBytes: thresholdBytes,
		limiter:        rate.NewLimiter(warningsPerSecond, 1),
	}
}

// Priority implements Interceptor.
func (h *ContextSizeInterceptor) Priority() int { return h.priority }

// Around implements Interceptor.
func (h *ContextSizeInterceptor) Around(sctx pipectx.StageContext, next Next) stage.Output {
	out := next()
	size := h.serializedSize(sctx)
	growth := size - h.lastSize
	h.lastSize = size
	if growth > h.thresholdBytes && h.limiter.Allow() {
		sctx.Emit(context.Background(), "context.size_warning", map[string]any{
			"stage":      sctx.StageName,
			"size_bytes": size,
			"growth":     growth,
			"threshold":  h.thresholdBytes,
		})
	}
	return out
}

func (h *ContextSizeInterceptor) serializedSize(sctx pipectx.StageContext) int {
	raw, err := json.Marshal(sctx.ContextBag().ToDict())
	if err != nil {
		return h.lastSize
	}
	return len(raw)
}
