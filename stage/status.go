// Package stage defines the vocabulary a stage runner speaks: its execution
// status, its classification, and the immutable output record it returns.
// Everything here is a value type; the scheduler and interceptors are the
// only packages that interpret these values.
package stage

// Status is the tagged outcome of a single stage attempt. The scheduler
// drives every downstream decision (successor readiness, retry, pipeline
// cancellation, wide-event summaries) off this value.
type Status string

const (
	// StatusOK indicates the stage produced a usable result.
	StatusOK Status = "OK"
	// StatusSkip indicates the stage was not executed, typically because a
	// conditional guard's skip_reason input was set.
	StatusSkip Status = "SKIP"
	// StatusCancel indicates the stage observed cancellation and stopped
	// cooperatively. Returning this status triggers pipeline-wide cancellation.
	StatusCancel Status = "CANCEL"
	// StatusFail indicates the stage failed. Fail outputs carry a non-empty
	// Error and may set Retryable.
	StatusFail Status = "FAIL"
	// StatusRetry indicates the stage wants another attempt. The retry
	// interceptor is responsible for turning this into an actual re-invocation;
	// a Retry status that reaches the scheduler without an interceptor handling
	// it is treated as a terminal Fail.
	StatusRetry Status = "RETRY"
)

// Kind classifies a stage for interceptor policy decisions (for example, the
// idempotency interceptor applies to WORK stages by default).
type Kind string

const (
	// KindWork is the default classification: a stage that performs the
	// pipeline's actual business logic.
	KindWork Kind = "WORK"
	// KindEnrichment is a stage that augments context without being the
	// primary deliverable (e.g., fetching supporting documents).
	KindEnrichment Kind = "ENRICHMENT"
	// KindRouter is a stage whose output steers which conditional branches run.
	KindRouter Kind = "ROUTER"
	// KindGuard is a stage under guard-retry: repeated attempts hashed for
	// stagnation until it converges, exhausts, or times out.
	KindGuard Kind = "GUARD"
)
