package stage

import (
	"context"
	"errors"
)

// Artifact is a structured, named byproduct of a stage's execution (a
// generated file reference, a URL, a binary payload descriptor). Artifacts
// ride along inside a StageOutput and are opaque to the scheduler.
type Artifact struct {
	// Name identifies the artifact within the stage's output.
	Name string
	// Kind classifies the artifact for consumers (e.g. "document", "link").
	Kind string
	// Data carries the artifact payload. Callers agree on its shape out of band.
	Data map[string]any
}

// Event is a structured record a stage emits as part of its output. This is
// distinct from the wire events the event sink delivers (stage.started,
// stage.completed, ...): a stage.Event travels inside a StageOutput and is
// only interpreted by whoever reads that stage's declared inputs downstream.
type Event struct {
	// Name identifies the event within the stage's output.
	Name string
	// Data carries the event payload.
	Data map[string]any
}

// Output is the immutable result of running a stage. It is constructed
// exclusively through the OK/Skip/Cancel/Fail/Retry factories below and never
// mutated after construction; callers that need a variant should build a new
// value from scratch or from the accessors.
type Output struct {
	status    Status
	data      map[string]any
	artifacts []Artifact
	events    []Event
	metadata  map[string]any
	err       string
	reason    string
	retryable bool
	cause     error
}

// Status returns the stage's terminal (or retry) status for this attempt.
func (o Output) Status() Status { return o.status }

// Data returns the stage's keyed result map. The returned map must not be
// mutated by callers; Output does not defensively copy it on read for
// performance, matching the "opaque and non-mutating after construction"
// contract from the caller's side.
func (o Output) Data() map[string]any { return o.data }

// Artifacts returns the ordered sequence of artifacts produced by the stage.
func (o Output) Artifacts() []Artifact { return o.artifacts }

// Events returns the ordered sequence of structured events the stage emitted.
func (o Output) Events() []Event { return o.events }

// Metadata returns the stage's free-form metadata map.
func (o Output) Metadata() map[string]any { return o.metadata }

// Error returns the failure message. Only meaningful when Status is FAIL.
func (o Output) Error() string { return o.err }

// Reason returns the human-readable explanation for SKIP, CANCEL, or RETRY.
func (o Output) Reason() string { return o.reason }

// Retryable reports whether a FAIL or RETRY output may be safely reattempted.
// Meaningless for OK/SKIP/CANCEL.
func (o Output) Retryable() bool { return o.retryable }

// Cause returns the underlying Go error that produced a FAIL or RETRY
// output, if the stage attached one via WithCause. It is nil unless a stage
// author explicitly sets it, and is never derived from Error/Reason.
func (o Output) Cause() error { return o.cause }

// Option customizes an Output at construction time.
type Option func(*Output)

// WithData attaches the stage's keyed result map.
func WithData(data map[string]any) Option { return func(o *Output) { o.data = data } }

// WithArtifacts attaches the stage's ordered artifacts.
func WithArtifacts(artifacts ...Artifact) Option {
	return func(o *Output) { o.artifacts = artifacts }
}

// WithEvents attaches the stage's ordered structured events.
func WithEvents(events ...Event) Option { return func(o *Output) { o.events = events } }

// WithMetadata attaches the stage's free-form metadata map.
func WithMetadata(metadata map[string]any) Option { return func(o *Output) { o.metadata = metadata } }

// WithCause attaches the underlying Go error behind a FAIL or RETRY output.
// The retry interceptor's RetryClassifier and PublicError consult it; err's
// text is never surfaced verbatim to either, since both may cross a UI or
// event-log boundary.
func WithCause(err error) Option { return func(o *Output) { o.cause = err } }

// OK constructs a successful Output.
func OK(opts ...Option) Output { return build(StatusOK, opts...) }

// Skip constructs a skipped Output with the given human-readable reason.
func Skip(reason string, opts ...Option) Output {
	o := build(StatusSkip, opts...)
	o.reason = reason
	return o
}

// Cancel constructs a canceled Output with the given human-readable reason.
func Cancel(reason string, opts ...Option) Output {
	o := build(StatusCancel, opts...)
	o.reason = reason
	return o
}

// Fail constructs a failed Output. err is required and non-empty; retryable
// tells the retry interceptor whether reattempting is safe.
func Fail(err string, retryable bool, opts ...Option) Output {
	o := build(StatusFail, opts...)
	o.err = err
	o.retryable = retryable
	return o
}

// Retry constructs an Output requesting another attempt, with reason
// explaining why and retryable indicating whether the retry interceptor
// should honor the request.
func Retry(reason string, retryable bool, opts ...Option) Output {
	o := build(StatusRetry, opts...)
	o.reason = reason
	o.retryable = retryable
	return o
}

func build(status Status, opts ...Option) Output {
	o := Output{status: status}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// Public-safe failure summaries. These are the only strings PublicError ever
// returns; none of them can carry data from a stage's raw error text.
const (
	PublicErrorTimeout      = "the operation did not complete within its deadline"
	PublicErrorUnclassified = "an internal error occurred"
)

// PublicError builds a deterministic, redaction-safe summary of a FAIL
// output's failure, suitable for direct display in a UI. It never echoes o's
// raw Error() text or Cause() message, only a fixed classification drawn
// from Cause(); it returns "" for any status other than FAIL.
func PublicError(o Output) string {
	if o.status != StatusFail {
		return ""
	}
	if o.cause != nil && errors.Is(o.cause, context.DeadlineExceeded) {
		return PublicErrorTimeout
	}
	return PublicErrorUnclassified
}
