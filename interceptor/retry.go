package interceptor

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/stageflow/stageflow/pipectx"
	"github.com/stageflow/stageflow/stage"
)

// BackoffKind selects the delay growth curve between retry attempts.
type BackoffKind int

const (
	// BackoffExponential computes min(max, base * 2^(attempt-1)).
	BackoffExponential BackoffKind = iota
	// BackoffLinear computes min(max, base * attempt).
	BackoffLinear
	// BackoffConstant always returns base.
	BackoffConstant
)

// JitterKind selects how randomness is applied to a computed backoff delay.
type JitterKind int

const (
	// JitterNone applies the computed delay unchanged.
	JitterNone JitterKind = iota
	// JitterFull samples uniformly from [0, delay].
	JitterFull
	// JitterEqual samples delay/2 + uniform(0, delay/2).
	JitterEqual
	// JitterDecorrelated samples uniform(base, min(max, prev*3)), seeded by
	// the previous attempt's delay.
	JitterDecorrelated
)

// RetryClassifier turns the error behind a retryable output into a stable
// reason code, recorded on stage.retry_scheduled/stage.retry_exhausted
// events alongside the raw retry decision. It never changes whether a retry
// happens; it only enriches the event payload.
type RetryClassifier func(err error) (retryable bool, reason string)

// defaultRetryClassifier classifies context.DeadlineExceeded as retryable
// "timeout"; every other error, including nil, is non-retryable
// "unclassified".
func defaultRetryClassifier(err error) (bool, string) {
	if errors.Is(err, context.DeadlineExceeded) {
		return true, "timeout"
	}
	return false, "unclassified"
}

// RetryConfig configures the retry interceptor's backoff/jitter policy.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Backoff     BackoffKind
	Jitter      JitterKind
	// Classifier labels the error behind each retryable output with a stable
	// reason code for observability. Defaults to defaultRetryClassifier.
	Classifier RetryClassifier
}

// RetryInterceptor reattempts a stage when it returns
// stage.Retry(retryable=true) or stage.Fail(retryable=true), applying RetryConfig's backoff/jitter policy
// between attempts.
type RetryInterceptor struct {
	priority int
	cfg      RetryConfig
	rand     *rand.Rand
}

// NewRetryInterceptor constructs a RetryInterceptor at priority.
func NewRetryInterceptor(priority int, cfg RetryConfig) *RetryInterceptor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Classifier == nil {
		cfg.Classifier = defaultRetryClassifier
	}
	//nolint:gosec // jitter does not need cryptographic randomness
	return &RetryInterceptor{priority: priority, cfg: cfg, rand: rand.New(rand.NewSource(1))}
}

// Priority implements Interceptor.
func (r *RetryInterceptor) Priority() int { return r.priority }

// Around implements Interceptor: it invokes next, and on a retryable
// stage.Retry or stage.Fail output, sleeps for the configured backoff/jitter delay and
// invokes next again, up to MaxAttempts.
func (r *RetryInterceptor) Around(sctx pipectx.StageContext, next Next) stage.Output {
	var prevDelay time.Duration
	var last stage.Output
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		out := next()
		if (out.Status() != stage.StatusRetry && out.Status() != stage.StatusFail) || !out.Retryable() {
			return out
		}
		last = out
		if attempt == r.cfg.MaxAttempts {
			break
		}
		delay := r.computeDelay(attempt, prevDelay)
		prevDelay = delay
		_, reason := r.cfg.Classifier(out.Cause())
		sctx.Emit(context.Background(), "stage.retry_scheduled", map[string]any{
			"stage":    sctx.StageName,
			"attempt":  attempt,
			"delay_ms": delay.Milliseconds(),
			"reason":   reason,
		})
		time.Sleep(delay)
		if sctx.Token().Canceled() {
			break
		}
	}
	_, exhaustedReason := r.cfg.Classifier(last.Cause())
	sctx.Emit(context.Background(), "stage.retry_exhausted", map[string]any{
		"stage":    sctx.StageName,
		"attempts": r.cfg.MaxAttempts,
		"reason":   exhaustedReason,
	})
	if last.Status() == stage.StatusRetry {
		return stage.Fail(last.Reason(), false)
	}
	return last
}

func (r *RetryInterceptor) computeDelay(attempt int, prevDelay time.Duration) time.Duration {
	base := float64(r.cfg.BaseDelay)
	max := float64(r.cfg.MaxDelay)
	var raw float64
	switch r.cfg.Backoff {
	case BackoffLinear:
		raw = base * float64(attempt)
	case BackoffConstant:
		raw = base
	default: // BackoffExponential
		raw = base * math.Pow(2, float64(attempt-1))
	}
	if max > 0 && raw > max {
		raw = max
	}
	delay := time.Duration(raw)
	switch r.cfg.Jitter {
	case JitterFull:
		delay = time.Duration(r.rand.Float64() * float64(delay))
	case JitterEqual:
		half := float64(delay) / 2
		delay = time.Duration(half + r.rand.Float64()*half)
	case JitterDecorrelated:
		lower := float64(r.cfg.BaseDelay)
		upper := float64(prevDelay) * 3
		if prevDelay == 0 {
			upper = float64(r.cfg.BaseDelay)
		}
		if max > 0 && upper > max {
			upper = max
		}
		if upper < lower {
			upper = lower
		}
		delay = time.Duration(lower + r.rand.Float64()*(upper-lower))
	}
	return delay
}
