// Package cancel provides the structured-concurrency primitives the
// scheduler and sub-pipeline spawner build on: a one-shot cooperative
// cancellation token with callbacks, a LIFO cleanup registry, and a task
// group that ties the two together.
package cancel

import (
	"context"
	"fmt"
	"sync"
)

// Logger is the minimal logging capability Token needs to report a suppressed
// callback panic or error. telemetry.Logger satisfies this interface; tests
// typically pass nil, which is treated as a no-op.
type Logger interface {
	Error(ctx context.Context, msg string, keyvals ...any)
}

// Token is a one-shot cooperative cancellation signal. The first call to
// Cancel wins: its reason is recorded and every subsequent Cancel call is
// ignored. Callbacks registered via OnCancel run immediately, synchronously,
// if the token is already canceled; otherwise they are stored and run in
// registration order when Cancel eventually fires.
//
// Callback panics and errors are suppressed (logged, not propagated) so a
// misbehaving subscriber can never prevent other subscribers from observing
// cancellation.
type Token struct {
	mu        sync.Mutex
	canceled  bool
	reason    string
	callbacks []func(reason string)
	logger    Logger
}

// NewToken constructs an uncanceled Token. logger may be nil.
func NewToken(logger Logger) *Token {
	return &Token{logger: logger}
}

// Cancel records reason and invokes every registered callback, in
// registration order, exactly once across the token's lifetime. Calls after
// the first are no-ops; in particular, the recorded Reason is always the
// first caller's reason.
func (t *Token) Cancel(reason string) {
	t.mu.Lock()
	if t.canceled {
		t.mu.Unlock()
		return
	}
	t.canceled = true
	t.reason = reason
	callbacks := t.callbacks
	t.mu.Unlock()

	for _, cb := range callbacks {
		t.runCallback(cb, reason)
	}
}

// Canceled reports whether Cancel has been called.
func (t *Token) Canceled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.canceled
}

// Reason returns the reason recorded by the first Cancel call, or "" if the
// token has not been canceled.
func (t *Token) Reason() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason
}

// OnCancel registers cb to run when the token is canceled. If the token is
// already canceled, cb runs synchronously before OnCancel returns.
func (t *Token) OnCancel(cb func(reason string)) {
	if cb == nil {
		return
	}
	t.mu.Lock()
	if t.canceled {
		reason := t.reason
		t.mu.Unlock()
		t.runCallback(cb, reason)
		return
	}
	t.callbacks = append(t.callbacks, cb)
	t.mu.Unlock()
}

func (t *Token) runCallback(cb func(reason string), reason string) {
	defer func() {
		if r := recover(); r != nil && t.logger != nil {
			t.logger.Error(context.Background(), "cancellation callback panicked",
				"component", "cancel.Token", "panic", fmt.Sprint(r))
		}
	}()
	cb(reason)
}
