package interceptor_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stageflow/stageflow/cancel"
	"github.com/stageflow/stageflow/events"
	"github.com/stageflow/stageflow/identity"
	"github.com/stageflow/stageflow/pipectx"
)

// recordingSink is a test double implementing events.Sink that records every
// emitted event name for assertions, shared across this package's test files.
type recordingSink struct {
	mu       sync.Mutex
	events   []string
	payloads []map[string]any
}

func (s *recordingSink) Emit(_ context.Context, name string, data map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, name)
	s.payloads = append(s.payloads, data)
}

func (s *recordingSink) TryEmit(ctx context.Context, name string, data map[string]any) bool {
	s.Emit(ctx, name, data)
	return true
}

func (s *recordingSink) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	copy(out, s.events)
	return out
}

// payloadFor returns the data map of the first recorded event named name, or
// nil if none was emitted under that name.
func (s *recordingSink) payloadFor(name string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.events {
		if n == name {
			return s.payloads[i]
		}
	}
	return nil
}

// newStageContextWithSink builds a StageContext wired to sink, for tests that
// need to assert on emitted diagnostic events. token defaults to an uncanceled
// token when nil.
func newStageContextWithSink(t *testing.T, sink events.Sink, kind string, token *cancel.Token) pipectx.StageContext {
	t.Helper()
	if token == nil {
		token = cancel.NewToken(nil)
	}
	snap := identity.CreateSnapshot(identity.RunIdentity{})
	pc := pipectx.New(snap, "demo", "", sink, token)
	return pipectx.NewStageContext(pc, "s", nil, 1, true, kind)
}
