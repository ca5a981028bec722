package events

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stageflow/stageflow/telemetry"
)

// Metrics is a point-in-time snapshot of a BackpressureAwareEventSink's
// delivery counters.
type Metrics struct {
	Emitted         int64
	Dropped         int64
	QueueFullCount  int64
	LastEmitTime    time.Time
	LastDropTime    time.Time
	DropRatePercent float64
}

type queuedEvent struct {
	name string
	data map[string]any
}

// BackpressureAwareEventSink wraps a downstream Sink with a bounded queue,
// draining it on a background worker so producers on the hot path never
// block on slow downstream delivery (Emit blocks only on enqueue, never on
// the downstream call itself).
type BackpressureAwareEventSink struct {
	downstream Sink
	logger     telemetry.Logger
	onDrop     func(name string, data map[string]any)

	queue chan queuedEvent

	startOnce sync.Once
	stopOnce  sync.Once
	workerWg  sync.WaitGroup
	stopCh    chan struct{}

	emitted        atomic.Int64
	dropped        atomic.Int64
	queueFullCount atomic.Int64

	mu           sync.Mutex
	lastEmitTime time.Time
	lastDropTime time.Time
	dropLogged   bool
}

// Option customizes a BackpressureAwareEventSink at construction time.
type BackpressureOption func(*BackpressureAwareEventSink)

// WithOnDrop registers a callback invoked (best-effort, from the caller's
// goroutine) whenever an event is dropped due to a full queue.
func WithOnDrop(fn func(name string, data map[string]any)) BackpressureOption {
	return func(s *BackpressureAwareEventSink) { s.onDrop = fn }
}

// WithLogger attaches a logger used to report the first drop and any
// downstream delivery error. Defaults to a no-op logger.
func WithLogger(logger telemetry.Logger) BackpressureOption {
	return func(s *BackpressureAwareEventSink) { s.logger = logger }
}

// NewBackpressureAwareEventSink constructs a sink that queues up to
// maxQueueSize events before Emit blocks and TryEmit starts dropping.
func NewBackpressureAwareEventSink(downstream Sink, maxQueueSize int, opts ...BackpressureOption) *BackpressureAwareEventSink {
	if maxQueueSize <= 0 {
		maxQueueSize = 1
	}
	s := &BackpressureAwareEventSink{
		downstream: downstream,
		logger:     telemetry.NewNoopLogger(),
		queue:      make(chan queuedEvent, maxQueueSize),
		stopCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *BackpressureAwareEventSink) ensureStarted() {
	s.startOnce.Do(func() {
		s.workerWg.Add(1)
		go s.workerLoop()
	})
}

// Emit enqueues the event, blocking until space is available or ctx is
// canceled. The worker is started lazily on first use.
func (s *BackpressureAwareEventSink) Emit(ctx context.Context, name string, data map[string]any) {
	s.ensureStarted()
	select {
	case s.queue <- queuedEvent{name: name, data: data}:
	case <-ctx.Done():
	case <-s.stopCh:
	}
}

// TryEmit enqueues the event without blocking, returning false (and
// recording a drop) if the queue is full.
func (s *BackpressureAwareEventSink) TryEmit(ctx context.Context, name string, data map[string]any) bool {
	s.ensureStarted()
	select {
	case s.queue <- queuedEvent{name: name, data: data}:
		return true
	default:
		s.recordDrop(ctx, name, data)
		return false
	}
}

func (s *BackpressureAwareEventSink) recordDrop(ctx context.Context, name string, data map[string]any) {
	s.dropped.Add(1)
	s.queueFullCount.Add(1)
	s.mu.Lock()
	s.lastDropTime = time.Now()
	first := !s.dropLogged
	s.dropLogged = true
	s.mu.Unlock()
	if first {
		s.logger.Warn(ctx, "event sink queue full, dropping events", "event", name)
	}
	if s.onDrop != nil {
		s.onDrop(name, data)
	}
}

func (s *BackpressureAwareEventSink) workerLoop() {
	defer s.workerWg.Done()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case ev := <-s.queue:
			s.deliver(ev)
		case <-s.stopCh:
			return
		case <-ticker.C:
		}
	}
}

func (s *BackpressureAwareEventSink) deliver(ev queuedEvent) {
	ctx := context.Background()
	s.downstream.Emit(ctx, ev.name, ev.data)
	s.emitted.Add(1)
	s.mu.Lock()
	s.lastEmitTime = time.Now()
	s.mu.Unlock()
}

// Stop shuts down the worker. If drain is true, Stop attempts to flush every
// currently-queued event through the downstream sink before returning,
// bounded by timeout; events still queued when timeout elapses are dropped
// and counted. Stop is idempotent.
func (s *BackpressureAwareEventSink) Stop(drain bool, timeout time.Duration) {
	s.stopOnce.Do(func() {
		if drain {
			start := time.Now()
			deadline := start.Add(timeout)
		drainLoop:
			for time.Now().Before(deadline) {
				select {
				case ev := <-s.queue:
					s.deliver(ev)
				default:
					break drainLoop
				}
			}
			if remaining := len(s.queue); remaining > 0 {
				s.dropped.Add(int64(remaining))
				s.mu.Lock()
				lastEmit := s.lastEmitTime
				s.mu.Unlock()
				s.logger.Error(context.Background(), "event sink drain timed out, dropping remaining events",
					"remaining", remaining,
					"elapsed", time.Since(start),
					"budget", timeout,
					"last_emit", lastEmit,
				)
			}
		}
		close(s.stopCh)
		s.workerWg.Wait()
	})
}

// Snapshot returns a point-in-time view of the sink's delivery counters.
func (s *BackpressureAwareEventSink) Snapshot() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	emitted := s.emitted.Load()
	dropped := s.dropped.Load()
	var rate float64
	if total := emitted + dropped; total > 0 {
		rate = math.Round((float64(dropped)/float64(total))*100*100) / 100
	}
	return Metrics{
		Emitted:         emitted,
		Dropped:         dropped,
		QueueFullCount:  s.queueFullCount.Load(),
		LastEmitTime:    s.lastEmitTime,
		LastDropTime:    s.lastDropTime,
		DropRatePercent: rate,
	}
}
