package events

import (
	"context"
	"sync"
)

// ChunkQueue is a bounded FIFO buffer for discrete units of streamed output
// (tool results, stage artifacts) that a producer emits faster than a
// consumer drains. At capacity it either drops the oldest queued item to
// make room for the new one (drop_on_overflow=true) or rejects the new item
// outright (drop_on_overflow=false); either way it reports the drop through
// a Sink as stream.chunk_dropped{reason:"overflow"} rather than raising.
type ChunkQueue struct {
	mu             sync.Mutex
	items          []any
	maxSize        int
	dropOnOverflow bool
	sink           Sink
}

// NewChunkQueue constructs a ChunkQueue bounded at maxSize. sink may be nil,
// in which case overflow is silent.
func NewChunkQueue(maxSize int, dropOnOverflow bool, sink Sink) *ChunkQueue {
	if maxSize <= 0 {
		maxSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	return &ChunkQueue{maxSize: maxSize, dropOnOverflow: dropOnOverflow, sink: sink}
}

// Push enqueues item, applying the overflow policy if the queue is already
// at capacity. Returns true if item was accepted into the queue.
func (q *ChunkQueue) Push(ctx context.Context, item any) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) < q.maxSize {
		q.items = append(q.items, item)
		return true
	}

	if !q.dropOnOverflow {
		q.sink.TryEmit(ctx, "stream.chunk_dropped", map[string]any{"reason": "overflow"})
		return false
	}

	q.items = q.items[1:]
	q.items = append(q.items, item)
	q.sink.TryEmit(ctx, "stream.chunk_dropped", map[string]any{"reason": "overflow"})
	return true
}

// Drain removes and returns every queued item in FIFO order.
func (q *ChunkQueue) Drain() []any {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

// Len reports the number of items currently queued.
func (q *ChunkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
