package engine

import "sync"

// batchQueue is a thread-safe FIFO queue of pending batches.
//
// The queue is unbounded so network receivers never block on a slow
// reconciliation.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type batchQueue struct {
	mu      sync.Mutex
	batches []Batch
	closed  bool
	signal  chan struct{} // Signals batch availability (buffered, size 1)
}

func newBatchQueue() *batchQueue {
	return &batchQueue{
		batches: make([]Batch, 0, 16),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue adds a batch to the back of the queue.
// Returns false if the queue is closed.
func (q *batchQueue) Enqueue(b Batch) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.batches = append(q.batches, b)

	// Non-blocking; the buffer of 1 coalesces signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front batch without blocking.
// Returns (Batch{}, false) if the queue is empty.
func (q *batchQueue) TryDequeue() (Batch, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.batches) == 0 {
		return Batch{}, false
	}

	b := q.batches[0]

	// Drop the reference so the element slice can be collected
	q.batches[0] = Batch{}

	if len(q.batches) == 1 {
		q.batches = q.batches[:0]
	} else {
		q.batches = q.batches[1:]
	}

	return b, true
}

// Wait returns a channel that signals when batches may be available.
// The channel is closed when the queue is closed.
func (q *batchQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *batchQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.batches)
}

func (q *batchQueue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close signals that no more batches will be enqueued.
func (q *batchQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
