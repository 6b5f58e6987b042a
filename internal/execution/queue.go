package execution

import (
	"context"
	"sync"
)

// Queue is a bounded in-memory FIFO of requests with a single consumer.
type Queue struct {
	ch     chan Request
	mu     sync.Mutex
	closed bool
}

// NewQueue creates a queue holding up to size requests.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 256
	}
	return &Queue{ch: make(chan Request, size)}
}

// Enqueue adds a request. Returns false when the queue is full or closed.
func (q *Queue) Enqueue(r Request) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	select {
	case q.ch <- r:
		return true
	default:
		return false
	}
}

// Drain consumes requests in FIFO order until ctx is cancelled or the queue
// is closed and empty. Intended for exactly one consumer.
func (q *Queue) Drain(ctx context.Context, handler func(Request)) {
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-q.ch:
			if !ok {
				return
			}
			handler(r)
		}
	}
}

// Len returns current queue depth.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops accepting requests. Already-queued requests remain drainable.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}
