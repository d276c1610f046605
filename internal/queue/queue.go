// Package queue is the bounded FIFO handing accepted connections from the
// acceptor to the worker pool.
//
// Contract:
//   - TrySubmit never blocks. It returns nil when the queue took ownership
//     of the item, ErrFull when the queue is at capacity and ErrClosed once
//     Close has been called. On any error the caller still owns the item.
//   - Receive blocks until an item is available. It reports false only
//     after Close, once every queued item has been delivered.
//   - Close is idempotent and safe to call concurrently with TrySubmit.
package queue

import (
	"bufio"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrFull is returned by TrySubmit when the queue is at capacity.
	ErrFull = errors.New("queue is full")
	// ErrClosed is returned by TrySubmit after Close.
	ErrClosed = errors.New("queue is closed")
)

// Item is one accepted connection awaiting a worker. Reader wraps Conn and
// may already hold bytes the acceptor peeked; read the request through it.
type Item struct {
	Conn      net.Conn
	Reader    *bufio.Reader
	RequestID string
	Accepted  time.Time
}

// Stats is a snapshot of queue counters.
type Stats struct {
	Submitted uint64
	Rejected  uint64
	Depth     int
	Capacity  int
}

// Queue is a bounded multi-producer, multi-consumer FIFO.
type Queue struct {
	mu     sync.RWMutex
	items  chan Item
	closed bool

	submitted uint64
	rejected  uint64
}

// New creates a queue holding at most capacity items. Capacity below one is
// raised to one.
func New(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{items: make(chan Item, capacity)}
}

// TrySubmit enqueues item without blocking.
func (q *Queue) TrySubmit(item Item) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrClosed
	}

	select {
	case q.items <- item:
		atomic.AddUint64(&q.submitted, 1)
		return nil
	default:
		atomic.AddUint64(&q.rejected, 1)
		return ErrFull
	}
}

// Receive blocks for the next item.
func (q *Queue) Receive() (Item, bool) {
	item, ok := <-q.items
	return item, ok
}

// Close stops accepting items. Items already queued remain receivable.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.items)
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	return len(q.items)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.items)
}

// Stats returns a snapshot of the queue counters.
func (q *Queue) Stats() Stats {
	return Stats{
		Submitted: atomic.LoadUint64(&q.submitted),
		Rejected:  atomic.LoadUint64(&q.rejected),
		Depth:     q.Len(),
		Capacity:  q.Cap(),
	}
}
