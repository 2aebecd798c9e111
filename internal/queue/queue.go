// Package queue serializes decoded commands from many connection handlers into
// the single execution consumer.
//
//	handler-1 ──Enqueue──┐
//	handler-2 ──Enqueue──┼──► FIFO ──Dequeue──► consumer ──Resolve──► Pending.Done()
//	handler-3 ──Enqueue──┘
//
// Each Enqueue returns a *Pending that the handler waits on; the consumer resolves
// it exactly once.
package queue

import (
	"errors"
	"sync"
	"time"

	"robotbridge/internal/command"
)

var ErrClosed = errors.New("command queue is closed")

// Queue is an unbounded FIFO, safe for many producers and one consumer.
type Queue struct {
	mu     sync.Mutex
	items  []*Pending
	seq    uint64
	closed bool
	notify chan struct{} // capacity 1, coalesces wake-ups for the consumer
}

func New() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Enqueue appends a command and returns its completion handle. Arrival order is
// the order in which Enqueue acquires the queue lock.
func (q *Queue) Enqueue(cmd command.Command) (*Pending, error) {
	p := newPending(cmd)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrClosed
	}
	q.seq++
	p.Seq = q.seq
	p.EnqueuedAt = time.Now()
	p.mu.Lock()
	p.enqueued = true
	p.mu.Unlock()
	q.items = append(q.items, p)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return p, nil
}

// Dequeue removes the oldest command, waiting up to timeout for one to arrive.
// It returns false when the wait expires or the queue is closed and drained.
func (q *Queue) Dequeue(timeout time.Duration) (*Pending, bool) {
	if p, ok := q.pop(); ok {
		return p, true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-q.notify:
			if p, ok := q.pop(); ok {
				return p, true
			}
			if q.isClosed() {
				return nil, false
			}
		case <-timer.C:
			return q.pop()
		}
	}
}

func (q *Queue) pop() (*Pending, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	p := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return p, true
}

// Len returns the number of commands waiting for the consumer.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close rejects further Enqueue calls. Commands already queued can still be drained.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *Queue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
