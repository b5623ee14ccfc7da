// Package inbound buffers provider events between the transport and the
// notification dispatcher.
package inbound

import (
	"context"
	"errors"
	"sync"

	list "github.com/bahlo/generic-list-go"
)

// ErrClosed is returned by Push after Close, and by Pop once a closed queue
// is drained.
var ErrClosed = errors.New("inbound queue closed")

// Queue is a FIFO of events. With a positive capacity Push blocks while the
// queue is full; with capacity 0 it is unbounded.
type Queue struct {
	mu       sync.Mutex
	items    *list.List[Event]
	capacity int
	closed   bool

	notEmpty chan struct{}
	notFull  chan struct{}
	done     chan struct{}
}

// NewQueue creates a queue. capacity <= 0 means unbounded.
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{
		items:    list.New[Event](),
		capacity: capacity,
		notEmpty: make(chan struct{}, 1),
		notFull:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Push appends evt, waiting for room if the queue is bounded and full.
func (q *Queue) Push(ctx context.Context, evt Event) error {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return ErrClosed
		}
		if q.capacity == 0 || q.items.Len() < q.capacity {
			q.items.PushBack(evt)
			q.mu.Unlock()
			signal(q.notEmpty)
			return nil
		}
		q.mu.Unlock()

		select {
		case <-q.notFull:
		case <-q.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Pop removes and returns the oldest event, blocking until one is available.
// Events pushed before Close are still delivered.
func (q *Queue) Pop(ctx context.Context) (Event, error) {
	for {
		q.mu.Lock()
		if front := q.items.Front(); front != nil {
			evt := q.items.Remove(front)
			remaining := q.items.Len()
			q.mu.Unlock()
			signal(q.notFull)
			if remaining > 0 {
				signal(q.notEmpty)
			}
			return evt, nil
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return Event{}, ErrClosed
		}

		select {
		case <-q.notEmpty:
		case <-q.done:
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}

// Len returns the number of buffered events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Close stops accepting events and wakes every waiter.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}
