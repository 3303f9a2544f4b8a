package queue

import (
	"context"
	"sync"

	"github.com/randalmurphal/cdcflow/pkg/cdcflow/change"
)

// buffer is one key's bounded FIFO.
//
// A slice under a mutex rather than a channel: DropOldest replaces the tail,
// which a channel cannot express. Waiters park on notEmpty/notFull; each
// holds at most one pending signal, and whoever consumes a signal passes it
// on while the condition still holds, so parked waiters are never stranded.
type buffer struct {
	mu       sync.Mutex
	items    []change.Event
	capacity int
	closed   bool

	notEmpty chan struct{}
	notFull  chan struct{}
	done     chan struct{}
}

// offerResult describes what an offer did besides buffering.
type offerResult struct {
	dropped    change.Event
	hasDropped bool
	depth      int
}

func newBuffer(capacity int) *buffer {
	return &buffer{
		items:    make([]change.Event, 0, capacity),
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

// offer inserts evt, applying strategy when full.
func (b *buffer) offer(ctx context.Context, evt change.Event, strategy Strategy) (offerResult, error) {
	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return offerResult{}, ErrShutdown
		}

		if len(b.items) < b.capacity {
			b.items = append(b.items, evt)
			res := offerResult{depth: len(b.items)}
			if len(b.items) < b.capacity {
				signal(b.notFull)
			}
			b.mu.Unlock()
			signal(b.notEmpty)
			return res, nil
		}

		switch strategy {
		case Sliding:
			res := offerResult{dropped: b.items[0], hasDropped: true, depth: len(b.items)}
			copy(b.items, b.items[1:])
			b.items[len(b.items)-1] = evt
			b.mu.Unlock()
			signal(b.notEmpty)
			return res, nil

		case DropOldest:
			last := len(b.items) - 1
			res := offerResult{dropped: b.items[last], hasDropped: true, depth: len(b.items)}
			b.items[last] = evt
			b.mu.Unlock()
			signal(b.notEmpty)
			return res, nil

		case DropNewest:
			res := offerResult{dropped: evt, hasDropped: true, depth: len(b.items)}
			b.mu.Unlock()
			return res, nil
		}

		// Block: wait for a slot.
		b.mu.Unlock()
		select {
		case <-b.notFull:
		case <-b.done:
		case <-ctx.Done():
			return offerResult{}, ctx.Err()
		}
	}
}

// take removes the head, waiting until one exists.
func (b *buffer) take(ctx context.Context) (change.Event, int, error) {
	for {
		evt, depth, ok, err := b.poll()
		if err != nil || ok {
			return evt, depth, err
		}
		select {
		case <-b.notEmpty:
		case <-b.done:
		case <-ctx.Done():
			return change.Event{}, 0, ctx.Err()
		}
	}
}

// poll removes the head if there is one.
func (b *buffer) poll() (change.Event, int, bool, error) {
	b.mu.Lock()
	if len(b.items) == 0 {
		closed := b.closed
		b.mu.Unlock()
		if closed {
			return change.Event{}, 0, false, ErrShutdown
		}
		return change.Event{}, 0, false, nil
	}

	evt := b.items[0]
	b.items[0] = change.Event{}
	b.items = b.items[1:]
	depth := len(b.items)
	b.mu.Unlock()

	if depth > 0 {
		signal(b.notEmpty)
	}
	signal(b.notFull)
	return evt, depth, true, nil
}

func (b *buffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// close releases the buffer. Buffered events are discarded and every
// waiter wakes with ErrShutdown.
func (b *buffer) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.items = nil
	close(b.done)
}
