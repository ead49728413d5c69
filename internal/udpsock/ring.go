// Package udpsock implements the socket binding of spec.md §3 "Socket" and
// §6: a UDP endpoint wrapper exposing ECN and destination-address receive
// options, SO_REUSEADDR for servers, and the bounded incoming-connection
// ring that backs the admission-control surface of spec.md §4.3 "Accept
// queue".
package udpsock

import (
	"context"
	"sync"
)

// Ring is a bounded FIFO of incoming connection handles, sized by backlog
// (spec.md §3 "a bounded ring of incoming connection handles (depth =
// backlog)"). If full, TryPush fails so the caller can refuse the
// connection at admission time (spec.md §9 open question (a): "the spec
// requires pre-handshake rejection").
type Ring[T any] struct {
	mu       sync.Mutex
	items    []T
	capacity int
	pushed   chan struct{}
}

// NewRing returns a Ring bounded to capacity entries.
func NewRing[T any](capacity int) *Ring[T] {
	return &Ring[T]{capacity: capacity, pushed: make(chan struct{}, 1)}
}

// TryPush appends item if the ring has room, reporting success. A false
// return is the admission-control rejection signal.
func (r *Ring[T]) TryPush(item T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) >= r.capacity {
		return false
	}
	r.items = append(r.items, item)
	select {
	case r.pushed <- struct{}{}:
	default:
	}
	return true
}

// Pop removes and returns the oldest item, or zero/false if empty.
func (r *Ring[T]) Pop() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var zero T
	if len(r.items) == 0 {
		return zero, false
	}
	item := r.items[0]
	r.items = r.items[1:]
	return item, true
}

// PopContext blocks until an item is available or ctx ends, backing the
// synchronous Server.Accept() facade (pkg/quicd).
func (r *Ring[T]) PopContext(ctx context.Context) (T, error) {
	for {
		if item, ok := r.Pop(); ok {
			return item, nil
		}
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-r.pushed:
		}
	}
}

// Len returns the number of queued items.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}
