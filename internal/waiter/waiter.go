// Package waiter implements the waiter protocol of spec.md GLOSSARY/§5: the
// object that binds a suspended caller's continuation to the engine's event
// callbacks, completed exactly once, and dispatched to the caller's
// associated executor rather than invoked under the engine mutex (the
// system's only rule that prevents reentrant deadlock, per spec.md §4.4
// "Concurrency contract").
//
// The original expresses this with a coroutine/condition-variable split
// (spec.md §9 "Coroutine-style nested operations"); the idiomatic Go
// analogue used here is a 1-buffered channel per waiter plus
// context.Context for cancellation, so both the synchronous ("Wait") and
// asynchronous ("Notify") completion sinks share one representation.
package waiter

import (
	"context"
	"sync"
)

// Result is the outcome delivered to a waiter exactly once.
type Result[T any] struct {
	Value T
	Err   error
}

// Waiter holds a single pending caller's continuation. At most one Waiter
// may be outstanding per slot (spec.md §4.2 "At most one concurrent data
// read, one data write, ... per stream" — enforced by whoever owns the
// slot, typically streamstate/connstate, not by Waiter itself).
type Waiter[T any] struct {
	mu        sync.Mutex
	done      chan Result[T]
	completed bool
	onComplete func(Result[T])
}

// New returns a Waiter ready to be completed exactly once. A hook registered
// with Notify is invoked (from whatever goroutine calls Complete) in addition
// to satisfying Wait, letting a caller attach a dispatch-to-executor hook
// without requiring every caller to poll a channel.
func New[T any]() *Waiter[T] {
	return &Waiter[T]{done: make(chan Result[T], 1)}
}

// Complete delivers value/err to the waiter. Only the first call has any
// effect; subsequent calls are no-ops, satisfying the "completed exactly
// once" invariant (spec.md §8 invariant 6).
func (w *Waiter[T]) Complete(value T, err error) {
	w.mu.Lock()
	if w.completed {
		w.mu.Unlock()
		return
	}
	w.completed = true
	hook := w.onComplete
	w.mu.Unlock()

	result := Result[T]{Value: value, Err: err}
	w.done <- result
	if hook != nil {
		hook(result)
	}
}

// Completed reports whether Complete has already run.
func (w *Waiter[T]) Completed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.completed
}

// Wait blocks the calling goroutine (the synchronous I/O flavor of spec.md
// §5) until the waiter completes or ctx is done. A ctx cancellation does
// not retract a Complete that already ran; it only stops this particular
// caller from waiting on it further, mirroring spec.md "no built-in
// per-operation timer other than handshake / idle timeouts".
func (w *Waiter[T]) Wait(ctx context.Context) (T, error) {
	select {
	case r := <-w.done:
		// Re-feed so a second Wait (e.g. a retried call) still observes
		// the same terminal result instead of blocking forever.
		w.done <- r
		return r.Value, r.Err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Notify registers fn to run (on whatever goroutine calls Complete) once
// the waiter completes — the asynchronous I/O flavor of spec.md §5. The
// caller is responsible for posting fn onto their own executor if they need
// it to run there rather than inline.
func (w *Waiter[T]) Notify(fn func(Result[T])) {
	w.mu.Lock()
	if w.completed {
		w.mu.Unlock()
		select {
		case r := <-w.done:
			w.done <- r
			fn(r)
		default:
		}
		return
	}
	w.onComplete = fn
	w.mu.Unlock()
}

// Cancel completes the waiter with err if it has not already
// completed, implementing spec.md §5 "Cancellation": dropping a handle
// cancels its pending waiters with operation_aborted-equivalent errors.
func (w *Waiter[T]) Cancel(err error) {
	var zero T
	w.Complete(zero, err)
}

// Slot holds at most one outstanding Waiter of type T, enforcing the
// concurrency rule of spec.md §4.2: a second concurrent request on an
// already-occupied slot fails immediately with errs.ErrBusy rather than
// queuing.
type Slot[T any] struct {
	mu sync.Mutex
	w  *Waiter[T]
}

// Begin installs w as the slot's pending waiter if the slot is empty, and
// reports whether it succeeded. Callers that fail to Begin must fail the new
// operation with errs.ErrBusy without touching the existing waiter.
func (s *Slot[T]) Begin(w *Waiter[T]) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w != nil && !s.w.Completed() {
		return false
	}
	s.w = w
	return true
}

// Current returns the slot's current waiter, or nil if empty.
func (s *Slot[T]) Current() *Waiter[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w
}

// Clear empties the slot unconditionally, e.g. after the engine completes
// it and the owner has consumed the result.
func (s *Slot[T]) Clear() {
	s.mu.Lock()
	s.w = nil
	s.mu.Unlock()
}

// Fail completes and clears the slot's current waiter, if any, with err. Used
// by the fail-forward rule (spec.md §4.3) when a connection or stream
// transitions to a terminal error state.
func (s *Slot[T]) Fail(err error) {
	s.mu.Lock()
	w := s.w
	s.w = nil
	s.mu.Unlock()
	if w != nil {
		w.Cancel(err)
	}
}
