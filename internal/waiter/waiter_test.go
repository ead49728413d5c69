package waiter

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCompleteOnce(t *testing.T) {
	w := New[int]()
	calls := 0
	w.Notify(func(Result[int]) { calls++ })

	w.Complete(1, nil)
	w.Complete(2, errors.New("ignored"))

	if calls != 1 {
		t.Fatalf("onComplete invoked %d times, want 1", calls)
	}
	v, err := w.Wait(context.Background())
	if err != nil || v != 1 {
		t.Fatalf("Wait() = %d, %v; want 1, nil", v, err)
	}
}

func TestWaitCancelledByContext(t *testing.T) {
	w := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := w.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait() err = %v, want DeadlineExceeded", err)
	}
}

func TestSlotBusy(t *testing.T) {
	var slot Slot[int]
	first := New[int]()
	if !slot.Begin(first) {
		t.Fatal("first Begin should succeed on empty slot")
	}
	second := New[int]()
	if slot.Begin(second) {
		t.Fatal("second Begin should fail while first is still pending")
	}

	first.Complete(1, nil)
	slot.Clear()
	if !slot.Begin(second) {
		t.Fatal("Begin should succeed once slot is cleared")
	}
}

func TestSlotFail(t *testing.T) {
	var slot Slot[int]
	w := New[int]()
	slot.Begin(w)

	sentinel := errors.New("aborted")
	slot.Fail(sentinel)

	_, err := w.Wait(context.Background())
	if !errors.Is(err, sentinel) {
		t.Fatalf("Wait() err = %v, want %v", err, sentinel)
	}
	if slot.Current() != nil {
		t.Fatal("Fail should clear the slot")
	}
}
