package connstate

import (
	"context"
	"errors"
	"testing"

	"github.com/penguintech/march-quicd/internal/errs"
	"github.com/penguintech/march-quicd/internal/streamstate"
	"github.com/penguintech/march-quicd/internal/waiter"
)

func TestOnAcceptTransitionsToOpen(t *testing.T) {
	c := NewAccepting()
	if c.Variant() != VariantAccepting {
		t.Fatalf("initial variant = %v, want accepting", c.Variant())
	}
	c.OnAccept(nil, nil)
	if c.Variant() != VariantOpen {
		t.Fatalf("variant after OnAccept = %v, want open", c.Variant())
	}
}

func TestHandshakeFailureLatchesError(t *testing.T) {
	c := NewOpen()
	c.OnHandshake(false)
	if c.Variant() != VariantError {
		t.Fatalf("variant = %v, want error", c.Variant())
	}
	if !errors.Is(c.LatchedError(), errs.ErrHandshakeFailed) {
		t.Fatalf("latched error = %v, want handshake_failed", c.LatchedError())
	}
}

func TestWaiterFailForwardUsesFirstLatchedError(t *testing.T) {
	c := NewOpen()
	first := errors.New("first")
	second := errors.New("second")

	c.transitionToError(first)
	c.transitionToError(second)

	if !errors.Is(c.LatchedError(), first) {
		t.Fatalf("latched error = %v, want first", c.LatchedError())
	}
}

func TestCloseFailsPendingStreamWaiters(t *testing.T) {
	c := NewOpen()
	s := streamstate.New(streamstate.ID(4), c)
	c.AddConnecting(s)

	w := waiter.New[struct{}]()
	s.ConnectWait.Begin(w)

	c.Close()

	_, err := w.Wait(context.Background())
	if !errors.Is(err, errs.ErrOperationAborted) {
		t.Fatalf("ConnectWait err after Close = %v, want operation_aborted", err)
	}
}

func TestAcceptIncomingDrainsOldestFirst(t *testing.T) {
	c := NewOpen()
	s1 := streamstate.New(streamstate.ID(4), c)
	s2 := streamstate.New(streamstate.ID(8), c)
	c.AddIncoming(s1)
	c.AddIncoming(s2)

	got, ok := c.AcceptIncoming()
	if !ok || got.ID() != s1.ID() {
		t.Fatalf("AcceptIncoming = %v, %v, want s1", got, ok)
	}
	if _, found := c.Lookup(s1.ID()); !found {
		t.Fatal("s1 should be findable in the open table after accept")
	}
}

func TestStreamInExactlyOneTable(t *testing.T) {
	c := NewOpen()
	s := streamstate.New(streamstate.ID(4), c)
	c.AddConnecting(s)
	c.MoveConnectingToOpen(s.ID())

	incoming, connecting, accepting, open, closing := c.StreamCounts()
	if connecting != 0 || open != 1 || incoming != 0 || accepting != 0 || closing != 0 {
		t.Fatalf("counts = incoming=%d connecting=%d accepting=%d open=%d closing=%d, want only open=1",
			incoming, connecting, accepting, open, closing)
	}
}
