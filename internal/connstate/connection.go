package connstate

import (
	"context"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/penguintech/march-quicd/internal/errs"
	"github.com/penguintech/march-quicd/internal/streamstate"
	"github.com/penguintech/march-quicd/internal/waiter"
)

// Variant is the tagged state of spec.md §3 "Connection state": a tagged
// variant `accepting{waiter}`, `open{handle, stream tables, pending_error}`,
// `error{ec}`, `closed`.
type Variant int

const (
	VariantAccepting Variant = iota
	VariantOpen
	VariantError
	VariantClosed
)

func (v Variant) String() string {
	switch v {
	case VariantAccepting:
		return "accepting"
	case VariantOpen:
		return "open"
	case VariantError:
		return "error"
	case VariantClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Connection is the connection-level state machine of spec.md §3/§4.3. All
// mutation happens under mu, mirroring spec.md §5 "all protocol state is
// mutated only on that executor (or under the engine mutex)".
//
// The correlation id (a uuid.New(), teacher go.mod dependency) exists solely
// for log correlation across engine callbacks, distinct from the wire QUIC
// connection id, per SPEC_FULL.md's DOMAIN STACK entry for
// github.com/google/uuid.
type Connection struct {
	mu sync.Mutex

	correlationID uuid.UUID
	variant       Variant
	pendingError  error

	local  net.Addr
	remote net.Addr

	incoming   streamTable
	connecting streamTable
	accepting  streamTable
	open       streamTable
	closing    streamTable

	AcceptWait  waiter.Slot[struct{}]
	HandshakeOK waiter.Slot[struct{}]
}

// NewAccepting returns a Connection in the accepting variant, awaiting the
// engine's on_accept callback (spec.md §4.3 transition table).
func NewAccepting() *Connection {
	return &Connection{
		correlationID: uuid.New(),
		variant:       VariantAccepting,
		incoming:      newStreamTable(),
		connecting:    newStreamTable(),
		accepting:     newStreamTable(),
		open:          newStreamTable(),
		closing:       newStreamTable(),
	}
}

// NewOpen returns a Connection already in the open variant, for the
// client-initiated connect() path where there is no accepting phase.
func NewOpen() *Connection {
	c := NewAccepting()
	c.variant = VariantOpen
	return c
}

// CorrelationID returns the diagnostic correlation id for this connection.
func (c *Connection) CorrelationID() uuid.UUID { return c.correlationID }

// Variant returns the connection's current tagged state.
func (c *Connection) Variant() Variant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.variant
}

// LatchedError implements streamstate.Conn: returns the connection's
// pending_error, or nil if none is latched.
func (c *Connection) LatchedError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingError
}

// RemoteEndpoint and LocalEndpoint return the connection's endpoints.
func (c *Connection) RemoteEndpoint() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remote
}

func (c *Connection) LocalEndpoint() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.local
}

// OnAccept implements the "accepting → engine delivers on_accept(handle) →
// open" transition of spec.md §4.3.
func (c *Connection) OnAccept(local, remote net.Addr) {
	c.mu.Lock()
	if c.variant != VariantAccepting {
		c.mu.Unlock()
		return
	}
	c.variant = VariantOpen
	c.local = local
	c.remote = remote
	c.mu.Unlock()

	c.AcceptWait.Fail(nil)
}

// OnHandshake implements spec.md §4.3: "open → engine delivers
// on_handshake(ok) → open (waiters released)" or "... on_handshake(fail) →
// error{handshake_failed}".
func (c *Connection) OnHandshake(ok bool) {
	if ok {
		c.HandshakeOK.Fail(nil)
		return
	}
	c.transitionToError(errs.ErrHandshakeFailed)
}

// OnPeerClose implements "open → peer sends CONNECTION_CLOSE frame →
// error{peer code}".
func (c *Connection) OnPeerClose(err error) {
	c.transitionToError(err)
}

// OnIdleTimeout implements "open → idle_timeout fires → error{timed_out}".
func (c *Connection) OnIdleTimeout() {
	c.transitionToError(errs.ErrConnectionTimedOut)
}

// transitionToError moves open → error, latching err as pending_error if one
// is not already latched, per spec.md §3 invariant (b) "transitions
// open→error preserve the pending_error" (first error wins).
func (c *Connection) transitionToError(err error) {
	c.mu.Lock()
	if c.variant == VariantClosed {
		c.mu.Unlock()
		return
	}
	c.variant = VariantError
	if c.pendingError == nil {
		c.pendingError = err
	}
	latched := c.pendingError
	c.mu.Unlock()

	c.failAllWaiters(latched)
}

// Close implements the local "open → local close() → closing → closed"
// path: spec.md treats `closing` as a transient sub-state of `open` during
// packet drain, modeled here as an immediate transition since the drain
// itself is the engine's responsibility (internal/quicengine), not
// connstate's.
func (c *Connection) Close() {
	c.mu.Lock()
	if c.variant == VariantClosed {
		c.mu.Unlock()
		return
	}
	c.variant = VariantClosed
	latched := c.pendingError
	c.mu.Unlock()

	c.failAllWaiters(latched)
}

// OnEngineClose implements "error → engine delivers on_close → closed" and
// "accepting → engine closes underlying socket → closed (waiter: aborted)".
func (c *Connection) OnEngineClose() {
	c.Close()
}

// failAllWaiters implements spec.md §4.3 "Waiter fail-forward rule": every
// pending waiter in the connection (stream-connect, stream-accept, data,
// header) fails with the first non-generic error latched on the connection;
// if none was latched, operation_aborted is used.
func (c *Connection) failAllWaiters(latched error) {
	err := latched
	if err == nil {
		err = errs.ErrOperationAborted
	}

	c.AcceptWait.Fail(err)
	c.HandshakeOK.Fail(err)

	c.mu.Lock()
	tables := []*streamTable{&c.incoming, &c.connecting, &c.accepting, &c.open, &c.closing}
	var all []*streamstate.Stream
	for _, t := range tables {
		all = append(all, t.all()...)
	}
	c.mu.Unlock()

	for _, s := range all {
		s.ReadData.Fail(err)
		s.WriteData.Fail(err)
		s.ReadHeaders.Fail(err)
		s.WriteHeadersWait.Fail(err)
		s.ConnectWait.Fail(err)
		s.AcceptWait.Fail(err)
	}
}

// AddIncoming registers a peer-initiated stream in the incoming table,
// where it stays until the application's first accept() drains it (spec.md
// §4.2 "An accepted stream is created by the engine's 'on new stream'
// callback, stored in incoming_streams").
func (c *Connection) AddIncoming(s *streamstate.Stream) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.incoming.insert(s)
}

// AddConnecting registers a stream the application asked to connect(),
// awaiting the engine's stream-handle allocation.
func (c *Connection) AddConnecting(s *streamstate.Stream) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connecting.insert(s)
}

// MoveConnectingToOpen moves a stream from connecting to open once the
// engine allocates its handle (spec.md §4.2 "stream.connect() ... when the
// handle is delivered the waiter completes and the stream moves to open").
func (c *Connection) MoveConnectingToOpen(id streamstate.ID) {
	c.move(&c.connecting, &c.open, id)
}

// AcceptIncoming moves the oldest incoming stream into open, implementing
// spec.md §4.2 "the first accept drains it into the application's handle
// and moves it to open". Returns nil, false if none are pending.
func (c *Connection) AcceptIncoming() (*streamstate.Stream, bool) {
	c.mu.Lock()
	streams := c.incoming.all()
	if len(streams) == 0 {
		c.mu.Unlock()
		return nil, false
	}
	s := streams[0]
	c.incoming.remove(s.ID())
	c.open.insert(s)
	c.mu.Unlock()
	return s, true
}

// MoveToClosing moves a stream from open to closing, e.g. once shutdown has
// been issued but the engine has not yet confirmed the peer's FIN/reset.
func (c *Connection) MoveToClosing(id streamstate.ID) {
	c.move(&c.open, &c.closing, id)
}

// RemoveStream deletes a stream from whichever table currently holds it,
// e.g. once the application releases its handle and pending waiters have
// drained (spec.md §3 invariant (c)).
func (c *Connection) RemoveStream(id streamstate.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range []*streamTable{&c.incoming, &c.connecting, &c.accepting, &c.open, &c.closing} {
		if _, ok := t.remove(id); ok {
			return
		}
	}
}

func (c *Connection) move(from, to *streamTable, id streamstate.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := from.remove(id); ok {
		to.insert(s)
	}
}

// Lookup finds a stream by id across all tables, satisfying spec.md §3
// invariant (c): "once closed, the stream may still be looked up until the
// application releases its handle".
func (c *Connection) Lookup(id streamstate.ID) (*streamstate.Stream, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range []*streamTable{&c.incoming, &c.connecting, &c.accepting, &c.open, &c.closing} {
		if s, ok := t.get(id); ok {
			return s, true
		}
	}
	return nil, false
}

// StreamCounts reports the size of each table, for metrics/diagnostics.
func (c *Connection) StreamCounts() (incoming, connecting, accepting, open, closing int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.incoming.len(), c.connecting.len(), c.accepting.len(), c.open.len(), c.closing.len()
}

// WaitAccept blocks until the connection finishes accepting or ctx ends.
// Used by the synchronous server.Accept()/client.Connect() facade.
func (c *Connection) WaitAccept(ctx context.Context, w *waiter.Waiter[struct{}]) error {
	if !c.AcceptWait.Begin(w) {
		return errs.ErrBusy
	}
	_, err := w.Wait(ctx)
	return err
}

// WaitHandshake blocks until the handshake completes or ctx ends.
func (c *Connection) WaitHandshake(ctx context.Context, w *waiter.Waiter[struct{}]) error {
	if !c.HandshakeOK.Begin(w) {
		return errs.ErrBusy
	}
	_, err := w.Wait(ctx)
	return err
}
