package quicengine

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/quic-go/quic-go"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/penguintech/march-quicd/internal/connstate"
	"github.com/penguintech/march-quicd/internal/errs"
	"github.com/penguintech/march-quicd/internal/logging"
	"github.com/penguintech/march-quicd/internal/streamstate"
	"github.com/penguintech/march-quicd/internal/udpsock"
)

// Connection pairs a quic-go connection object with its spec.md §3
// connection-state-machine twin, the handle the rest of the module passes
// around instead of a raw *quic.Conn.
type Connection struct {
	state *connstate.Connection
	raw   *quic.Conn
}

// State returns the spec.md §3 connection state machine for this connection.
func (c *Connection) State() *connstate.Connection { return c.state }

// RemoteAddr returns the peer's network address.
func (c *Connection) RemoteAddr() net.Addr { return c.raw.RemoteAddr() }

// Close ends the connection with an application error code and reason
// string, the engine-level counterpart to connstate.Connection.Close()'s
// local bookkeeping (spec.md §4.3 close()).
func (c *Connection) Close(errorCode uint64, reason string) error {
	c.state.Close()
	return c.raw.CloseWithError(quic.ApplicationErrorCode(errorCode), reason)
}

// Engine is the single serialization point of spec.md §4.4: it owns the
// socket, the quic-go transport built on top of it, and the background
// goroutines (accept loop, per-connection handshake/stream supervisors)
// that translate quic-go's own callbacks into connstate/streamstate
// transitions. quic-go's internal packet-ingest/timer loop stands in for
// the hand-rolled engine loop spec.md §4.4 describes, per §6's "External
// QUIC state machine contract" — we drive its connection/stream objects
// instead of reimplementing loss recovery and ACK scheduling.
type Engine struct {
	mu       sync.Mutex
	settings Settings
	socket   *udpsock.Socket
	transport *quic.Transport
	listener  *quic.EarlyListener // nil on a client-only engine

	logger        *logging.Logger
	acceptLimiter *rate.Limiter

	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc

	connsMu     sync.Mutex
	connections map[*quic.Conn]*Connection
}

// NewServer builds an Engine bound to addr, with backlog sizing the
// pre-handshake admission-control ring of spec.md §4.3 "Accept queue": the
// engine uses quic-go's "early" listener so a connection can be rejected
// before its handshake completes, resolving spec.md §9 open question (a)
// in favor of pre-handshake rejection (see DESIGN.md).
func NewServer(addr string, backlog int, tlsConfig *tls.Config, settings Settings, logger *logging.Logger) (*Engine, error) {
	sock, err := udpsock.NewServerSocket(addr, backlog)
	if err != nil {
		return nil, fmt.Errorf("quicengine: server socket: %w", err)
	}
	tr := &quic.Transport{Conn: sock}
	listener, err := tr.ListenEarly(tlsConfig, settings.ToQUICConfig())
	if err != nil {
		sock.Close()
		return nil, fmt.Errorf("quicengine: listen: %w", err)
	}
	return &Engine{
		settings:      settings,
		socket:        sock,
		transport:     tr,
		listener:      listener,
		logger:        logger,
		acceptLimiter: rate.NewLimiter(rate.Limit(50), 10),
		connections:   make(map[*quic.Conn]*Connection),
	}, nil
}

// NewClient builds a client-only Engine with an ephemeral UDP socket.
func NewClient(settings Settings, logger *logging.Logger) (*Engine, error) {
	sock, err := udpsock.NewClientSocket()
	if err != nil {
		return nil, fmt.Errorf("quicengine: client socket: %w", err)
	}
	return &Engine{
		settings:      settings,
		socket:        sock,
		transport:     &quic.Transport{Conn: sock},
		logger:        logger,
		acceptLimiter: rate.NewLimiter(rate.Limit(50), 10),
		connections:   make(map[*quic.Conn]*Connection),
	}, nil
}

// Run starts the engine's background goroutines (accept loop plus one
// handshake supervisor per accepted connection, and one close watcher per
// connection dialed after Run starts) joined by an errgroup. Packet ingest,
// timers and egress run inside quic-go's transport, not in this errgroup.
// Run blocks until ctx is cancelled or an
// unrecoverable error occurs; it is itself typically run in a goroutine by
// the caller (pkg/quicd.Server).
func (e *Engine) Run(ctx context.Context) error {
	e.ctx, e.cancel = context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(e.ctx)
	e.group = g

	if e.listener != nil {
		g.Go(func() error { return e.acceptLoop(gctx) })
	}

	<-gctx.Done()
	return g.Wait()
}

// acceptLoop implements spec.md §4.4 item 1-2 for incoming connections: pull
// the next early connection from quic-go, apply admission control against
// the socket's bounded ring, and supervise its handshake.
func (e *Engine) acceptLoop(ctx context.Context) error {
	for {
		conn, err := e.listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("quicengine: accept: %w", err)
		}

		if err := e.acceptLimiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			conn.CloseWithError(quic.ApplicationErrorCode(errs.TransportConnectionRefused), "accept rate exceeded")
			continue
		}

		c := &Connection{state: connstate.NewAccepting(), raw: conn}
		if !e.socket.Accepting.TryPush(c) {
			// Ring full: reject before the handshake completes (spec.md §9
			// open question (a)).
			conn.CloseWithError(quic.ApplicationErrorCode(errs.TransportConnectionRefused), "backlog full")
			if e.logger != nil {
				e.logger.Warn("rejected incoming connection: accept backlog full")
			}
			continue
		}

		e.connsMu.Lock()
		e.connections[conn] = c
		e.connsMu.Unlock()

		e.group.Go(func() error { return e.superviseConnection(ctx, c) })
	}
}

// superviseConnection waits for the handshake outcome and the streams the
// peer opens, translating both into connstate/streamstate transitions
// (spec.md §4.4 item 2 "on_handshake", "on_new_stream").
func (e *Engine) superviseConnection(ctx context.Context, c *Connection) error {
	select {
	case <-c.raw.HandshakeComplete():
		c.state.OnHandshake(true)
	case <-c.raw.Context().Done():
		c.state.OnHandshake(false)
		c.state.OnPeerClose(mapConnError(c.raw.Context().Err()))
		return nil
	}

	go e.streamAcceptLoop(ctx, c)
	go e.uniStreamAcceptLoop(ctx, c)

	<-c.raw.Context().Done()
	c.state.OnPeerClose(mapConnError(context.Cause(c.raw.Context())))
	c.state.OnEngineClose()

	e.connsMu.Lock()
	delete(e.connections, c.raw)
	e.connsMu.Unlock()
	return nil
}

// streamAcceptLoop drains peer-initiated bidirectional streams into the
// connection's incoming table (spec.md §4.2 "An accepted stream is created
// by the engine's 'on new stream' callback, stored in incoming_streams").
func (e *Engine) streamAcceptLoop(ctx context.Context, c *Connection) {
	for {
		qs, err := c.raw.AcceptStream(ctx)
		if err != nil {
			return
		}
		s := streamstate.New(streamstate.ID(qs.StreamID()), c.state)
		s.Attach(newStreamAdapter(qs))
		c.state.AddIncoming(s)
	}
}

// uniStreamAcceptLoop mirrors streamAcceptLoop for unidirectional streams.
func (e *Engine) uniStreamAcceptLoop(ctx context.Context, c *Connection) {
	for {
		qs, err := c.raw.AcceptUniStream(ctx)
		if err != nil {
			return
		}
		s := streamstate.New(streamstate.ID(qs.StreamID()), c.state)
		s.Attach(newReceiveAdapter(qs))
		c.state.AddIncoming(s)
	}
}

// Dial implements the client-side "connect" of spec.md §4.3, returning a
// Connection already moved to the open variant (there is no accepting
// phase for a dialer).
func (e *Engine) Dial(ctx context.Context, addr string, tlsConfig *tls.Config) (*Connection, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("quicengine: resolve %q: %w", addr, err)
	}
	raw, err := e.transport.Dial(ctx, udpAddr, tlsConfig, e.settings.ToQUICConfig())
	if err != nil {
		return nil, fmt.Errorf("quicengine: dial %q: %w", addr, err)
	}

	c := &Connection{state: connstate.NewOpen(), raw: raw}
	c.state.OnHandshake(true)

	e.connsMu.Lock()
	e.connections[raw] = c
	e.connsMu.Unlock()

	if e.group != nil {
		e.group.Go(func() error {
			go e.streamAcceptLoop(ctx, c)
			go e.uniStreamAcceptLoop(ctx, c)
			<-raw.Context().Done()
			c.state.OnPeerClose(mapConnError(context.Cause(raw.Context())))
			c.state.OnEngineClose()
			e.connsMu.Lock()
			delete(e.connections, raw)
			e.connsMu.Unlock()
			return nil
		})
	}
	return c, nil
}

// OpenStream implements stream.connect() of spec.md §4.2: ask quic-go to
// allocate a bidirectional stream handle, then move the stream from
// connecting to open once it is delivered.
func (e *Engine) OpenStream(ctx context.Context, c *Connection) (*streamstate.Stream, error) {
	qs, err := c.raw.OpenStreamSync(ctx)
	if err != nil {
		return nil, err
	}
	s := streamstate.New(streamstate.ID(qs.StreamID()), c.state)
	c.state.AddConnecting(s)
	s.Attach(newStreamAdapter(qs))
	c.state.MoveConnectingToOpen(s.ID())
	return s, nil
}

// OpenUniStream is OpenStream's unidirectional counterpart.
func (e *Engine) OpenUniStream(ctx context.Context, c *Connection) (*streamstate.Stream, error) {
	qs, err := c.raw.OpenUniStreamSync(ctx)
	if err != nil {
		return nil, err
	}
	s := streamstate.New(streamstate.ID(qs.StreamID()), c.state)
	c.state.AddConnecting(s)
	s.Attach(newSendAdapter(qs))
	c.state.MoveConnectingToOpen(s.ID())
	return s, nil
}

// AcceptConnection pops the oldest pre-handshake connection off the socket's
// admission-control ring, implementing the synchronous server.Accept()
// facade of spec.md §4.3 (pkg/quicd.Server.Accept builds on this).
func (e *Engine) AcceptConnection(ctx context.Context) (*Connection, error) {
	v, err := e.socket.Accepting.PopContext(ctx)
	if err != nil {
		return nil, err
	}
	c := v.(*Connection)
	c.state.OnAccept(c.raw.LocalAddr(), c.raw.RemoteAddr())
	return c, nil
}

// LocalAddr returns the engine's bound UDP socket address.
func (e *Engine) LocalAddr() net.Addr { return e.socket.LocalAddr() }

// Snapshot returns the engine's live connection count and the sum of open
// streams across them, feeding internal/metrics.EngineCollector's periodic
// gauge updates.
func (e *Engine) Snapshot() (connections, streams int) {
	e.connsMu.Lock()
	defer e.connsMu.Unlock()
	connections = len(e.connections)
	for _, c := range e.connections {
		_, _, _, open, _ := c.state.StreamCounts()
		streams += open
	}
	return connections, streams
}

// Close shuts down the engine: cancels the accept/supervisor goroutines,
// closes the listener (if any), and releases the socket.
func (e *Engine) Close() error {
	if e.cancel != nil {
		e.cancel()
	}
	if e.listener != nil {
		e.listener.Close()
	}
	return e.transport.Close()
}

// mapConnError implements spec.md §9 open question (b): quic-go surfaces a
// peer CONNECTION_CLOSE as either an *ApplicationError (application-layer
// close, our "appError=true") or a *TransportError (§7 Transport codes);
// internal/errs.MapCloseFrame folds both into the taxonomy.
func mapConnError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *quic.ApplicationError
	if errors.As(err, &appErr) {
		return errs.MapCloseFrame(true, uint64(appErr.ErrorCode))
	}
	var transportErr *quic.TransportError
	if errors.As(err, &transportErr) {
		return errs.MapCloseFrame(false, uint64(transportErr.ErrorCode))
	}
	return errs.ErrConnectionAborted
}
