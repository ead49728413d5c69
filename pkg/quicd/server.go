// Package quicd is the application-facing facade over the transport engine
// core: a Server/Client pair wrapping internal/quicengine, exposing the
// Connection/Stream surface of spec.md §4 item 8 with both synchronous and
// asynchronous operation forms.
package quicd

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"

	"github.com/penguintech/march-quicd/internal/logging"
	"github.com/penguintech/march-quicd/internal/quicengine"
)

// Server accepts incoming QUIC connections on a single UDP socket.
type Server struct {
	engine *quicengine.Engine
	logger *logging.Logger
}

// NewServer builds a Server bound to addr. backlog sizes the pre-handshake
// admission-control ring (spec.md §4.3 "Accept queue").
func NewServer(addr string, backlog int, tlsConfig *tls.Config, settings quicengine.Settings, logger *logging.Logger) (*Server, error) {
	engine, err := quicengine.NewServer(addr, backlog, tlsConfig, settings, logger)
	if err != nil {
		return nil, fmt.Errorf("quicd: new server: %w", err)
	}
	return &Server{engine: engine, logger: logger}, nil
}

// Serve runs the engine's accept loop until ctx is cancelled. Callers
// typically run this in its own goroutine alongside Accept.
func (s *Server) Serve(ctx context.Context) error {
	return s.engine.Run(ctx)
}

// Accept blocks for the next connection to clear admission control
// (spec.md §4.3 connect()/accept() "sync" form). The connection comes off
// the pre-handshake ring, so its handshake may still be in progress when
// Accept returns.
func (s *Server) Accept(ctx context.Context) (*Connection, error) {
	c, err := s.engine.AcceptConnection(ctx)
	if err != nil {
		return nil, err
	}
	return &Connection{engine: s.engine, raw: c, logger: s.logger}, nil
}

// AcceptResult is delivered on the channel returned by AcceptAsync.
type AcceptResult struct {
	Conn *Connection
	Err  error
}

// AcceptAsync is Accept's async form (spec.md §4.3 "each supports sync and
// async forms"): it completes once, delivering its result on the returned
// channel instead of blocking the caller.
func (s *Server) AcceptAsync(ctx context.Context) <-chan AcceptResult {
	out := make(chan AcceptResult, 1)
	go func() {
		conn, err := s.Accept(ctx)
		out <- AcceptResult{Conn: conn, Err: err}
		close(out)
	}()
	return out
}

// LocalAddr returns the server's bound UDP address.
func (s *Server) LocalAddr() net.Addr {
	return s.engine.LocalAddr()
}

// Snapshot returns the server's live connection and open-stream counts, for
// wiring into internal/metrics.EngineCollector.
func (s *Server) Snapshot() (connections, streams int) {
	return s.engine.Snapshot()
}

// Close shuts down the listener and releases the socket.
func (s *Server) Close() error {
	return s.engine.Close()
}
