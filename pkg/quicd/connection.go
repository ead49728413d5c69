package quicd

import (
	"context"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/penguintech/march-quicd/internal/logging"
	"github.com/penguintech/march-quicd/internal/quicengine"
)

// Connection is the application-facing handle for a single QUIC connection
// (spec.md §3/§4.3). It wraps internal/quicengine.Connection, which in turn
// pairs a quic-go connection with its connstate.Connection state machine.
type Connection struct {
	engine *quicengine.Engine
	raw    *quicengine.Connection
	logger *logging.Logger
}

// RemoteAddr returns the peer's network address.
func (c *Connection) RemoteAddr() net.Addr {
	return c.raw.RemoteAddr()
}

// CorrelationID returns the log-correlation id assigned to this connection.
func (c *Connection) CorrelationID() string {
	return c.raw.State().CorrelationID().String()
}

// CorrelationUUID returns the same correlation id as a uuid.UUID, for
// callers (such as internal/tracing's ConnectionTracker) that key spans off
// the raw value instead of its string form.
func (c *Connection) CorrelationUUID() uuid.UUID {
	return c.raw.State().CorrelationID()
}

// OpenStream opens a bidirectional stream (spec.md §4.2 stream.connect(),
// sync form).
func (c *Connection) OpenStream(ctx context.Context) (*Stream, error) {
	s, err := c.engine.OpenStream(ctx, c.raw)
	if err != nil {
		return nil, err
	}
	return &Stream{raw: s}, nil
}

// OpenUniStream opens a unidirectional stream.
func (c *Connection) OpenUniStream(ctx context.Context) (*Stream, error) {
	s, err := c.engine.OpenUniStream(ctx, c.raw)
	if err != nil {
		return nil, err
	}
	return &Stream{raw: s}, nil
}

// streamAcceptPollInterval bounds how often AcceptStream re-checks the
// connection's incoming-stream table while waiting for the engine's accept
// loop to deliver one (spec.md §4.2: "the first accept drains it").
const streamAcceptPollInterval = 5 * time.Millisecond

// AcceptStream blocks until the peer opens a stream, the connection latches
// an error (which is then returned), or ctx ends (spec.md §4.2
// stream.accept(), sync form).
func (c *Connection) AcceptStream(ctx context.Context) (*Stream, error) {
	ticker := time.NewTicker(streamAcceptPollInterval)
	defer ticker.Stop()
	for {
		if s, ok := c.raw.State().AcceptIncoming(); ok {
			return &Stream{raw: s}, nil
		}
		if err := c.raw.State().LatchedError(); err != nil {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// OpenStreamResult is delivered on the channel returned by OpenStreamAsync.
type OpenStreamResult struct {
	Stream *Stream
	Err    error
}

// OpenStreamAsync is OpenStream's async form.
func (c *Connection) OpenStreamAsync(ctx context.Context) <-chan OpenStreamResult {
	out := make(chan OpenStreamResult, 1)
	go func() {
		s, err := c.OpenStream(ctx)
		out <- OpenStreamResult{Stream: s, Err: err}
		close(out)
	}()
	return out
}

// AcceptStreamAsync is AcceptStream's async form.
func (c *Connection) AcceptStreamAsync(ctx context.Context) <-chan OpenStreamResult {
	out := make(chan OpenStreamResult, 1)
	go func() {
		s, err := c.AcceptStream(ctx)
		out <- OpenStreamResult{Stream: s, Err: err}
		close(out)
	}()
	return out
}

// Close ends the connection with the given application error code.
func (c *Connection) Close(errorCode uint64, reason string) error {
	return c.raw.Close(errorCode, reason)
}
