package quicd

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/penguintech/march-quicd/internal/logging"
	"github.com/penguintech/march-quicd/internal/quicengine"
)

// Client dials outgoing QUIC connections from a single ephemeral UDP
// socket, mirroring Server's wrapping of internal/quicengine.
type Client struct {
	engine *quicengine.Engine
	logger *logging.Logger
}

// NewClient builds a client-only engine.
func NewClient(settings quicengine.Settings, logger *logging.Logger) (*Client, error) {
	engine, err := quicengine.NewClient(settings, logger)
	if err != nil {
		return nil, fmt.Errorf("quicd: new client: %w", err)
	}
	return &Client{engine: engine, logger: logger}, nil
}

// Run drives the client engine's background bookkeeping until ctx is
// cancelled. A client with no listener has nothing to accept, but Run still
// joins the per-connection supervisors Dial spawns, so callers should run
// it alongside any Dial calls.
func (c *Client) Run(ctx context.Context) error {
	return c.engine.Run(ctx)
}

// Dial opens a connection to addr (spec.md §4.3 connect(), sync form).
func (c *Client) Dial(ctx context.Context, addr string, tlsConfig *tls.Config) (*Connection, error) {
	raw, err := c.engine.Dial(ctx, addr, tlsConfig)
	if err != nil {
		return nil, err
	}
	return &Connection{engine: c.engine, raw: raw, logger: c.logger}, nil
}

// DialResult is delivered on the channel returned by DialAsync.
type DialResult struct {
	Conn *Connection
	Err  error
}

// DialAsync is Dial's async form.
func (c *Client) DialAsync(ctx context.Context, addr string, tlsConfig *tls.Config) <-chan DialResult {
	out := make(chan DialResult, 1)
	go func() {
		conn, err := c.Dial(ctx, addr, tlsConfig)
		out <- DialResult{Conn: conn, Err: err}
		close(out)
	}()
	return out
}

// Close releases the client's socket.
func (c *Client) Close() error {
	return c.engine.Close()
}
