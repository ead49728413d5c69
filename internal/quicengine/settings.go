// Package quicengine adapts github.com/quic-go/quic-go into the single
// serialization point described in spec.md §4.4: it ingests datagrams via
// internal/udpsock, drives quic-go's own connection/stream objects, and
// mirrors every callback quic-go delivers onto the internal/connstate and
// internal/streamstate machines so the rest of the module never touches
// *quic.Conn directly.
package quicengine

import (
	"time"

	"github.com/quic-go/quic-go"
)

// Settings is the "Transport settings" value type of spec.md §3:
// handshake_timeout, idle_timeout, max_streams_per_connection, and the three
// flow-control windows. It is populated from internal/config and converted
// to a *quic.Config by ToQUICConfig.
type Settings struct {
	HandshakeTimeout                time.Duration
	IdleTimeout                     time.Duration
	MaxStreamsPerConnection         int64
	ConnectionFlowControlWindow     uint64
	IncomingStreamFlowControlWindow uint64
	OutgoingStreamFlowControlWindow uint64
	KeepAlivePeriod                 time.Duration
	EnableDatagrams                 bool
}

// DefaultSettings mirrors streamstate.DefaultWindow (65535) for the stream
// windows and picks conservative connection-level defaults, matching
// spec.md §3 "flow-control windows (inbound, outbound; signed, default
// 65535)" scaled up one level for the connection as a whole.
func DefaultSettings() Settings {
	return Settings{
		HandshakeTimeout:                10 * time.Second,
		IdleTimeout:                     30 * time.Second,
		MaxStreamsPerConnection:         100,
		ConnectionFlowControlWindow:     1 << 20,
		IncomingStreamFlowControlWindow: 65535,
		OutgoingStreamFlowControlWindow: 65535,
		KeepAlivePeriod:                 0,
		EnableDatagrams:                 false,
	}
}

// ToQUICConfig converts Settings into the *quic.Config quic-go's
// Transport.Listen/Dial expect, the "external QUIC state machine" adapter
// boundary of spec.md §6.
func (s Settings) ToQUICConfig() *quic.Config {
	return &quic.Config{
		HandshakeIdleTimeout:           s.HandshakeTimeout,
		MaxIdleTimeout:                 s.IdleTimeout,
		MaxIncomingStreams:             s.MaxStreamsPerConnection,
		MaxIncomingUniStreams:          s.MaxStreamsPerConnection,
		InitialConnectionReceiveWindow: s.ConnectionFlowControlWindow / 2,
		MaxConnectionReceiveWindow:     s.ConnectionFlowControlWindow,
		InitialStreamReceiveWindow:     s.IncomingStreamFlowControlWindow,
		MaxStreamReceiveWindow:         s.IncomingStreamFlowControlWindow,
		KeepAlivePeriod:                s.KeepAlivePeriod,
		EnableDatagrams:                s.EnableDatagrams,
	}
}
