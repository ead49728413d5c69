package quicengine

import (
	"github.com/quic-go/quic-go"

	"github.com/penguintech/march-quicd/internal/streamstate"
)

// streamAdapter narrows a *quic.Stream down to streamstate.RawStream,
// translating the uint64 error codes spec.md §4.2 uses into
// quic.StreamErrorCode. quic-go's stream type already implements every other
// method RawStream needs; this exists only for the type conversion on
// CancelRead/CancelWrite. Unidirectional streams use receiveAdapter and
// sendAdapter below instead.
type streamAdapter struct {
	raw quicStream
}

// quicStream is the subset of *quic.Stream that streamAdapter calls.
type quicStream interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	CancelRead(quic.StreamErrorCode)
	CancelWrite(quic.StreamErrorCode)
}

func newStreamAdapter(s *quic.Stream) streamstate.RawStream {
	return &streamAdapter{raw: s}
}

func (a *streamAdapter) Read(p []byte) (int, error)  { return a.raw.Read(p) }
func (a *streamAdapter) Write(p []byte) (int, error) { return a.raw.Write(p) }
func (a *streamAdapter) Close() error                { return a.raw.Close() }
func (a *streamAdapter) CancelRead(code uint64)       { a.raw.CancelRead(quic.StreamErrorCode(code)) }
func (a *streamAdapter) CancelWrite(code uint64)      { a.raw.CancelWrite(quic.StreamErrorCode(code)) }

// receiveAdapter wraps a *quic.ReceiveStream (the read half of a peer-opened
// unidirectional stream) as a RawStream whose write half always fails,
// matching spec.md §3 "bit 1 distinguishes bidirectional (0) from
// unidirectional (1)".
type receiveAdapter struct {
	raw *quic.ReceiveStream
}

func newReceiveAdapter(s *quic.ReceiveStream) streamstate.RawStream {
	return &receiveAdapter{raw: s}
}

func (a *receiveAdapter) Read(p []byte) (int, error)  { return a.raw.Read(p) }
func (a *receiveAdapter) Write([]byte) (int, error)   { return 0, errUnidirectionalWrite }
func (a *receiveAdapter) Close() error                { return nil }
func (a *receiveAdapter) CancelRead(code uint64)      { a.raw.CancelRead(quic.StreamErrorCode(code)) }
func (a *receiveAdapter) CancelWrite(uint64)          {}

// sendAdapter wraps a *quic.SendStream (the write half of a locally-opened
// unidirectional stream).
type sendAdapter struct {
	raw *quic.SendStream
}

func newSendAdapter(s *quic.SendStream) streamstate.RawStream {
	return &sendAdapter{raw: s}
}

func (a *sendAdapter) Read([]byte) (int, error)      { return 0, errUnidirectionalRead }
func (a *sendAdapter) Write(p []byte) (int, error)   { return a.raw.Write(p) }
func (a *sendAdapter) Close() error                  { return a.raw.Close() }
func (a *sendAdapter) CancelRead(uint64)             {}
func (a *sendAdapter) CancelWrite(code uint64)       { a.raw.CancelWrite(quic.StreamErrorCode(code)) }
