package streamstate

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/penguintech/march-quicd/internal/errs"
	"github.com/penguintech/march-quicd/internal/fields"
	"github.com/penguintech/march-quicd/internal/waiter"
)

// RawStream is the minimal surface a Stream needs from the underlying QUIC
// stream object. It mirrors the read/write/close/cancel surface of
// github.com/quic-go/quic-go's stream types with uint64 error codes in place
// of quic.StreamErrorCode; internal/quicengine wraps each quic-go stream in a
// small adapter that converts the codes (spec.md §6 "stream read/write
// primitives that accept/return iovec batches and signal FIN" — modeled
// here as plain io.Reader/Writer semantics, since quic-go already presents
// that surface rather than raw iovecs).
type RawStream interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	CancelRead(code uint64)
	CancelWrite(code uint64)
}

// ShutdownHow selects which half (or both) of the stream to shut down,
// spec.md §4.2 "shutdown(how) where how ∈ {read, write, both}".
type ShutdownHow int

const (
	ShutdownRead ShutdownHow = iota
	ShutdownWrite
	ShutdownBoth
)

// Conn is the subset of connection behavior a Stream needs: access to the
// connection's latched pending error for the waiter fail-forward rule
// (spec.md §4.3). Defined here rather than imported from internal/connstate
// to avoid a package cycle (connstate owns Streams, Stream needs Conn).
type Conn interface {
	LatchedError() error
}

// Stream is the per-stream state machine of spec.md §3/§4.2: one bidirectional
// or unidirectional QUIC/HTTP-2 stream, its lifecycle, flow-control windows,
// priority, and the single-slot waiters serializing concurrent operations.
type Stream struct {
	mu sync.Mutex

	id       ID
	state    State
	priority Priority
	inbound  *Window
	outbound *Window
	conn     Conn
	raw      RawStream

	bodyStarted bool // first body byte written; gates WriteHeaders protocol_error
	readEOF     bool
	resetErr    error

	ReadData         waiter.Slot[int]
	WriteData        waiter.Slot[int]
	ReadHeaders      waiter.Slot[*fields.Fields]
	WriteHeadersWait waiter.Slot[struct{}]
	ConnectWait      waiter.Slot[struct{}]
	AcceptWait       waiter.Slot[struct{}]
}

// New returns a Stream in state idle, with the default flow-control windows
// of spec.md §3.
func New(id ID, conn Conn) *Stream {
	return &Stream{
		id:       id,
		state:    StateIdle,
		priority: DefaultPriority,
		inbound:  NewWindow(DefaultWindow),
		outbound: NewWindow(DefaultWindow),
		conn:     conn,
	}
}

// ID returns the stream's identifier.
func (s *Stream) ID() ID { return s.id }

// State returns the stream's current lifecycle state.
func (s *Stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Priority returns the stream's current priority.
func (s *Stream) Priority() Priority {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.priority
}

// SetPriority updates the stream's priority, e.g. on receipt of a PRIORITY
// frame/header.
func (s *Stream) SetPriority(p Priority) {
	s.mu.Lock()
	s.priority = p
	s.mu.Unlock()
}

// Inbound and Outbound expose the flow-control windows for accounting by
// the engine (e.g. to decide when to send MAX_STREAM_DATA).
func (s *Stream) Inbound() *Window  { return s.inbound }
func (s *Stream) Outbound() *Window { return s.outbound }

// Attach installs the allocated/accepted underlying stream object and moves
// the stream idle → open, completing whichever of Connect/Accept is
// pending (spec.md §4.2 "when the handle is delivered the waiter completes
// and the stream moves to open" / "the first accept drains it ... and moves
// it to open").
func (s *Stream) Attach(raw RawStream) {
	s.mu.Lock()
	s.raw = raw
	if s.state == StateIdle {
		s.state = StateOpen
	}
	s.mu.Unlock()

	// Fail with a nil error is just Complete(zero, nil): both waiters are
	// single-shot regardless of outcome, so the same path serves success.
	s.ConnectWait.Fail(nil)
	s.AcceptWait.Fail(nil)
}

func (s *Stream) latchedOrDefault(fallback error) error {
	if s.conn != nil {
		if err := s.conn.LatchedError(); err != nil {
			return err
		}
	}
	return fallback
}

// ReadSome reads into buf, returning as soon as any byte is available, 0
// with errs.ErrEndOfStream on orderly FIN once all buffered bytes are
// drained, or errs.ErrStreamReset if the peer reset the stream (spec.md
// §4.2 "I/O semantics").
func (s *Stream) ReadSome(ctx context.Context, buf []byte) (int, error) {
	w := waiter.New[int]()
	if !s.ReadData.Begin(w) {
		return 0, errs.ErrBusy
	}
	defer s.ReadData.Clear()

	s.mu.Lock()
	raw := s.raw
	resetErr := s.resetErr
	eof := s.readEOF
	s.mu.Unlock()

	if resetErr != nil {
		return 0, s.latchedOrDefault(errs.ErrStreamReset)
	}
	if eof {
		return 0, errs.ErrEndOfStream
	}
	if raw == nil {
		return 0, errs.ErrBusy
	}

	type readResult struct {
		n   int
		err error
	}
	done := make(chan readResult, 1)
	go func() {
		n, err := raw.Read(buf)
		done <- readResult{n, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			reset := !errors.Is(r.err, io.EOF)
			s.mu.Lock()
			if reset {
				s.resetErr = r.err
			} else {
				s.readEOF = true
			}
			s.mu.Unlock()
			if r.n > 0 {
				return r.n, nil
			}
			if reset {
				return 0, s.latchedOrDefault(errs.ErrStreamReset)
			}
			return 0, errs.ErrEndOfStream
		}
		s.inbound.Consume(int64(r.n))
		return r.n, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// WriteSome writes buf, returning once at least one byte is accepted by the
// transport's send buffer. Writes after Shutdown(write) fail with
// errs.ErrBrokenPipe (spec.md §4.2).
func (s *Stream) WriteSome(ctx context.Context, buf []byte) (int, error) {
	w := waiter.New[int]()
	if !s.WriteData.Begin(w) {
		return 0, errs.ErrBusy
	}
	defer s.WriteData.Clear()

	s.mu.Lock()
	raw := s.raw
	state := s.state
	s.bodyStarted = true
	s.mu.Unlock()

	if state == StateHalfClosedLocal || state == StateClosed || state == StateResetSent {
		return 0, errs.ErrBrokenPipe
	}
	if raw == nil {
		return 0, errs.ErrBusy
	}

	type writeResult struct {
		n   int
		err error
	}
	done := make(chan writeResult, 1)
	go func() {
		n, err := raw.Write(buf)
		done <- writeResult{n, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return r.n, s.latchedOrDefault(r.err)
		}
		s.outbound.Consume(int64(r.n))
		return r.n, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// CompleteReadHeaders is invoked by the engine's header-delivery callback
// (spec.md §4.2 "reading headers is delivered by a callback invoked from
// the engine, which populates the caller's fields collection and completes
// the waiter").
func (s *Stream) CompleteReadHeaders(f *fields.Fields, err error) {
	if w := s.ReadHeaders.Current(); w != nil {
		w.Complete(f, err)
	}
	s.ReadHeaders.Clear()
}

// BeginReadHeaders installs w as the pending read-headers waiter, enforcing
// the one-pending-header-read-per-stream rule.
func (s *Stream) BeginReadHeaders(w *waiter.Waiter[*fields.Fields]) bool {
	return s.ReadHeaders.Begin(w)
}

// WriteHeaders writes pre-encoded header bytes (produced by internal/h3fields
// from a fields.Fields collection) to the stream. It fails with
// errs.ErrProtocolError if any body byte has already been written (spec.md
// §4.2 "Calling write_headers after the first byte of body data has been
// accepted fails with protocol_error").
func (s *Stream) WriteHeaders(ctx context.Context, encoded []byte) error {
	w := waiter.New[struct{}]()
	if !s.WriteHeadersWait.Begin(w) {
		return errs.ErrBusy
	}
	defer s.WriteHeadersWait.Clear()

	s.mu.Lock()
	started := s.bodyStarted
	raw := s.raw
	s.mu.Unlock()
	if started {
		return errs.ErrProtocolError
	}
	if raw == nil {
		return errs.ErrBusy
	}
	_, err := raw.Write(encoded)
	return err
}

// ReceiveData is invoked by the engine's on_stream_read callback when new
// bytes (or FIN) arrive. It enforces spec.md §3 invariant (b): data
// arriving while closed or reset_received is rejected.
func (s *Stream) ReceiveData(fin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.CanAcceptData() {
		return errs.ErrStreamReset
	}
	if fin {
		switch s.state {
		case StateOpen:
			s.state = StateHalfClosedRemote
		case StateHalfClosedLocal:
			s.state = StateClosed
		}
	}
	return nil
}

// ReceiveReset is invoked by the engine when the peer sends RESET_STREAM.
func (s *Stream) ReceiveReset(err error) {
	s.mu.Lock()
	s.state = StateResetReceived
	s.resetErr = err
	s.mu.Unlock()

	s.ReadData.Fail(err)
	s.WriteData.Fail(err)
	s.ReadHeaders.Fail(err)
	s.WriteHeadersWait.Fail(err)
}

// Shutdown implements spec.md §4.2: shutdown(write) sends FIN,
// shutdown(both) sends FIN+STOP_SENDING, shutdown(read) sends STOP_SENDING
// alone.
func (s *Stream) Shutdown(how ShutdownHow, errorCode uint64) error {
	s.mu.Lock()
	raw := s.raw
	switch how {
	case ShutdownWrite:
		if s.state == StateOpen {
			s.state = StateHalfClosedLocal
		} else if s.state == StateHalfClosedRemote {
			s.state = StateClosed
		}
	case ShutdownBoth:
		s.state = StateClosed
	}
	s.mu.Unlock()

	if raw == nil {
		return nil
	}
	switch how {
	case ShutdownRead:
		raw.CancelRead(errorCode)
	case ShutdownWrite:
		return raw.Close()
	case ShutdownBoth:
		raw.CancelRead(errorCode)
		return raw.Close()
	}
	return nil
}

// Close forces a local reset if the stream is not yet closed (spec.md
// §4.2 "close() forces a local reset if the stream is not yet closed").
func (s *Stream) Close(errorCode uint64) {
	s.mu.Lock()
	if s.state.IsTerminal() {
		s.mu.Unlock()
		return
	}
	s.state = StateResetSent
	raw := s.raw
	s.mu.Unlock()

	if raw != nil {
		raw.CancelWrite(errorCode)
		raw.CancelRead(errorCode)
	}

	s.ReadData.Fail(errs.ErrOperationAborted)
	s.WriteData.Fail(errs.ErrOperationAborted)
	s.ReadHeaders.Fail(errs.ErrOperationAborted)
	s.WriteHeadersWait.Fail(errs.ErrOperationAborted)
}
