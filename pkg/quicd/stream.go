package quicd

import (
	"context"

	"github.com/penguintech/march-quicd/internal/errs"
	"github.com/penguintech/march-quicd/internal/fields"
	"github.com/penguintech/march-quicd/internal/streamstate"
	"github.com/penguintech/march-quicd/internal/waiter"
)

// Stream is the application-facing handle for a single stream (spec.md §3
// "Stream", §4.2). It wraps internal/streamstate.Stream, adding the
// asynchronous operation forms spec.md §4.2 requires alongside the
// synchronous ones streamstate already implements directly.
type Stream struct {
	raw *streamstate.Stream
}

// ID returns the stream's QUIC/HTTP3 identifier.
func (s *Stream) ID() streamstate.ID {
	return s.raw.ID()
}

// ReadSome reads into buf, returning as soon as any byte is available
// (spec.md §4.2 read_some(), sync form).
func (s *Stream) ReadSome(ctx context.Context, buf []byte) (int, error) {
	return s.raw.ReadSome(ctx, buf)
}

// WriteSome writes buf, returning once at least one byte is accepted
// (spec.md §4.2 write_some(), sync form).
func (s *Stream) WriteSome(ctx context.Context, buf []byte) (int, error) {
	return s.raw.WriteSome(ctx, buf)
}

// ReadHeaders blocks until the engine delivers a HEADERS frame for this
// stream (spec.md §4.2 read_headers(), HTTP/3 only, sync form).
func (s *Stream) ReadHeaders(ctx context.Context) (*fields.Fields, error) {
	w := waiter.New[*fields.Fields]()
	if !s.raw.BeginReadHeaders(w) {
		return nil, errs.ErrBusy
	}
	return w.Wait(ctx)
}

// WriteHeaders writes pre-encoded header bytes, typically produced by
// internal/h3fields from a fields.Fields collection (spec.md §4.2
// write_headers(), HTTP/3 only, sync form).
func (s *Stream) WriteHeaders(ctx context.Context, encoded []byte) error {
	return s.raw.WriteHeaders(ctx, encoded)
}

// Shutdown half- or fully closes the stream in the given direction.
func (s *Stream) Shutdown(how streamstate.ShutdownHow, errorCode uint64) error {
	return s.raw.Shutdown(how, errorCode)
}

// Close immediately resets the stream.
func (s *Stream) Close(errorCode uint64) {
	s.raw.Close(errorCode)
}

// ReadResult is delivered on the channel returned by ReadSomeAsync.
type ReadResult struct {
	N   int
	Err error
}

// ReadSomeAsync is ReadSome's async form: it completes once, delivering its
// result on the returned channel instead of blocking the caller (spec.md
// §4.2 "each also has an async form that completes once").
func (s *Stream) ReadSomeAsync(ctx context.Context, buf []byte) <-chan ReadResult {
	out := make(chan ReadResult, 1)
	go func() {
		n, err := s.ReadSome(ctx, buf)
		out <- ReadResult{N: n, Err: err}
		close(out)
	}()
	return out
}

// WriteSomeAsync is WriteSome's async form.
func (s *Stream) WriteSomeAsync(ctx context.Context, buf []byte) <-chan ReadResult {
	out := make(chan ReadResult, 1)
	go func() {
		n, err := s.WriteSome(ctx, buf)
		out <- ReadResult{N: n, Err: err}
		close(out)
	}()
	return out
}

// HeadersResult is delivered on the channel returned by ReadHeadersAsync.
type HeadersResult struct {
	Fields *fields.Fields
	Err    error
}

// ReadHeadersAsync is ReadHeaders's async form.
func (s *Stream) ReadHeadersAsync(ctx context.Context) <-chan HeadersResult {
	out := make(chan HeadersResult, 1)
	go func() {
		f, err := s.ReadHeaders(ctx)
		out <- HeadersResult{Fields: f, Err: err}
		close(out)
	}()
	return out
}
