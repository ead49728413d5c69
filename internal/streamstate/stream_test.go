package streamstate

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/penguintech/march-quicd/internal/errs"
	"github.com/penguintech/march-quicd/internal/waiter"
)

type fakeRaw struct {
	readData []byte
	readErr  error
	writeErr error
	written  []byte
	closed   bool
	cancelReadCode, cancelWriteCode uint64
}

func (f *fakeRaw) Read(p []byte) (int, error) {
	if len(f.readData) == 0 {
		if f.readErr != nil {
			return 0, f.readErr
		}
		return 0, io.EOF
	}
	n := copy(p, f.readData)
	f.readData = f.readData[n:]
	return n, nil
}

func (f *fakeRaw) Write(p []byte) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	f.written = append(f.written, p...)
	return len(p), nil
}

func (f *fakeRaw) Close() error             { f.closed = true; return nil }
func (f *fakeRaw) CancelRead(code uint64)   { f.cancelReadCode = code }
func (f *fakeRaw) CancelWrite(code uint64)  { f.cancelWriteCode = code }

type fakeConn struct{ err error }

func (c *fakeConn) LatchedError() error { return c.err }

func TestAttachMovesIdleToOpen(t *testing.T) {
	s := New(ID(4), &fakeConn{})
	if s.State() != StateIdle {
		t.Fatalf("initial state = %v, want idle", s.State())
	}
	s.Attach(&fakeRaw{})
	if s.State() != StateOpen {
		t.Fatalf("state after Attach = %v, want open", s.State())
	}
}

func TestReadSomeReturnsAvailableBytes(t *testing.T) {
	s := New(ID(4), &fakeConn{})
	s.Attach(&fakeRaw{readData: []byte("hello")})

	buf := make([]byte, 16)
	n, err := s.ReadSome(context.Background(), buf)
	if err != nil {
		t.Fatalf("ReadSome error: %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("ReadSome = %q, want hello", buf[:n])
	}
}

func TestReadSomeEOF(t *testing.T) {
	s := New(ID(4), &fakeConn{})
	s.Attach(&fakeRaw{})

	buf := make([]byte, 16)
	_, err := s.ReadSome(context.Background(), buf)
	if !errors.Is(err, errs.ErrEndOfStream) {
		t.Fatalf("ReadSome err = %v, want end_of_stream", err)
	}
}

func TestConcurrentReadBusy(t *testing.T) {
	s := New(ID(4), &fakeConn{})
	raw := &fakeRaw{}
	s.Attach(raw)

	w := waiter.New[int]()
	if !s.ReadData.Begin(w) {
		t.Fatal("first Begin should succeed")
	}
	buf := make([]byte, 16)
	_, err := s.ReadSome(context.Background(), buf)
	if !errors.Is(err, errs.ErrBusy) {
		t.Fatalf("second concurrent ReadSome err = %v, want busy", err)
	}
	s.ReadData.Clear()
}

func TestWriteAfterShutdownWriteFails(t *testing.T) {
	s := New(ID(4), &fakeConn{})
	s.Attach(&fakeRaw{})
	if err := s.Shutdown(ShutdownWrite, 0); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	_, err := s.WriteSome(context.Background(), []byte("x"))
	if !errors.Is(err, errs.ErrBrokenPipe) {
		t.Fatalf("WriteSome after shutdown(write) err = %v, want broken_pipe", err)
	}
}

func TestReceiveDataRejectedAfterReset(t *testing.T) {
	s := New(ID(4), &fakeConn{})
	s.Attach(&fakeRaw{})
	s.ReceiveReset(errors.New("peer reset"))

	if err := s.ReceiveData(false); err == nil {
		t.Fatal("ReceiveData after reset_received should be rejected")
	}
}
