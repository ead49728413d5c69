package quicd

import (
	"context"
	"testing"
	"time"

	"github.com/penguintech/march-quicd/internal/errs"
	"github.com/penguintech/march-quicd/internal/streamstate"
)

func openStreamPair(t *testing.T, ctx context.Context) (serverSide, clientSide *Stream) {
	t.Helper()
	serverConn, clientConn := establishConnectionPair(t, ctx)

	accepted := make(chan *Stream, 1)
	go func() {
		acceptCtx, acceptCancel := context.WithTimeout(ctx, 2*time.Second)
		defer acceptCancel()
		s, err := serverConn.AcceptStream(acceptCtx)
		if err != nil {
			t.Errorf("AcceptStream: %v", err)
			return
		}
		accepted <- s
	}()

	openCtx, openCancel := context.WithTimeout(ctx, 2*time.Second)
	defer openCancel()
	opened, err := clientConn.OpenStream(openCtx)
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}

	select {
	case s := <-accepted:
		return s, opened
	case <-time.After(2 * time.Second):
		t.Fatal("did not accept the opened stream in time")
	}
	return nil, nil
}

func TestStreamWriteSomeReadSomeRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverSide, clientSide := openStreamPair(t, ctx)

	payload := []byte("hello quicd")
	writeCtx, writeCancel := context.WithTimeout(ctx, time.Second)
	defer writeCancel()
	n, err := clientSide.WriteSome(writeCtx, payload)
	if err != nil {
		t.Fatalf("WriteSome: %v", err)
	}
	if n == 0 {
		t.Fatal("WriteSome accepted zero bytes")
	}

	buf := make([]byte, len(payload))
	readCtx, readCancel := context.WithTimeout(ctx, time.Second)
	defer readCancel()
	read, err := serverSide.ReadSome(readCtx, buf)
	if err != nil {
		t.Fatalf("ReadSome: %v", err)
	}
	if read == 0 {
		t.Fatal("ReadSome returned zero bytes")
	}
}

func TestStreamWriteSomeAsyncReadSomeAsync(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverSide, clientSide := openStreamPair(t, ctx)

	payload := []byte("async payload")
	writeResults := clientSide.WriteSomeAsync(ctx, payload)

	buf := make([]byte, len(payload))
	readResults := serverSide.ReadSomeAsync(ctx, buf)

	select {
	case res := <-writeResults:
		if res.Err != nil {
			t.Fatalf("WriteSomeAsync: %v", res.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WriteSomeAsync did not complete in time")
	}

	select {
	case res := <-readResults:
		if res.Err != nil {
			t.Fatalf("ReadSomeAsync: %v", res.Err)
		}
		if res.N == 0 {
			t.Fatal("ReadSomeAsync returned zero bytes")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ReadSomeAsync did not complete in time")
	}
}

func TestStreamShutdownThenReadFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverSide, clientSide := openStreamPair(t, ctx)

	if err := clientSide.Shutdown(streamstate.ShutdownWrite, 0); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	readCtx, readCancel := context.WithTimeout(ctx, time.Second)
	defer readCancel()
	buf := make([]byte, 16)
	if _, err := serverSide.ReadSome(readCtx, buf); err == nil {
		t.Fatal("expected ReadSome to observe the peer's write shutdown eventually")
	}
}

func TestStreamReadHeadersBusyWhenAlreadyPending(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverSide, _ := openStreamPair(t, ctx)

	first := serverSide.ReadHeadersAsync(ctx)
	_ = first

	if _, err := serverSide.ReadHeaders(ctx); err != errs.ErrBusy {
		t.Fatalf("expected ErrBusy for a second concurrent ReadHeaders, got %v", err)
	}
}

func TestStreamClose(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverSide, _ := openStreamPair(t, ctx)
	serverSide.Close(0)
}
