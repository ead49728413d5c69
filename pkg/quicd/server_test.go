package quicd

import (
	"context"
	"testing"
	"time"
)

func TestServerAcceptTimesOutWithNoDialer(t *testing.T) {
	server, _, _ := testServerClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	go server.Serve(ctx)
	defer cancel()

	acceptCtx, acceptCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer acceptCancel()

	if _, err := server.Accept(acceptCtx); err == nil {
		t.Fatal("expected Accept to time out with no dialer")
	}
}

func TestServerAcceptAsyncDeliversOnChannel(t *testing.T) {
	server, client, addr := testServerClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go server.Serve(ctx)
	go client.Run(ctx)

	results := server.AcceptAsync(ctx)

	go func() {
		dialCtx, dialCancel := context.WithTimeout(ctx, 2*time.Second)
		defer dialCancel()
		if _, err := client.Dial(dialCtx, addr, testClientTLSConfig()); err != nil {
			t.Errorf("dial: %v", err)
		}
	}()

	select {
	case res := <-results:
		if res.Err != nil {
			t.Fatalf("AcceptAsync returned error: %v", res.Err)
		}
		if res.Conn == nil {
			t.Fatal("AcceptAsync returned nil connection with no error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("AcceptAsync did not deliver a result in time")
	}

	// The channel closes after delivering exactly one result.
	if _, ok := <-results; ok {
		t.Fatal("AcceptAsync channel should be closed after its single result")
	}
}
