package quicd

import (
	"context"
	"testing"
	"time"
)

func TestClientDialFailsAgainstUnreachableAddress(t *testing.T) {
	_, client, _ := testServerClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if _, err := client.Dial(ctx, "127.0.0.1:1", testClientTLSConfig()); err == nil {
		t.Fatal("expected dial to an address with no listener to fail")
	}
}

func TestClientDialAsyncRoundTrip(t *testing.T) {
	server, client, addr := testServerClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go server.Serve(ctx)
	go client.Run(ctx)

	go func() {
		acceptCtx, acceptCancel := context.WithTimeout(ctx, 2*time.Second)
		defer acceptCancel()
		server.Accept(acceptCtx)
	}()

	results := client.DialAsync(ctx, addr, testClientTLSConfig())

	select {
	case res := <-results:
		if res.Err != nil {
			t.Fatalf("DialAsync returned error: %v", res.Err)
		}
		if res.Conn == nil {
			t.Fatal("DialAsync returned nil connection with no error")
		}
		if res.Conn.CorrelationID() == "" {
			t.Fatal("dialed connection should carry a correlation id")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("DialAsync did not deliver a result in time")
	}
}
