package quicd

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/penguintech/march-quicd/internal/logging"
	"github.com/penguintech/march-quicd/internal/quicengine"
)

// testTLSConfig builds a throwaway self-signed certificate, the same shape
// the teacher's internal/quic/server.go generates for local development.
func testTLSConfig(t *testing.T) *tls.Config {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{Organization: []string{"quicd-test"}},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:  []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		DNSNames:     []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	cert := tls.Certificate{Certificate: [][]byte{der}, PrivateKey: priv}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{"quicd-test"},
	}
}

func testClientTLSConfig() *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{"quicd-test"},
	}
}

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	l, err := logging.NewLogger("error")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	return l
}

func testServerClient(t *testing.T) (*Server, *Client, string) {
	t.Helper()
	settings := quicengine.DefaultSettings()
	logger := testLogger(t)

	server, err := NewServer("127.0.0.1:0", 8, testTLSConfig(t), settings, logger)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(func() { server.Close() })

	client, err := NewClient(settings, logger)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return server, client, server.LocalAddr().String()
}

// establishConnectionPair dials a client connection against a running
// server and returns both sides once the handshake completes.
func establishConnectionPair(t *testing.T, ctx context.Context) (serverConn, clientConn *Connection) {
	t.Helper()
	server, client, addr := testServerClient(t)

	go server.Serve(ctx)
	go client.Run(ctx)

	serverResults := server.AcceptAsync(ctx)

	dialCtx, dialCancel := context.WithTimeout(ctx, 2*time.Second)
	defer dialCancel()
	c, err := client.Dial(dialCtx, addr, testClientTLSConfig())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	select {
	case res := <-serverResults:
		if res.Err != nil {
			t.Fatalf("accept: %v", res.Err)
		}
		return res.Conn, c
	case <-time.After(2 * time.Second):
		t.Fatal("server did not accept the connection in time")
	}
	return nil, nil
}
