package h2conn

import (
	"bufio"
	"bytes"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"

	"github.com/penguintech/march-quicd/internal/base64url"
	"github.com/penguintech/march-quicd/internal/http2codec"
)

func TestScenarioS4SettingsPayloadEncoding(t *testing.T) {
	payload := currentSettingsPayload(DefaultLocalSettings())
	if encoded := base64url.Encode(payload); encoded != "AAMAAAAE" {
		t.Fatalf("HTTP2-Settings payload = %q, want AAMAAAAE", encoded)
	}
}

func TestScenarioS4ClientUpgradeRequest(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	done := make(chan error, 1)
	go func() { done <- ClientUpgrade(client, "127.0.0.1", DefaultLocalSettings()) }()

	r := bufio.NewReader(server)
	req, err := http.ReadRequest(r)
	if err != nil {
		t.Fatalf("ReadRequest: %v", err)
	}
	if req.Host != "127.0.0.1" {
		t.Fatalf("Host = %q, want 127.0.0.1", req.Host)
	}
	if got := req.Header.Get("Upgrade"); got != "h2c" {
		t.Fatalf("Upgrade = %q, want h2c", got)
	}
	if got := req.Header.Get("Connection"); got != "HTTP2-Settings, Upgrade" {
		t.Fatalf("Connection = %q, want %q", got, "HTTP2-Settings, Upgrade")
	}
	if got := req.Header.Get("HTTP2-Settings"); got != "AAMAAAAE" {
		t.Fatalf("HTTP2-Settings = %q, want AAMAAAAE", got)
	}

	if _, err := server.Write([]byte("HTTP/1.1 101 Switching Protocols\r\nConnection: Upgrade\r\nUpgrade: h2c\r\n\r\n")); err != nil {
		t.Fatalf("write 101: %v", err)
	}

	preface := make([]byte, len(Preface))
	if _, err := io.ReadFull(r, preface); err != nil {
		t.Fatalf("read preface: %v", err)
	}
	if string(preface) != Preface {
		t.Fatalf("preface = %q, want %q", preface, Preface)
	}

	frameHeader := make([]byte, 9)
	if _, err := io.ReadFull(r, frameHeader); err != nil {
		t.Fatalf("read settings frame header: %v", err)
	}
	want := []byte{0x00, 0x00, 0x00, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00}
	if !bytes.Equal(frameHeader, want) {
		t.Fatalf("settings frame header = %x, want %x", frameHeader, want)
	}

	if err := <-done; err != nil {
		t.Fatalf("ClientUpgrade: %v", err)
	}
}

func TestServerUpgradeRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	clientDone := make(chan error, 1)
	go func() { clientDone <- ClientUpgrade(client, "example.test", DefaultLocalSettings()) }()

	r := bufio.NewReader(server)
	req, err := http.ReadRequest(r)
	if err != nil {
		t.Fatalf("ReadRequest: %v", err)
	}

	serverDone := make(chan error, 1)
	var peerSettings http2codec.SettingValues
	go func() {
		var err error
		peerSettings, err = ServerUpgrade(netConnReadWriter{r, server}, req, DefaultLocalSettings())
		serverDone <- err
	}()

	if err := <-clientDone; err != nil {
		t.Fatalf("ClientUpgrade: %v", err)
	}
	if err := <-serverDone; err != nil {
		t.Fatalf("ServerUpgrade: %v", err)
	}
	if peerSettings.MaxConcurrentStreams != 4 {
		t.Fatalf("peer MaxConcurrentStreams = %d, want 4", peerSettings.MaxConcurrentStreams)
	}
}

func TestAcceptPriorKnowledgeRejectsBadPreface(t *testing.T) {
	r := strings.NewReader("not a preface at all.....")
	var buf bytes.Buffer
	if err := AcceptPriorKnowledge(netConnReadWriter{r, &buf}, DefaultLocalSettings()); err == nil {
		t.Fatal("expected error for bad preface")
	}
}

// netConnReadWriter pairs an already-buffered reader (so bytes consumed by
// http.ReadRequest aren't re-read) with the underlying writer, giving
// ServerUpgrade and AcceptPriorKnowledge the single io.ReadWriter they
// expect over a connection whose reads have already been partially drained.
type netConnReadWriter struct {
	r io.Reader
	w io.Writer
}

func (rw netConnReadWriter) Read(p []byte) (int, error)  { return rw.r.Read(p) }
func (rw netConnReadWriter) Write(p []byte) (int, error) { return rw.w.Write(p) }

func TestCheckALPNRequiresH2(t *testing.T) {
	if err := CheckALPN(tls.ConnectionState{NegotiatedProtocol: "h2"}); err != nil {
		t.Fatalf("CheckALPN(h2): %v", err)
	}
	if err := CheckALPN(tls.ConnectionState{NegotiatedProtocol: "http/1.1"}); err == nil {
		t.Fatal("expected error for non-h2 ALPN")
	}
	if err := CheckALPN(tls.ConnectionState{}); err == nil {
		t.Fatal("expected error for empty ALPN")
	}
}
