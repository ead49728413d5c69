// Package h2conn implements the HTTP/2-over-TCP connection negotiation of
// spec.md §4.5: the h2c client/server Upgrade handshake, the prior-knowledge
// accept path, and the TLS ALPN check. It is the one place internal/base64url
// and internal/http2codec meet a real TCP connection; everything past the
// preface and SETTINGS exchange belongs to the stream/connection state
// machines, not to this package.
package h2conn

import (
	"bufio"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"

	"github.com/penguintech/march-quicd/internal/base64url"
	"github.com/penguintech/march-quicd/internal/errs"
	"github.com/penguintech/march-quicd/internal/http2codec"
)

// Preface is the 24-byte client connection preface (RFC 9113 §3.4), written
// by the client immediately after a successful h2c Upgrade or as the first
// bytes of a prior-knowledge connection.
const Preface = "PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n"

// settingsFrameType is the HTTP/2 SETTINGS frame type identifier.
const settingsFrameType = 0x4

// DefaultLocalSettings is the settings payload this package advertises on
// both sides of the h2c handshake: every RFC 7540 §11.3 default except a
// deliberately small MaxConcurrentStreams, since h2c here only ever carries
// the negotiation handshake itself, never application traffic (spec.md §4.5
// is explicitly "ancillary but testable"). Diffing against the RFC defaults
// with http2codec.CopyChanges is what produces the single (id=3, value=4)
// pair of spec.md S4's "HTTP2-Settings: AAMAAAAE".
func DefaultLocalSettings() http2codec.SettingValues {
	v := http2codec.DefaultSettingValues()
	v.MaxConcurrentStreams = 4
	return v
}

// currentSettingsPayload encodes only the parameters of v that differ from
// the RFC defaults: the "current SETTINGS payload" of spec.md §4.5.
func currentSettingsPayload(v http2codec.SettingValues) []byte {
	return http2codec.CopyChanges(nil, http2codec.DefaultSettingValues(), v)
}

// writeSettingsFrame writes payload's 9-byte frame header, stream id 0, no
// flags, followed by payload itself.
func writeSettingsFrame(w *bufio.Writer, payload []byte) error {
	header, err := http2codec.Encode(nil, http2codec.FrameHeader{Length: uint32(len(payload)), Type: settingsFrameType})
	if err != nil {
		return err
	}
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("h2conn: write settings header: %w", err)
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("h2conn: write settings payload: %w", err)
		}
	}
	return w.Flush()
}

// readSettingsFrame reads one frame header and, if it is a SETTINGS frame,
// applies its payload's parameters onto v.
func readSettingsFrame(r io.Reader, v *http2codec.SettingValues) error {
	var raw [9]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return fmt.Errorf("h2conn: read settings header: %w", err)
	}
	h, _, err := http2codec.Decode(raw[:])
	if err != nil {
		return err
	}
	if h.Type != settingsFrameType {
		return fmt.Errorf("h2conn: %w: expected SETTINGS frame, got type %d", errs.ErrHTTP2ProtocolError, h.Type)
	}
	payload := make([]byte, h.Length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return fmt.Errorf("h2conn: read settings payload: %w", err)
	}
	return http2codec.DecodeSettingsPayload(payload, v)
}

// readPreface reads exactly len(Preface) bytes from r and requires them to
// match Preface exactly (spec.md §4.5 "require it exactly").
func readPreface(r io.Reader) error {
	buf := make([]byte, len(Preface))
	if _, err := io.ReadFull(r, buf); err != nil {
		return fmt.Errorf("h2conn: read preface: %w", err)
	}
	if string(buf) != Preface {
		return fmt.Errorf("h2conn: %w: bad connection preface", errs.ErrHTTP2ProtocolError)
	}
	return nil
}

// ClientUpgrade performs the client side of the h2c Upgrade handshake
// (spec.md §4.5 "Client upgrade (h2c)"): it encodes settings as an
// HTTP2-Settings header, sends a plain HTTP/1.1 GET to host over rw,
// requires a 101 response, then writes the connection preface and the
// client's SETTINGS frame. On return, conn is ready to speak HTTP/2 framing.
func ClientUpgrade(rw io.ReadWriter, host string, settings http2codec.SettingValues) error {
	w := bufio.NewWriter(rw)
	encoded := base64url.Encode(currentSettingsPayload(settings))

	req, err := http.NewRequest(http.MethodGet, "http://"+host+"/", nil)
	if err != nil {
		return fmt.Errorf("h2conn: build upgrade request: %w", err)
	}
	req.Header = http.Header{
		"Host":           {host},
		"Connection":     {"HTTP2-Settings, Upgrade"},
		"Upgrade":        {"h2c"},
		"HTTP2-Settings": {encoded},
	}
	if err := req.Write(w); err != nil {
		return fmt.Errorf("h2conn: write upgrade request: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("h2conn: flush upgrade request: %w", err)
	}

	r := bufio.NewReader(rw)
	resp, err := http.ReadResponse(r, req)
	if err != nil {
		return fmt.Errorf("h2conn: read upgrade response: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		return fmt.Errorf("h2conn: %w: upgrade response status %d", errs.ErrHTTP2HTTP11Required, resp.StatusCode)
	}

	if _, err := w.WriteString(Preface); err != nil {
		return fmt.Errorf("h2conn: write preface: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("h2conn: flush preface: %w", err)
	}
	return writeSettingsFrame(w, nil)
}

// ServerUpgrade performs the server side of the h2c Upgrade handshake
// (spec.md §4.5 "Server upgrade"): it reads the request (already parsed by
// the caller's HTTP/1.1 server as req), responds 101, treats the decoded
// HTTP2-Settings header as implicitly ACKed, requires the client preface
// exactly, reads the client's SETTINGS frame, and sends the server's own.
// It returns the peer settings decoded from the HTTP2-Settings header.
func ServerUpgrade(rw io.ReadWriter, req *http.Request, localSettings http2codec.SettingValues) (http2codec.SettingValues, error) {
	peer := http2codec.DefaultSettingValues()
	encoded := req.Header.Get("HTTP2-Settings")
	if encoded != "" {
		decoded, err := base64url.Decode(encoded)
		if err != nil {
			return peer, fmt.Errorf("h2conn: decode HTTP2-Settings: %w", err)
		}
		if err := http2codec.DecodeSettingsPayload(decoded, &peer); err != nil {
			return peer, fmt.Errorf("h2conn: apply HTTP2-Settings: %w", err)
		}
	}

	w := bufio.NewWriter(rw)
	if _, err := io.WriteString(w, "HTTP/1.1 101 Switching Protocols\r\nConnection: Upgrade\r\nUpgrade: h2c\r\n\r\n"); err != nil {
		return peer, fmt.Errorf("h2conn: write 101 response: %w", err)
	}
	if err := w.Flush(); err != nil {
		return peer, fmt.Errorf("h2conn: flush 101 response: %w", err)
	}

	r := bufio.NewReader(rw)
	if err := readPreface(r); err != nil {
		return peer, err
	}
	if err := readSettingsFrame(r, &peer); err != nil {
		return peer, err
	}
	return peer, writeSettingsFrame(w, currentSettingsPayload(localSettings))
}

// AcceptPriorKnowledge implements spec.md §4.5 "Prior-knowledge accept":
// read and require the preface, send the local SETTINGS frame, proceed.
func AcceptPriorKnowledge(rw io.ReadWriter, localSettings http2codec.SettingValues) error {
	r := bufio.NewReader(rw)
	if err := readPreface(r); err != nil {
		return err
	}
	w := bufio.NewWriter(rw)
	return writeSettingsFrame(w, currentSettingsPayload(localSettings))
}

// CheckALPN implements spec.md §4.5 "TLS ALPN": for HTTP/2 over TLS the
// negotiated protocol must be "h2"; any other result (including none) fails
// with http_1_1_required.
func CheckALPN(state tls.ConnectionState) error {
	if state.NegotiatedProtocol != "h2" {
		return fmt.Errorf("h2conn: %w: negotiated ALPN protocol %q", errs.ErrHTTP2HTTP11Required, state.NegotiatedProtocol)
	}
	return nil
}
