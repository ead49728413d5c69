// Package h3fields bridges internal/fields's ordered header collection to
// the HTTP/3 wire, per spec.md §4.2 "Headers (HTTP/3)": "writing headers
// encodes them using QPACK via the QUIC state machine library; reading
// headers is delivered by a callback ... which populates the caller's
// fields collection". internal/fields keeps the insertion-order/indexing-hint
// semantics spec.md §3 requires; this package owns only the QPACK wire
// encoding, via github.com/quic-go/qpack (SPEC_FULL.md DOMAIN STACK).
//
// QPACK proper supports dynamic-table-referencing header blocks that
// require out-of-band encoder/decoder stream synchronization; this core
// never references the dynamic table, in line with spec.md §1 Non-goals
// ("implementing QPACK compression beyond literal headers"). qpack.Encoder
// keeps no dynamic table, so its output holds only static-table references
// and literals, with no extra code here.
package h3fields

import (
	"bytes"
	"fmt"
	"io"

	"github.com/quic-go/qpack"

	"github.com/penguintech/march-quicd/internal/fields"
	"github.com/penguintech/march-quicd/internal/varint"
)

// HeadersFrameType is the HTTP/3 HEADERS frame type (RFC 9114 §7.2.2).
const HeadersFrameType = 0x1

// Encode renders f as a QPACK-encoded HTTP/3 HEADERS frame payload: a
// QPACK header block with no dynamic-table references, prefixed by the
// 2-byte required-insert-count/base fields (both zero, since no
// dynamic-table entry is ever used).
func Encode(f *fields.Fields) ([]byte, error) {
	var buf bytes.Buffer
	enc := qpack.NewEncoder(&buf)
	for _, entry := range f.All() {
		if err := enc.WriteField(qpack.HeaderField{Name: entry.Name, Value: entry.Value}); err != nil {
			return nil, fmt.Errorf("h3fields: encode %q: %w", entry.Name, err)
		}
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("h3fields: close encoder: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a QPACK header block into a fresh fields.Fields collection,
// preserving wire order (spec.md §3 "order is preserved in iteration").
func Decode(payload []byte) (*fields.Fields, error) {
	out := fields.New()
	dec := qpack.NewDecoder(func(hf qpack.HeaderField) {
		out.Insert(hf.Name, hf.Value)
	})
	if _, err := dec.Write(payload); err != nil {
		return nil, fmt.Errorf("h3fields: decode: %w", err)
	}
	return out, nil
}

// FrameHeader returns the 2-9 byte HTTP/3 frame header (varint type,
// varint length) that must precede payload on the wire, per RFC 9114 §7.2:
// a HEADERS frame is {type=varint(0x1), length=varint(len(payload))}
// followed by payload.
func FrameHeader(payloadLen int) []byte {
	out, err := varint.Encode(nil, HeadersFrameType)
	if err != nil {
		panic(err) // HeadersFrameType is a compile-time constant within range
	}
	out, err = varint.Encode(out, uint64(payloadLen))
	if err != nil {
		panic(err) // a QUIC stream cannot carry more than varint.Max bytes
	}
	return out
}

// EncodeFrame is Encode plus its FrameHeader, ready to write straight to a
// stream: the bytes stream.WriteHeaders (internal/streamstate) expects.
func EncodeFrame(f *fields.Fields) ([]byte, error) {
	payload, err := Encode(f)
	if err != nil {
		return nil, err
	}
	return append(FrameHeader(len(payload)), payload...), nil
}

// ReadFrame reads one HTTP/3 frame header (type, length varints) from r and
// returns its type and payload, the counterpart the engine's header-delivery
// callback uses to recognize a HEADERS frame before handing it to Decode
// (spec.md §4.2 "reading headers is delivered by a callback invoked from
// the engine").
func ReadFrame(r io.Reader) (frameType uint64, payload []byte, err error) {
	frameType, err = readVarint(r)
	if err != nil {
		return 0, nil, err
	}
	length, err := readVarint(r)
	if err != nil {
		return 0, nil, err
	}
	payload = make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, fmt.Errorf("h3fields: read frame payload: %w", err)
	}
	return frameType, payload, nil
}

// readVarint decodes one QUIC varint from r by first reading the byte that
// carries its 2-bit length prefix, then the remaining length-1 bytes.
func readVarint(r io.Reader) (uint64, error) {
	var first [1]byte
	if _, err := io.ReadFull(r, first[:]); err != nil {
		return 0, err
	}
	length := varint.LengthFromMask(first[0] >> 6)
	buf := make([]byte, length)
	buf[0] = first[0]
	if length > 1 {
		if _, err := io.ReadFull(r, buf[1:]); err != nil {
			return 0, fmt.Errorf("h3fields: read varint: %w", err)
		}
	}
	value, _, err := varint.Decode(buf)
	if err != nil {
		return 0, err
	}
	return value, nil
}
