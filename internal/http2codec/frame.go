// Package http2codec implements the HTTP/2 wire codecs of spec.md §4.1: the
// 9-byte frame header, SETTINGS frame payload, and PRIORITY frame payload.
// The connection preface and h2c upgrade helpers of §4.5 live in
// internal/h2conn.
package http2codec

import (
	"fmt"

	"github.com/penguintech/march-quicd/internal/errs"
)

// ErrTruncated is returned when an input buffer is shorter than a decode
// operation requires.
var ErrTruncated = fmt.Errorf("http2codec: truncated")

// streamIDMask masks off the reserved high bit of a stream identifier.
const streamIDMask uint32 = 0x7fffffff

// MaxFrameLength is the largest 24-bit frame payload length.
const MaxFrameLength = 1<<24 - 1

// FrameHeader is the fixed 9-byte HTTP/2 frame header (spec.md §4.1, S3).
type FrameHeader struct {
	Length   uint32 // 24 bits
	Type     uint8
	Flags    uint8
	StreamID uint32 // 31 bits; high bit reserved
}

// EncodedSize is always 9 for a frame header.
func (FrameHeader) EncodedSize() int { return 9 }

// Encode appends the 9-byte wire encoding of h to dst. It fails with
// ErrHTTP2FrameSizeError if Length exceeds the 24-bit field.
func Encode(dst []byte, h FrameHeader) ([]byte, error) {
	if h.Length > MaxFrameLength {
		return dst, fmt.Errorf("http2codec: %w: length %d exceeds 24 bits", errs.ErrHTTP2FrameSizeError, h.Length)
	}
	streamID := h.StreamID & streamIDMask
	return append(dst,
		byte(h.Length>>16), byte(h.Length>>8), byte(h.Length),
		h.Type, h.Flags,
		byte(streamID>>24), byte(streamID>>16), byte(streamID>>8), byte(streamID),
	), nil
}

// Decode reads a 9-byte frame header from the front of in, masking off the
// reserved high bit of the stream id.
func Decode(in []byte) (h FrameHeader, consumed int, err error) {
	if len(in) < 9 {
		return FrameHeader{}, 0, ErrTruncated
	}
	h.Length = uint32(in[0])<<16 | uint32(in[1])<<8 | uint32(in[2])
	h.Type = in[3]
	h.Flags = in[4]
	h.StreamID = (uint32(in[5])<<24 | uint32(in[6])<<16 | uint32(in[7])<<8 | uint32(in[8])) & streamIDMask
	return h, 9, nil
}
