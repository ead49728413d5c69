package http2codec

import (
	"bytes"
	"errors"
	"testing"
)

func TestPriorityRoundTrip(t *testing.T) {
	cases := []StreamPriority{
		{Exclusive: false, Dependency: 0, Weight: 16},
		{Exclusive: true, Dependency: 0x12345678 & streamIDMask, Weight: 256},
		{Exclusive: false, Dependency: 1, Weight: 1},
	}
	for _, want := range cases {
		encoded := EncodePriority(nil, want)
		if len(encoded) != PriorityEncodedSize {
			t.Fatalf("EncodePriority length = %d, want %d", len(encoded), PriorityEncodedSize)
		}
		got, consumed, err := DecodePriority(encoded)
		if err != nil {
			t.Fatalf("DecodePriority error: %v", err)
		}
		if consumed != PriorityEncodedSize || got != want {
			t.Fatalf("round trip = %+v consumed=%d, want %+v", got, consumed, want)
		}
	}
}

func TestPriorityWeightWireIsOffByOne(t *testing.T) {
	encoded := EncodePriority(nil, StreamPriority{Weight: 1})
	if encoded[4] != 0x00 {
		t.Fatalf("wire weight byte for logical weight 1 = %#x, want 0x00", encoded[4])
	}
	encoded = EncodePriority(nil, StreamPriority{Weight: 256})
	if encoded[4] != 0xff {
		t.Fatalf("wire weight byte for logical weight 256 = %#x, want 0xff", encoded[4])
	}
}

func TestPriorityExclusiveBit(t *testing.T) {
	encoded := EncodePriority(nil, StreamPriority{Exclusive: true, Dependency: 0, Weight: 1})
	if encoded[0]&0x80 == 0 {
		t.Fatalf("exclusive bit not set: %x", encoded)
	}
	if !bytes.Equal(encoded[1:4], []byte{0, 0, 0}) {
		t.Fatalf("dependency bytes = %x, want zero", encoded[1:4])
	}
}

func TestDecodePriorityTruncated(t *testing.T) {
	if _, _, err := DecodePriority([]byte{0x00, 0x00, 0x00, 0x00}); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}
