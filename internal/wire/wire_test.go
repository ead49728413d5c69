package wire

import "testing"

func TestUintRoundTrip(t *testing.T) {
	cases := []struct {
		value  uint64
		length int
	}{
		{0, 1},
		{0xff, 1},
		{0x0102, 2},
		{0x01020304, 4},
		{0x0102030405060708, 8},
	}
	for _, c := range cases {
		encoded := EncodeUint(nil, c.value, c.length)
		if len(encoded) != c.length {
			t.Fatalf("EncodeUint length = %d, want %d", len(encoded), c.length)
		}
		got, consumed, err := DecodeUint(encoded, c.length)
		if err != nil {
			t.Fatalf("DecodeUint error: %v", err)
		}
		if got != c.value || consumed != c.length {
			t.Errorf("round trip(%#x) = (%#x, %d)", c.value, got, consumed)
		}
	}
}

func TestDecodeUintTruncated(t *testing.T) {
	if _, _, err := DecodeUint([]byte{1, 2}, 4); err != ErrTruncated {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestFixedStringRoundTrip(t *testing.T) {
	encoded := EncodeString(nil, "www.example.com")
	s, consumed, err := DecodeFixedString(encoded, len(encoded))
	if err != nil || s != "www.example.com" || consumed != len(encoded) {
		t.Fatalf("round trip failed: %q %d %v", s, consumed, err)
	}
}
