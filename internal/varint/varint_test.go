package varint

import "testing"

func TestLengthBoundaries(t *testing.T) {
	cases := []struct {
		value uint64
		want  int
	}{
		{0, 1},
		{0x3f, 1},
		{0x40, 2},
		{0x3fff, 2},
		{0x4000, 4},
		{0x3fffffff, 4},
		{0x40000000, 8},
		{Max, 8},
	}
	for _, c := range cases {
		if got := Length(c.value); got != c.want {
			t.Errorf("Length(%#x) = %d, want %d", c.value, got, c.want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for _, value := range []uint64{0, 0x3f, 0x40, 0x3fff, 0x4000, 0x3fffffff, 0x40000000, Max} {
		encoded, err := Encode(nil, value)
		if err != nil {
			t.Fatalf("Encode(%#x) error: %v", value, err)
		}
		size, _ := EncodedSize(value)
		if len(encoded) != size {
			t.Errorf("encoded_size(%#x) = %d, len(encode) = %d", value, size, len(encoded))
		}
		got, consumed, err := Decode(encoded)
		if err != nil {
			t.Fatalf("Decode error for %#x: %v", value, err)
		}
		if got != value || consumed != len(encoded) {
			t.Errorf("round trip(%#x) = (%#x, %d), want (%#x, %d)", value, got, consumed, value, len(encoded))
		}
	}
}

func TestScenarioS1(t *testing.T) {
	encoded, err := Encode(nil, 0x3fffffff)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0xbf, 0xff, 0xff, 0xff}
	if len(encoded) != len(want) {
		t.Fatalf("got %x, want %x", encoded, want)
	}
	for i := range want {
		if encoded[i] != want[i] {
			t.Fatalf("got %x, want %x", encoded, want)
		}
	}
	value, consumed, err := Decode(encoded)
	if err != nil || value != 0x3fffffff || consumed != 4 {
		t.Fatalf("Decode(%x) = (%#x, %d, %v)", encoded, value, consumed, err)
	}
}

func TestTruncated(t *testing.T) {
	encoded, _ := Encode(nil, Max)
	if _, _, err := Decode(encoded[:len(encoded)-1]); err != ErrTruncated {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	if _, _, err := Decode(nil); err != ErrTruncated {
		t.Fatalf("expected ErrTruncated on empty input, got %v", err)
	}
}

func TestOverflow(t *testing.T) {
	if _, err := Encode(nil, Max+1); err != ErrOverflow {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
}

func TestLengthMaskRoundTrip(t *testing.T) {
	for _, length := range []int{1, 2, 4, 8} {
		mask := LengthMask(length)
		if got := LengthFromMask(mask); got != length {
			t.Errorf("LengthFromMask(LengthMask(%d)) = %d", length, got)
		}
	}
}
