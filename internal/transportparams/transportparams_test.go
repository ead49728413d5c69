package transportparams

import (
	"bytes"
	"testing"
)

func TestRoundTripScalar(t *testing.T) {
	p := &Parameters{
		MaxIdleTimeout:        30000,
		InitialMaxData:        1 << 20,
		InitialMaxStreamsBidi: 100,
		DisableActiveMigration: true,
	}
	mask := MaskMaxIdleTimeout | MaskInitialMaxData | MaskInitialMaxStreamsBidi | MaskDisableActiveMigration

	encoded, err := p.Encode(nil, mask)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got, want := len(encoded), p.EncodedSize(mask); got != want {
		t.Fatalf("encoded_size mismatch: encode wrote %d, EncodedSize predicted %d", got, want)
	}

	var decoded Parameters
	if err := Decode(encoded, MaskAll, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.MaxIdleTimeout != p.MaxIdleTimeout {
		t.Errorf("MaxIdleTimeout = %d, want %d", decoded.MaxIdleTimeout, p.MaxIdleTimeout)
	}
	if decoded.InitialMaxData != p.InitialMaxData {
		t.Errorf("InitialMaxData = %d, want %d", decoded.InitialMaxData, p.InitialMaxData)
	}
	if decoded.InitialMaxStreamsBidi != p.InitialMaxStreamsBidi {
		t.Errorf("InitialMaxStreamsBidi = %d, want %d", decoded.InitialMaxStreamsBidi, p.InitialMaxStreamsBidi)
	}
	if !decoded.DisableActiveMigration {
		t.Errorf("DisableActiveMigration not round-tripped")
	}
}

func TestUnknownIdentifierSkipped(t *testing.T) {
	p := &Parameters{MaxIdleTimeout: 5000}
	encoded, err := p.Encode(nil, MaskMaxIdleTimeout)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	// append an unknown TLV: id=0x1234, len=2, value=0xaa 0xbb
	encoded = append(encoded, 0x52, 0x34, 0x02, 0xaa, 0xbb)

	var decoded Parameters
	if err := Decode(encoded, MaskAll, &decoded); err != nil {
		t.Fatalf("decode with unknown id: %v", err)
	}
	if decoded.MaxIdleTimeout != 5000 {
		t.Errorf("known field lost after unknown TLV: got %d", decoded.MaxIdleTimeout)
	}
}

func TestPreferredAddressRoundTrip(t *testing.T) {
	pa := &PreferredAddress{
		IPv4Address: [4]byte{127, 0, 0, 1},
		IPv4Port:    443,
		IPv6Port:    443,
		ConnectionID: []byte{1, 2, 3, 4},
	}
	copy(pa.ResetToken[:], bytes.Repeat([]byte{0x42}, 16))

	p := &Parameters{PreferredAddress: pa}
	encoded, err := p.Encode(nil, MaskPreferredAddress)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got, want := len(encoded), p.EncodedSize(MaskPreferredAddress); got != want {
		t.Fatalf("encoded_size mismatch: %d != %d", got, want)
	}

	var decoded Parameters
	if err := Decode(encoded, MaskPreferredAddress, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.PreferredAddress == nil {
		t.Fatal("preferred address not decoded")
	}
	if decoded.PreferredAddress.IPv4Address != pa.IPv4Address {
		t.Errorf("IPv4Address mismatch")
	}
	if !bytes.Equal(decoded.PreferredAddress.ConnectionID, pa.ConnectionID) {
		t.Errorf("ConnectionID mismatch: %v != %v", decoded.PreferredAddress.ConnectionID, pa.ConnectionID)
	}
	if decoded.PreferredAddress.ResetToken != pa.ResetToken {
		t.Errorf("ResetToken mismatch")
	}
}
