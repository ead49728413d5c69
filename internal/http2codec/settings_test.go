package http2codec

import (
	"bytes"
	"errors"
	"testing"
)

func TestSettingRoundTrip(t *testing.T) {
	p := SettingPair{Identifier: SettingInitialWindowSize, Value: 65535}
	encoded := EncodeSetting(nil, p)
	if len(encoded) != 6 {
		t.Fatalf("EncodeSetting length = %d, want 6", len(encoded))
	}
	got, consumed, err := DecodeSetting(encoded)
	if err != nil {
		t.Fatalf("DecodeSetting error: %v", err)
	}
	if consumed != 6 || got != p {
		t.Fatalf("DecodeSetting = %+v consumed=%d, want %+v consumed=6", got, consumed, p)
	}
}

func TestDecodeSettingTruncated(t *testing.T) {
	if _, _, err := DecodeSetting([]byte{0x00, 0x01, 0x02}); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestCopyChangesOnlyEmitsDiffering(t *testing.T) {
	from := DefaultSettingValues()
	to := from
	to.InitialWindowSize = 131072
	to.MaxFrameSize = 32768

	changes := CopyChanges(nil, from, to)
	if len(changes) != 12 {
		t.Fatalf("CopyChanges length = %d, want 12 (two pairs)", len(changes))
	}

	p1, n, err := DecodeSetting(changes)
	if err != nil {
		t.Fatalf("decode first change: %v", err)
	}
	if p1.Identifier != SettingInitialWindowSize || p1.Value != 131072 {
		t.Fatalf("first change = %+v, want InitialWindowSize=131072", p1)
	}
	p2, _, err := DecodeSetting(changes[n:])
	if err != nil {
		t.Fatalf("decode second change: %v", err)
	}
	if p2.Identifier != SettingMaxFrameSize || p2.Value != 32768 {
		t.Fatalf("second change = %+v, want MaxFrameSize=32768", p2)
	}
}

func TestCopyChangesNoneWhenEqual(t *testing.T) {
	v := DefaultSettingValues()
	if changes := CopyChanges(nil, v, v); len(changes) != 0 {
		t.Fatalf("CopyChanges with equal inputs = %x, want empty", changes)
	}
}

func TestDecodeSettingsPayloadAppliesInOrder(t *testing.T) {
	var payload []byte
	payload = EncodeSetting(payload, SettingPair{Identifier: SettingHeaderTableSize, Value: 8192})
	payload = EncodeSetting(payload, SettingPair{Identifier: SettingEnablePush, Value: 0})

	v := DefaultSettingValues()
	if err := DecodeSettingsPayload(payload, &v); err != nil {
		t.Fatalf("DecodeSettingsPayload error: %v", err)
	}
	if v.HeaderTableSize != 8192 || v.EnablePush != 0 {
		t.Fatalf("v = %+v, want HeaderTableSize=8192 EnablePush=0", v)
	}
}

func TestEncodeAllRegistryOrder(t *testing.T) {
	v := DefaultSettingValues()
	encoded := EncodeAll(nil, v)
	if len(encoded) != 6*6 {
		t.Fatalf("EncodeAll length = %d, want 36", len(encoded))
	}
	p, _, err := DecodeSetting(encoded)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if p.Identifier != SettingHeaderTableSize {
		t.Fatalf("first encoded parameter = %v, want SettingHeaderTableSize", p.Identifier)
	}
	if !bytes.Equal(encoded[:6], EncodeSetting(nil, SettingPair{Identifier: SettingHeaderTableSize, Value: v.HeaderTableSize})) {
		t.Fatalf("first pair mismatch")
	}
}
