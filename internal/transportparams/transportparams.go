// Package transportparams implements the QUIC transport parameter TLV codec
// of spec.md §4.1: a sequence of (identifier, length, value) records, with
// the 16-bit identifier and the length each written as a QUIC varint, keyed
// by a caller-supplied bitmask selecting which members of
// Parameters participate in encode/decode. Unknown identifiers are skipped
// on decode.
package transportparams

import (
	"fmt"

	"github.com/penguintech/march-quicd/internal/varint"
	"github.com/penguintech/march-quicd/internal/wire"
)

// ID is a registered transport parameter identifier.
type ID uint16

const (
	IDOriginalDestinationConnectionID ID = 0x00
	IDMaxIdleTimeout                  ID = 0x01
	IDStatelessResetToken             ID = 0x02
	IDMaxUDPPayloadSize               ID = 0x03
	IDInitialMaxData                  ID = 0x04
	IDInitialMaxStreamDataBidiLocal   ID = 0x05
	IDInitialMaxStreamDataBidiRemote  ID = 0x06
	IDInitialMaxStreamDataUni         ID = 0x07
	IDInitialMaxStreamsBidi           ID = 0x08
	IDInitialMaxStreamsUni            ID = 0x09
	IDAckDelayExponent                ID = 0x0a
	IDMaxAckDelay                     ID = 0x0b
	IDDisableActiveMigration          ID = 0x0c
	IDPreferredAddress                ID = 0x0d
	IDActiveConnectionIDLimit         ID = 0x0e
	IDInitialSourceConnectionID       ID = 0x0f
	IDRetrySourceConnectionID         ID = 0x10
)

// Mask selects which Parameters fields participate in encode/decode,
// matching spec.md §4.1 "a caller-supplied bitmask selects which members of
// the transport_parameters record participate".
type Mask uint32

const (
	MaskMaxIdleTimeout Mask = 1 << iota
	MaskInitialMaxData
	MaskInitialMaxStreamDataBidiLocal
	MaskInitialMaxStreamDataBidiRemote
	MaskInitialMaxStreamDataUni
	MaskInitialMaxStreamsBidi
	MaskInitialMaxStreamsUni
	MaskAckDelayExponent
	MaskMaxAckDelay
	MaskDisableActiveMigration
	MaskPreferredAddress
	MaskActiveConnectionIDLimit
	MaskMaxUDPPayloadSize
	MaskStatelessResetToken
	MaskOriginalDestinationConnectionID
	MaskInitialSourceConnectionID
	MaskRetrySourceConnectionID

	MaskAll Mask = 0xffffffff
)

// PreferredAddress is the composite of spec.md §4.1: 4-byte v4 address +
// 2-byte port, 16-byte v6 address + 2-byte port, a length-prefixed
// connection id, and a 16-byte stateless reset token (41 bytes plus the
// connection id).
type PreferredAddress struct {
	IPv4Address [4]byte
	IPv4Port    uint16
	IPv6Address [16]byte
	IPv6Port    uint16
	ConnectionID []byte // at most 20 bytes, length carried on the wire
	ResetToken  [16]byte
}

const preferredAddressEncodedSizeNoCID = 4 + 2 + 16 + 2 + 1 + 16

// EncodedSize returns the encoded size of pa including its own CID bytes.
func (pa *PreferredAddress) EncodedSize() int {
	return preferredAddressEncodedSizeNoCID + len(pa.ConnectionID)
}

// Encode appends the 41+len(CID)-byte wire form of pa to dst.
func (pa *PreferredAddress) Encode(dst []byte) []byte {
	dst = append(dst, pa.IPv4Address[:]...)
	dst = wire.EncodeUint(dst, uint64(pa.IPv4Port), 2)
	dst = append(dst, pa.IPv6Address[:]...)
	dst = wire.EncodeUint(dst, uint64(pa.IPv6Port), 2)
	dst = append(dst, byte(len(pa.ConnectionID)))
	dst = append(dst, pa.ConnectionID...)
	dst = append(dst, pa.ResetToken[:]...)
	return dst
}

// Decode reads a PreferredAddress from the front of in.
func DecodePreferredAddress(in []byte) (pa PreferredAddress, consumed int, err error) {
	if len(in) < preferredAddressEncodedSizeNoCID {
		return pa, 0, fmt.Errorf("transportparams: truncated preferred_address")
	}
	off := 0
	copy(pa.IPv4Address[:], in[off:off+4])
	off += 4
	port, _, _ := wire.DecodeUint(in[off:], 2)
	pa.IPv4Port = uint16(port)
	off += 2
	copy(pa.IPv6Address[:], in[off:off+16])
	off += 16
	port, _, _ = wire.DecodeUint(in[off:], 2)
	pa.IPv6Port = uint16(port)
	off += 2
	cidLen := int(in[off])
	off++
	if len(in) < off+cidLen+16 {
		return pa, 0, fmt.Errorf("transportparams: truncated preferred_address cid")
	}
	pa.ConnectionID = append([]byte(nil), in[off:off+cidLen]...)
	off += cidLen
	copy(pa.ResetToken[:], in[off:off+16])
	off += 16
	return pa, off, nil
}

// Parameters holds the subset of transport parameters this core encodes and
// decodes (spec.md §3 "Transport settings" plus the IETF QUIC wire set
// needed to exercise preferred_address round-tripping, §9 supplemented
// feature).
type Parameters struct {
	OriginalDestinationConnectionID []byte
	MaxIdleTimeout                  uint64 // milliseconds
	StatelessResetToken             [16]byte
	MaxUDPPayloadSize                uint64
	InitialMaxData                   uint64
	InitialMaxStreamDataBidiLocal     uint64
	InitialMaxStreamDataBidiRemote    uint64
	InitialMaxStreamDataUni           uint64
	InitialMaxStreamsBidi             uint64
	InitialMaxStreamsUni              uint64
	AckDelayExponent                  uint64
	MaxAckDelay                       uint64
	DisableActiveMigration            bool
	PreferredAddress                  *PreferredAddress
	ActiveConnectionIDLimit           uint64
	InitialSourceConnectionID         []byte
	RetrySourceConnectionID           []byte
}

type tlvEntry struct {
	id    ID
	value []byte
}

func varintEntry(id ID, v uint64) tlvEntry {
	val, _ := varint.Encode(nil, v)
	return tlvEntry{id: id, value: val}
}

func (p *Parameters) entries(mask Mask) []tlvEntry {
	var out []tlvEntry
	if mask&MaskOriginalDestinationConnectionID != 0 && p.OriginalDestinationConnectionID != nil {
		out = append(out, tlvEntry{IDOriginalDestinationConnectionID, p.OriginalDestinationConnectionID})
	}
	if mask&MaskMaxIdleTimeout != 0 {
		out = append(out, varintEntry(IDMaxIdleTimeout, p.MaxIdleTimeout))
	}
	if mask&MaskStatelessResetToken != 0 {
		out = append(out, tlvEntry{IDStatelessResetToken, p.StatelessResetToken[:]})
	}
	if mask&MaskMaxUDPPayloadSize != 0 {
		out = append(out, varintEntry(IDMaxUDPPayloadSize, p.MaxUDPPayloadSize))
	}
	if mask&MaskInitialMaxData != 0 {
		out = append(out, varintEntry(IDInitialMaxData, p.InitialMaxData))
	}
	if mask&MaskInitialMaxStreamDataBidiLocal != 0 {
		out = append(out, varintEntry(IDInitialMaxStreamDataBidiLocal, p.InitialMaxStreamDataBidiLocal))
	}
	if mask&MaskInitialMaxStreamDataBidiRemote != 0 {
		out = append(out, varintEntry(IDInitialMaxStreamDataBidiRemote, p.InitialMaxStreamDataBidiRemote))
	}
	if mask&MaskInitialMaxStreamDataUni != 0 {
		out = append(out, varintEntry(IDInitialMaxStreamDataUni, p.InitialMaxStreamDataUni))
	}
	if mask&MaskInitialMaxStreamsBidi != 0 {
		out = append(out, varintEntry(IDInitialMaxStreamsBidi, p.InitialMaxStreamsBidi))
	}
	if mask&MaskInitialMaxStreamsUni != 0 {
		out = append(out, varintEntry(IDInitialMaxStreamsUni, p.InitialMaxStreamsUni))
	}
	if mask&MaskAckDelayExponent != 0 {
		out = append(out, varintEntry(IDAckDelayExponent, p.AckDelayExponent))
	}
	if mask&MaskMaxAckDelay != 0 {
		out = append(out, varintEntry(IDMaxAckDelay, p.MaxAckDelay))
	}
	if mask&MaskDisableActiveMigration != 0 && p.DisableActiveMigration {
		out = append(out, tlvEntry{IDDisableActiveMigration, nil})
	}
	if mask&MaskPreferredAddress != 0 && p.PreferredAddress != nil {
		out = append(out, tlvEntry{IDPreferredAddress, p.PreferredAddress.Encode(nil)})
	}
	if mask&MaskActiveConnectionIDLimit != 0 {
		out = append(out, varintEntry(IDActiveConnectionIDLimit, p.ActiveConnectionIDLimit))
	}
	if mask&MaskInitialSourceConnectionID != 0 && p.InitialSourceConnectionID != nil {
		out = append(out, tlvEntry{IDInitialSourceConnectionID, p.InitialSourceConnectionID})
	}
	if mask&MaskRetrySourceConnectionID != 0 && p.RetrySourceConnectionID != nil {
		out = append(out, tlvEntry{IDRetrySourceConnectionID, p.RetrySourceConnectionID})
	}
	return out
}

// EncodedSize returns the total TLV-encoded size of the fields selected by
// mask.
func (p *Parameters) EncodedSize(mask Mask) int {
	n := 0
	for _, e := range p.entries(mask) {
		idLen, _ := varint.EncodedSize(uint64(e.id))
		lenLen, _ := varint.EncodedSize(uint64(len(e.value)))
		n += idLen + lenLen + len(e.value)
	}
	return n
}

// Encode appends the TLV-encoded fields selected by mask to dst.
func (p *Parameters) Encode(dst []byte, mask Mask) ([]byte, error) {
	var err error
	for _, e := range p.entries(mask) {
		dst, err = varint.Encode(dst, uint64(e.id))
		if err != nil {
			return dst, err
		}
		dst, err = varint.Encode(dst, uint64(len(e.value)))
		if err != nil {
			return dst, err
		}
		dst = append(dst, e.value...)
	}
	return dst, nil
}

// Decode parses a TLV sequence from in into p, skipping identifiers not
// selected by mask or not recognized at all (spec.md §4.1 "Unknown
// identifiers are skipped").
func Decode(in []byte, mask Mask, p *Parameters) error {
	for len(in) > 0 {
		id, n, err := varint.Decode(in)
		if err != nil {
			return err
		}
		in = in[n:]
		length, n, err := varint.Decode(in)
		if err != nil {
			return err
		}
		in = in[n:]
		if uint64(len(in)) < length {
			return wire.ErrTruncated
		}
		value := in[:length]
		in = in[length:]
		applyEntry(p, mask, ID(id), value)
	}
	return nil
}

func applyEntry(p *Parameters, mask Mask, id ID, value []byte) {
	switch id {
	case IDOriginalDestinationConnectionID:
		if mask&MaskOriginalDestinationConnectionID != 0 {
			p.OriginalDestinationConnectionID = append([]byte(nil), value...)
		}
	case IDMaxIdleTimeout:
		if mask&MaskMaxIdleTimeout != 0 {
			p.MaxIdleTimeout, _, _ = varint.Decode(value)
		}
	case IDStatelessResetToken:
		if mask&MaskStatelessResetToken != 0 && len(value) == 16 {
			copy(p.StatelessResetToken[:], value)
		}
	case IDMaxUDPPayloadSize:
		if mask&MaskMaxUDPPayloadSize != 0 {
			p.MaxUDPPayloadSize, _, _ = varint.Decode(value)
		}
	case IDInitialMaxData:
		if mask&MaskInitialMaxData != 0 {
			p.InitialMaxData, _, _ = varint.Decode(value)
		}
	case IDInitialMaxStreamDataBidiLocal:
		if mask&MaskInitialMaxStreamDataBidiLocal != 0 {
			p.InitialMaxStreamDataBidiLocal, _, _ = varint.Decode(value)
		}
	case IDInitialMaxStreamDataBidiRemote:
		if mask&MaskInitialMaxStreamDataBidiRemote != 0 {
			p.InitialMaxStreamDataBidiRemote, _, _ = varint.Decode(value)
		}
	case IDInitialMaxStreamDataUni:
		if mask&MaskInitialMaxStreamDataUni != 0 {
			p.InitialMaxStreamDataUni, _, _ = varint.Decode(value)
		}
	case IDInitialMaxStreamsBidi:
		if mask&MaskInitialMaxStreamsBidi != 0 {
			p.InitialMaxStreamsBidi, _, _ = varint.Decode(value)
		}
	case IDInitialMaxStreamsUni:
		if mask&MaskInitialMaxStreamsUni != 0 {
			p.InitialMaxStreamsUni, _, _ = varint.Decode(value)
		}
	case IDAckDelayExponent:
		if mask&MaskAckDelayExponent != 0 {
			p.AckDelayExponent, _, _ = varint.Decode(value)
		}
	case IDMaxAckDelay:
		if mask&MaskMaxAckDelay != 0 {
			p.MaxAckDelay, _, _ = varint.Decode(value)
		}
	case IDDisableActiveMigration:
		if mask&MaskDisableActiveMigration != 0 {
			p.DisableActiveMigration = true
		}
	case IDPreferredAddress:
		if mask&MaskPreferredAddress != 0 {
			pa, _, err := DecodePreferredAddress(value)
			if err == nil {
				p.PreferredAddress = &pa
			}
		}
	case IDActiveConnectionIDLimit:
		if mask&MaskActiveConnectionIDLimit != 0 {
			p.ActiveConnectionIDLimit, _, _ = varint.Decode(value)
		}
	case IDInitialSourceConnectionID:
		if mask&MaskInitialSourceConnectionID != 0 {
			p.InitialSourceConnectionID = append([]byte(nil), value...)
		}
	case IDRetrySourceConnectionID:
		if mask&MaskRetrySourceConnectionID != 0 {
			p.RetrySourceConnectionID = append([]byte(nil), value...)
		}
	default:
		// unknown identifier, skipped per spec.md §4.1
	}
}
