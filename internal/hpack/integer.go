// Package hpack implements the literal-header subset of RFC 7541 HPACK
// required by spec.md §4.1: N-bit prefix integers, length-prefixed strings
// (Huffman coding intentionally rejected on decode and never emitted), and
// headers indexed against the static table plus a byte-budgeted dynamic
// table.
package hpack

import "github.com/penguintech/march-quicd/internal/errs"

// EncodeInteger appends the HPACK N-bit-prefix encoding of value to dst. The
// high (8-N) bits of the first byte are taken from flags.
func EncodeInteger(dst []byte, n uint, value uint64, flags uint8) []byte {
	max := (uint64(1) << n) - 1
	if value < max {
		return append(dst, flags|byte(value))
	}
	dst = append(dst, flags|byte(max))
	value -= max
	for value >= 0x80 {
		dst = append(dst, byte(value&0x7f)|0x80)
		value >>= 7
	}
	return append(dst, byte(value))
}

// EncodedIntegerSize returns the number of bytes EncodeInteger will write.
func EncodedIntegerSize(n uint, value uint64) int {
	max := (uint64(1) << n) - 1
	if value < max {
		return 1
	}
	size := 1
	value -= max
	for value >= 0x80 {
		size++
		value >>= 7
	}
	return size + 1
}

// DecodeInteger reads an HPACK N-bit-prefix integer from the front of in,
// returning the decoded value, the flag bits from the first byte's upper
// (8-N) bits, and the number of bytes consumed.
func DecodeInteger(in []byte, n uint) (value uint64, flags uint8, consumed int, err error) {
	if len(in) < 1 {
		return 0, 0, 0, errs.ErrHPACKTruncated
	}
	prefixMask := byte((uint64(1) << n) - 1)
	flags = in[0] &^ prefixMask
	value = uint64(in[0] & prefixMask)
	if value < uint64(prefixMask) {
		return value, flags, 1, nil
	}
	shift := uint(0)
	i := 1
	for {
		if i >= len(in) {
			return 0, 0, 0, errs.ErrHPACKTruncated
		}
		b := in[i]
		i++
		cont := uint64(b & 0x7f)
		if shift >= 64 || cont > (^uint64(0)-value)>>shift {
			return 0, 0, 0, errs.ErrHPACKIntegerOverflow
		}
		value += cont << shift
		if b&0x80 == 0 {
			return value, flags, i, nil
		}
		shift += 7
	}
}
