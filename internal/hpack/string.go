package hpack

import "github.com/penguintech/march-quicd/internal/errs"

const huffmanFlag = 0x80

// EncodeString appends the HPACK string encoding of s to dst: a 7-bit
// prefix integer length with the Huffman flag always clear, followed by the
// raw bytes (spec.md §4.1 "Encoding always sets the Huffman flag to zero").
func EncodeString(dst []byte, s string) []byte {
	dst = EncodeInteger(dst, 7, uint64(len(s)), 0)
	return append(dst, s...)
}

// EncodedStringSize returns the number of bytes EncodeString will write.
func EncodedStringSize(s string) int {
	return EncodedIntegerSize(7, uint64(len(s))) + len(s)
}

// DecodeString reads an HPACK string from the front of in. Huffman-coded
// strings are rejected with ErrHPACKHuffmanNotImplemented, per spec.md §4.1
// and §9 ("the core rejects it on decode").
func DecodeString(in []byte) (s string, consumed int, err error) {
	length, flags, n, err := DecodeInteger(in, 7)
	if err != nil {
		return "", 0, err
	}
	if flags&huffmanFlag != 0 {
		return "", 0, errs.ErrHPACKHuffmanNotImplemented
	}
	rest := in[n:]
	if uint64(len(rest)) < length {
		return "", 0, errs.ErrHPACKTruncated
	}
	return string(rest[:length]), n + int(length), nil
}
