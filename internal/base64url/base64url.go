// Package base64url implements the unpadded base64url alphabet used by the
// HTTP2-Settings header in the h2c upgrade handshake (spec.md S5).
package base64url

import (
	"encoding/base64"
	"fmt"
)

// ErrInvalidLength is returned when the input length mod 4 is 1, which can
// never decode to a valid byte sequence.
var ErrInvalidLength = fmt.Errorf("base64url: invalid length")

// ErrInvalidCharacter is returned when the input contains a character
// outside the base64url alphabet, including the padding character '='.
var ErrInvalidCharacter = fmt.Errorf("base64url: invalid character")

// Encode returns the unpadded base64url encoding of data.
func Encode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// Decode decodes an unpadded base64url string. It rejects inputs of length
// mod 4 == 1, any '=' padding, and any character outside the alphabet.
func Decode(s string) ([]byte, error) {
	if len(s)%4 == 1 {
		return nil, ErrInvalidLength
	}
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return nil, ErrInvalidCharacter
		}
	}
	decoded, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidCharacter
	}
	return decoded, nil
}
