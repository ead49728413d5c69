package hpack

import "github.com/penguintech/march-quicd/internal/errs"

// Indexing selects the HPACK representation form used when encoding a
// header (spec.md §4.1 "The high two bits of the first byte select the
// indexing form").
type Indexing uint8

const (
	// IndexingIncremental adds the entry to the dynamic table:
	// "01xxxxxx" literal with incremental indexing.
	IndexingIncremental Indexing = iota
	// IndexingWithout never touches the dynamic table but may be
	// re-encoded differently on a future pass: "0000xxxx".
	IndexingWithout
	// IndexingNever additionally instructs intermediaries never to
	// index the value, e.g. for sensitive data: "0001xxxx".
	IndexingNever
)

// EncodeHeader appends the HPACK representation of (name, value) to dst,
// reusing static-table indices and, for IndexingIncremental, inserting the
// entry into table; entries already in table are not searched for reuse.
// Index 0 signals a literal name (spec.md §4.1).
func EncodeHeader(dst []byte, name, value string, indexing Indexing, table *DynamicTable) []byte {
	nameIndex, valueMatched := StaticIndexOf(name, value)
	if nameIndex != 0 && valueMatched {
		// Fully indexed: "1xxxxxxx" with a 7-bit integer index.
		return EncodeInteger(dst, 7, uint64(nameIndex), 0x80)
	}

	switch indexing {
	case IndexingIncremental:
		dst = EncodeInteger(dst, 6, uint64(nameIndex), 0x40)
	case IndexingNever:
		dst = EncodeInteger(dst, 4, uint64(nameIndex), 0x10)
	default: // IndexingWithout
		dst = EncodeInteger(dst, 4, uint64(nameIndex), 0x00)
	}
	if nameIndex == 0 {
		dst = EncodeString(dst, name)
	}
	dst = EncodeString(dst, value)

	if indexing == IndexingIncremental && table != nil {
		table.Insert(name, value)
	}
	return dst
}

// DecodeHeader reads one HPACK header representation from the front of in,
// resolving indexed names/values against the static table followed by
// table's dynamic entries (spec.md §4.1: "index 0 signals literal name").
func DecodeHeader(in []byte, table *DynamicTable) (name, value string, consumed int, err error) {
	if len(in) < 1 {
		return "", "", 0, errs.ErrHPACKTruncated
	}
	first := in[0]

	var (
		index      uint64
		n          int
		indexed    bool
		addToIndex bool
	)
	switch {
	case first&0x80 != 0: // indexed header field
		indexed = true
		index, _, n, err = DecodeInteger(in, 7)
	case first&0x40 != 0: // literal with incremental indexing
		addToIndex = true
		index, _, n, err = DecodeInteger(in, 6)
	default: // literal without/never indexing (0000xxxx / 0001xxxx)
		index, _, n, err = DecodeInteger(in, 4)
	}
	if err != nil {
		return "", "", 0, err
	}
	pos := in[n:]
	consumed = n

	if index > 0 {
		resolvedIndex := int(index) - 1
		if resolvedIndex < len(StaticTable) {
			entry := StaticTable[resolvedIndex]
			name = entry.Name
			if indexed {
				return name, entry.Value, consumed, nil
			}
		} else {
			dynIdx := resolvedIndex - len(StaticTable)
			if indexed {
				n2, v2, ok := table.Lookup(dynIdx, true)
				if !ok {
					return "", "", 0, errs.ErrHPACKInvalidIndex
				}
				return n2, v2, consumed, nil
			}
			n2, _, ok := table.Lookup(dynIdx, false)
			if !ok {
				return "", "", 0, errs.ErrHPACKInvalidIndex
			}
			name = n2
		}
	} else {
		if indexed {
			return "", "", 0, errs.ErrHPACKInvalidIndex
		}
		var nlen int
		name, nlen, err = DecodeString(pos)
		if err != nil {
			return "", "", 0, err
		}
		pos = pos[nlen:]
		consumed += nlen
	}

	var vlen int
	value, vlen, err = DecodeString(pos)
	if err != nil {
		return "", "", 0, err
	}
	consumed += vlen

	if addToIndex && table != nil {
		table.Insert(name, value)
	}
	return name, value, consumed, nil
}
