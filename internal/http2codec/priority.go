package http2codec

// PriorityEncodedSize is the fixed wire size of a PRIORITY payload.
const PriorityEncodedSize = 5

// StreamPriority is the PRIORITY frame payload (spec.md §4.1, §3 "priority
// (dependency id, weight 1-256, exclusive flag)").
type StreamPriority struct {
	Exclusive  bool
	Dependency uint32 // 31 bits
	Weight     uint16 // logical value in [1, 256]
}

// EncodePriority appends the 5-byte wire encoding of p to dst. The logical
// weight in [1, 256] is stored as weight-1 on the wire (spec.md §4.1).
func EncodePriority(dst []byte, p StreamPriority) []byte {
	var excl uint8
	if p.Exclusive {
		excl = 0x80
	}
	dep := p.Dependency & streamIDMask
	wire := uint8(p.Weight - 1)
	return append(dst,
		excl|byte(dep>>24),
		byte(dep>>16), byte(dep>>8), byte(dep),
		wire,
	)
}

// DecodePriority reads a 5-byte StreamPriority from the front of in.
func DecodePriority(in []byte) (p StreamPriority, consumed int, err error) {
	if len(in) < PriorityEncodedSize {
		return StreamPriority{}, 0, ErrTruncated
	}
	first := in[0]
	p.Exclusive = first&0x80 != 0
	p.Dependency = uint32(first&0x7f)<<24 | uint32(in[1])<<16 | uint32(in[2])<<8 | uint32(in[3])
	p.Weight = uint16(in[4]) + 1
	return p, PriorityEncodedSize, nil
}
