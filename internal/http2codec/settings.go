package http2codec

// SettingID is an HTTP/2 SETTINGS registry identifier (spec.md §3: "each
// parameter has a registry identifier in [1, 6]").
type SettingID uint16

const (
	SettingHeaderTableSize      SettingID = 1
	SettingEnablePush           SettingID = 2
	SettingMaxConcurrentStreams SettingID = 3
	SettingInitialWindowSize    SettingID = 4
	SettingMaxFrameSize         SettingID = 5
	SettingMaxHeaderListSize    SettingID = 6
)

// NumSettingParameters is the number of registered SETTINGS parameters.
const NumSettingParameters = 6

// SettingPair is one (identifier, value) entry of a SETTINGS frame payload.
type SettingPair struct {
	Identifier SettingID
	Value      uint32
}

// EncodeSetting appends the 6-byte wire encoding of one SettingPair to dst.
func EncodeSetting(dst []byte, p SettingPair) []byte {
	return append(dst,
		byte(p.Identifier>>8), byte(p.Identifier),
		byte(p.Value>>24), byte(p.Value>>16), byte(p.Value>>8), byte(p.Value),
	)
}

// DecodeSetting reads a 6-byte SettingPair from the front of in.
func DecodeSetting(in []byte) (p SettingPair, consumed int, err error) {
	if len(in) < 6 {
		return SettingPair{}, 0, ErrTruncated
	}
	p.Identifier = SettingID(uint16(in[0])<<8 | uint16(in[1]))
	p.Value = uint32(in[2])<<24 | uint32(in[3])<<16 | uint32(in[4])<<8 | uint32(in[5])
	return p, 6, nil
}

// SettingValues holds the six registered SETTINGS parameters, in registry
// order (spec.md §3 "Transport settings... For HTTP/2 there is a separate
// setting_values with six registered parameters").
type SettingValues struct {
	HeaderTableSize      uint32
	EnablePush           uint32
	MaxConcurrentStreams uint32
	InitialWindowSize    uint32
	MaxFrameSize         uint32
	MaxHeaderListSize    uint32
}

// DefaultSettingValues returns the RFC 7540 §11.3 default SETTINGS values.
func DefaultSettingValues() SettingValues {
	return SettingValues{
		HeaderTableSize:      4096,
		EnablePush:           1,
		MaxConcurrentStreams: 1<<32 - 1,
		InitialWindowSize:    65535,
		MaxFrameSize:         16384,
		MaxHeaderListSize:    1<<32 - 1,
	}
}

// pointers returns each field in registry order for iteration.
func (v *SettingValues) pointers() [NumSettingParameters]*uint32 {
	return [NumSettingParameters]*uint32{
		&v.HeaderTableSize,
		&v.EnablePush,
		&v.MaxConcurrentStreams,
		&v.InitialWindowSize,
		&v.MaxFrameSize,
		&v.MaxHeaderListSize,
	}
}

// EncodeAll appends every parameter of v, in registry order, to dst.
func EncodeAll(dst []byte, v SettingValues) []byte {
	ptrs := v.pointers()
	for i, p := range ptrs {
		dst = EncodeSetting(dst, SettingPair{Identifier: SettingID(i + 1), Value: *p})
	}
	return dst
}

// CopyChanges appends only the parameters whose value differs between from
// and to, preserving registry order (spec.md §4.1 "copy_changes helper").
func CopyChanges(dst []byte, from, to SettingValues) []byte {
	fromPtrs := from.pointers()
	toPtrs := to.pointers()
	for i := range fromPtrs {
		if *fromPtrs[i] != *toPtrs[i] {
			dst = EncodeSetting(dst, SettingPair{Identifier: SettingID(i + 1), Value: *toPtrs[i]})
		}
	}
	return dst
}

// Apply sets the field named by id to value, ignoring unregistered ids.
func (v *SettingValues) Apply(id SettingID, value uint32) {
	if id < 1 || int(id) > NumSettingParameters {
		return
	}
	*v.pointers()[id-1] = value
}

// DecodeSettingsPayload parses a full SETTINGS frame payload (a sequence of
// 6-byte pairs) and applies each to v in order.
func DecodeSettingsPayload(payload []byte, v *SettingValues) error {
	for len(payload) > 0 {
		p, n, err := DecodeSetting(payload)
		if err != nil {
			return err
		}
		v.Apply(p.Identifier, p.Value)
		payload = payload[n:]
	}
	return nil
}
