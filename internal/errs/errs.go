// Package errs implements the error taxonomy of spec.md §7: category-tagged
// error codes for QUIC, QUIC transport, TLS, HTTP/3, HTTP/2, HPACK, and
// base64url, plus the generic-category equivalences that let callers match
// abstractly (errors.Is against errors.Is against stdlib-ish sentinels).
package errs

import (
	"errors"
	"fmt"
)

// Category names the error taxonomies of spec.md §7.
type Category string

const (
	CategoryGlobal    Category = "global"
	CategoryQUIC      Category = "quic"
	CategoryTransport Category = "quic/transport"
	CategoryTLS       Category = "quic/tls"
	CategoryH3        Category = "h3"
	CategoryHTTP2     Category = "http2/protocol"
	CategoryHPACK     Category = "hpack"
	CategoryBase64URL Category = "base64url"
)

// Code is a category-scoped error implementing error, with Is() support so
// two Codes in the same category with the same value compare equal via
// errors.Is, and with Condition() support for the generic-equivalence rule.
type Code struct {
	Category Category
	Value    int
	Message  string
}

func (c *Code) Error() string {
	return fmt.Sprintf("%s: %s", c.Category, c.Message)
}

// Is reports whether target is a *Code in the same category with the same
// value, implementing the spec.md §7(a) in-place error comparison contract.
func (c *Code) Is(target error) bool {
	var other *Code
	if !errors.As(target, &other) {
		return false
	}
	return other.Category == c.Category && other.Value == c.Value
}

func newCode(cat Category, value int, msg string) *Code {
	return &Code{Category: cat, Value: value, Message: msg}
}

// Global errors.
var ErrInitFailed = newCode(CategoryGlobal, 1, "init failed")

// QUIC connection/stream errors (spec.md §7 QUIC connection / QUIC stream).
var (
	ErrOperationAborted    = newCode(CategoryQUIC, 1, "operation aborted")
	ErrConnectionAborted   = newCode(CategoryQUIC, 2, "connection aborted")
	ErrHandshakeFailed     = newCode(CategoryQUIC, 3, "connection handshake failed")
	ErrConnectionTimedOut  = newCode(CategoryQUIC, 4, "connection timed out")
	ErrConnectionReset     = newCode(CategoryQUIC, 5, "connection reset")
	ErrConnectionGoingAway = newCode(CategoryQUIC, 6, "connection going away")
	ErrEndOfStream         = newCode(CategoryQUIC, 7, "end of stream")
	ErrStreamReset         = newCode(CategoryQUIC, 8, "stream reset")
	ErrBusy                = newCode(CategoryQUIC, 9, "device or resource busy")
	ErrBrokenPipe          = newCode(CategoryQUIC, 10, "broken pipe")
	ErrProtocolError       = newCode(CategoryQUIC, 11, "protocol error")
)

// TransportError is the peer-sent CONNECTION_CLOSE transport error space,
// codes 0x00-0x10 (spec.md §7 Transport).
type TransportError int

const (
	TransportNoError                  TransportError = 0x00
	TransportInternalError            TransportError = 0x01
	TransportConnectionRefused        TransportError = 0x02
	TransportFlowControlError         TransportError = 0x03
	TransportStreamLimitError         TransportError = 0x04
	TransportStreamStateError         TransportError = 0x05
	TransportFinalSizeError           TransportError = 0x06
	TransportFrameEncodingError       TransportError = 0x07
	TransportParameterError           TransportError = 0x08
	TransportConnectionIDLimitError   TransportError = 0x09
	TransportProtocolViolation        TransportError = 0x0a
	TransportInvalidToken             TransportError = 0x0b
	TransportApplicationError         TransportError = 0x0c
	TransportCryptoBufferExceeded     TransportError = 0x0d
	TransportKeyUpdateError           TransportError = 0x0e
	TransportAEADLimitReached         TransportError = 0x0f
	TransportNoViablePath             TransportError = 0x10
)

var transportErrorNames = map[TransportError]string{
	TransportNoError:                "no_error",
	TransportInternalError:          "internal_error",
	TransportConnectionRefused:      "connection_refused",
	TransportFlowControlError:       "flow_control_error",
	TransportStreamLimitError:       "stream_limit_error",
	TransportStreamStateError:       "stream_state_error",
	TransportFinalSizeError:         "final_size_error",
	TransportFrameEncodingError:     "frame_encoding_error",
	TransportParameterError:         "transport_parameter_error",
	TransportConnectionIDLimitError: "connection_id_limit_error",
	TransportProtocolViolation:      "protocol_violation",
	TransportInvalidToken:           "invalid_token",
	TransportApplicationError:       "application_error",
	TransportCryptoBufferExceeded:   "crypto_buffer_exceeded",
	TransportKeyUpdateError:         "key_update_error",
	TransportAEADLimitReached:       "aead_limit_reached",
	TransportNoViablePath:           "no_viable_path",
}

func (e TransportError) String() string {
	if name, ok := transportErrorNames[e]; ok {
		return name
	}
	return fmt.Sprintf("transport_error(%#x)", int(e))
}

// TransportErrorCode wraps a TransportError as an error value comparable via
// errors.Is to another TransportErrorCode with the same code, implementing
// the "compares equal to transport_error::X" rule of spec.md S6.
type TransportErrorCode struct {
	Code TransportError
}

func (e *TransportErrorCode) Error() string {
	return fmt.Sprintf("quic/transport: %s", e.Code)
}

func (e *TransportErrorCode) Is(target error) bool {
	var other *TransportErrorCode
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// NewTransportError wraps a raw CONNECTION_CLOSE transport code.
func NewTransportError(code TransportError) *TransportErrorCode {
	return &TransportErrorCode{Code: code}
}

// ApplicationError represents a peer application-layer close whose code does
// not fall in the H3 (0x100-0x110) or QPACK (0x200-0x202) range; exposed as
// a sub-value of TransportApplicationError per spec.md §9 open question (b).
type ApplicationError struct {
	Code uint64
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("quic/transport: application_error(%#x)", e.Code)
}

func (e *ApplicationError) Is(target error) bool {
	return errors.Is(target, TransportApplicationErrorCode())
}

// TransportApplicationErrorCode is the TransportErrorCode for
// TransportApplicationError, exposed as a function so ApplicationError.Is
// can compare against it without an import cycle on package init order.
func TransportApplicationErrorCode() *TransportErrorCode {
	return NewTransportError(TransportApplicationError)
}

// MapCloseFrame implements spec.md §9 open question (b): maps an
// on_conncloseframe(appError, code) callback to a taxonomy error. If code
// falls in the H3 or QPACK range it is returned as an H3Error; if appError
// is set and code does not, it is an ApplicationError; otherwise it is a raw
// TransportErrorCode.
func MapCloseFrame(appError bool, code uint64) error {
	if code >= 0x100 && code <= 0x110 || code >= 0x200 && code <= 0x202 {
		return &H3Error{Code: H3ErrorCode(code)}
	}
	if appError {
		return &ApplicationError{Code: code}
	}
	return NewTransportError(TransportError(code))
}

// H3ErrorCode is the HTTP/3 transport error space, spec.md §7 "HTTP/3
// transport: the H3_* codepoints 0x100-0x110 and QPACK codepoints
// 0x200-0x202".
type H3ErrorCode uint64

const (
	H3NoError                H3ErrorCode = 0x100
	H3GeneralProtocolError   H3ErrorCode = 0x101
	H3InternalError          H3ErrorCode = 0x102
	H3StreamCreationError    H3ErrorCode = 0x103
	H3ClosedCriticalStream   H3ErrorCode = 0x104
	H3FrameUnexpected        H3ErrorCode = 0x105
	H3FrameError             H3ErrorCode = 0x106
	H3ExcessiveLoad          H3ErrorCode = 0x107
	H3IDError                H3ErrorCode = 0x108
	H3SettingsError          H3ErrorCode = 0x109
	H3MissingSettings        H3ErrorCode = 0x10a
	H3RequestRejected        H3ErrorCode = 0x10b
	H3RequestCancelled       H3ErrorCode = 0x10c
	H3RequestIncomplete      H3ErrorCode = 0x10d
	H3MessageError           H3ErrorCode = 0x10e
	H3ConnectError           H3ErrorCode = 0x10f
	H3VersionFallback        H3ErrorCode = 0x110
	H3QPACKDecompressionFailed H3ErrorCode = 0x200
	H3QPACKEncoderStreamError  H3ErrorCode = 0x201
	H3QPACKDecoderStreamError  H3ErrorCode = 0x202
)

// H3Error is the error type for H3ErrorCode values.
type H3Error struct {
	Code H3ErrorCode
}

func (e *H3Error) Error() string {
	return fmt.Sprintf("h3: error %#x", uint64(e.Code))
}

func (e *H3Error) Is(target error) bool {
	var other *H3Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// HTTP/2 protocol errors, spec.md §7 "HTTP/2 protocol".
var (
	ErrHTTP2NoError            = newCode(CategoryHTTP2, 0x0, "no_error")
	ErrHTTP2ProtocolError      = newCode(CategoryHTTP2, 0x1, "protocol_error")
	ErrHTTP2InternalError      = newCode(CategoryHTTP2, 0x2, "internal_error")
	ErrHTTP2FlowControlError   = newCode(CategoryHTTP2, 0x3, "flow_control_error")
	ErrHTTP2SettingsTimeout    = newCode(CategoryHTTP2, 0x4, "settings_timeout")
	ErrHTTP2StreamClosed       = newCode(CategoryHTTP2, 0x5, "stream_closed")
	ErrHTTP2FrameSizeError     = newCode(CategoryHTTP2, 0x6, "frame_size_error")
	ErrHTTP2RefusedStream      = newCode(CategoryHTTP2, 0x7, "refused_stream")
	ErrHTTP2Cancel             = newCode(CategoryHTTP2, 0x8, "cancel")
	ErrHTTP2CompressionError   = newCode(CategoryHTTP2, 0x9, "compression_error")
	ErrHTTP2ConnectError       = newCode(CategoryHTTP2, 0xa, "connect_error")
	ErrHTTP2EnhanceYourCalm    = newCode(CategoryHTTP2, 0xb, "enhance_your_calm")
	ErrHTTP2InadequateSecurity = newCode(CategoryHTTP2, 0xc, "inadequate_security")
	ErrHTTP2HTTP11Required     = newCode(CategoryHTTP2, 0xd, "http_1_1_required")
)

// HPACK errors, spec.md §7 HPACK.
var (
	ErrHPACKInvalidIndex           = newCode(CategoryHPACK, 1, "decode invalid index")
	ErrHPACKIntegerOverflow        = newCode(CategoryHPACK, 2, "decode integer overflow")
	ErrHPACKTruncated              = newCode(CategoryHPACK, 3, "decode truncated")
	ErrHPACKExceededMaxHeaderList  = newCode(CategoryHPACK, 4, "exceeded max header list size")
	ErrHPACKHuffmanNotImplemented  = newCode(CategoryHPACK, 5, "huffman coding not implemented")
)

// Generic category equivalences, spec.md §7(e): the conditions below are
// made equivalent to domain errors so callers can match abstractly, mirrored
// on Go's errors.Is via each Code's Is() delegating to category+value
// equality. These are exported aliases naming the "generic" side explicitly.
var (
	ErrGenericConnectionReset   = ErrConnectionReset
	ErrGenericConnectionAborted = ErrConnectionAborted
	ErrGenericDeviceOrResourceBusy = ErrBusy
)
