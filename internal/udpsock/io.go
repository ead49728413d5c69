package udpsock

import (
	"encoding/binary"
	"net"

	"golang.org/x/sys/unix"
)

// Datagram is one ingested UDP payload plus the control-message metadata the
// engine needs to hand it to the QUIC state machine (spec.md §4.4 "hands
// each datagram to the underlying QUIC state machine together with local
// and peer endpoints").
//
// quic-go's own transport loop reads datagrams directly off Socket via
// ReadMsgUDP (socket.go) and parses its own oob buffer, so Datagram and
// parseControlMessages below are not on that live path; they remain as the
// control-message codec this package is grounded on, exercised directly by
// udpsock_test.go's TestECNCmsgRoundTrip.
type Datagram struct {
	Payload []byte
	Src     net.Addr
	Dst     net.IP // destination address from IP_RECVORIGDSTADDR/IP_PKTINFO, if known
	ECN     uint8  // low 2 bits of the received TOS/TCLASS byte
}

func (s *Socket) parseControlMessages(oob []byte, dg *Datagram) {
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return
	}
	for _, m := range msgs {
		switch {
		case m.Header.Level == unix.IPPROTO_IP && m.Header.Type == unix.IP_TOS && len(m.Data) >= 1:
			dg.ECN = m.Data[0] & 0x3
		case m.Header.Level == unix.IPPROTO_IPV6 && m.Header.Type == unix.IPV6_TCLASS && len(m.Data) >= 4:
			dg.ECN = m.Data[0] & 0x3
		case m.Header.Level == unix.IPPROTO_IP && m.Header.Type == unix.IP_ORIGDSTADDR:
			dg.Dst = parseSockaddrInData(m.Data)
		case m.Header.Level == unix.IPPROTO_IP && m.Header.Type == unix.IP_PKTINFO && len(m.Data) >= 12:
			dg.Dst = net.IP(append([]byte(nil), m.Data[8:12]...))
		case m.Header.Level == unix.IPPROTO_IPV6 && m.Header.Type == unix.IPV6_PKTINFO && len(m.Data) >= 16:
			dg.Dst = net.IP(append([]byte(nil), m.Data[:16]...))
		}
	}
}

// parseSockaddrInData decodes the IPv4 sockaddr_in payload of an
// IP_ORIGDSTADDR control message: 2-byte family, 2-byte port (big-endian),
// 4-byte address.
func parseSockaddrInData(data []byte) net.IP {
	if len(data) < 8 {
		return nil
	}
	return net.IP(append([]byte(nil), data[4:8]...))
}

// appendECNCmsg appends a single cmsghdr carrying the ECN-tagged TOS/TCLASS
// byte, per spec.md §4.4: "a control message with level IPPROTO_IP/
// IPPROTO_IPV6 and type IP_TOS/IPV6_TCLASS carrying a single int".
func appendECNCmsg(dst []byte, family int, ecn uint8) []byte {
	level, typ := unix.IPPROTO_IP, unix.IP_TOS
	if family == unix.AF_INET6 {
		level, typ = unix.IPPROTO_IPV6, unix.IPV6_TCLASS
	}
	// Built by hand rather than via unsafe.Pointer-cast unix.Cmsghdr:
	// Len/Level/Type occupy the platform's native cmsghdr layout, padded
	// out to CmsgSpace(4) by ParseSocketControlMessage's counterpart on
	// read.
	space := unix.CmsgSpace(4)
	start := len(dst)
	dst = append(dst, make([]byte, space)...)
	hdr := dst[start:]
	binary.NativeEndian.PutUint64(hdr[0:8], uint64(unix.CmsgLen(4)))
	binary.NativeEndian.PutUint32(hdr[8:12], uint32(level))
	binary.NativeEndian.PutUint32(hdr[12:16], uint32(typ))
	binary.NativeEndian.PutUint32(hdr[unix.CmsgLen(0):], uint32(ecn))
	return dst
}
