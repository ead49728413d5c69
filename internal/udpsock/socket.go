package udpsock

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// Socket owns a UDP endpoint plus the control-message plumbing needed to
// read/write ECN codepoints and destination addresses per spec.md §6, and
// the bounded accepting-connection ring of spec.md §3.
//
// Grounded on spec.md §4.4/§6 literally (IP_TOS/IPV6_TCLASS,
// IP_RECVORIGDSTADDR/IP_PKTINFO, sendmsg/recvmsg) and implemented directly
// against golang.org/x/sys/unix (teacher go.mod) since no higher-level
// library exposes these control messages; net.UDPConn's ReadMsgUDP/
// WriteMsgUDP supply the oob-buffer plumbing stdlib already has, and unix
// supplies the setsockopt calls and cmsg layout stdlib does not.
type Socket struct {
	conn   *net.UDPConn
	family int // unix.AF_INET or unix.AF_INET6
	ecn    bool

	Accepting *Ring[any]
}

// NewServerSocket binds addr and sets the server-side socket options of
// spec.md §6: IP_RECVTOS/IPV6_RECVTCLASS (receive ECN), IP_RECVORIGDSTADDR
// with IP_PKTINFO fallback (receive destination address), SO_REUSEADDR.
// backlog sizes the accepting ring (spec.md §3 Socket).
func NewServerSocket(addr string, backlog int) (*Socket, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("udpsock: resolve %q: %w", addr, err)
	}

	s := &Socket{Accepting: NewRing[any](backlog)}
	s.family = familyOf(udpAddr)

	var lc net.ListenConfig
	lc.Control = func(network, address string, c syscall.RawConn) error {
		var sockErr error
		err := c.Control(func(fd uintptr) {
			sockErr = setSockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			if sockErr != nil {
				return
			}
			sockErr = s.enableReceiveOptions(fd)
		})
		if err != nil {
			return err
		}
		return sockErr
	}

	pc, err := lc.ListenPacket(context.Background(), "udp", addr)
	if err != nil {
		return nil, fmt.Errorf("udpsock: listen %q: %w", addr, err)
	}
	s.conn = pc.(*net.UDPConn)
	return s, nil
}

// NewClientSocket opens an ephemeral, non-blocking UDP socket with ECN
// enabled, per spec.md §6 "Client sockets set non-blocking + ECN only".
func NewClientSocket() (*Socket, error) {
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return nil, fmt.Errorf("udpsock: client listen: %w", err)
	}
	s := &Socket{conn: conn, ecn: true}
	s.family = familyOf(conn.LocalAddr().(*net.UDPAddr))

	rawConn, err := conn.SyscallConn()
	if err != nil {
		return nil, err
	}
	var sockErr error
	if err := rawConn.Control(func(fd uintptr) {
		sockErr = s.enableReceiveOptions(fd)
	}); err != nil {
		return nil, err
	}
	if sockErr != nil {
		return nil, sockErr
	}
	return s, nil
}

func familyOf(addr *net.UDPAddr) int {
	if addr.IP != nil && addr.IP.To4() == nil {
		return unix.AF_INET6
	}
	return unix.AF_INET
}

// enableReceiveOptions sets IP_RECVTOS/IPV6_RECVTCLASS and
// IP_RECVORIGDSTADDR (falling back to IP_PKTINFO if unsupported) on fd.
func (s *Socket) enableReceiveOptions(fd uintptr) error {
	if s.family == unix.AF_INET6 {
		if err := setSockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_RECVTCLASS, 1); err != nil {
			return err
		}
		if err := setSockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_RECVPKTINFO, 1); err != nil {
			return err
		}
		return nil
	}
	if err := setSockoptInt(fd, unix.IPPROTO_IP, unix.IP_RECVTOS, 1); err != nil {
		return err
	}
	if err := setSockoptInt(fd, unix.IPPROTO_IP, unix.IP_RECVORIGDSTADDR, 1); err != nil {
		// Older kernels lack IP_RECVORIGDSTADDR; fall back to IP_PKTINFO,
		// which carries the local destination address (spec.md §6).
		return setSockoptInt(fd, unix.IPPROTO_IP, unix.IP_PKTINFO, 1)
	}
	return nil
}

func setSockoptInt(fd uintptr, level, opt, value int) error {
	return unix.SetsockoptInt(int(fd), level, opt, value)
}

// LocalAddr returns the socket's bound local address.
func (s *Socket) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// ReadFrom and WriteTo satisfy net.PacketConn, letting a Socket be handed
// directly to quic.Transport{Conn: socket} (internal/quicengine) so
// quic-go's own ingest loop reads through the same fd this package
// configured for ECN/destination-address control messages.
func (s *Socket) ReadFrom(p []byte) (int, net.Addr, error) {
	return s.conn.ReadFrom(p)
}

func (s *Socket) WriteTo(p []byte, addr net.Addr) (int, error) {
	return s.conn.WriteTo(p, addr)
}

// ReadMsgUDP and WriteMsgUDP forward to the underlying *net.UDPConn,
// satisfying quic-go's optional OOB-capable-packet-conn interface so it
// picks up the ECN/destination-address control messages this socket
// already enables (spec.md §6), instead of falling back to plain reads.
func (s *Socket) ReadMsgUDP(b, oob []byte) (n, oobn, flags int, addr *net.UDPAddr, err error) {
	return s.conn.ReadMsgUDP(b, oob)
}

func (s *Socket) WriteMsgUDP(b, oob []byte, addr *net.UDPAddr) (n, oobn int, err error) {
	return s.conn.WriteMsgUDP(b, oob, addr)
}

// SyscallConn exposes the raw fd, completing the OOB-capable-packet-conn
// interface quic-go type-asserts for.
func (s *Socket) SyscallConn() (syscall.RawConn, error) {
	return s.conn.SyscallConn()
}

// SetECN sets the socket's ECN flag. Nothing in this package reads the flag:
// outgoing datagrams are written through WriteTo/WriteMsgUDP with whatever
// control messages the caller supplies.
func (s *Socket) SetECN(on bool) {
	s.ecn = on
}

// Close releases the underlying file descriptor.
func (s *Socket) Close() error {
	return s.conn.Close()
}
