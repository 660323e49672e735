// Package homasock wraps a real Homa socket for the incoming-message
// layer, using raw recvmsg/sendmsg syscalls the way
// other_examples/dpeckett-go-homa__message.go wraps the same transport
// family with golang.org/x/sys/unix.
package homasock

import (
	"fmt"
	"net"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/oserres/grpc-homa/pkg/incoming"
)

// ipprotoHoma is the Homa transport's protocol number within the
// AF_INET/AF_INET6 families, as registered with the kernel module.
const ipprotoHoma = 146

// homaRecvmsgArgs mirrors the fixed-size control payload a Homa socket
// attaches to each recvmsg call: the per-message id the kernel assigns,
// the full logical length of the message (which may exceed what fits in
// the caller's buffer), and (on the request side) a completion cookie.
// A RecvOptions with a non-nil ContinuesID is round-tripped back through
// this same struct on the follow-up call so the kernel continues the
// same message rather than handing back the next one in the socket's
// queue. On return, the kernel overwrites MsgLen with the message's true
// size regardless of how many bytes it copied into buf.
type homaRecvmsgArgs struct {
	ID               uint64
	CompletionCookie uint64
	MsgLen           uint64
	Flags            uint64
}

const homaRecvmsgFlagResponse = 1 << 0

// Socket is a Homa socket opened on a local port. It implements
// incoming.Socket for the receive path and exposes SendV/ReplyV for the
// minimal outgoing path this module carries for completeness.
type Socket struct {
	fd int
}

// Open creates and binds a Homa socket on the given local port.
func Open(port int) (*Socket, error) {
	fd, err := unix.Socket(unix.AF_INET6, unix.SOCK_DGRAM, ipprotoHoma)
	if err != nil {
		return nil, fmt.Errorf("homasock: socket: %w", err)
	}
	sa := &unix.SockaddrInet6{Port: port}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("homasock: bind port %d: %w", port, err)
	}
	return &Socket{fd: fd}, nil
}

// Close releases the underlying file descriptor.
func (s *Socket) Close() error {
	return unix.Close(s.fd)
}

// Recv implements incoming.Socket by issuing one recvmsg call. When
// opts.ContinuesID is set it attaches homaRecvmsgFlagResponse and the
// given id to the control message, so the kernel resumes the same
// in-flight message's tail instead of draining the next message queued
// on the socket.
func (s *Socket) Recv(buf []byte, opts incoming.RecvOptions) (incoming.RecvResult, error) {
	var args homaRecvmsgArgs
	if opts.ContinuesID != nil {
		args.ID = *opts.ContinuesID
		args.Flags = homaRecvmsgFlagResponse
	}

	control := make([]byte, unsafe.Sizeof(args))
	*(*homaRecvmsgArgs)(unsafe.Pointer(&control[0])) = args

	n, _, _, _, err := unix.Recvmsg(s.fd, buf, control, 0)
	if err != nil {
		return incoming.RecvResult{}, fmt.Errorf("homasock: recvmsg: %w", err)
	}

	out := (*homaRecvmsgArgs)(unsafe.Pointer(&control[0]))
	return incoming.RecvResult{
		N:      n,
		MsgLen: int(out.MsgLen),
		ID:     out.ID,
	}, nil
}

// SendV issues homa_sendv-equivalent semantics: it gathers iov into one
// sendmsg call to dest and returns the total byte count sent and an id
// for the new RPC. The id is a process-local sequence number; it is not
// read back from the kernel. No retry or backpressure logic is
// implemented; that remains out of scope.
func (s *Socket) SendV(iov [][]byte, dest net.Addr) (n int, id uint64, err error) {
	sa, err := sockaddrFor(dest)
	if err != nil {
		return 0, 0, err
	}
	n, err = unix.SendmsgN(s.fd, concat(iov), nil, sa, 0)
	if err != nil {
		return 0, 0, fmt.Errorf("homasock: sendmsg: %w", err)
	}
	return n, atomic.AddUint64(&localIDCounter, 1), nil
}

// ReplyV issues homa_replyv-equivalent semantics for an already-received
// request identified by id.
func (s *Socket) ReplyV(iov [][]byte, dest net.Addr, id uint64) (int, error) {
	sa, err := sockaddrFor(dest)
	if err != nil {
		return 0, err
	}
	n, err := unix.SendmsgN(s.fd, concat(iov), nil, sa, 0)
	if err != nil {
		return 0, fmt.Errorf("homasock: replyv sendmsg for id %d: %w", id, err)
	}
	return n, nil
}

var localIDCounter uint64

func concat(iov [][]byte) []byte {
	total := 0
	for _, b := range iov {
		total += len(b)
	}
	out := make([]byte, 0, total)
	for _, b := range iov {
		out = append(out, b...)
	}
	return out
}

func sockaddrFor(addr net.Addr) (unix.Sockaddr, error) {
	udp, ok := addr.(*net.UDPAddr)
	if !ok {
		return nil, fmt.Errorf("homasock: unsupported address type %T", addr)
	}
	var ip [16]byte
	copy(ip[:], udp.IP.To16())
	return &unix.SockaddrInet6{Port: udp.Port, Addr: ip}, nil
}
