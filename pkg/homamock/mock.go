// Package homamock is an in-process test double for a Homa socket. It
// reproduces the scripted-queue behavior of the Homa syscall mock this
// module's receive-path tests were derived from: each queue holds
// per-call overrides (a header to hand back, a reported message
// length, a literal return value), and an error mask consumes one bit
// per call to script "this call fails, the next succeeds."
package homamock

import (
	"errors"
	"fmt"
	"sync"

	"github.com/oserres/grpc-homa/pkg/incoming"
	"github.com/oserres/grpc-homa/pkg/wire"
)

// ErrInjected is returned by Recv, SendV, or ReplyV when the call
// consumes a bit set by QueueRecvError/QueueSendvError/QueueReplyvError.
var ErrInjected = errors.New("homamock: injected error")

// defaultHeader is handed back by Recv when no header has been queued,
// mirroring the syscall mock's built-in fallback fixture.
var defaultHeader = wire.Header{
	StreamID:     44,
	Sequence:     0,
	InitMDBytes:  10,
	MessageBytes: 20,
	TrailMDBytes: 1000,
}

// Mock is a scriptable stand-in for a Homa socket. The zero value is
// ready to use and behaves like an idle socket returning the default
// header on every Recv.
type Mock struct {
	mu sync.Mutex

	recvErrorMask   int
	sendvErrorMask  int
	replyvErrorMask int

	headers    []wire.Header
	msgLengths []int
	returns    []int

	nextID uint64

	Log []string
}

// checkError consumes the low bit of mask, as the original mock's
// Mock::checkError does, so a script like 0b101 means "first call
// fails, second succeeds, third fails".
func checkError(mask *int) bool {
	result := *mask&1 != 0
	*mask >>= 1
	return result
}

// QueueRecvError schedules the next n bits of mask to gate future Recv
// calls: a 1 bit makes that call fail with ErrInjected.
func (m *Mock) QueueRecvError(mask int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recvErrorMask = mask
}

// QueueSendvError is the SendV analogue of QueueRecvError.
func (m *Mock) QueueSendvError(mask int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendvErrorMask = mask
}

// QueueReplyvError is the ReplyV analogue of QueueRecvError.
func (m *Mock) QueueReplyvError(mask int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replyvErrorMask = mask
}

// QueueRecvHeader schedules h to be written out by the next Recv call
// that doesn't have an error queued. Once the queue is drained, Recv
// falls back to defaultHeader.
func (m *Mock) QueueRecvHeader(h wire.Header) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headers = append(m.headers, h)
}

// QueueRecvMsgLength overrides the msglen the next Recv call reports,
// instead of deriving it from the header's length fields.
func (m *Mock) QueueRecvMsgLength(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgLengths = append(m.msgLengths, n)
}

// QueueRecvReturn overrides the byte count the next Recv call reports
// as actually written, instead of the full msglen (capped to len(buf)).
// Used to simulate a truncated head or a short tail.
func (m *Mock) QueueRecvReturn(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.returns = append(m.returns, n)
}

// Recv implements incoming.Socket.
func (m *Mock) Recv(buf []byte, opts incoming.RecvOptions) (incoming.RecvResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if checkError(&m.recvErrorMask) {
		return incoming.RecvResult{}, ErrInjected
	}

	var id uint64
	if opts.ContinuesID != nil {
		id = *opts.ContinuesID
	} else {
		m.nextID++
		id = m.nextID
	}

	h := defaultHeader
	if len(m.headers) > 0 {
		h = m.headers[0]
		m.headers = m.headers[1:]
	}
	if len(buf) >= wire.HeaderSize {
		h.Put(buf)
	}

	length := int(h.Total())
	if len(m.msgLengths) > 0 {
		length = m.msgLengths[0]
		m.msgLengths = m.msgLengths[1:]
	}

	n := length
	if n > len(buf) {
		n = len(buf)
	}
	if len(m.returns) > 0 {
		n = m.returns[0]
		m.returns = m.returns[1:]
	}

	return incoming.RecvResult{N: n, MsgLen: length, ID: id}, nil
}

// SendV simulates homa_sendv: it logs the iovec count and total length
// and, absent an injected error, returns the total length as the real
// syscall would on success.
func (m *Mock) SendV(iov [][]byte) (n int, id uint64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := totalLen(iov)
	m.logf("homa_sendv: %d iovecs, %d bytes", len(iov), total)
	if checkError(&m.sendvErrorMask) {
		return 0, 0, ErrInjected
	}
	m.nextID++
	return total, m.nextID, nil
}

// ReplyV simulates homa_replyv for the given request id.
func (m *Mock) ReplyV(iov [][]byte, id uint64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := totalLen(iov)
	m.logf("homa_replyv: %d iovecs, %d bytes", len(iov), total)
	if checkError(&m.replyvErrorMask) {
		return 0, ErrInjected
	}
	return total, nil
}

func totalLen(iov [][]byte) int {
	total := 0
	for _, b := range iov {
		total += len(b)
	}
	return total
}

func (m *Mock) logf(format string, args ...any) {
	m.Log = append(m.Log, fmt.Sprintf(format, args...))
}
