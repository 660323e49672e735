package incoming

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/oserres/grpc-homa/pkg/rcslice"
	"github.com/oserres/grpc-homa/pkg/wire"
)

// Message is a fully received, reassembled Homa message. It is built
// once by Receiver.Read and is immutable afterward, except for the
// test-only AddMetadata helper and GetSlice's reassembly of straddling
// ranges into the head buffer past baseLength. Holders and every Slice returned by
// GetSlice keep it alive via refcount; it is destroyed exactly once,
// after the owning holder and every borrowed slice have released it.
type Message struct {
	head []byte // baseLength bytes, beginning with the wire header
	tail []byte // messageLength - baseLength bytes, possibly empty

	header wire.Header
	id     uint64

	baseLength        int
	messageLength     int
	maxStaticMDLength int

	refcount atomic.Int32

	// DestroyCounter, when non-nil, is incremented exactly once when the
	// message is actually destroyed. Test-only back-channel.
	DestroyCounter *atomic.Int32

	logger *zap.Logger
}

// defaultMaxStaticMDLength covers typical header values; construction
// sites that need to force the borrowed path for small values lower it.
const defaultMaxStaticMDLength = 32

// StreamID returns the stream this message belongs to.
func (m *Message) StreamID() uint32 { return m.header.StreamID }

// Header returns the parsed wire header this message was built from.
func (m *Message) Header() wire.Header { return m.header }

// ID returns the transport-assigned id the head receive call reported
// for this message, for log correlation with the tail fetch that may
// have followed it.
func (m *Message) ID() uint64 { return m.id }

// MessageLength returns the full logical message length.
func (m *Message) MessageLength() int { return m.messageLength }

// BaseLength returns the size of the head buffer actually populated by
// the first receive call.
func (m *Message) BaseLength() int { return m.baseLength }

// TailLength returns the number of bytes fetched by the tail receive
// call (zero if the whole message fit in the head).
func (m *Message) TailLength() int { return len(m.tail) }

// SetMaxStaticMDLength overrides the static/borrowed threshold used by
// DeserializeMetadata. Exposed for tests that need to force the
// borrowed path for small values; production code leaves the default.
func (m *Message) SetMaxStaticMDLength(n int) { m.maxStaticMDLength = n }

// Ref implements rcslice.Refcount: it is called once per borrowed Slice
// handed out by GetSlice.
func (m *Message) Ref() { m.refcount.Add(1) }

// Unref implements rcslice.Refcount. The message is destroyed when the
// count reaches zero — which requires both the owning holder and every
// borrowed slice to have released it.
func (m *Message) Unref() {
	if m.refcount.Add(-1) == 0 {
		m.destroy()
	}
}

// Release is the owning holder's call, equivalent to Unref from the
// reference the constructor implicitly grants it.
func (m *Message) Release() { m.Unref() }

func (m *Message) destroy() {
	if m.DestroyCounter != nil {
		m.DestroyCounter.Add(1)
	}
}

// CopyOut copies length bytes starting at offset in the logical message
// into dest, transparently spanning the head/tail boundary. A range
// that is negative or extends past MessageLength() is rejected with an
// error and nothing is copied.
func (m *Message) CopyOut(dest []byte, offset, length int) error {
	if offset < 0 || length < 0 || offset+length > m.messageLength {
		return fmt.Errorf("incoming: copyOut range [%d,%d) exceeds message length %d",
			offset, offset+length, m.messageLength)
	}
	n := 0
	if offset < m.baseLength {
		headN := length
		if m.baseLength-offset < headN {
			headN = m.baseLength - offset
		}
		copy(dest[:headN], m.head[offset:offset+headN])
		n = headN
	}
	if n < length {
		tailOff := offset + n - m.baseLength
		copy(dest[n:length], m.tail[tailOff:tailOff+(length-n)])
	}
	return nil
}

// GetBytes returns a pointer to len(scratch) contiguous bytes starting
// at offset. When that range lies entirely within the head it returns a
// sub-slice of the head directly (zero copy); otherwise it fills scratch
// via CopyOut and returns scratch. The result is valid as long as the
// message (and, on the copy path, scratch) is alive.
func (m *Message) GetBytes(offset int, scratch []byte) []byte {
	width := len(scratch)
	if offset >= 0 && offset+width <= m.baseLength {
		return m.head[offset : offset+width]
	}
	_ = m.CopyOut(scratch, offset, width)
	return scratch
}

// GetStaticSlice carves out a short-lived slice for bytes the caller
// will copy or consume synchronously. Ranges at or below
// rcslice.StaticInlineLimit get a private inline copy with a nil
// refcount; larger ranges are copied into arena, which owns them.
func (m *Message) GetStaticSlice(offset, length int, arena *rcslice.Arena) rcslice.Slice {
	if length <= rcslice.StaticInlineLimit {
		data := make([]byte, length)
		_ = m.CopyOut(data, offset, length)
		return rcslice.Slice{Data: data}
	}
	dst := arena.Allocate(length)
	_ = m.CopyOut(dst, offset, length)
	return rcslice.Slice{Data: dst, Refcount: rcslice.NoopRefcount}
}

// GetSlice carves out a slice whose lifetime may outlive this receive
// call. It prefers zero copy: ranges wholly within the head or wholly
// within the tail point directly at that buffer. A range that straddles
// the head/tail split is reassembled into the head buffer's spare
// capacity past baseLength, since a Slice must describe one contiguous
// region. Every returned Slice carries a refcount back to m; releasing
// it unrefs the message.
//
// The reassembly buffer is scratch space shared by every straddling
// call on this message: callers must consume or copy a straddling slice
// before requesting another one, on the assumption that the head buffer
// is sized to make straddling rare.
func (m *Message) GetSlice(offset, length int) rcslice.Slice {
	end := offset + length
	switch {
	case end <= m.baseLength:
		return rcslice.NewBorrowedSlice(m.head[offset:end], m)
	case offset >= m.baseLength:
		to := offset - m.baseLength
		return rcslice.NewBorrowedSlice(m.tail[to:to+length], m)
	default:
		if cap(m.head) < m.baseLength+length {
			grown := make([]byte, m.baseLength, m.baseLength+length)
			copy(grown, m.head[:m.baseLength])
			m.head = grown
		}
		dst := m.head[m.baseLength : m.baseLength+length]
		headPart := m.baseLength - offset
		copy(dst[:headPart], m.head[offset:m.baseLength])
		copy(dst[headPart:], m.tail[:length-headPart])
		return rcslice.NewBorrowedSlice(dst, m)
	}
}
