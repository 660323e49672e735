package incoming

import (
	"bytes"
	"sync/atomic"
	"testing"

	"github.com/oserres/grpc-homa/pkg/rcslice"
)

func newTestMessage(head, tail []byte, baseLength, messageLength int) *Message {
	m := &Message{
		head:              head,
		tail:              tail,
		baseLength:        baseLength,
		messageLength:     messageLength,
		maxStaticMDLength: defaultMaxStaticMDLength,
	}
	m.refcount.Store(1)
	return m
}

func fillPattern(n, offset int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i + offset)
	}
	return b
}

func TestCopyOutSpansHeadAndTail(t *testing.T) {
	head := fillPattern(500, 0)
	tail := fillPattern(1000, 500)
	m := newTestMessage(head, tail, 500, 1500)

	dest := make([]byte, 200)
	if err := m.CopyOut(dest, 420, 200); err != nil {
		t.Fatalf("CopyOut: %v", err)
	}
	want := append(append([]byte{}, head[420:500]...), tail[:120]...)
	if !bytes.Equal(dest, want) {
		t.Fatalf("CopyOut mismatch: got %v, want %v", dest, want)
	}
}

func TestCopyOutRangeCheck(t *testing.T) {
	m := newTestMessage(fillPattern(10, 0), nil, 10, 10)
	if err := m.CopyOut(make([]byte, 5), 8, 5); err == nil {
		t.Fatal("expected range error")
	}
}

func TestGetBytesZeroCopyWithinHead(t *testing.T) {
	head := fillPattern(100, 0)
	m := newTestMessage(head, nil, 100, 100)

	scratch := make([]byte, 4)
	got := m.GetBytes(10, scratch)
	if &got[0] != &head[10] {
		t.Fatalf("expected zero-copy pointer into head")
	}
}

func TestGetBytesCopiesWhenSpanningTail(t *testing.T) {
	head := fillPattern(50, 0)
	tail := fillPattern(50, 50)
	m := newTestMessage(head, tail, 50, 100)

	scratch := make([]byte, 4)
	got := m.GetBytes(48, scratch)
	if &got[0] != &scratch[0] {
		t.Fatalf("expected copy path to return scratch")
	}
	want := append(append([]byte{}, head[48:50]...), tail[:2]...)
	if !bytes.Equal(got, want) {
		t.Fatalf("GetBytes mismatch: got %v, want %v", got, want)
	}
}

func TestGetStaticSliceInlineVsArena(t *testing.T) {
	head := fillPattern(100, 0)
	m := newTestMessage(head, nil, 100, 100)
	arena := rcslice.NewArena(256)
	defer arena.Destroy()

	small := m.GetStaticSlice(0, rcslice.StaticInlineLimit, arena)
	if !small.IsInline() {
		t.Fatal("expected inline slice at the static limit")
	}

	large := m.GetStaticSlice(0, rcslice.StaticInlineLimit+1, arena)
	if large.IsInline() {
		t.Fatal("expected arena-backed slice above the static limit")
	}
	if large.Refcount != rcslice.NoopRefcount {
		t.Fatal("expected shared no-op refcount for arena slice")
	}
}

func TestGetSliceWhollyInHead(t *testing.T) {
	head := fillPattern(500, 0)
	m := newTestMessage(head, fillPattern(10, 500), 500, 510)

	s := m.GetSlice(10, 20)
	if !bytes.Equal(s.Data, head[10:30]) {
		t.Fatalf("slice mismatch")
	}
	s.Release()
}

func TestGetSliceWhollyInTail(t *testing.T) {
	head := fillPattern(500, 0)
	tail := fillPattern(1000, 500)
	m := newTestMessage(head, tail, 500, 1500)

	s := m.GetSlice(600, 50)
	if !bytes.Equal(s.Data, tail[100:150]) {
		t.Fatalf("slice mismatch")
	}
	s.Release()
}

func TestGetSliceStraddlesBoundary(t *testing.T) {
	head := make([]byte, 500, 550)
	copy(head, fillPattern(500, 0))
	tail := fillPattern(1000, 500)
	m := newTestMessage(head, tail, 500, 1500)

	s := m.GetSlice(420, 200)
	want := append(append([]byte{}, head[420:500]...), tail[:120]...)
	if !bytes.Equal(s.Data, want) {
		t.Fatalf("straddling slice mismatch: got %v, want %v", s.Data, want)
	}
	s.Release()
}

func TestBorrowedSliceKeepsMessageAliveUntilReleased(t *testing.T) {
	head := fillPattern(100, 0)
	m := newTestMessage(head, nil, 100, 100)
	var destroyCount atomic.Int32
	m.DestroyCounter = &destroyCount

	s := m.GetSlice(0, 20)

	m.Release() // owner releases; slice still holds a reference
	if destroyCount.Load() != 0 {
		t.Fatalf("message destroyed while a borrowed slice is still live")
	}

	s.Release()
	if destroyCount.Load() != 1 {
		t.Fatalf("message not destroyed after last borrowed slice released")
	}
}
