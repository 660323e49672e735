package rcslice

import (
	"bytes"
	"testing"
)

type countingRefcount struct{ unrefs int }

func (c *countingRefcount) Ref()   {}
func (c *countingRefcount) Unref() { c.unrefs++ }

func TestInlineSliceIsInline(t *testing.T) {
	s := NewInlineSlice([]byte("hello"))
	if !s.IsInline() {
		t.Fatalf("expected inline slice to report IsInline")
	}
	if !bytes.Equal(s.Data, []byte("hello")) {
		t.Fatalf("data mismatch: %q", s.Data)
	}
}

func TestArenaSliceUsesNoopRefcount(t *testing.T) {
	a := NewArena(64)
	s := NewArenaSlice(a, []byte("0123456789"))
	if s.IsInline() {
		t.Fatalf("arena slice should not report IsInline")
	}
	if s.Refcount != NoopRefcount {
		t.Fatalf("expected shared no-op refcount")
	}
	s.Release() // no-op, must not panic
	a.Destroy()
}

func TestBorrowedSliceRefAndRelease(t *testing.T) {
	rc := &countingRefcount{}
	s := NewBorrowedSlice([]byte("borrowed"), rc)
	if s.IsInline() {
		t.Fatalf("borrowed slice should not report IsInline")
	}
	s.Release()
	if rc.unrefs != 1 {
		t.Fatalf("expected exactly one Unref, got %d", rc.unrefs)
	}
}

func TestArenaAllocateBeyondCapacityFallsBack(t *testing.T) {
	a := NewArena(4)
	b := a.Allocate(100)
	if len(b) != 100 {
		t.Fatalf("expected fallback allocation of 100 bytes, got %d", len(b))
	}
}
