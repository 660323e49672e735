package rcslice

// StaticInlineLimit is the largest byte range GetStaticSlice will copy
// into the slice's own inline storage rather than allocating from the
// caller's arena. It mirrors the host framework's inline slice capacity.
const StaticInlineLimit = 23

// Refcount is held by a Slice whose bytes are borrowed from a longer-
// lived owner (an incoming message). Ref/Unref must be safe to call
// concurrently from multiple goroutines.
type Refcount interface {
	Ref()
	Unref()
}

// Slice is a byte range carved out of an incoming message. The
// Refcount field discriminates how the bytes are owned:
//
//   - nil:          inline/static — the Data is a private copy, nothing to release.
//   - NoopRefcount: arena-owned — the arena (not this Slice) owns Data.
//   - any other:    borrowed — releasing the Slice decrements a message's refcount.
type Slice struct {
	Data     []byte
	Refcount Refcount
}

// sharedNoopRefcount is shared by every arena-backed slice; Ref/Unref
// are no-ops because the arena, not the slice, owns the bytes.
type sharedNoopRefcount struct{}

func (sharedNoopRefcount) Ref()   {}
func (sharedNoopRefcount) Unref() {}

// NoopRefcount is the single shared no-op refcount instance, analogous
// to the host framework's kNoopRefcount.
var NoopRefcount Refcount = sharedNoopRefcount{}

// NewInlineSlice copies data into its own storage and returns a Slice
// with a nil refcount. Used for ranges at or below StaticInlineLimit.
func NewInlineSlice(data []byte) Slice {
	cp := make([]byte, len(data))
	copy(cp, data)
	return Slice{Data: cp}
}

// NewArenaSlice copies data into arena and returns a Slice backed by
// the shared no-op refcount — the arena, not the slice, owns the bytes.
func NewArenaSlice(arena *Arena, data []byte) Slice {
	dst := arena.Allocate(len(data))
	copy(dst, data)
	return Slice{Data: dst, Refcount: NoopRefcount}
}

// NewBorrowedSlice wraps data (which must remain valid for as long as
// refcount is held) with a caller-supplied refcount. Release must be
// called by the caller exactly once per borrowed slice it returns.
func NewBorrowedSlice(data []byte, refcount Refcount) Slice {
	refcount.Ref()
	return Slice{Data: data, Refcount: refcount}
}

// IsInline reports whether this slice's bytes are privately owned
// (nil refcount), the discriminator the tests assert on directly.
func (s Slice) IsInline() bool { return s.Refcount == nil }

// Release unrefs a borrowed or arena-backed slice. It is a no-op for
// inline slices. Safe to call exactly once per slice returned by
// NewBorrowedSlice or NewArenaSlice.
func (s Slice) Release() {
	if s.Refcount != nil {
		s.Refcount.Unref()
	}
}
