package mdwire

import (
	"google.golang.org/grpc/metadata"

	"github.com/oserres/grpc-homa/pkg/rcslice"
)

// Pair is one (key, value) entry appended to a Batch.
type Pair struct {
	Key   rcslice.Slice
	Value rcslice.Slice
}

// Batch is the framework's ordered metadata collection for one
// direction of one RPC. Appending a pair that carries a borrowed slice
// keeps the owning incoming message alive until the batch is
// destroyed; Destroy unrefs every slice it holds exactly once.
type Batch struct {
	pairs     []Pair
	destroyed bool
}

// Append adds a (key, value) pair to the batch in wire order.
func (b *Batch) Append(key, value rcslice.Slice) {
	b.pairs = append(b.pairs, Pair{Key: key, Value: value})
}

// Len returns the number of entries appended so far.
func (b *Batch) Len() int { return len(b.pairs) }

// Pairs returns the batch's entries in append order. The returned slice
// must not be retained past Destroy.
func (b *Batch) Pairs() []Pair { return b.pairs }

// Destroy releases every slice the batch holds. Safe to call once;
// calling it again is a no-op.
func (b *Batch) Destroy() {
	if b.destroyed {
		return
	}
	b.destroyed = true
	for _, p := range b.pairs {
		p.Key.Release()
		p.Value.Release()
	}
}

// ToMD copies the batch's bytes into a metadata.MD for handoff to the
// gRPC framework above this layer. It allocates fresh strings; the
// batch (and any borrowed slices it holds) may be destroyed immediately
// after this call returns.
func (b *Batch) ToMD() metadata.MD {
	md := make(metadata.MD, len(b.pairs))
	for _, p := range b.pairs {
		key := string(p.Key.Data)
		md[key] = append(md[key], string(p.Value.Data))
	}
	return md
}
