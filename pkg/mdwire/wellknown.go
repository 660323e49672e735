package mdwire

import "github.com/oserres/grpc-homa/pkg/rcslice"

// Well-known header callout indices. A calloutIndex read off the wire
// that is less than WellKnown.Count() names one of these; the
// deserializer substitutes the canonical key below instead of the
// literal key bytes carried on the wire.
const (
	BatchPath = iota
	BatchMethod
	BatchScheme
	BatchAuthority
	BatchContentType
	BatchTE
	numWellKnown
)

// WellKnown maps a calloutIndex to its canonical key. Kept behind an
// interface so additional well-known headers can be added without
// touching the deserializer.
type WellKnown interface {
	// Count returns the number of well-known headers. A calloutIndex
	// greater than or equal to Count means "use the literal key bytes".
	Count() int
	// CanonicalKey returns the canonical key slice for index, which must
	// satisfy 0 <= index < Count().
	CanonicalKey(index int) rcslice.Slice
}

var canonicalKeys = [numWellKnown]string{
	BatchPath:        ":path",
	BatchMethod:      ":method",
	BatchScheme:      ":scheme",
	BatchAuthority:   ":authority",
	BatchContentType: "content-type",
	BatchTE:          "te",
}

type defaultWellKnown struct{}

func (defaultWellKnown) Count() int { return numWellKnown }

func (defaultWellKnown) CanonicalKey(index int) rcslice.Slice {
	return rcslice.NewInlineSlice([]byte(canonicalKeys[index]))
}

// DefaultWellKnown is the standard gRPC pseudo-header/content-type table.
var DefaultWellKnown WellKnown = defaultWellKnown{}
