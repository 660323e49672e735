package incoming

import (
	"fmt"

	"github.com/oserres/grpc-homa/pkg/mdwire"
	"github.com/oserres/grpc-homa/pkg/rcslice"
)

// DeserializeMetadata walks the metadata region [offset, offset+length)
// and appends each entry it finds to batch. A well-known calloutIndex
// substitutes wk's canonical key for the literal key bytes on the wire;
// values at or under the message's static-MD threshold are materialized
// via GetStaticSlice, larger ones via GetSlice (borrowed, keeping m
// alive as long as batch references them).
//
// On a malformed region the walk stops and returns an error; batch
// retains whatever entries were appended before the failure.
func (m *Message) DeserializeMetadata(offset, length int, batch *mdwire.Batch, arena *rcslice.Arena, wk mdwire.WellKnown) error {
	maxStatic := m.maxStaticMDLength
	if maxStatic == 0 {
		maxStatic = defaultMaxStaticMDLength
	}

	end := offset + length
	pos := offset
	for pos < end {
		remaining := end - pos
		if remaining < mdwire.EntryPrefixSize {
			err := fmt.Errorf("incoming: metadata region ends mid-prefix, only %d bytes available", remaining)
			m.logWarn(err)
			return err
		}

		var prefixBuf [mdwire.EntryPrefixSize]byte
		prefix := mdwire.ParseEntryPrefix(m.GetBytes(pos, prefixBuf[:]))
		pos += mdwire.EntryPrefixSize
		remaining = end - pos

		keyLen := int(prefix.KeyLength)
		valLen := int(prefix.ValueLength)
		if keyLen+valLen > remaining {
			err := fmt.Errorf("incoming: metadata format error: key (%d bytes) and value (%d bytes) exceed remaining space (%d bytes)",
				keyLen, valLen, remaining)
			m.logWarn(err)
			return err
		}

		var key rcslice.Slice
		calloutIdx := int(prefix.CalloutIndex)
		if calloutIdx < wk.Count() {
			key = wk.CanonicalKey(calloutIdx)
		} else {
			key = m.GetStaticSlice(pos, keyLen, arena)
		}
		pos += keyLen

		var value rcslice.Slice
		if valLen <= maxStatic {
			value = m.GetStaticSlice(pos, valLen, arena)
		} else {
			value = m.GetSlice(pos, valLen)
		}
		pos += valLen

		batch.Append(key, value)
	}
	return nil
}

func (m *Message) logWarn(err error) {
	if m.logger != nil {
		m.logger.Warn(err.Error())
	}
}

// MDFixtureEntry describes one (key, value, calloutIndex) triple for
// AddMetadata. Test-only: production code never writes into a message.
type MDFixtureEntry struct {
	Key          string
	Value        string
	CalloutIndex int
}

// AddMetadata writes entries into the message's logical byte stream
// starting at offset, in the same length-prefixed format
// DeserializeMetadata reads, and returns the number of bytes written.
// It is a test fixture builder, not part of the production read path.
func (m *Message) AddMetadata(offset int, entries ...MDFixtureEntry) int {
	pos := offset
	for _, e := range entries {
		prefix := mdwire.EntryPrefix{
			KeyLength:    uint32(len(e.Key)),
			ValueLength:  uint32(len(e.Value)),
			CalloutIndex: uint32(e.CalloutIndex),
		}
		var buf [mdwire.EntryPrefixSize]byte
		prefix.Put(buf[:])
		m.writeAt(pos, buf[:])
		pos += mdwire.EntryPrefixSize

		m.writeAt(pos, []byte(e.Key))
		pos += len(e.Key)

		m.writeAt(pos, []byte(e.Value))
		pos += len(e.Value)
	}
	return pos - offset
}

// writeAt is the inverse of CopyOut, spanning the head/tail boundary.
func (m *Message) writeAt(offset int, data []byte) {
	n := len(data)
	if offset < m.baseLength {
		headN := n
		if m.baseLength-offset < headN {
			headN = m.baseLength - offset
		}
		copy(m.head[offset:offset+headN], data[:headN])
		if headN < n {
			copy(m.tail[:n-headN], data[headN:])
		}
		return
	}
	copy(m.tail[offset-m.baseLength:], data)
}
