// Package mdwire describes the in-message metadata wire encoding and the
// framework metadata batch that the incoming-message layer deserializes
// into.
package mdwire

import "encoding/binary"

// EntryPrefixSize is the size in bytes of the fixed prefix that precedes
// each (key, value) pair in a metadata region.
const EntryPrefixSize = 12

// EntryPrefix is the fixed-size record at the start of a metadata entry.
// KeyLength key bytes and then ValueLength value bytes follow it
// immediately in the region.
type EntryPrefix struct {
	KeyLength    uint32
	ValueLength  uint32
	CalloutIndex uint32
}

// Put encodes the prefix into buf, which must be at least EntryPrefixSize
// bytes.
func (p EntryPrefix) Put(buf []byte) {
	binary.BigEndian.PutUint32(buf[0:4], p.KeyLength)
	binary.BigEndian.PutUint32(buf[4:8], p.ValueLength)
	binary.BigEndian.PutUint32(buf[8:12], p.CalloutIndex)
}

// ParseEntryPrefix decodes a prefix from buf.
func ParseEntryPrefix(buf []byte) EntryPrefix {
	return EntryPrefix{
		KeyLength:    binary.BigEndian.Uint32(buf[0:4]),
		ValueLength:  binary.BigEndian.Uint32(buf[4:8]),
		CalloutIndex: binary.BigEndian.Uint32(buf[8:12]),
	}
}
