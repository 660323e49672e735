// Package wire describes the fixed binary layout that prefixes every
// Homa message carrying a gRPC request or response.
package wire

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the size in bytes of the fixed header that prefixes
// every message: five uint32 fields, all in network byte order, no padding.
//
//	0..3    StreamID      network order, opaque RPC stream identifier
//	4..7    Sequence      network order, opaque message sequence within stream
//	8..11   InitMDBytes   network order, length of the initial-metadata region
//	12..15  MessageBytes  network order, length of the payload region
//	16..19  TrailMDBytes  network order, length of the trailing-metadata region
const HeaderSize = 20

// Header is the parsed form of the fixed wire prefix. Every field,
// identifiers and region lengths alike, is transmitted in network byte
// order so both endpoints interpret it the same way regardless of their
// native endianness.
type Header struct {
	StreamID     uint32
	Sequence     uint32
	InitMDBytes  uint32
	MessageBytes uint32
	TrailMDBytes uint32
}

// Total returns sizeof(header) + the three region lengths: the full
// logical message length this header claims to describe.
func (h *Header) Total() uint32 {
	return uint32(HeaderSize) + h.InitMDBytes + h.MessageBytes + h.TrailMDBytes
}

// MarshalBinary encodes the header into a HeaderSize-byte buffer.
func (h *Header) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	h.Put(buf)
	return buf, nil
}

// Put encodes the header into buf, which must be at least HeaderSize bytes.
func (h *Header) Put(buf []byte) {
	binary.BigEndian.PutUint32(buf[0:4], h.StreamID)
	binary.BigEndian.PutUint32(buf[4:8], h.Sequence)
	binary.BigEndian.PutUint32(buf[8:12], h.InitMDBytes)
	binary.BigEndian.PutUint32(buf[12:16], h.MessageBytes)
	binary.BigEndian.PutUint32(buf[16:20], h.TrailMDBytes)
}

// UnmarshalBinary decodes the header from buf.
func (h *Header) UnmarshalBinary(buf []byte) error {
	if len(buf) < HeaderSize {
		return fmt.Errorf("wire: short header: %d bytes", len(buf))
	}
	h.StreamID = binary.BigEndian.Uint32(buf[0:4])
	h.Sequence = binary.BigEndian.Uint32(buf[4:8])
	h.InitMDBytes = binary.BigEndian.Uint32(buf[8:12])
	h.MessageBytes = binary.BigEndian.Uint32(buf[12:16])
	h.TrailMDBytes = binary.BigEndian.Uint32(buf[16:20])
	return nil
}

// Parse is a convenience wrapper returning a fresh Header.
func Parse(buf []byte) (Header, error) {
	var h Header
	err := h.UnmarshalBinary(buf)
	return h, err
}
