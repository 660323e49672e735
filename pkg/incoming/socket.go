// Package incoming implements the Homa incoming-message core: reading a
// whole RPC message off a Homa socket, reassembling its head/tail split
// into one addressable view, and carving that view into reference-
// counted slices and a deserialized metadata batch for the RPC
// framework layers above it.
package incoming

// RecvOptions parameterizes one call to Socket.Recv.
type RecvOptions struct {
	// ContinuesID is nil for the first call that fetches the head of a
	// new message. For the follow-up call that fetches a message's
	// tail, it is set to the ID returned by that message's head call,
	// so the socket knows which in-flight message to continue rather
	// than starting to drain the next one in queue.
	ContinuesID *uint64
}

// RecvResult reports what a Socket.Recv call observed.
type RecvResult struct {
	// N is the number of bytes actually written into the caller's buffer.
	N int
	// MsgLen is the full logical length of the message, independent of
	// how many bytes fit in the caller's buffer.
	MsgLen int
	// ID identifies the message; pass it back via RecvOptions.ContinuesID
	// to fetch its tail.
	ID uint64
}

// Socket is the transport primitive the Receiver consumes. A production
// implementation (pkg/homasock) wraps homa_recv; tests use pkg/homamock.
type Socket interface {
	// Recv blocks until data is available, writes up to len(buf) bytes
	// into buf, and reports how the call went. On failure it returns a
	// non-nil error (errno is folded into it by the implementation).
	Recv(buf []byte, opts RecvOptions) (RecvResult, error)
}
