package incoming

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/oserres/grpc-homa/pkg/wire"
)

// headBufferSizeDefault is the tunable head-buffer capacity used when a
// Receiver doesn't set one explicitly. The straddle-reassembly path in
// Message.GetSlice assumes this is generous enough that metadata rarely
// needs it, per the head-buffer sizing assumption this module carries.
const headBufferSizeDefault = 1024

// Receiver reads whole messages off a Socket, reassembling the two-call
// head/tail receive protocol into a single *Message.
type Receiver struct {
	Socket Socket

	// HeadBufferSize is the capacity of the buffer used for the first
	// receive call. Zero means headBufferSizeDefault.
	HeadBufferSize int

	// MaxStaticMDLength is copied onto every Message this Receiver
	// produces; zero means defaultMaxStaticMDLength.
	MaxStaticMDLength int

	Logger *zap.Logger
}

func (r *Receiver) headBufferSize() int {
	if r.HeadBufferSize > 0 {
		return r.HeadBufferSize
	}
	return headBufferSizeDefault
}

func (r *Receiver) logger() *zap.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return zap.NewNop()
}

// Read blocks until a full message is available on the socket,
// performing the head receive and, if the message doesn't fit in the
// head buffer, the follow-up tail receive. ctx is not consulted: this
// layer adds no cancellation of its own and Socket.Recv takes no
// context, so a blocked receive ends only when the transport returns.
func (r *Receiver) Read(ctx context.Context) (*Message, error) {
	log := r.logger()

	head := make([]byte, r.headBufferSize())
	res, err := r.Socket.Recv(head, RecvOptions{})
	if err != nil {
		log.Error("Error in homa_recv", zap.Error(err))
		return nil, fmt.Errorf("incoming: homa_recv: %w", err)
	}

	if res.N < wire.HeaderSize {
		log.Error(fmt.Sprintf("Homa message contained only %d bytes", res.N))
		return nil, fmt.Errorf("incoming: message contained only %d bytes", res.N)
	}

	header, err := wire.Parse(head[:res.N])
	if err != nil {
		log.Error("Error in homa_recv", zap.Error(err))
		return nil, fmt.Errorf("incoming: parse header: %w", err)
	}

	expectedTotal := header.Total()
	if int(expectedTotal) != res.MsgLen {
		log.Error(fmt.Sprintf("Bad message length %d", res.MsgLen))
		return nil, fmt.Errorf("incoming: bad message length %d", res.MsgLen)
	}

	baseLength := res.N
	var tail []byte
	if baseLength < res.MsgLen {
		tailLen := res.MsgLen - baseLength
		tail = make([]byte, tailLen)
		id := res.ID
		tailRes, err := r.Socket.Recv(tail, RecvOptions{ContinuesID: &id})
		if err != nil {
			log.Error(fmt.Sprintf("Error in homa_recv for tail of id %d", id), zap.Error(err))
			return nil, fmt.Errorf("incoming: homa_recv tail of id %d: %w", id, err)
		}
		if tailRes.N != tailLen {
			log.Error("Tail of Homa message has wrong length")
			return nil, fmt.Errorf("incoming: tail of message has wrong length: got %d, want %d", tailRes.N, tailLen)
		}
	}

	maxStatic := r.MaxStaticMDLength
	if maxStatic == 0 {
		maxStatic = defaultMaxStaticMDLength
	}

	msg := &Message{
		head:              head[:baseLength],
		tail:              tail,
		header:            header,
		id:                res.ID,
		baseLength:        baseLength,
		messageLength:     res.MsgLen,
		maxStaticMDLength: maxStatic,
		logger:            log,
	}
	msg.refcount.Store(1)
	return msg, nil
}
