package main

import (
	"go.uber.org/zap"
	"google.golang.org/grpc/metadata"

	"github.com/oserres/grpc-homa/pkg/codec"
	"github.com/oserres/grpc-homa/pkg/incoming"
	"github.com/oserres/grpc-homa/pkg/mdwire"
	"github.com/oserres/grpc-homa/pkg/rcslice"
	"github.com/oserres/grpc-homa/pkg/wire"
)

// handler processes one fully received message: it deserializes both
// metadata regions, decodes the payload as opaque bytes via the
// configured codec registry, and logs a summary. Dispatch to the
// stream-id/RPC layer above this module is out of scope; this is a
// demonstration consumer that exercises the incoming-message API
// end to end.
type handler struct {
	registry *codec.Registry
}

func newHandler() *handler {
	reg := codec.NewRegistry()
	if cbor, err := codec.CBOR(); err == nil {
		reg.Register(cbor)
	}
	return &handler{registry: reg}
}

// handle processes msg, logging through the logger it is given so
// callers can attach per-message fields (see observability.ForMessage).
func (h *handler) handle(logger *zap.Logger, msg *incoming.Message) {
	defer msg.Release()

	arena := rcslice.NewArena(512)
	defer arena.Destroy()

	header := msg.Header()
	initOff := wire.HeaderSize
	payloadOff := initOff + int(header.InitMDBytes)
	trailOff := payloadOff + int(header.MessageBytes)

	var initBatch, trailBatch mdwire.Batch
	defer initBatch.Destroy()
	defer trailBatch.Destroy()

	if err := msg.DeserializeMetadata(initOff, int(header.InitMDBytes), &initBatch, arena, mdwire.DefaultWellKnown); err != nil {
		logger.Warn("failed to deserialize initial metadata", zap.Error(err))
		return
	}
	if err := msg.DeserializeMetadata(trailOff, int(header.TrailMDBytes), &trailBatch, arena, mdwire.DefaultWellKnown); err != nil {
		logger.Warn("failed to deserialize trailing metadata", zap.Error(err))
		return
	}

	payload := make([]byte, header.MessageBytes)
	if err := msg.CopyOut(payload, payloadOff, len(payload)); err != nil {
		logger.Warn("failed to copy payload", zap.Error(err))
		return
	}

	md := initBatch.ToMD()
	c := h.registry.GetOrDefault(contentType(md), codec.ContentTypeJSON)

	logger.Info("received message",
		zap.Int("payload_bytes", len(payload)),
		zap.Int("init_md_entries", initBatch.Len()),
		zap.Int("trail_md_entries", trailBatch.Len()),
		zap.String("content_type", c.ContentType()),
	)
}

func contentType(md metadata.MD) string {
	if vals := md.Get("content-type"); len(vals) > 0 {
		return vals[0]
	}
	return codec.ContentTypeJSON
}
