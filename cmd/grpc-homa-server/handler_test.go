package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/oserres/grpc-homa/pkg/homamock"
	"github.com/oserres/grpc-homa/pkg/incoming"
	"github.com/oserres/grpc-homa/pkg/observability"
	"github.com/oserres/grpc-homa/pkg/wire"
)

// TestHandlerConsumesReceivedMessage is an integration-style test that
// drives a whole Receiver.Read -> handler.handle cycle against a
// scripted Homa socket, the way a real worker goroutine would.
func TestHandlerConsumesReceivedMessage(t *testing.T) {
	mock := &homamock.Mock{}
	mock.QueueRecvHeader(wire.Header{StreamID: 7, MessageBytes: 5})
	mock.QueueRecvMsgLength(int(wire.HeaderSize) + 5)

	logger := zaptest.NewLogger(t)
	r := &incoming.Receiver{Socket: mock, HeadBufferSize: 256, Logger: logger}

	msg, err := r.Read(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint32(7), msg.StreamID())

	h := newHandler()
	msgLogger := observability.ForMessage(logger, msg.StreamID(), msg.ID())
	require.NotPanics(t, func() { h.handle(msgLogger, msg) })
}
