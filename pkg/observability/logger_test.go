package observability

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/oserres/grpc-homa/pkg/config"
)

func TestSetupLoggerStdoutDefaultsToInfoLevel(t *testing.T) {
	c := config.LogConfig{Level: "info", Format: "console", Outputs: []string{"stdout"}}
	logger, err := SetupLogger(c)
	if err != nil {
		t.Fatalf("SetupLogger: %v", err)
	}
	if !logger.Core().Enabled(0) { // zapcore.InfoLevel == 0
		t.Fatal("expected info level to be enabled")
	}
}

// An output with a NUL byte in the filename can never be opened by
// os.OpenFile on any platform; buildWriteSyncer should fall back to
// stderr rather than propagate the error.
func TestSetupLoggerFallsBackToStderrForUnopenableFile(t *testing.T) {
	c := config.LogConfig{
		Level:   "debug",
		Format:  "json",
		Outputs: []string{"bad\x00name.log"},
	}
	if _, err := SetupLogger(c); err != nil {
		t.Fatalf("SetupLogger: %v", err)
	}
}

func TestForWorkerTagsEveryLineWithWorkerIndex(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ForWorker(base, 3).Info("read failed")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	got, ok := entries[0].ContextMap()["worker"]
	if !ok || got != int64(3) {
		t.Fatalf("worker field = %v (%T), want 3", got, got)
	}
}

func TestForMessageTagsStreamAndMsgID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ForMessage(base, 7, 42).Info("received message")

	fields := logs.All()[0].ContextMap()
	if fields["stream_id"] != uint32(7) {
		t.Fatalf("stream_id = %v (%T), want 7", fields["stream_id"], fields["stream_id"])
	}
	if fields["msg_id"] != uint64(42) {
		t.Fatalf("msg_id = %v (%T), want 42", fields["msg_id"], fields["msg_id"])
	}
}
