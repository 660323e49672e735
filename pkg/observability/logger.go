// Package observability builds the zap.Logger this module's server and
// worker pool log through, plus small helpers that attach the fields
// every incoming-message log line carries.
package observability

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/oserres/grpc-homa/pkg/config"
)

var levelByName = map[string]zapcore.Level{
	"debug":   zap.DebugLevel,
	"info":    zap.InfoLevel,
	"warn":    zap.WarnLevel,
	"warning": zap.WarnLevel,
	"error":   zap.ErrorLevel,
}

// SetupLogger builds a zap.Logger from c, installs it as the global
// logger, and redirects the stdlib log package to it at info level. The
// caller should defer logger.Sync().
func SetupLogger(c config.LogConfig) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if lvl, ok := levelByName[strings.ToLower(c.Level)]; ok {
		level.SetLevel(lvl)
	}

	encoder := buildEncoder(c)

	cores := make([]zapcore.Core, 0, len(c.Outputs))
	for _, out := range c.Outputs {
		ws, err := buildWriteSyncer(out, c.Rotation)
		if err != nil {
			return nil, fmt.Errorf("observability: output %q: %w", out, err)
		}
		cores = append(cores, zapcore.NewCore(encoder, ws, level))
	}

	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel)}
	if c.Development {
		opts = append(opts, zap.Development())
	}

	logger := zap.New(zapcore.NewTee(cores...), opts...)
	zap.ReplaceGlobals(logger)
	_, _ = zap.RedirectStdLogAt(logger, zap.InfoLevel)
	return logger, nil
}

func buildEncoder(c config.LogConfig) zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	if c.Development {
		cfg = zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if strings.EqualFold(c.Format, "json") {
		return zapcore.NewJSONEncoder(cfg)
	}
	return zapcore.NewConsoleEncoder(cfg)
}

func buildWriteSyncer(out string, rot config.RotationConfig) (zapcore.WriteSyncer, error) {
	switch strings.ToLower(out) {
	case "stdout":
		return zapcore.AddSync(os.Stdout), nil
	case "stderr":
		return zapcore.AddSync(os.Stderr), nil
	}

	if rot.Enable {
		filename := out
		if strings.TrimSpace(rot.Filename) != "" {
			filename = rot.Filename
		}
		return zapcore.AddSync(&lumberjack.Logger{
			Filename:   filename,
			MaxSize:    atLeast(rot.MaxSizeMB, 10),
			MaxBackups: atLeast(rot.MaxBackups, 1),
			MaxAge:     atLeast(rot.MaxAgeDays, 7),
			Compress:   rot.Compress,
		}), nil
	}

	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(out, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return zapcore.AddSync(os.Stderr), nil
	}
	return zapcore.AddSync(f), nil
}

func atLeast(v, min int) int {
	if v > min {
		return v
	}
	return min
}

// ForWorker returns a child logger tagging every line with the
// worker-pool goroutine index, so one worker's log lines can be filtered
// out of an otherwise-interleaved server log.
func ForWorker(logger *zap.Logger, worker int) *zap.Logger {
	return logger.With(zap.Int("worker", worker))
}

// ForMessage returns a child logger tagging every line with the stream
// id and transport-assigned message id a Receiver.Read call produced,
// for correlating the handful of log lines one message generates across
// DeserializeMetadata, CopyOut, and handler dispatch.
func ForMessage(logger *zap.Logger, streamID uint32, msgID uint64) *zap.Logger {
	return logger.With(zap.Uint32("stream_id", streamID), zap.Uint64("msg_id", msgID))
}
