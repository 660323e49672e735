package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/oserres/grpc-homa/pkg/config"
	"github.com/oserres/grpc-homa/pkg/homasock"
	"github.com/oserres/grpc-homa/pkg/incoming"
	"github.com/oserres/grpc-homa/pkg/observability"
)

// run is the main entry point after CLI parsing.
func run(opts Options) int {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return 1
	}

	logger, err := observability.SetupLogger(cfg.Log)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
		return 1
	}
	defer func() { _ = logger.Sync() }()

	zap.L().Info("grpc-homa-server started", zap.String("app", cfg.AppName))
	zap.L().Info("effective configuration", zap.Any("config", cfg))

	sock, err := homasock.Open(cfg.Homa.Port)
	if err != nil {
		zap.L().Error("failed to open homa socket", zap.Error(err))
		return 1
	}
	defer sock.Close()

	receiver := &incoming.Receiver{
		Socket:            sock,
		HeadBufferSize:    cfg.Homa.HeadBufferSize,
		MaxStaticMDLength: cfg.Homa.MaxStaticMDLength,
		Logger:            logger,
	}
	h := newHandler()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < cfg.Homa.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			runWorker(ctx, worker, receiver, h, logger)
		}(i)
	}

	zap.L().Info(fmt.Sprintf("server is running with %d workers; press Ctrl+C to exit", cfg.Homa.Workers))
	<-ctx.Done()
	zap.L().Info("shutting down")
	wg.Wait()
	return 0
}

// runWorker loops on Receiver.Read, handing each successfully received
// message to h, until ctx is canceled. Homa sockets support concurrent
// recvmsg from multiple threads, which is what lets this pool drain one
// socket without a dispatcher serializing access.
func runWorker(ctx context.Context, worker int, r *incoming.Receiver, h *handler, logger *zap.Logger) {
	workerLogger := observability.ForWorker(logger, worker)
	for {
		if ctx.Err() != nil {
			return
		}
		msg, err := r.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			workerLogger.Warn("read failed", zap.Error(err))
			continue
		}
		h.handle(observability.ForMessage(workerLogger, msg.StreamID(), msg.ID()), msg)
	}
}
