// Command batchsink is a development batch writer. It accepts ingestion
// streams, logs every chunk and acknowledges each stream.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	logpkg "github.com/kailas-cloud/vecfeed/internal/logger"
	rpc "github.com/kailas-cloud/vecfeed/internal/transport/grpc"
)

func main() {
	addr := flag.String("addr", ":50051", "Listen address")
	env := flag.String("env", "local", "Logger environment: local or prod")
	maxMB := flag.Int("max-message-mb", 50, "Largest accepted message in MiB")
	rejectAfter := flag.Int("reject-after", -1, "Reject streams after this many chunks (-1 never)")
	flag.Parse()

	logger, err := logpkg.NewLogger(*env, "")
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(*addr, *maxMB<<20, *rejectAfter, logger); err != nil {
		logger.Error("batch sink failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(addr string, maxBytes, rejectAfter int, logger *zap.Logger) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	handle := func(meta rpc.Metadata, index int, chunk []byte) error {
		if rejectAfter >= 0 && index >= rejectAfter {
			return fmt.Errorf("rejected chunk %d of %s", index, meta.FileName)
		}
		n, _ := rpc.DecodeChunkLen(chunk)
		logger.Debug("chunk received",
			zap.String("domain", meta.Domain),
			zap.Int("chunk", index),
			zap.Int("rows", n),
			zap.Int("bytes", len(chunk)))
		return nil
	}

	s := grpc.NewServer(rpc.ServerCodec(),
		grpc.MaxRecvMsgSize(maxBytes),
		grpc.MaxSendMsgSize(maxBytes),
	)
	rpc.RegisterIngestServer(s, rpc.NewSink(handle, logger))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting batch sink", zap.String("addr", lis.Addr().String()))
		if err := s.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Received shutdown signal")
		s.GracefulStop()
		return nil
	})
	return g.Wait()
}
