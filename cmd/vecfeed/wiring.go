package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/kailas-cloud/vecfeed/internal/config"
	"github.com/kailas-cloud/vecfeed/internal/db"
	dbRedis "github.com/kailas-cloud/vecfeed/internal/db/redis"
	"github.com/kailas-cloud/vecfeed/internal/domain/schema"
	"github.com/kailas-cloud/vecfeed/internal/metrics"
	checkpointrepo "github.com/kailas-cloud/vecfeed/internal/repository/checkpoint"
	rpc "github.com/kailas-cloud/vecfeed/internal/transport/grpc"
	healthuc "github.com/kailas-cloud/vecfeed/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/vecfeed/internal/usecase/ingest"
)

// app is the composition root shared by all commands.
type app struct {
	domains     *schema.Registry
	conn        *grpc.ClientConn
	store       db.Store
	checkpoints *checkpointrepo.Repo
	ingest      *ingestuc.Service
	health      *healthuc.Service
}

func buildApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	metrics.RegisterIngestMetrics()

	domains, err := schema.NewRegistry(cfg.Dimensions())
	if err != nil {
		return nil, fmt.Errorf("domains: %w", err)
	}

	conn, err := rpc.Dial(cfg.Transport.BatchServerAddr, cfg.Transport.MaxMessageMB<<20)
	if err != nil {
		return nil, err
	}
	client := rpc.NewClient(conn,
		rpc.WithAckTimeout(time.Duration(cfg.Transport.AckTimeoutSec)*time.Second),
		rpc.WithProgressEvery(cfg.Transport.LogEveryChunks),
		rpc.WithLogger(logger),
	)

	a := &app{domains: domains, conn: conn}
	a.ingest = ingestuc.New(domains, client, logger).
		WithChunkBounds(ingestuc.ChunkBounds{
			Default: cfg.Ingest.DefaultChunkSize,
			Min:     cfg.Ingest.MinChunkSize,
			Max:     cfg.Ingest.MaxChunkSize,
		}).
		WithBatchSize(cfg.Transport.BatchSize)

	// Pass a nil interface, not a typed nil pointer, when checkpoints are off.
	var pinger healthuc.StorePinger
	switch cfg.Checkpoint.Driver {
	case "redis", "valkey":
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Checkpoint.Addrs,
			Password: cfg.Checkpoint.Password,
		})
		if err != nil {
			a.close()
			return nil, fmt.Errorf("checkpoint store: %w", err)
		}
		a.store = store
		timeout := time.Duration(cfg.Checkpoint.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(ctx, timeout); err != nil {
			a.close()
			return nil, fmt.Errorf("checkpoint store not ready: %w", err)
		}
		logger.Info("Connected to checkpoint store",
			zap.String("driver", cfg.Checkpoint.Driver),
			zap.Strings("addrs", cfg.Checkpoint.Addrs))

		ttl := time.Duration(cfg.Checkpoint.TTLHours) * time.Hour
		a.checkpoints = checkpointrepo.New(store, cfg.Checkpoint.KeyPrefix, ttl)
		a.ingest.WithCheckpoints(a.checkpoints)
		pinger = store
	}

	a.health = healthuc.New(rpc.NewConnChecker(conn), pinger)
	return a, nil
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.conn != nil {
		_ = a.conn.Close()
	}
}
