package vecfeed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/kailas-cloud/vecfeed/internal/db"
	dbRedis "github.com/kailas-cloud/vecfeed/internal/db/redis"
	"github.com/kailas-cloud/vecfeed/internal/domain/schema"
	checkpointrepo "github.com/kailas-cloud/vecfeed/internal/repository/checkpoint"
	rpc "github.com/kailas-cloud/vecfeed/internal/transport/grpc"
	healthuc "github.com/kailas-cloud/vecfeed/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/vecfeed/internal/usecase/ingest"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultMaxMessageBytes  = 50 << 20
	defaultKeyPrefix        = "vecfeed:"
)

// Internal interfaces for substitution in tests.
type ingestUseCase interface {
	Ingest(ctx context.Context, req ingestuc.Request) (ingestuc.Result, error)
}

type checkpointUseCase interface {
	List(ctx context.Context, domain string) ([]checkpointrepo.Entry, error)
	Clear(ctx context.Context, domain, file string) error
}

type domainResolver interface {
	Resolve(name string) (schema.DomainConfig, error)
}

// Client is the vecfeed SDK entry point. It is safe for concurrent use.
type Client struct {
	conn        *grpc.ClientConn
	store       db.Store
	domains     domainResolver
	ingestSvc   ingestUseCase
	checkpoints checkpointUseCase
	healthSvc   healthUseCase
	obs         *observer
}

// New creates a Client. No connection to the batch writer is made until the
// first Ingest; the checkpoint store, when configured, must be reachable.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		maxMessageBytes: defaultMaxMessageBytes,
		prefix:          defaultKeyPrefix,
		dimensions:      map[string]int{},
	}
	for _, d := range schema.Known() {
		cfg.dimensions[string(d)] = schema.DefaultDimension
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.batchAddr == "" {
		return nil, errors.New("vecfeed: batch writer address required (use WithBatchWriter)")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	var store db.Store
	if cfg.driver != "" {
		store, err = createStore(cfg)
		if err != nil {
			return nil, err
		}
		if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			store.Close()
			return nil, fmt.Errorf("vecfeed: checkpoint store not ready: %w", err)
		}
	}

	conn, err := rpc.Dial(cfg.batchAddr, cfg.maxMessageBytes)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, fmt.Errorf("vecfeed: %w", err)
	}
	return wireClient(conn, store, cfg, obs)
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case "valkey", "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("vecfeed: create %s store: %w", cfg.driver, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("vecfeed: unknown driver %q", cfg.driver)
	}
}

func wireClient(conn *grpc.ClientConn, store db.Store, cfg *clientConfig, obs *observer) (*Client, error) {
	domains, err := schema.NewRegistry(cfg.dimensions)
	if err != nil {
		_ = conn.Close()
		if store != nil {
			store.Close()
		}
		return nil, fmt.Errorf("vecfeed: %w", err)
	}

	logger := cfg.pipeline
	if logger == nil {
		logger = zap.NewNop()
	}
	streamer := rpc.NewClient(conn,
		rpc.WithAckTimeout(cfg.ackTimeout),
		rpc.WithLogger(logger),
	)
	ingestSvc := ingestuc.New(domains, streamer, logger).WithBatchSize(cfg.batchSize)

	c := &Client{
		conn:      conn,
		store:     store,
		domains:   domains,
		ingestSvc: ingestSvc,
		obs:       obs,
	}

	// Pass a nil interface, not a typed nil pointer, when there is no store.
	var pinger healthuc.StorePinger
	if store != nil {
		repo := checkpointrepo.New(store, cfg.prefix, cfg.ttl)
		ingestSvc.WithCheckpoints(repo)
		c.checkpoints = repo
		pinger = store
	}
	c.healthSvc = healthuc.New(rpc.NewConnChecker(conn), pinger)
	return c, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// Ingest reads the file at path, preprocesses it for domain and streams the
// records to the batch writer. The result carries the counts of the run even
// when err is non-nil.
func (c *Client) Ingest(ctx context.Context, domain, path string, opts ...IngestOption) (res IngestResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ingest", domain, start, err) }()

	var ic ingestConfig
	for _, o := range opts {
		o(&ic)
	}
	out, err := c.ingestSvc.Ingest(ctx, ingestuc.Request{
		Domain:     domain,
		Path:       path,
		ChunkSize:  ic.chunkSize,
		Checkpoint: ic.checkpoint,
		Resume:     ic.resume,
	})
	c.obs.streamed(domain, out.Summary.Streamed)
	return fromResult(out), err
}

// Checkpoints returns the checkpoint service for a domain.
func (c *Client) Checkpoints(domain string) *CheckpointService {
	return &CheckpointService{domain: domain, client: c}
}
