package vecfeed

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	batchAddr       string
	maxMessageBytes int
	ackTimeout      time.Duration
	batchSize       int

	driver   string // "valkey", "redis" or empty
	addrs    []string
	password string
	prefix   string
	ttl      time.Duration

	dimensions map[string]int

	logger     *slog.Logger
	pipeline   *zap.Logger
	metricsReg prometheus.Registerer
}

// WithBatchWriter sets the gRPC address of the batch writer. Required.
func WithBatchWriter(addr string) Option {
	return optionFunc(func(c *clientConfig) {
		c.batchAddr = addr
	})
}

// WithMaxMessageSize bounds gRPC messages in both directions. Default: 50 MiB.
func WithMaxMessageSize(bytes int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxMessageBytes = bytes
	})
}

// WithAckTimeout bounds the wait for the batch writer's acknowledgment.
// Default: 5 minutes.
func WithAckTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.ackTimeout = d
	})
}

// WithBatchSize sets the records per data chunk. Default: one chunk per
// read batch.
func WithBatchSize(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.batchSize = n
	})
}

// WithValkey stores checkpoints in a Valkey instance.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis stores checkpoints in a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithCheckpointKeys sets the key prefix and expiry of stored checkpoints.
// Defaults: "vecfeed:" and no expiry.
func WithCheckpointKeys(prefix string, ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.prefix = prefix
		c.ttl = ttl
	})
}

// WithDimension overrides the embedding dimension of a domain. Domains not
// overridden use 384.
func WithDimension(domain string, dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.dimensions[domain] = dim
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPipelineLogger receives the per-run logs of the pipeline: clamping,
// dropped rows, stream progress. Default: discarded.
func WithPipelineLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.pipeline = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}

// IngestOption tunes one Ingest call.
type IngestOption func(*ingestConfig)

type ingestConfig struct {
	chunkSize  int
	checkpoint string
	resume     bool
}

// ChunkSize sets the rows per read batch. Values outside [100, 1000] are
// clamped and reported in IngestResult.Warnings.
func ChunkSize(n int) IngestOption {
	return func(c *ingestConfig) { c.chunkSize = n }
}

// After streams only the records following the record with this id.
func After(id string) IngestOption {
	return func(c *ingestConfig) { c.checkpoint = id }
}

// Resume continues after the stored checkpoint of the file. After wins when
// both are given.
func Resume() IngestOption {
	return func(c *ingestConfig) { c.resume = true }
}
