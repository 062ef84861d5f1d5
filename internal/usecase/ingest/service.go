package ingest

import (
	"context"
	"fmt"
	"iter"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecfeed/internal/checkpoint"
	"github.com/kailas-cloud/vecfeed/internal/domain"
	"github.com/kailas-cloud/vecfeed/internal/domain/record"
	"github.com/kailas-cloud/vecfeed/internal/logger"
	"github.com/kailas-cloud/vecfeed/internal/metrics"
	"github.com/kailas-cloud/vecfeed/internal/preprocess"
	"github.com/kailas-cloud/vecfeed/internal/source"
	rpc "github.com/kailas-cloud/vecfeed/internal/transport/grpc"
)

// Request describes one ingestion run.
type Request struct {
	Domain     string
	Path       string // absolute path of the source file
	ChunkSize  int    // rows per read batch; 0 selects the default
	Checkpoint string // stream only records after this id
	Resume     bool   // use the stored checkpoint when Checkpoint is empty
}

// Summary carries the counts of a run, complete or partial.
type Summary struct {
	Format     string // pickle, csv or parquet
	ChunkSize  int
	Preprocess preprocess.Stats
	Checkpoint string
	Streamed   int    // records handed to the transport
	LastID     string // id of the last record handed to the transport
	Warnings   []string
}

// Result is the outcome of Ingest. It is filled on failure too.
type Result struct {
	RunID   string
	State   State
	Ack     rpc.Ack
	Summary Summary
}

// RunError is a failed run with the stage it failed in and the partial counts.
type RunError struct {
	Domain string
	Stage  State
	Counts Summary
	Err    error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("ingest %s failed while %s: %v", e.Domain, e.Stage, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// Service runs ingestion: resolve domain, read, preprocess, filter, stream.
// Runs share no mutable state.
type Service struct {
	domains     DomainResolver
	streamer    Streamer
	checkpoints CheckpointStore
	bounds      ChunkBounds
	batchSize   int
	logger      *zap.Logger
}

// New creates an ingestion service.
func New(domains DomainResolver, streamer Streamer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		domains:  domains,
		streamer: streamer,
		bounds:   DefaultChunkBounds(),
		logger:   logger,
	}
}

// WithChunkBounds overrides the read batch bounds.
func (s *Service) WithChunkBounds(b ChunkBounds) *Service {
	if b.Min > 0 && b.Max >= b.Min && b.Default >= b.Min && b.Default <= b.Max {
		s.bounds = b
	}
	return s
}

// WithBatchSize sets the number of records per data chunk. Zero sends one
// chunk per read batch.
func (s *Service) WithBatchSize(n int) *Service {
	if n >= 0 {
		s.batchSize = n
	}
	return s
}

// WithCheckpoints enables storing the last streamed id of completed runs.
func (s *Service) WithCheckpoints(store CheckpointStore) *Service {
	s.checkpoints = store
	return s
}

// Ingest runs one ingestion to completion. Failures are returned as *RunError
// alongside a Result holding the partial counts. Input that yields no
// records fails with domain.ErrNoRecords. Nothing is retried.
func (s *Service) Ingest(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	file := filepath.Base(req.Path)
	res := Result{RunID: uuid.NewString(), State: StateIdle}
	ctx, log := logger.ForRun(ctx, logger.FromContextOr(ctx, s.logger), res.RunID, req.Domain, file)

	label := "unknown"
	fail := func(err error) (Result, error) {
		stage := res.State
		res.State = StateFailed
		s.observe(label, res, start)
		log.Error("ingestion failed",
			zap.String("stage", string(stage)),
			zap.Int("rows_read", res.Summary.Preprocess.Input),
			zap.Int("records_streamed", res.Summary.Streamed),
			zap.Error(err),
		)
		return res, &RunError{Domain: req.Domain, Stage: stage, Counts: res.Summary, Err: err}
	}

	cfg, err := s.domains.Resolve(req.Domain)
	if err != nil {
		return fail(err)
	}
	label = string(cfg.Name())
	res.State = StateConfigResolved
	log.Debug("domain resolved", zap.Int("embedding_dimension", cfg.EmbeddingDimension()))

	size, clamped := s.bounds.Clamp(req.ChunkSize)
	res.Summary.ChunkSize = size
	if clamped {
		msg := fmt.Sprintf("chunk size %d clamped to %d", req.ChunkSize, size)
		res.Summary.Warnings = append(res.Summary.Warnings, msg)
		log.Warn("chunk size clamped", zap.Int("requested", req.ChunkSize), zap.Int("applied", size))
	}

	pre, err := preprocess.For(cfg, log)
	if err != nil {
		return fail(err)
	}

	res.State = StateReading
	src, err := source.Open(req.Path, size)
	if err != nil {
		return fail(err)
	}
	res.Summary.Format = string(src.Format())
	log.Debug("source opened",
		zap.String("path", src.Path()),
		zap.String("format", res.Summary.Format),
		zap.Int("chunk_size", src.ChunkSize()),
	)

	from, err := s.startAfter(ctx, req, label, file)
	if err != nil {
		return fail(err)
	}
	res.Summary.Checkpoint = from

	p := &pipeline{src: src, pre: pre, log: log}
	records := s.track(checkpoint.After(p.records(), from, log), &res)

	batch := s.batchSize
	if batch == 0 {
		batch = size
	}
	meta := rpc.Metadata{
		Domain:             label,
		FileName:           file,
		EmbeddingDimension: int32(cfg.EmbeddingDimension()), //nolint:gosec // bounded by config validation
		PayloadEncoding:    rpc.PayloadEncoding,
	}
	ack, err := s.streamer.Send(ctx, meta, records, batch)
	res.Ack = ack
	res.Summary.Preprocess = p.stats
	if err != nil {
		return fail(err)
	}
	if res.Summary.Streamed == 0 {
		return fail(fmt.Errorf("%w: %d rows read, %d dropped", domain.ErrNoRecords, p.stats.Input, p.stats.Dropped()))
	}

	res.State = StateCompleted
	s.observe(label, res, start)
	s.saveCheckpoint(ctx, log, label, file, res.Summary.LastID)

	log.Info("ingestion completed",
		zap.Int("rows_read", p.stats.Input),
		zap.Int("rows_dropped_empty_skills", p.stats.EmptySkills),
		zap.Int("rows_dropped_missing_embedding", p.stats.MissingEmbedding),
		zap.Int("cell_errors", p.stats.CellErrors),
		zap.Int("records_streamed", res.Summary.Streamed),
		zap.Int("chunks_received", ack.ChunksReceived),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

func (s *Service) startAfter(ctx context.Context, req Request, domainName, file string) (string, error) {
	if req.Checkpoint != "" || !req.Resume || s.checkpoints == nil {
		return req.Checkpoint, nil
	}
	id, err := s.checkpoints.Load(ctx, domainName, file)
	if err != nil {
		return "", fmt.Errorf("load checkpoint: %w", err)
	}
	if id != "" {
		logger.FromContext(ctx).Info("resuming from stored checkpoint", zap.String("checkpoint", id))
	}
	return id, nil
}

func (s *Service) saveCheckpoint(ctx context.Context, log *zap.Logger, domainName, file, id string) {
	if s.checkpoints == nil || id == "" {
		return
	}
	if err := s.checkpoints.Save(ctx, domainName, file, id); err != nil {
		log.Warn("failed to store checkpoint", zap.String("checkpoint", id), zap.Error(err))
	}
}

// track counts what reaches the transport and moves the run to streaming on
// the first record.
func (s *Service) track(seq iter.Seq2[record.Record, error], res *Result) iter.Seq2[record.Record, error] {
	return func(yield func(record.Record, error) bool) {
		for rec, err := range seq {
			if err == nil {
				if res.State == StateReading {
					res.State = StateStreaming
				}
				res.Summary.Streamed++
				res.Summary.LastID = rec.ID()
			}
			if !yield(rec, err) {
				return
			}
		}
	}
}

func (s *Service) observe(label string, res Result, start time.Time) {
	st := res.Summary.Preprocess
	metrics.IngestRowsReadTotal.WithLabelValues(label).Add(float64(st.Input))
	metrics.IngestRowsDroppedTotal.WithLabelValues(label, "empty_skills").Add(float64(st.EmptySkills))
	metrics.IngestRowsDroppedTotal.WithLabelValues(label, "missing_embedding").Add(float64(st.MissingEmbedding))
	metrics.IngestRunsTotal.WithLabelValues(label, string(res.State)).Inc()
	metrics.IngestRunDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
}

// pipeline turns source batches into validated records.
type pipeline struct {
	src   *source.Source
	pre   *preprocess.Preprocessor
	log   *zap.Logger
	stats preprocess.Stats
}

// records yields validated records batch by batch. Every range reopens the
// source and restarts the counts. The width of the first non-empty batch is
// checked against the domain before any record is yielded.
func (p *pipeline) records() iter.Seq2[record.Record, error] {
	return func(yield func(record.Record, error) bool) {
		p.stats = preprocess.Stats{}
		checked := false
		n := 0
		for raw, err := range p.src.Batches() {
			if err != nil {
				yield(nil, err)
				return
			}
			rows, st := p.pre.Preprocess(raw)
			p.stats.Add(st)
			n++
			p.log.Debug("batch preprocessed",
				zap.Int("batch", n),
				zap.Int("rows", st.Input),
				zap.Int("kept", st.Output),
				zap.Int("dropped_empty_skills", st.EmptySkills),
				zap.Int("dropped_missing_embedding", st.MissingEmbedding),
				zap.Int("cell_errors", st.CellErrors),
			)
			if len(rows) == 0 {
				continue
			}
			if !checked {
				cfg := p.pre.Domain()
				if w := p.pre.EmbeddingWidth(rows[0]); w != cfg.EmbeddingDimension() {
					yield(nil, &domain.DimensionMismatchError{
						Domain: string(cfg.Name()), Expected: cfg.EmbeddingDimension(), Actual: w,
					})
					return
				}
				checked = true
			}
			recs, err := p.pre.Build(rows)
			if err != nil {
				yield(nil, fmt.Errorf("batch %d: %w", n, err))
				return
			}
			for _, rec := range recs {
				if !yield(rec, nil) {
					return
				}
			}
		}
	}
}
