package grpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/kailas-cloud/vecfeed/internal/domain"
	"github.com/kailas-cloud/vecfeed/internal/domain/record"
	"github.com/kailas-cloud/vecfeed/internal/logger"
	"github.com/kailas-cloud/vecfeed/internal/metrics"
)

// Defaults.
const (
	DefaultAckTimeout     = 300 * time.Second
	DefaultLogEveryChunks = 10
)

var streamDesc = grpc.StreamDesc{
	StreamName:    "IngestDataStream",
	ClientStreams: true,
}

// Ack is the batch writer's verdict on one stream.
type Ack struct {
	Success        bool
	ChunksReceived int
	Message        string
}

// Option configures a Client.
type Option func(*Client)

// WithAckTimeout bounds the wait for the acknowledgment after half-close.
func WithAckTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.ackTimeout = d
		}
	}
}

// WithLogger sets the fallback logger for runs without a context logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithProgressEvery logs progress every n chunks; 0 disables it.
func WithProgressEvery(n int) Option {
	return func(c *Client) { c.logEvery = n }
}

// WithChunkHook is called after each chunk is handed to the stream.
func WithChunkHook(fn func(records int)) Option {
	return func(c *Client) { c.onChunk = fn }
}

// Client streams record sequences. It is safe for concurrent use; each Send
// owns its stream.
type Client struct {
	conn       grpc.ClientConnInterface
	ackTimeout time.Duration
	logEvery   int
	onChunk    func(records int)
	logger     *zap.Logger
}

// NewClient creates a client over an established connection.
func NewClient(conn grpc.ClientConnInterface, opts ...Option) *Client {
	c := &Client{
		conn:       conn,
		ackTimeout: DefaultAckTimeout,
		logEvery:   DefaultLogEveryChunks,
		logger:     zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Dial creates a lazy, plaintext connection to the batch writer.
// No network traffic happens until the first stream is opened.
func Dial(addr string, maxMessageBytes int) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallSendMsgSize(maxMessageBytes),
			grpc.MaxCallRecvMsgSize(maxMessageBytes),
		),
	)
	if err != nil {
		return nil, domain.NewTransportError("dial", err)
	}
	return conn, nil
}

// Send streams meta followed by one data chunk per batchSize records, then
// half-closes and waits for the acknowledgment.
//
// An empty sequence returns a failed Ack without opening a stream. An error
// yielded by records aborts the stream and is returned as is. Stream
// failures, cancellation, a missing acknowledgment and a negative
// acknowledgment are returned as *domain.TransportError.
func (c *Client) Send(
	ctx context.Context, meta Metadata, records iter.Seq2[record.Record, error], batchSize int,
) (Ack, error) {
	if batchSize <= 0 {
		return Ack{}, fmt.Errorf("%w: batch size must be positive, got %d", domain.ErrInvalidRequest, batchSize)
	}

	next, stop := iter.Pull2(records)
	defer stop()

	first, err, ok := next()
	if !ok {
		return Ack{Success: false, ChunksReceived: 0, Message: domain.ErrNoRecords.Error()}, nil
	}
	if err != nil {
		return Ack{}, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := c.conn.NewStream(streamCtx, &streamDesc, IngestMethod, grpc.ForceCodec(Codec{}))
	if err != nil {
		return Ack{}, c.streamError(ctx, "open", err)
	}
	if meta.PayloadEncoding == "" {
		meta.PayloadEncoding = PayloadEncoding
	}
	if err := stream.SendMsg(&IngestRequest{Metadata: &meta}); err != nil {
		return Ack{}, c.sendError(ctx, stream, err)
	}

	log := logger.FromContextOr(ctx, c.logger)
	chunks, sent := 0, 0
	batch := make([]record.Record, 0, batchSize)
	batch = append(batch, first)

	flush := func() error {
		payload, err := EncodeChunk(batch)
		if err != nil {
			return err
		}
		if err := stream.SendMsg(&IngestRequest{DataChunk: payload}); err != nil {
			return c.sendError(ctx, stream, err)
		}
		chunks++
		sent += len(batch)
		metrics.IngestChunksSentTotal.WithLabelValues(meta.Domain).Inc()
		metrics.IngestRecordsSentTotal.WithLabelValues(meta.Domain).Add(float64(len(batch)))
		if c.onChunk != nil {
			c.onChunk(len(batch))
		}
		if c.logEvery > 0 && chunks%c.logEvery == 0 {
			log.Info("streaming progress", zap.Int("chunks", chunks), zap.Int("records", sent))
		}
		batch = batch[:0]
		return nil
	}

	for {
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return Ack{}, err
			}
		}
		if err := ctx.Err(); err != nil {
			return Ack{}, domain.NewTransportError("send", err)
		}
		rec, err, ok := next()
		if !ok {
			break
		}
		if err != nil {
			return Ack{}, err
		}
		batch = append(batch, rec)
	}
	if len(batch) > 0 {
		if err := flush(); err != nil {
			return Ack{}, err
		}
	}

	if err := stream.CloseSend(); err != nil {
		return Ack{}, c.streamError(ctx, "close", err)
	}

	var timedOut atomic.Bool
	timer := time.AfterFunc(c.ackTimeout, func() {
		timedOut.Store(true)
		cancel()
	})
	defer timer.Stop()

	var resp IngestResponse
	if err := stream.RecvMsg(&resp); err != nil {
		if timedOut.Load() {
			return Ack{}, domain.NewTransportError("ack", fmt.Errorf("no acknowledgment within %s", c.ackTimeout))
		}
		return Ack{}, c.streamError(ctx, "ack", err)
	}

	ack := Ack{Success: resp.Success, ChunksReceived: int(resp.ReceivedChunks), Message: resp.Message}
	log.Debug("stream acknowledged",
		zap.Bool("success", ack.Success), zap.Int("chunks_sent", chunks), zap.Int("chunks_received", ack.ChunksReceived))
	if !ack.Success {
		return ack, domain.NewTransportError("rejected", errors.New(ack.Message))
	}
	return ack, nil
}

// sendError resolves io.EOF from SendMsg into the stream's final status or
// the early verdict of the server.
func (c *Client) sendError(ctx context.Context, stream grpc.ClientStream, err error) error {
	if errors.Is(err, io.EOF) {
		var resp IngestResponse
		switch rerr := stream.RecvMsg(&resp); {
		case rerr == nil:
			err = fmt.Errorf("stream closed by server after %d chunks: %s", resp.ReceivedChunks, resp.Message)
		case !errors.Is(rerr, io.EOF):
			err = rerr
		}
	}
	return c.streamError(ctx, "send", err)
}

// streamError prefers the caller's context error so errors.Is(err, context.Canceled) holds.
func (c *Client) streamError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return domain.NewTransportError(op, ctxErr)
	}
	return domain.NewTransportError(op, err)
}

