package grpc

import (
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ChunkHandler receives each data chunk of a stream, in order.
type ChunkHandler func(meta Metadata, index int, chunk []byte) error

// Sink is a minimal batch writer: it validates stream framing, counts
// chunks and rows, and acknowledges once the client half-closes.
type Sink struct {
	handle ChunkHandler
	logger *zap.Logger
}

// NewSink creates a sink. handle may be nil.
func NewSink(handle ChunkHandler, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{handle: handle, logger: logger}
}

// IngestDataStream implements IngestServer.
func (s *Sink) IngestDataStream(stream IngestStream) error {
	var meta *Metadata
	chunks, rows := 0, 0
	for {
		req, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		switch {
		case req.Metadata != nil:
			if meta != nil {
				return status.Error(codes.InvalidArgument, "metadata sent twice")
			}
			meta = req.Metadata
			s.logger.Info("stream opened",
				zap.String("domain", meta.Domain),
				zap.String("file", meta.FileName),
				zap.Int32("dimension", meta.EmbeddingDimension))
		case req.DataChunk != nil:
			if meta == nil {
				return status.Error(codes.FailedPrecondition, "data chunk before metadata")
			}
			n, err := DecodeChunkLen(req.DataChunk)
			if err != nil {
				return status.Error(codes.InvalidArgument, err.Error())
			}
			if s.handle != nil {
				if err := s.handle(*meta, chunks, req.DataChunk); err != nil {
					return stream.SendAndClose(&IngestResponse{
						Success:        false,
						ReceivedChunks: int32(chunks), //nolint:gosec // chunk count fits int32
						Message:        err.Error(),
					})
				}
			}
			chunks++
			rows += n
		}
	}

	if meta == nil {
		return stream.SendAndClose(&IngestResponse{Success: false, Message: "no metadata received"})
	}
	msg := fmt.Sprintf("Successfully ingested %d chunks (%d rows) for domain '%s'", chunks, rows, meta.Domain)
	s.logger.Info("stream completed", zap.String("domain", meta.Domain), zap.Int("chunks", chunks), zap.Int("rows", rows))
	return stream.SendAndClose(&IngestResponse{
		Success:        true,
		ReceivedChunks: int32(chunks), //nolint:gosec // chunk count fits int32
		Message:        msg,
	})
}
