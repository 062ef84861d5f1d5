package ingest

import (
	"context"
	"iter"

	"github.com/kailas-cloud/vecfeed/internal/domain/record"
	"github.com/kailas-cloud/vecfeed/internal/domain/schema"
	rpc "github.com/kailas-cloud/vecfeed/internal/transport/grpc"
)

// DomainResolver looks up the immutable configuration of a domain.
type DomainResolver interface {
	Resolve(name string) (schema.DomainConfig, error)
}

// Streamer writes a record sequence to the remote batch writer over one stream.
type Streamer interface {
	Send(ctx context.Context, meta rpc.Metadata, records iter.Seq2[record.Record, error], batchSize int) (rpc.Ack, error)
}

// CheckpointStore persists the last streamed record id per (domain, file).
// Load returns an empty id when nothing is stored.
type CheckpointStore interface {
	Load(ctx context.Context, domain, file string) (string, error)
	Save(ctx context.Context, domain, file, id string) error
}
