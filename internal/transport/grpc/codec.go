// Package grpc streams records to the remote batch writer over the
// EmbeddingStreamService client-streaming RPC.
package grpc

import (
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

type wireMessage interface {
	Marshal() ([]byte, error)
	Unmarshal([]byte) error
}

// Codec encodes the ingest messages in protobuf wire format. Its name is
// "proto", so peers see a regular application/grpc+proto stream.
type Codec struct{}

var _ encoding.Codec = Codec{}

// Marshal implements encoding.Codec.
func (Codec) Marshal(v any) ([]byte, error) {
	m, ok := v.(wireMessage)
	if !ok {
		return nil, fmt.Errorf("codec: unsupported message %T", v)
	}
	return m.Marshal()
}

// Unmarshal implements encoding.Codec.
func (Codec) Unmarshal(data []byte, v any) error {
	m, ok := v.(wireMessage)
	if !ok {
		return fmt.Errorf("codec: unsupported message %T", v)
	}
	return m.Unmarshal(data)
}

// Name implements encoding.Codec.
func (Codec) Name() string { return "proto" }

// ServerCodec forces Codec on a server hosting the ingest service.
func ServerCodec() grpc.ServerOption { return grpc.ForceServerCodec(Codec{}) }
