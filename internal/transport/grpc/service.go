package grpc

import (
	"context"

	"google.golang.org/grpc"
)

// Service identity shared with the batch writer.
const (
	ServiceName  = "embedding.EmbeddingStreamService"
	IngestMethod = "/" + ServiceName + "/IngestDataStream"
)

// IngestServer is the server side of EmbeddingStreamService.
type IngestServer interface {
	IngestDataStream(IngestStream) error
}

// IngestStream is the server view of one client stream.
type IngestStream interface {
	Context() context.Context
	Recv() (*IngestRequest, error)
	SendAndClose(*IngestResponse) error
}

// ServiceDesc describes EmbeddingStreamService for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*IngestServer)(nil),
	Streams: []grpc.StreamDesc{{
		StreamName:    streamDesc.StreamName,
		Handler:       ingestHandler,
		ClientStreams: true,
	}},
	Metadata: "embedding_stream.proto",
}

// RegisterIngestServer registers srv on s. The server must be created with ServerCodec.
func RegisterIngestServer(s grpc.ServiceRegistrar, srv IngestServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func ingestHandler(srv any, stream grpc.ServerStream) error {
	return srv.(IngestServer).IngestDataStream(&serverStream{stream})
}

type serverStream struct {
	grpc.ServerStream
}

func (s *serverStream) Recv() (*IngestRequest, error) {
	m := new(IngestRequest)
	if err := s.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *serverStream) SendAndClose(r *IngestResponse) error {
	return s.SendMsg(r)
}
