package grpc

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of api/proto/embedding_stream.proto.
const (
	fieldRequestMetadata  protowire.Number = 1
	fieldRequestDataChunk protowire.Number = 2

	fieldMetadataDomain    protowire.Number = 1
	fieldMetadataFileName  protowire.Number = 2
	fieldMetadataDimension protowire.Number = 3
	fieldMetadataEncoding  protowire.Number = 4

	fieldResponseSuccess  protowire.Number = 1
	fieldResponseReceived protowire.Number = 2
	fieldResponseMessage  protowire.Number = 3
)

// Metadata opens every stream and describes the chunks that follow.
type Metadata struct {
	Domain             string
	FileName           string
	EmbeddingDimension int32
	PayloadEncoding    string
}

// IngestRequest is one stream message: exactly one of Metadata or DataChunk.
type IngestRequest struct {
	Metadata  *Metadata
	DataChunk []byte
}

// IngestResponse is the single acknowledgment sent after the client half-closes.
type IngestResponse struct {
	Success        bool
	ReceivedChunks int32
	Message        string
}

var errBothSet = errors.New("ingest request: metadata and data_chunk are mutually exclusive")

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendInt32(b []byte, num protowire.Number, v int32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(int64(v)))
}

func (m *Metadata) appendTo(b []byte) []byte {
	b = appendString(b, fieldMetadataDomain, m.Domain)
	b = appendString(b, fieldMetadataFileName, m.FileName)
	b = appendInt32(b, fieldMetadataDimension, m.EmbeddingDimension)
	return appendString(b, fieldMetadataEncoding, m.PayloadEncoding)
}

// Marshal encodes the request in protobuf wire format.
func (r *IngestRequest) Marshal() ([]byte, error) {
	switch {
	case r.Metadata != nil && r.DataChunk != nil:
		return nil, errBothSet
	case r.Metadata != nil:
		b := protowire.AppendTag(nil, fieldRequestMetadata, protowire.BytesType)
		return protowire.AppendBytes(b, r.Metadata.appendTo(nil)), nil
	case r.DataChunk != nil:
		b := protowire.AppendTag(nil, fieldRequestDataChunk, protowire.BytesType)
		return protowire.AppendBytes(b, r.DataChunk), nil
	default:
		return nil, nil
	}
}

// Marshal encodes the response in protobuf wire format.
func (r *IngestResponse) Marshal() ([]byte, error) {
	var b []byte
	if r.Success {
		b = protowire.AppendTag(b, fieldResponseSuccess, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	}
	b = appendInt32(b, fieldResponseReceived, r.ReceivedChunks)
	return appendString(b, fieldResponseMessage, r.Message), nil
}

// fieldFunc consumes the value of one field and returns the bytes read,
// or a negative protowire error code. Returning 0 skips the field.
type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) int

func walk(b []byte, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		m := fn(num, typ, b)
		if m == 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
		}
		if m < 0 {
			return fmt.Errorf("field %d: %w", num, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return nil
}

func (m *Metadata) unmarshal(b []byte) error {
	*m = Metadata{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch {
		case typ == protowire.BytesType && num == fieldMetadataDomain:
			v, n := protowire.ConsumeString(b)
			m.Domain = v
			return n
		case typ == protowire.BytesType && num == fieldMetadataFileName:
			v, n := protowire.ConsumeString(b)
			m.FileName = v
			return n
		case typ == protowire.VarintType && num == fieldMetadataDimension:
			v, n := protowire.ConsumeVarint(b)
			m.EmbeddingDimension = int32(v) //nolint:gosec // protobuf int32 truncation
			return n
		case typ == protowire.BytesType && num == fieldMetadataEncoding:
			v, n := protowire.ConsumeString(b)
			m.PayloadEncoding = v
			return n
		}
		return 0
	})
}

// Unmarshal decodes a request. The last oneof field on the wire wins.
func (r *IngestRequest) Unmarshal(b []byte) error {
	*r = IngestRequest{}
	var inner error
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if typ != protowire.BytesType {
			return 0
		}
		switch num {
		case fieldRequestMetadata:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n
			}
			md := new(Metadata)
			if err := md.unmarshal(v); err != nil {
				inner = err
			}
			r.Metadata, r.DataChunk = md, nil
			return n
		case fieldRequestDataChunk:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n
			}
			r.Metadata, r.DataChunk = nil, append([]byte{}, v...)
			return n
		}
		return 0
	})
	if err != nil {
		return err
	}
	if inner != nil {
		return fmt.Errorf("metadata: %w", inner)
	}
	return nil
}

// Unmarshal decodes a response.
func (r *IngestResponse) Unmarshal(b []byte) error {
	*r = IngestResponse{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch {
		case typ == protowire.VarintType && num == fieldResponseSuccess:
			v, n := protowire.ConsumeVarint(b)
			r.Success = v != 0
			return n
		case typ == protowire.VarintType && num == fieldResponseReceived:
			v, n := protowire.ConsumeVarint(b)
			r.ReceivedChunks = int32(v) //nolint:gosec // protobuf int32 truncation
			return n
		case typ == protowire.BytesType && num == fieldResponseMessage:
			v, n := protowire.ConsumeString(b)
			r.Message = v
			return n
		}
		return 0
	})
}
