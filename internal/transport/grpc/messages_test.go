package grpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/kailas-cloud/vecfeed/internal/domain/record"
)

func TestIngestRequest_Metadata(t *testing.T) {
	in := IngestRequest{Metadata: &Metadata{
		Domain: "recruit", FileName: "jobs.parquet", EmbeddingDimension: 384, PayloadEncoding: PayloadEncoding,
	}}
	b, err := in.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var out IngestRequest
	if err := out.Unmarshal(b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Metadata == nil || *out.Metadata != *in.Metadata || out.DataChunk != nil {
		t.Fatalf("expected %+v, got %+v", in.Metadata, out)
	}
}

func TestIngestRequest_DataChunk(t *testing.T) {
	in := IngestRequest{DataChunk: []byte(`[{"skill":"Go"}]`)}
	b, _ := in.Marshal()

	// Field 2, length-delimited.
	if num, typ, _ := protowire.ConsumeTag(b); num != 2 || typ != protowire.BytesType {
		t.Fatalf("expected field 2 bytes, got %d/%d", num, typ)
	}

	var out IngestRequest
	if err := out.Unmarshal(b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Metadata != nil || !bytes.Equal(out.DataChunk, in.DataChunk) {
		t.Fatalf("unexpected %+v", out)
	}
}

func TestIngestRequest_BothSetRejected(t *testing.T) {
	in := IngestRequest{Metadata: &Metadata{Domain: "x"}, DataChunk: []byte("[]")}
	if _, err := in.Marshal(); !errors.Is(err, errBothSet) {
		t.Fatalf("expected errBothSet, got %v", err)
	}
}

func TestIngestResponse_SkipsUnknownFields(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, 1)
	b = protowire.AppendTag(b, 9, protowire.BytesType)
	b = protowire.AppendString(b, "future field")
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, 4)
	b = protowire.AppendTag(b, 3, protowire.BytesType)
	b = protowire.AppendString(b, "done")

	var out IngestResponse
	if err := out.Unmarshal(b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !out.Success || out.ReceivedChunks != 4 || out.Message != "done" {
		t.Fatalf("unexpected %+v", out)
	}

	re, _ := out.Marshal()
	var again IngestResponse
	if err := again.Unmarshal(re); err != nil || again != out {
		t.Fatalf("re-encode mismatch: %+v (%v)", again, err)
	}
}

func TestIngestResponse_Truncated(t *testing.T) {
	b := protowire.AppendTag(nil, 3, protowire.BytesType)
	b = append(b, 10, 'a') // declares 10 bytes, carries 1
	var out IngestResponse
	if err := out.Unmarshal(b); err == nil {
		t.Fatal("expected error for truncated message")
	}
}

func TestCodec(t *testing.T) {
	c := Codec{}
	if c.Name() != "proto" {
		t.Errorf("expected proto, got %q", c.Name())
	}
	if _, err := c.Marshal("not a message"); err == nil {
		t.Error("expected error for foreign type")
	}
	b, err := c.Marshal(&IngestResponse{Success: true})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out IngestResponse
	if err := c.Unmarshal(b, &out); err != nil || !out.Success {
		t.Fatalf("unexpected %+v (%v)", out, err)
	}
}

func TestEncodeChunk_FieldNames(t *testing.T) {
	years := 2
	recruit, err := record.NewRecruit(record.RecruitFields{
		ID: "0b5ad7b4-3c0f-4e41-9d43-0d1f1f0f4b01", Position: "Go Developer", CompanyName: "Acme",
		ExperienceYears: &years, Skills: []string{"Go"}, SkillsVector: []float32{0.5},
	}, 1)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	dic, _ := record.NewSkillDictionary(record.SkillDictionaryFields{
		Skill: "Go", PositionCategory: "Backend", SkillVector: []float32{1},
	}, 1)

	b, err := EncodeChunk([]record.Record{recruit, dic})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var items []map[string]any
	if err := json.Unmarshal(b, &items); err != nil {
		t.Fatalf("payload is not a JSON array: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	for _, k := range []string{"id", "position", "company_name", "experience_years", "skills", "skills_vector"} {
		if _, ok := items[0][k]; !ok {
			t.Errorf("recruit payload missing %q: %v", k, items[0])
		}
	}
	if _, ok := items[0]["english_level"]; ok {
		t.Error("empty optional text must be omitted")
	}
	if items[1]["skill"] != "Go" || items[1]["position_category"] != "Backend" {
		t.Errorf("unexpected dictionary payload %v", items[1])
	}

	n, err := DecodeChunkLen(b)
	if err != nil || n != 2 {
		t.Errorf("DecodeChunkLen = %d, %v", n, err)
	}
}
