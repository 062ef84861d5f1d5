package chi

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gochi "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecfeed/internal/domain"
	"github.com/kailas-cloud/vecfeed/internal/domain/record"
	"github.com/kailas-cloud/vecfeed/internal/domain/schema"
	checkpointrepo "github.com/kailas-cloud/vecfeed/internal/repository/checkpoint"
	rpc "github.com/kailas-cloud/vecfeed/internal/transport/grpc"
	healthuc "github.com/kailas-cloud/vecfeed/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/vecfeed/internal/usecase/ingest"
)

// --- Mocks ---

// drainStreamer consumes the sequence and acknowledges one chunk per batch.
type drainStreamer struct {
	err   error
	calls int
}

func (d *drainStreamer) Send(
	_ context.Context, _ rpc.Metadata, records iter.Seq2[record.Record, error], batchSize int,
) (rpc.Ack, error) {
	d.calls++
	n := 0
	for _, err := range records {
		if err != nil {
			return rpc.Ack{}, err
		}
		n++
	}
	if n == 0 {
		return rpc.Ack{Message: domain.ErrNoRecords.Error()}, nil
	}
	if d.err != nil {
		return rpc.Ack{}, d.err
	}
	chunks := (n + batchSize - 1) / batchSize
	return rpc.Ack{Success: true, ChunksReceived: chunks, Message: "ok"}, nil
}

type mockWriterChecker struct{ err error }

func (m *mockWriterChecker) HealthCheck(context.Context) error { return m.err }

type mockCheckpoints struct {
	entries []checkpointrepo.Entry
	cleared []string
	err     error
}

func (m *mockCheckpoints) List(context.Context, string) ([]checkpointrepo.Entry, error) {
	return m.entries, m.err
}

func (m *mockCheckpoints) Clear(_ context.Context, d, f string) error {
	m.cleared = append(m.cleared, d+"/"+f)
	return m.err
}

// --- Helpers ---

const skillsCSV = "name,category,vector\nGo,Backend,\"[0.1,0.2]\"\nSQL,Data,\"[0.3,0.4]\"\nRust,Backend,\n"

type fixture struct {
	router   http.Handler
	streamer *drainStreamer
	dataDir  string
}

func newFixture(t *testing.T, dim int, checkpoints CheckpointAdmin) *fixture {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "skills.csv"), []byte(skillsCSV), 0o600); err != nil {
		t.Fatal(err)
	}
	reg, err := schema.NewRegistry(map[string]int{"skill_dic": dim, "recruit": 384})
	if err != nil {
		t.Fatal(err)
	}
	streamer := &drainStreamer{}
	ingest := ingestuc.New(reg, streamer, zap.NewNop())
	health := healthuc.New(&mockWriterChecker{}, nil)

	s := NewServer(ingest, health, reg, dir, zap.NewNop())
	if checkpoints != nil {
		s.WithCheckpoints(checkpoints)
	}
	r := gochi.NewRouter()
	s.Register(r)
	return &fixture{router: r, streamer: streamer, dataDir: dir}
}

func (f *fixture) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, http.NoBody)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return v
}

// --- Ingest ---

func TestIngestData_Success(t *testing.T) {
	f := newFixture(t, 2, nil)
	rr := f.do(t, http.MethodPost, "/data/ingest/skill_dic?file_name=skills.csv&chunk_size=50")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body)
	}

	resp := decode[IngestResponse](t, rr)
	if !resp.Success || resp.ReceivedChunks != 1 || resp.State != "completed" || resp.RunID == "" {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Summary.RowsRead != 3 || resp.Summary.RecordsStreamed != 2 || resp.Summary.DroppedMissingEmbedding != 1 {
		t.Errorf("unexpected summary %+v", resp.Summary)
	}
	if resp.Summary.ChunkSize != 100 || len(resp.Summary.Warnings) != 1 {
		t.Errorf("expected clamped chunk size with warning, got %+v", resp.Summary)
	}
	if resp.Summary.Format != "csv" {
		t.Errorf("expected csv format, got %q", resp.Summary.Format)
	}
}

func TestIngestData_Errors(t *testing.T) {
	tests := []struct {
		name       string
		dim        int
		target     string
		wantStatus int
		wantCode   ErrorCode
	}{
		{"missing file_name", 2, "/data/ingest/skill_dic", http.StatusBadRequest, ErrorCodeBadRequest},
		{"bad chunk_size", 2, "/data/ingest/skill_dic?file_name=skills.csv&chunk_size=lots",
			http.StatusBadRequest, ErrorCodeBadRequest},
		{"path traversal", 2, "/data/ingest/skill_dic?file_name=../etc/passwd.csv",
			http.StatusBadRequest, ErrorCodeBadRequest},
		{"absolute path", 2, "/data/ingest/skill_dic?file_name=/etc/skills.csv",
			http.StatusBadRequest, ErrorCodeBadRequest},
		{"unknown domain", 2, "/data/ingest/vacancy?file_name=skills.csv",
			http.StatusBadRequest, ErrorCodeUnknownDomain},
		{"unsupported format", 2, "/data/ingest/skill_dic?file_name=skills.xlsx",
			http.StatusBadRequest, ErrorCodeUnsupportedFormat},
		{"missing file", 2, "/data/ingest/skill_dic?file_name=other.csv",
			http.StatusNotFound, ErrorCodeNotFound},
		{"dimension mismatch", 3, "/data/ingest/skill_dic?file_name=skills.csv",
			http.StatusBadRequest, ErrorCodeDimensionMismatch},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, tc.dim, nil)
			rr := f.do(t, http.MethodPost, tc.target)
			if rr.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tc.wantStatus, rr.Code, rr.Body)
			}
			var body struct {
				Code    ErrorCode `json:"code"`
				Message string    `json:"message"`
				Success bool      `json:"success"`
			}
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body.Code != tc.wantCode || body.Success {
				t.Errorf("unexpected body %+v", body)
			}
			if strings.Contains(body.Message, f.dataDir) {
				t.Errorf("message leaks the data directory: %q", body.Message)
			}
		})
	}
}

func TestIngestData_NoRecords(t *testing.T) {
	f := newFixture(t, 2, nil)
	if err := os.WriteFile(filepath.Join(f.dataDir, "empty.csv"), []byte("name,category,vector\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	rr := f.do(t, http.MethodPost, "/data/ingest/skill_dic?file_name=empty.csv")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	resp := decode[IngestResponse](t, rr)
	if resp.Success || resp.ReceivedChunks != 0 || resp.Code != ErrorCodeNoRecords || resp.Message != "no data to send" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestIngestData_TransportFailure(t *testing.T) {
	f := newFixture(t, 2, nil)
	f.streamer.err = domain.NewTransportError("ack", errors.New("no acknowledgment within 5m0s"))

	rr := f.do(t, http.MethodPost, "/data/ingest/skill_dic?file_name=skills.csv")
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rr.Code)
	}
	resp := decode[IngestResponse](t, rr)
	if resp.State != "failed" || resp.Code != ErrorCodeTransport || resp.Summary.RowsRead != 3 {
		t.Errorf("unexpected response %+v", resp)
	}
}

// --- Checkpoints ---

func TestCheckpoints_Disabled(t *testing.T) {
	f := newFixture(t, 2, nil)
	if rr := f.do(t, http.MethodGet, "/data/checkpoints/recruit"); rr.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", rr.Code)
	}
}

func TestListCheckpoints(t *testing.T) {
	saved := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	admin := &mockCheckpoints{entries: []checkpointrepo.Entry{
		{Domain: "recruit", File: "jobs.parquet", ID: "abc", SavedAt: saved},
	}}
	f := newFixture(t, 2, admin)

	rr := f.do(t, http.MethodGet, "/data/checkpoints/recruit")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	resp := decode[CheckpointListResponse](t, rr)
	if resp.Domain != "recruit" || len(resp.Items) != 1 || resp.Items[0].Checkpoint != "abc" {
		t.Errorf("unexpected response %+v", resp)
	}

	if rr := f.do(t, http.MethodGet, "/data/checkpoints/vacancy"); rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown domain, got %d", rr.Code)
	}
}

func TestClearCheckpoint(t *testing.T) {
	admin := &mockCheckpoints{}
	f := newFixture(t, 2, admin)

	if rr := f.do(t, http.MethodDelete, "/data/checkpoints/recruit?file_name=jobs.parquet"); rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if len(admin.cleared) != 1 || admin.cleared[0] != "recruit/jobs.parquet" {
		t.Errorf("unexpected cleared %v", admin.cleared)
	}

	if rr := f.do(t, http.MethodDelete, "/data/checkpoints/recruit"); rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without file_name, got %d", rr.Code)
	}

	admin.err = errors.New("store down")
	if rr := f.do(t, http.MethodDelete, "/data/checkpoints/recruit?file_name=jobs.parquet"); rr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rr.Code)
	}
}

// --- Health & metrics ---

func TestHealthCheck(t *testing.T) {
	f := newFixture(t, 2, nil)
	rr := f.do(t, http.MethodGet, "/healthz")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	resp := decode[HealthResponse](t, rr)
	if resp.Status != "ok" || resp.Checks["batch_writer"] != "ok" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestHealthCheck_WriterDown(t *testing.T) {
	reg, _ := schema.NewRegistry(nil)
	s := NewServer(ingestuc.New(reg, &drainStreamer{}, nil),
		healthuc.New(&mockWriterChecker{err: errors.New("down")}, nil), reg, t.TempDir(), zap.NewNop())
	r := gochi.NewRouter()
	s.Register(r)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, 2, nil)
	rr := f.do(t, http.MethodGet, "/metrics")
	if rr.Code != http.StatusOK || rr.Body.Len() == 0 {
		t.Fatalf("expected metrics output, got %d", rr.Code)
	}
}

func TestSafeDomainMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&domain.RowDecodeError{Path: "/srv/data/x.csv", Row: 3, Err: errors.New("wrong number of fields")},
			"row decode failed"},
		{&domain.DimensionMismatchError{Domain: "recruit", Expected: 384, Actual: 768},
			`embedding dimension mismatch: domain "recruit" expects 384, data has 768`},
		{errors.New("boom"), "internal error"},
	}
	for _, tc := range tests {
		if got := safeDomainMessage(tc.err); got != tc.want {
			t.Errorf("safeDomainMessage(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
