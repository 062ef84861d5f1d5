package chi

import "time"

// ErrorCode is a machine-readable error kind.
type ErrorCode string

// Error codes.
const (
	ErrorCodeBadRequest        ErrorCode = "bad_request"
	ErrorCodeUnknownDomain     ErrorCode = "unknown_domain"
	ErrorCodeUnsupportedFormat ErrorCode = "unsupported_format"
	ErrorCodeValidationFailed  ErrorCode = "validation_failed"
	ErrorCodeDimensionMismatch ErrorCode = "dimension_mismatch"
	ErrorCodeNotFound          ErrorCode = "not_found"
	ErrorCodeRowDecode         ErrorCode = "row_decode_failed"
	ErrorCodeTransport         ErrorCode = "transport_error"
	ErrorCodeNoRecords         ErrorCode = "no_records"
	ErrorCodeNotImplemented    ErrorCode = "not_implemented"
	ErrorCodeInternal          ErrorCode = "internal_error"
)

// ErrorResponse is the body of a failed non-ingest request.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// IngestParams are the query parameters of POST /data/ingest/{domain}.
type IngestParams struct {
	FileName   string
	ChunkSize  *int
	Checkpoint *string
	Resume     *bool
}

// IngestResponse is the outcome of one ingestion run.
type IngestResponse struct {
	Success        bool       `json:"success"`
	ReceivedChunks int        `json:"received_chunks"`
	Message        string     `json:"message"`
	Code           ErrorCode  `json:"code,omitempty"`
	RunID          string     `json:"run_id"`
	State          string     `json:"state"`
	Summary        RunSummary `json:"summary"`
}

// RunSummary carries the counts of a run.
type RunSummary struct {
	Format                  string   `json:"format"`
	ChunkSize               int      `json:"chunk_size"`
	RowsRead                int      `json:"rows_read"`
	RowsKept                int      `json:"rows_kept"`
	DroppedEmptySkills      int      `json:"dropped_empty_skills"`
	DroppedMissingEmbedding int      `json:"dropped_missing_embedding"`
	CellErrors              int      `json:"cell_errors"`
	UnmappedColumns         []string `json:"unmapped_columns,omitempty"`
	RecordsStreamed         int      `json:"records_streamed"`
	Checkpoint              string   `json:"checkpoint,omitempty"`
	LastID                  string   `json:"last_id,omitempty"`
	Warnings                []string `json:"warnings,omitempty"`
}

// CheckpointItem is one stored checkpoint.
type CheckpointItem struct {
	FileName   string    `json:"file_name"`
	Checkpoint string    `json:"checkpoint"`
	SavedAt    time.Time `json:"saved_at"`
}

// CheckpointListResponse lists the checkpoints of a domain.
type CheckpointListResponse struct {
	Domain string           `json:"domain"`
	Items  []CheckpointItem `json:"items"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Version string            `json:"version"`
}
