package vecfeed

import (
	"time"

	checkpointrepo "github.com/kailas-cloud/vecfeed/internal/repository/checkpoint"
	ingestuc "github.com/kailas-cloud/vecfeed/internal/usecase/ingest"
)

// IngestResult is the outcome of one ingestion run.
type IngestResult struct {
	RunID string
	State string // "completed" or "failed"

	Success        bool // acknowledgment of the batch writer
	ChunksReceived int
	Message        string

	Format                  string // source format: pickle, csv or parquet
	ChunkSize               int    // rows per read batch after clamping
	RowsRead                int
	RowsKept                int
	DroppedEmptySkills      int
	DroppedMissingEmbedding int
	CellErrors              int
	UnmappedColumns         []string
	RecordsStreamed         int
	Checkpoint              string // id the run started after
	LastID                  string // id of the last record streamed
	Warnings                []string
}

// Checkpoint is the last streamed record id of a completed run.
type Checkpoint struct {
	Domain  string
	File    string
	ID      string
	SavedAt time.Time
}

func fromResult(r ingestuc.Result) IngestResult {
	st := r.Summary.Preprocess
	return IngestResult{
		RunID:                   r.RunID,
		State:                   string(r.State),
		Success:                 r.Ack.Success,
		ChunksReceived:          r.Ack.ChunksReceived,
		Message:                 r.Ack.Message,
		Format:                  r.Summary.Format,
		ChunkSize:               r.Summary.ChunkSize,
		RowsRead:                st.Input,
		RowsKept:                st.Output,
		DroppedEmptySkills:      st.EmptySkills,
		DroppedMissingEmbedding: st.MissingEmbedding,
		CellErrors:              st.CellErrors,
		UnmappedColumns:         st.Unmapped,
		RecordsStreamed:         r.Summary.Streamed,
		Checkpoint:              r.Summary.Checkpoint,
		LastID:                  r.Summary.LastID,
		Warnings:                r.Summary.Warnings,
	}
}

func fromEntries(entries []checkpointrepo.Entry) []Checkpoint {
	out := make([]Checkpoint, len(entries))
	for i, e := range entries {
		out[i] = Checkpoint{Domain: e.Domain, File: e.File, ID: e.ID, SavedAt: e.SavedAt}
	}
	return out
}
