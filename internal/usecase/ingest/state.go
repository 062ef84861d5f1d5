package ingest

// State is a stage of an ingestion run.
type State string

// Run states, in order. Completed and Failed are terminal.
const (
	StateIdle           State = "idle"
	StateConfigResolved State = "config_resolved"
	StateReading        State = "reading"
	StateStreaming      State = "streaming"
	StateCompleted      State = "completed"
	StateFailed         State = "failed"
)

// Chunk size bounds.
const (
	DefaultChunkSize = 300
	MinChunkSize     = 100
	MaxChunkSize     = 1000
)

// ChunkBounds limits the number of rows read per batch.
type ChunkBounds struct {
	Default int
	Min     int
	Max     int
}

// DefaultChunkBounds returns the 300 / [100, 1000] bounds.
func DefaultChunkBounds() ChunkBounds {
	return ChunkBounds{Default: DefaultChunkSize, Min: MinChunkSize, Max: MaxChunkSize}
}

// Clamp returns n limited to [Min, Max] and whether it was changed.
// Zero selects Default.
func (b ChunkBounds) Clamp(n int) (int, bool) {
	switch {
	case n == 0:
		return b.Default, false
	case n < b.Min:
		return b.Min, true
	case n > b.Max:
		return b.Max, true
	default:
		return n, false
	}
}
