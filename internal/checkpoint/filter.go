// Package checkpoint resumes a record sequence after a known identifier.
package checkpoint

import (
	"iter"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecfeed/internal/domain/record"
)

// After yields the records that follow the first record whose ID equals id,
// by position in seq. An empty id returns seq unchanged.
//
// When id never appears, a warning is logged and seq is ranged a second time
// from the start, so every record is yielded. seq must therefore be
// restartable. An error from seq is yielded once and ends the sequence.
func After(seq iter.Seq2[record.Record, error], id string, logger *zap.Logger) iter.Seq2[record.Record, error] {
	if id == "" {
		return seq
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(yield func(record.Record, error) bool) {
		found := false
		skipped := 0
		for rec, err := range seq {
			if err != nil {
				yield(nil, err)
				return
			}
			if found {
				if !yield(rec, nil) {
					return
				}
				continue
			}
			skipped++
			found = rec.ID() == id
		}
		if found {
			logger.Debug("resumed after checkpoint", zap.String("checkpoint", id), zap.Int("skipped", skipped))
			return
		}

		logger.Warn("checkpoint not found, streaming from the beginning",
			zap.String("checkpoint", id), zap.Int("scanned", skipped))
		for rec, err := range seq {
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}
