package source

import (
	"bufio"
	"encoding/csv"
	"errors"
	"io"
	"iter"
	"os"
	"strings"

	"github.com/kailas-cloud/vecfeed/internal/domain"
)

// delimited streams comma-separated text with a header row.
// Empty cells decode as nil; every other cell stays a string.
type delimited struct{}

func (delimited) Rows(path string) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		f, err := os.Open(path) //nolint:gosec // path resolved by caller
		if err != nil {
			yield(nil, openError(path, err))
			return
		}
		defer func() { _ = f.Close() }()

		r := csv.NewReader(bufio.NewReaderSize(f, 1<<16))
		r.ReuseRecord = true

		head, err := r.Read()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			yield(nil, &domain.RowDecodeError{Path: path, Err: err})
			return
		}
		header := make([]string, len(head))
		copy(header, head)
		header[0] = strings.TrimPrefix(header[0], "\ufeff")

		for n := 1; ; n++ {
			rec, err := r.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				// csv enforces the header's field count on every record.
				yield(nil, &domain.RowDecodeError{Path: path, Row: n, Err: err})
				return
			}
			row := make(Row, len(header))
			for i, col := range header {
				if rec[i] == "" {
					row[col] = nil
					continue
				}
				row[col] = rec[i]
			}
			if !yield(row, nil) {
				return
			}
		}
	}
}
