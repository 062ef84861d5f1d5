// Package source reads tabular files in bounded chunks.
package source

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/kailas-cloud/vecfeed/internal/domain"
)

// Row is one decoded row keyed by source column name. Null cells are nil.
type Row map[string]any

// Batch is an ordered group of rows.
type Batch []Row

// Format is a source file encoding.
type Format string

// Supported formats.
const (
	FormatPickle  Format = "pickle"
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// Reader decodes the rows of one file format.
// Each call to Rows reopens the file.
type Reader interface {
	Rows(path string) iter.Seq2[Row, error]
}

var formats = map[string]Format{
	".pkl":     FormatPickle,
	".pickle":  FormatPickle,
	".csv":     FormatCSV,
	".parquet": FormatParquet,
}

var readers = map[Format]Reader{
	FormatPickle:  pickled{},
	FormatCSV:     delimited{},
	FormatParquet: columnar{},
}

// FormatOf returns the format selected by the file extension.
func FormatOf(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	f, ok := formats[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, ext)
	}
	return f, nil
}

// Source is an opened, restartable view over a tabular file.
type Source struct {
	path      string
	format    Format
	reader    Reader
	chunkSize int
}

// Open checks that path exists and has a supported extension.
// No rows are read until Batches is ranged.
func Open(path string, chunkSize int) (*Source, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidRequest, chunkSize)
	}
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(path)
	if err != nil {
		return nil, openError(path, err)
	}
	if st.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", domain.ErrNotFound, path)
	}
	return &Source{path: path, format: format, reader: readers[format], chunkSize: chunkSize}, nil
}

// Path returns the file path.
func (s *Source) Path() string { return s.path }

// Format returns the detected format.
func (s *Source) Format() Format { return s.format }

// ChunkSize returns the rows per batch.
func (s *Source) ChunkSize() int { return s.chunkSize }

// Batches yields rows in batches of ChunkSize, the last one possibly shorter.
// Every range reopens the file and starts from the first row. A decode error
// is yielded once and ends the sequence.
func (s *Source) Batches() iter.Seq2[Batch, error] {
	return func(yield func(Batch, error) bool) {
		batch := make(Batch, 0, s.chunkSize)
		for row, err := range s.reader.Rows(s.path) {
			if err != nil {
				yield(nil, err)
				return
			}
			batch = append(batch, row)
			if len(batch) == s.chunkSize {
				if !yield(batch, nil) {
					return
				}
				batch = make(Batch, 0, s.chunkSize)
			}
		}
		if len(batch) > 0 {
			yield(batch, nil)
		}
	}
}

func openError(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, path)
	}
	return fmt.Errorf("open %s: %w", path, err)
}
