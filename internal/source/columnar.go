package source

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/kailas-cloud/vecfeed/internal/domain"
)

const parquetReadBuf = 256

// columnar iterates a parquet file row group by row group.
// Scalars decode to bool, int64, float64 or string; LIST columns decode to
// []any, or nil when the list holds no non-null element.
type columnar struct{}

type leaf struct {
	name     string
	repeated bool
}

func (columnar) Rows(path string) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		f, err := os.Open(path) //nolint:gosec // path resolved by caller
		if err != nil {
			yield(nil, openError(path, err))
			return
		}
		defer func() { _ = f.Close() }()

		st, err := f.Stat()
		if err != nil {
			yield(nil, fmt.Errorf("stat %s: %w", path, err))
			return
		}
		pf, err := parquet.OpenFile(f, st.Size())
		if err != nil {
			yield(nil, &domain.RowDecodeError{Path: path, Err: err})
			return
		}

		leaves := leafColumns(pf.Schema())
		n := 0
		for _, rg := range pf.RowGroups() {
			ok, err := readGroup(rg, leaves, &n, yield)
			if err != nil {
				yield(nil, &domain.RowDecodeError{Path: path, Row: n + 1, Err: err})
				return
			}
			if !ok {
				return
			}
		}
	}
}

// readGroup yields every row of one row group. It reports false when the
// consumer stopped early.
func readGroup(rg parquet.RowGroup, leaves []leaf, n *int, yield func(Row, error) bool) (bool, error) {
	rows := rg.Rows()
	defer func() { _ = rows.Close() }()

	buf := make([]parquet.Row, parquetReadBuf)
	for {
		k, err := rows.ReadRows(buf)
		for _, pr := range buf[:k] {
			*n++
			if !yield(decodeRow(pr, leaves), nil) {
				return false, nil
			}
		}
		if errors.Is(err, io.EOF) {
			return true, nil
		}
		if err != nil {
			return false, err
		}
	}
}

// leafColumns maps leaf column indexes to their top-level field name.
func leafColumns(schema *parquet.Schema) []leaf {
	paths := schema.Columns()
	out := make([]leaf, len(paths))
	for i, path := range paths {
		lc, _ := schema.Lookup(path...)
		out[i] = leaf{name: path[0], repeated: lc.MaxRepetitionLevel > 0}
	}
	return out
}

func decodeRow(pr parquet.Row, leaves []leaf) Row {
	row := make(Row, len(leaves))
	lists := make(map[string][]any)
	for _, v := range pr {
		c := v.Column()
		if c < 0 || c >= len(leaves) {
			continue
		}
		l := leaves[c]
		if !l.repeated {
			row[l.name] = parquetValue(v)
			continue
		}
		if _, seen := lists[l.name]; !seen {
			lists[l.name] = nil
		}
		if !v.IsNull() {
			lists[l.name] = append(lists[l.name], parquetValue(v))
		}
	}
	for name, items := range lists {
		if items == nil {
			row[name] = nil
			continue
		}
		row[name] = items
	}
	return row
}

func parquetValue(v parquet.Value) any {
	if v.IsNull() {
		return nil
	}
	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return int64(v.Int32())
	case parquet.Int64:
		return v.Int64()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	default:
		return v.String()
	}
}
