package source

import (
	"bufio"
	"fmt"
	"iter"
	"math/big"
	"os"

	"github.com/nlpodyssey/gopickle/pickle"
	"github.com/nlpodyssey/gopickle/types"

	"github.com/kailas-cloud/vecfeed/internal/domain"
)

// frameKey is the optional wrapper key around the table.
const frameKey = "data_frame"

// pickled loads a Python pickle in one shot.
// Accepted shapes: a pandas DataFrame, a list of row dicts, a dict of
// equal-length column lists, or any of them under the "data_frame" key of a
// dict. DataFrames are rebuilt from their block manager; numeric, bool,
// datetime64 and object blocks are supported.
type pickled struct{}

func (pickled) Rows(path string) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		f, err := os.Open(path) //nolint:gosec // path resolved by caller
		if err != nil {
			yield(nil, openError(path, err))
			return
		}
		defer func() { _ = f.Close() }()

		u := pickle.NewUnpickler(bufio.NewReaderSize(f, 1<<16))
		u.FindClass = pandasClass
		obj, err := u.Load()
		if err != nil {
			yield(nil, &domain.RowDecodeError{Path: path, Err: fmt.Errorf("unpickle: %w", err)})
			return
		}
		rows, err := tableRows(obj)
		if err != nil {
			yield(nil, &domain.RowDecodeError{Path: path, Err: err})
			return
		}
		for _, row := range rows {
			if !yield(row, nil) {
				return
			}
		}
	}
}

func tableRows(obj any) ([]Row, error) {
	switch t := obj.(type) {
	case *types.Dict:
		if inner, ok := t.Get(frameKey); ok {
			return tableRows(inner)
		}
		return columnsToRows(t)
	case *frame:
		return t.rows()
	case *types.List:
		return recordsToRows([]any(*t))
	case *types.Tuple:
		return recordsToRows([]any(*t))
	default:
		return nil, fmt.Errorf("unsupported pickle payload %s: expected DataFrame, list of dicts or dict of lists", describe(obj))
	}
}

func recordsToRows(items []any) ([]Row, error) {
	rows := make([]Row, 0, len(items))
	for i, item := range items {
		d, ok := item.(*types.Dict)
		if !ok {
			return nil, fmt.Errorf("record %d: expected dict, got %T", i, item)
		}
		row := make(Row, d.Len())
		for _, e := range *d {
			key, ok := e.Key.(string)
			if !ok {
				return nil, fmt.Errorf("record %d: non-string column name %v", i, e.Key)
			}
			row[key] = pyValue(e.Value)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func columnsToRows(d *types.Dict) ([]Row, error) {
	names := make([]string, 0, d.Len())
	cols := make([][]any, 0, d.Len())
	height := -1
	for _, e := range *d {
		name, ok := e.Key.(string)
		if !ok {
			return nil, fmt.Errorf("non-string column name %v", e.Key)
		}
		values, ok := sequence(e.Value)
		if !ok {
			return nil, fmt.Errorf("column %q: expected list, got %T", name, e.Value)
		}
		if height >= 0 && len(values) != height {
			return nil, fmt.Errorf("column %q has %d values, expected %d", name, len(values), height)
		}
		height = len(values)
		names = append(names, name)
		cols = append(cols, values)
	}
	if height < 0 {
		return nil, nil
	}

	rows := make([]Row, height)
	for r := range rows {
		row := make(Row, len(names))
		for c, name := range names {
			row[name] = pyValue(cols[c][r])
		}
		rows[r] = row
	}
	return rows, nil
}

func sequence(v any) ([]any, bool) {
	switch t := v.(type) {
	case *types.List:
		return []any(*t), true
	case *types.Tuple:
		return []any(*t), true
	default:
		return nil, false
	}
}

// pyValue converts unpickled scalars and containers to plain Go values.
func pyValue(v any) any {
	switch t := v.(type) {
	case int:
		return int64(t)
	case *big.Int:
		if t.IsInt64() {
			return t.Int64()
		}
		return t.String()
	case []byte:
		return string(t)
	case *ndarray:
		return t.vector()
	case *types.List, *types.Tuple:
		items, _ := sequence(t)
		out := make([]any, len(items))
		for i, x := range items {
			out[i] = pyValue(x)
		}
		return out
	default:
		return v
	}
}
