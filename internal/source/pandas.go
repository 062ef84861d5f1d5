package source

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nlpodyssey/gopickle/types"
)

// pandasClass resolves the globals a pickled pandas DataFrame refers to.
// Unknown globals stay generic classes so plain container pickles load
// unchanged; a frame holding them fails when its rows are built.
func pandasClass(module, name string) (any, error) {
	switch {
	case module == "pandas.core.frame" && name == "DataFrame":
		return frameClass{}, nil
	case strings.HasPrefix(module, "pandas.core.internals") && name == "BlockManager":
		return managerClass{}, nil
	case strings.HasPrefix(module, "pandas.core.indexes") && name == "_new_Index":
		return newIndex{}, nil
	case module == "pandas._libs.internals" && name == "_unpickle_block":
		return unpickleBlock{}, nil
	case isNumpy(module, "multiarray") && name == "_reconstruct":
		return reconstructArray{}, nil
	case isNumpy(module, "multiarray") && name == "scalar":
		return numpyScalar{}, nil
	case isNumpy(module, "numeric") && name == "_frombuffer":
		return fromBuffer{}, nil
	case module == "numpy" && name == "dtype":
		return dtypeClass{}, nil
	case (module == "builtins" || module == "__builtin__") && name == "slice":
		return sliceClass{}, nil
	case module == "_codecs" && name == "encode":
		return latin1Encode{}, nil
	}
	return types.NewGenericClass(module, name), nil
}

func isNumpy(module, sub string) bool {
	return module == "numpy.core."+sub || module == "numpy._core."+sub
}

// --- numpy ---

type dtype struct {
	kind  byte // f, i, u, b, O, M or U
	size  int
	order binary.ByteOrder
	unit  string // datetime64 only
}

type dtypeClass struct{}

// Call handles numpy.dtype("f4", False, True).
func (dtypeClass) Call(args ...any) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("numpy.dtype: missing type code")
	}
	code, ok := args[0].(string)
	if !ok || code == "" {
		return nil, fmt.Errorf("numpy.dtype: type code %v", args[0])
	}
	dt := &dtype{kind: code[0], order: binary.LittleEndian}
	if len(code) > 1 {
		n, err := strconv.Atoi(code[1:])
		if err != nil {
			return nil, fmt.Errorf("numpy.dtype: type code %q", code)
		}
		dt.size = n
	}
	switch dt.kind {
	case 'f', 'i', 'u', 'b', 'M', 'U':
	case 'O':
		dt.size = 0
	default:
		return nil, fmt.Errorf("numpy.dtype: unsupported type code %q", code)
	}
	return dt, nil
}

// PySetState reads (version, byteorder, ..., metadata).
func (d *dtype) PySetState(state any) error {
	t, ok := state.(*types.Tuple)
	if !ok || t.Len() < 2 {
		return fmt.Errorf("numpy.dtype: state %v", state)
	}
	if bo, _ := t.Get(1).(string); bo == ">" {
		d.order = binary.BigEndian
	}
	if d.kind == 'M' && t.Len() > 8 {
		d.unit = datetimeUnit(t.Get(8))
	}
	return nil
}

func (d *dtype) fixedWidth() bool {
	switch d.kind {
	case 'f':
		return d.size == 4 || d.size == 8
	case 'i', 'u':
		return d.size == 1 || d.size == 2 || d.size == 4 || d.size == 8
	case 'b':
		return d.size == 1
	case 'M':
		return d.size == 8
	case 'U':
		return d.size > 0 && d.size%4 == 0
	default:
		return false
	}
}

// datetimeUnit finds the (unit, num, den, events) tuple in dtype metadata.
func datetimeUnit(meta any) string {
	t, ok := meta.(*types.Tuple)
	if !ok {
		return ""
	}
	for _, item := range *t {
		inner, ok := item.(*types.Tuple)
		if !ok || inner.Len() == 0 {
			continue
		}
		switch u := inner.Get(0).(type) {
		case []byte:
			return string(u)
		case string:
			return u
		}
	}
	return ""
}

// ndarray is a decoded numpy array. Numeric payloads keep their memory
// layout; object payloads are always in row-major order.
type ndarray struct {
	dtype   *dtype
	shape   []int
	strides []int // element strides into raw
	raw     []byte
	objects []any
}

type reconstructArray struct{}

// Call handles numpy.core.multiarray._reconstruct(ndarray, (0,), b"b").
// The content arrives later through BUILD.
func (reconstructArray) Call(...any) (any, error) {
	return &ndarray{}, nil
}

// PySetState reads (version, shape, dtype, is_fortran, data).
func (a *ndarray) PySetState(state any) error {
	t, ok := state.(*types.Tuple)
	if !ok || t.Len() != 5 {
		return fmt.Errorf("ndarray: state %v", state)
	}
	dt, ok := t.Get(2).(*dtype)
	if !ok {
		return fmt.Errorf("ndarray: dtype %T", t.Get(2))
	}
	fortran, _ := t.Get(3).(bool)
	data := t.Get(4)
	if list, ok := data.(*types.List); ok {
		return a.init(dt, t.Get(1), fortran, nil, []any(*list))
	}
	raw, ok := bytesOf(data)
	if !ok {
		return fmt.Errorf("ndarray: payload %T", data)
	}
	return a.init(dt, t.Get(1), fortran, raw, nil)
}

type fromBuffer struct{}

// Call handles numpy.core.numeric._frombuffer(buf, dtype, shape, order),
// the protocol 5 form of contiguous numeric arrays.
func (fromBuffer) Call(args ...any) (any, error) {
	if len(args) != 4 {
		return nil, fmt.Errorf("_frombuffer: %d arguments", len(args))
	}
	raw, ok := bytesOf(args[0])
	if !ok {
		return nil, fmt.Errorf("_frombuffer: buffer %T", args[0])
	}
	dt, ok := args[1].(*dtype)
	if !ok {
		return nil, fmt.Errorf("_frombuffer: dtype %T", args[1])
	}
	order, _ := args[3].(string)
	a := &ndarray{}
	if err := a.init(dt, args[2], order == "F", raw, nil); err != nil {
		return nil, err
	}
	return a, nil
}

type numpyScalar struct{}

// Call handles numpy.core.multiarray.scalar(dtype, payload).
func (numpyScalar) Call(args ...any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("numpy scalar: %d arguments", len(args))
	}
	dt, ok := args[0].(*dtype)
	if !ok {
		return nil, fmt.Errorf("numpy scalar: dtype %T", args[0])
	}
	if dt.kind == 'O' {
		return pyValue(args[1]), nil
	}
	raw, ok := bytesOf(args[1])
	if !ok {
		return nil, fmt.Errorf("numpy scalar: payload %T", args[1])
	}
	a := &ndarray{}
	if err := a.init(dt, types.NewTupleFromSlice(nil), false, raw, nil); err != nil {
		return nil, err
	}
	return a.at(0), nil
}

func (a *ndarray) init(dt *dtype, shape any, fortran bool, raw []byte, objects []any) error {
	dims, err := intTuple(shape)
	if err != nil {
		return fmt.Errorf("ndarray shape: %w", err)
	}
	n := 1
	for _, d := range dims {
		n *= d
	}
	a.dtype, a.shape, a.raw, a.objects = dt, dims, raw, objects

	if dt.kind == 'O' {
		if len(objects) != n {
			return fmt.Errorf("ndarray: %d objects for shape %v", len(objects), dims)
		}
		return nil
	}
	if objects != nil {
		return fmt.Errorf("ndarray: object payload for dtype %c%d", dt.kind, dt.size)
	}
	if !dt.fixedWidth() {
		return fmt.Errorf("ndarray: unsupported dtype %c%d", dt.kind, dt.size)
	}
	if len(raw) != n*dt.size {
		return fmt.Errorf("ndarray: %d bytes for shape %v of %c%d", len(raw), dims, dt.kind, dt.size)
	}
	a.strides = make([]int, len(dims))
	step := 1
	if fortran {
		for i := range dims {
			a.strides[i] = step
			step *= dims[i]
		}
	} else {
		for i := len(dims) - 1; i >= 0; i-- {
			a.strides[i] = step
			step *= dims[i]
		}
	}
	return nil
}

func (a *ndarray) len() int {
	n := 1
	for _, d := range a.shape {
		n *= d
	}
	return n
}

// at returns the element at row-major position i.
func (a *ndarray) at(i int) any {
	if a.dtype.kind == 'O' {
		return pyValue(a.objects[i])
	}
	off := 0
	for d := len(a.shape) - 1; d >= 0; d-- {
		off += (i % a.shape[d]) * a.strides[d]
		i /= a.shape[d]
	}
	size := a.dtype.size
	return a.decode(a.raw[off*size : (off+1)*size])
}

func (a *ndarray) decode(b []byte) any {
	bo := a.dtype.order
	switch a.dtype.kind {
	case 'f':
		switch len(b) {
		case 4:
			return float64(math.Float32frombits(bo.Uint32(b)))
		case 8:
			return math.Float64frombits(bo.Uint64(b))
		}
	case 'i':
		return signed(bo, b)
	case 'u':
		u := unsigned(bo, b)
		if u > math.MaxInt64 {
			return float64(u)
		}
		return int64(u) //nolint:gosec // range checked
	case 'b':
		return b[0] != 0
	case 'M':
		v := signed(bo, b)
		if v == math.MinInt64 { // NaT
			return nil
		}
		return datetime(v, a.dtype.unit)
	case 'U':
		var sb strings.Builder
		for j := 0; j+4 <= len(b); j += 4 {
			r := rune(bo.Uint32(b[j:])) //nolint:gosec // UCS-4 code point
			if r == 0 {
				break
			}
			if !utf8.ValidRune(r) {
				r = utf8.RuneError
			}
			sb.WriteRune(r)
		}
		return sb.String()
	}
	return nil
}

// vector converts a decoded array stored in a single cell.
func (a *ndarray) vector() any {
	n := a.len()
	if len(a.shape) == 1 && a.dtype.kind == 'f' {
		if a.dtype.size == 4 {
			out := make([]float32, n)
			for i := range out {
				out[i] = float32(a.at(i).(float64))
			}
			return out
		}
		out := make([]float64, n)
		for i := range out {
			out[i] = a.at(i).(float64)
		}
		return out
	}
	out := make([]any, n)
	for i := range out {
		out[i] = a.at(i)
	}
	return out
}

func signed(bo binary.ByteOrder, b []byte) int64 {
	switch len(b) {
	case 1:
		return int64(int8(b[0])) //nolint:gosec // two's complement
	case 2:
		return int64(int16(bo.Uint16(b))) //nolint:gosec // two's complement
	case 4:
		return int64(int32(bo.Uint32(b))) //nolint:gosec // two's complement
	default:
		return int64(bo.Uint64(b)) //nolint:gosec // two's complement
	}
}

func unsigned(bo binary.ByteOrder, b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(bo.Uint16(b))
	case 4:
		return uint64(bo.Uint32(b))
	default:
		return bo.Uint64(b)
	}
}

func datetime(v int64, unit string) time.Time {
	switch unit {
	case "s":
		return time.Unix(v, 0).UTC()
	case "ms":
		return time.UnixMilli(v).UTC()
	case "us":
		return time.UnixMicro(v).UTC()
	case "D":
		return time.Unix(v*86400, 0).UTC()
	default:
		return time.Unix(0, v).UTC()
	}
}

// --- pandas ---

type pyIndex struct {
	values []any
	length int
}

type newIndex struct{}

// Call handles pandas _new_Index(cls, {"data": ..., "name": ...}) and the
// RangeIndex form with start, stop and step.
func (newIndex) Call(args ...any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("_new_Index: %d arguments", len(args))
	}
	d, ok := args[1].(*types.Dict)
	if !ok {
		return nil, fmt.Errorf("_new_Index: state %T", args[1])
	}
	if data, ok := d.Get("data"); ok {
		var values []any
		switch t := data.(type) {
		case *ndarray:
			values = make([]any, t.len())
			for i := range values {
				values[i] = t.at(i)
			}
		default:
			seq, ok := sequence(data)
			if !ok {
				return nil, fmt.Errorf("_new_Index: data %s is not supported", describe(data))
			}
			values = seq
		}
		return &pyIndex{values: values, length: len(values)}, nil
	}
	stop, ok := d.Get("stop")
	if !ok {
		return nil, fmt.Errorf("_new_Index: %s is not supported", describe(args[0]))
	}
	start, _ := d.Get("start")
	step, _ := d.Get("step")
	lo, err1 := sliceBound(start, 0)
	hi, err2 := sliceBound(stop, 0)
	st, err3 := sliceBound(step, 1)
	if err := errors.Join(err1, err2, err3); err != nil {
		return nil, fmt.Errorf("range index: %w", err)
	}
	if st <= 0 {
		return nil, fmt.Errorf("range index: step %d", st)
	}
	return &pyIndex{length: max(0, (hi-lo+st-1)/st)}, nil
}

type pySlice struct{ start, stop, step any }

type sliceClass struct{}

func (sliceClass) Call(args ...any) (any, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("slice: %d arguments", len(args))
	}
	return &pySlice{start: args[0], stop: args[1], step: args[2]}, nil
}

// positions expands the slice over a sequence of length n.
func (s *pySlice) positions(n int) ([]int, error) {
	start, err := sliceBound(s.start, 0)
	if err != nil {
		return nil, err
	}
	stop, err := sliceBound(s.stop, n)
	if err != nil {
		return nil, err
	}
	step, err := sliceBound(s.step, 1)
	if err != nil {
		return nil, err
	}
	if step <= 0 || start < 0 || stop > n {
		return nil, fmt.Errorf("slice(%d, %d, %d) out of range for %d", start, stop, step, n)
	}
	var out []int
	for i := start; i < stop; i += step {
		out = append(out, i)
	}
	return out, nil
}

func sliceBound(v any, def int) (int, error) {
	switch t := v.(type) {
	case nil:
		return def, nil
	case int:
		return t, nil
	case int64:
		return int(t), nil
	default:
		return 0, fmt.Errorf("slice bound %T", v)
	}
}

type block struct {
	values any
	locs   any
}

type unpickleBlock struct{}

// Call handles pandas _unpickle_block(values, placement, ndim).
func (unpickleBlock) Call(args ...any) (any, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("_unpickle_block: %d arguments", len(args))
	}
	return &block{values: args[0], locs: args[1]}, nil
}

type blockManager struct {
	axes   []*pyIndex
	blocks []*block
}

type managerClass struct{}

func (managerClass) PyNew(...any) (any, error) {
	return &blockManager{}, nil
}

// PySetState reads (axes, block_values, block_items, extra) where extra
// holds {"0.14.1": {"axes": [...], "blocks": [{"values", "mgr_locs"}]}}.
func (m *blockManager) PySetState(state any) error {
	t, ok := state.(*types.Tuple)
	if !ok || t.Len() != 4 {
		return fmt.Errorf("BlockManager: unsupported state %s", describe(state))
	}
	extra, ok := t.Get(3).(*types.Dict)
	if !ok {
		return fmt.Errorf("BlockManager: extra state %s", describe(t.Get(3)))
	}
	v, ok := extra.Get("0.14.1")
	if !ok {
		return fmt.Errorf("BlockManager: missing 0.14.1 state")
	}
	d, ok := v.(*types.Dict)
	if !ok {
		return fmt.Errorf("BlockManager: state %s", describe(v))
	}

	axes, _ := d.Get("axes")
	axesSeq, ok := sequence(axes)
	if !ok {
		return fmt.Errorf("BlockManager: axes %s", describe(axes))
	}
	for _, ax := range axesSeq {
		idx, ok := ax.(*pyIndex)
		if !ok {
			return fmt.Errorf("BlockManager: axis %s is not supported", describe(ax))
		}
		m.axes = append(m.axes, idx)
	}

	blocks, _ := d.Get("blocks")
	blockSeq, ok := sequence(blocks)
	if !ok {
		return fmt.Errorf("BlockManager: blocks %s", describe(blocks))
	}
	for _, b := range blockSeq {
		switch t := b.(type) {
		case *block:
			m.blocks = append(m.blocks, t)
		case *types.Dict:
			values, _ := t.Get("values")
			locs, _ := t.Get("mgr_locs")
			m.blocks = append(m.blocks, &block{values: values, locs: locs})
		default:
			return fmt.Errorf("BlockManager: block %s", describe(b))
		}
	}
	return nil
}

type frame struct {
	mgr *blockManager
}

type frameClass struct{}

func (frameClass) PyNew(...any) (any, error) {
	return &frame{}, nil
}

// PySetState reads the NDFrame state dict.
func (f *frame) PySetState(state any) error {
	d, ok := state.(*types.Dict)
	if !ok {
		return fmt.Errorf("DataFrame: unsupported state %s", describe(state))
	}
	for _, key := range []string{"_mgr", "_data"} {
		v, ok := d.Get(key)
		if !ok {
			continue
		}
		mgr, ok := v.(*blockManager)
		if !ok {
			return fmt.Errorf("DataFrame: manager %s is not supported", describe(v))
		}
		f.mgr = mgr
		return nil
	}
	return fmt.Errorf("DataFrame: state without block manager")
}

type columnRef struct {
	arr  *ndarray
	item int
	n    int
}

// rows lays the blocks out as records. Blocks are (items, rows) arrays;
// mgr_locs maps each item to its column position.
func (f *frame) rows() ([]Row, error) {
	if f.mgr == nil || len(f.mgr.axes) != 2 {
		return nil, fmt.Errorf("DataFrame: expected two axes")
	}
	columns, index := f.mgr.axes[0], f.mgr.axes[1]
	if columns.values == nil && columns.length > 0 {
		return nil, fmt.Errorf("DataFrame: range column labels are not supported")
	}
	height := index.length

	refs := make([]*columnRef, columns.length)
	for bi, b := range f.mgr.blocks {
		arr, ok := b.values.(*ndarray)
		if !ok {
			return nil, fmt.Errorf("DataFrame block %d: values %s are not supported", bi, describe(b.values))
		}
		items, n := 1, 0
		switch len(arr.shape) {
		case 1:
			n = arr.shape[0]
		case 2:
			items, n = arr.shape[0], arr.shape[1]
		default:
			return nil, fmt.Errorf("DataFrame block %d: %d-dimensional values", bi, len(arr.shape))
		}
		if n != height {
			return nil, fmt.Errorf("DataFrame block %d: %d rows, index has %d", bi, n, height)
		}
		locs, err := locations(b.locs, columns.length)
		if err != nil {
			return nil, fmt.Errorf("DataFrame block %d: %w", bi, err)
		}
		if len(locs) != items {
			return nil, fmt.Errorf("DataFrame block %d: %d placements for %d items", bi, len(locs), items)
		}
		for i, loc := range locs {
			if loc < 0 || loc >= len(refs) {
				return nil, fmt.Errorf("DataFrame block %d: placement %d out of range", bi, loc)
			}
			refs[loc] = &columnRef{arr: arr, item: i, n: n}
		}
	}

	names := make([]string, len(refs))
	for c, ref := range refs {
		names[c] = label(columns.values[c])
		if ref == nil {
			return nil, fmt.Errorf("DataFrame: column %q has no block", names[c])
		}
	}

	rows := make([]Row, height)
	for r := range rows {
		row := make(Row, len(refs))
		for c, ref := range refs {
			row[names[c]] = ref.arr.at(ref.item*ref.n + r)
		}
		rows[r] = row
	}
	return rows, nil
}

func locations(v any, n int) ([]int, error) {
	switch t := v.(type) {
	case *pySlice:
		return t.positions(n)
	case *ndarray:
		out := make([]int, t.len())
		for i := range out {
			p, ok := t.at(i).(int64)
			if !ok {
				return nil, fmt.Errorf("placement of dtype %c", t.dtype.kind)
			}
			out[i] = int(p)
		}
		return out, nil
	default:
		seq, ok := sequence(v)
		if !ok {
			return nil, fmt.Errorf("placement %s", describe(v))
		}
		out := make([]int, len(seq))
		for i, x := range seq {
			p, ok := x.(int)
			if !ok {
				return nil, fmt.Errorf("placement %T", x)
			}
			out[i] = p
		}
		return out, nil
	}
}

func label(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// --- helpers ---

type latin1Encode struct{}

// Call handles _codecs.encode(str, "latin1"), the protocol 2 form of bytes.
func (latin1Encode) Call(args ...any) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("_codecs.encode: no arguments")
	}
	s, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("_codecs.encode: %T", args[0])
	}
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xff {
			return nil, fmt.Errorf("_codecs.encode: rune %U outside latin-1", r)
		}
		out = append(out, byte(r))
	}
	return out, nil
}

func bytesOf(v any) ([]byte, bool) {
	switch t := v.(type) {
	case []byte:
		return t, true
	case *types.ByteArray:
		return []byte(*t), true
	default:
		return nil, false
	}
}

func intTuple(v any) ([]int, error) {
	seq, ok := sequence(v)
	if !ok {
		return nil, fmt.Errorf("expected tuple, got %T", v)
	}
	out := make([]int, len(seq))
	for i, x := range seq {
		n, ok := x.(int)
		if !ok || n < 0 {
			return nil, fmt.Errorf("dimension %v", x)
		}
		out[i] = n
	}
	return out, nil
}

func describe(v any) string {
	switch t := v.(type) {
	case *types.GenericObject:
		return t.Class.Module + "." + t.Class.Name
	case *types.GenericClass:
		return t.Module + "." + t.Name
	default:
		return fmt.Sprintf("%T", v)
	}
}
