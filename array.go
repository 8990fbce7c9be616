package zarr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
)

// DefaultTargetChunkBytes bounds the size of an automatically derived chunk
// shape, per spec.md §4.6.
const DefaultTargetChunkBytes = 32 * 1024 * 1024

// Array is a logical N-D array: metadata, a grid of chunks, and optional
// attributes. Chunks are materialized lazily and cached, whether the array
// was built in memory via NewArrayFromElements or loaded from a PathStore.
type Array struct {
	Meta      *Metadata
	AttrsData Attrs

	shape *Shape
	grid  []int

	chunks map[string]*Chunk

	store PathStore
	dir   string
}

type arrayOptions struct {
	chunkShape []int
	compressor Compressor
	order      byte
	fill       FillValue
	attrs      Attrs
	filters    []Filter
}

// ArrayOption configures NewArrayFromElements.
type ArrayOption func(*arrayOptions)

// WithChunkShape overrides the automatically derived chunk shape.
func WithChunkShape(chunkShape []int) ArrayOption {
	return func(o *arrayOptions) { o.chunkShape = chunkShape }
}

// WithCompressor sets the array's compressor. If omitted,
// NewArrayFromElements resolves it from activeDefaults (see SetDefaults).
func WithCompressor(c Compressor) ArrayOption {
	return func(o *arrayOptions) { o.compressor = c }
}

// WithOrder sets the in-chunk traversal order, 'C' or 'F'. If omitted,
// NewArrayFromElements resolves it from activeDefaults (see SetDefaults).
func WithOrder(order byte) ArrayOption {
	return func(o *arrayOptions) { o.order = order }
}

// WithFillValue sets the array's fill value (default NoFill).
func WithFillValue(fill FillValue) ArrayOption {
	return func(o *arrayOptions) { o.fill = fill }
}

// WithAttrs attaches a .zattrs sidecar.
func WithAttrs(attrs Attrs) ArrayOption {
	return func(o *arrayOptions) { o.attrs = attrs }
}

// WithFilters sets the array's filter pipeline, applied in order on write
// and reversed on read.
func WithFilters(filters []Filter) ArrayOption {
	return func(o *arrayOptions) { o.filters = filters }
}

// DefaultChunkShape derives a chunk shape that chunks along the first axis
// only, such that chunk_bytes <= targetBytes, per spec.md §4.6.
func DefaultChunkShape(shape []int, dtype *DataType, targetBytes int) []int {
	n := len(shape)
	chunkShape := make([]int, n)
	if n == 0 {
		return chunkShape
	}
	rowElems := 1
	for i := 1; i < n; i++ {
		rowElems *= shape[i]
	}
	rowBytes := rowElems * dtype.Size()

	rowsPerChunk := shape[0]
	if rowBytes > 0 {
		rowsPerChunk = targetBytes / rowBytes
		if rowsPerChunk < 1 {
			rowsPerChunk = 1
		}
	}
	if shape[0] > 0 && rowsPerChunk > shape[0] {
		rowsPerChunk = shape[0]
	}
	if shape[0] == 0 {
		rowsPerChunk = 1
	}
	chunkShape[0] = rowsPerChunk
	for i := 1; i < n; i++ {
		if shape[i] == 0 {
			chunkShape[i] = 1
		} else {
			chunkShape[i] = shape[i]
		}
	}
	return chunkShape
}

func newArray(shape, chunkShape []int, dtype *DataType, order byte, compressor Compressor, fill FillValue, filters []Filter, attrs Attrs) (*Array, error) {
	if order != 'C' && order != 'F' {
		return nil, fmt.Errorf("zarr: order must be 'C' or 'F', got %q", order)
	}
	shp, err := NewShape(shape, chunkShape)
	if err != nil {
		return nil, err
	}
	if compressor == nil {
		compressor = NoneCompressor{}
	}
	meta := &Metadata{
		ZarrFormat: 2,
		Shape:      shape,
		Chunks:     chunkShape,
		DType:      dtype,
		Compressor: compressor,
		Order:      order,
		FillValue:  fill,
		Filters:    filters,
	}
	return &Array{
		Meta:      meta,
		AttrsData: attrs,
		shape:     shp,
		grid:      shp.GridShape(),
		chunks:    map[string]*Chunk{},
	}, nil
}

// NewArrayFromElements builds an in-memory Array from a flat, row-major
// ("C" order) slice of elements, per spec.md §4.6.
func NewArrayFromElements(shape []int, dtype *DataType, elements []any, opts ...ArrayOption) (*Array, error) {
	var o arrayOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.order == 0 {
		order, err := activeDefaults.OrderByte()
		if err != nil {
			return nil, err
		}
		o.order = order
	}
	if o.compressor == nil {
		compressor, err := activeDefaults.CompressorValue()
		if err != nil {
			return nil, err
		}
		o.compressor = compressor
	}
	chunkShape := o.chunkShape
	if chunkShape == nil {
		target := activeDefaults.TargetChunkBytes
		if target <= 0 {
			target = DefaultTargetChunkBytes
		}
		chunkShape = DefaultChunkShape(shape, dtype, target)
	}

	a, err := newArray(shape, chunkShape, dtype, o.order, o.compressor, o.fill, o.filters, o.attrs)
	if err != nil {
		return nil, err
	}

	want := ElementCount(shape)
	if len(elements) != want {
		return nil, fmt.Errorf("zarr: expected %d elements for shape %v, got %d", want, shape, len(elements))
	}

	i := 0
	var setErr error
	iterateShape(shape, 'C', func(coord []int) {
		if setErr != nil {
			return
		}
		setErr = a.setElement(context.Background(), coord, elements[i])
		i++
	})
	if setErr != nil {
		return nil, setErr
	}
	return a, nil
}

// Shape returns the array's shape.
func (a *Array) Shape() *Shape { return a.shape }

// ChunkRanges returns the chunk-grid shape: ceil(shape[i]/chunk[i]) per axis.
func (a *Array) ChunkRanges() []int { return a.grid }

func (a *Array) chunkCoordsAndRel(idx []int) (coords, rel []int, err error) {
	sizes := a.shape.Sizes()
	if len(idx) != len(sizes) {
		return nil, nil, &IndexOutOfBoundsError{Index: idx, Shape: sizes}
	}
	for i, v := range idx {
		if v < 0 || v >= sizes[i] {
			return nil, nil, &IndexOutOfBoundsError{Index: idx, Shape: sizes}
		}
	}
	coords = make([]int, len(idx))
	rel = make([]int, len(idx))
	for i, v := range idx {
		chunkSize := a.Meta.Chunks[i]
		coords[i] = v / chunkSize
		rel[i] = v % chunkSize
	}
	return coords, rel, nil
}

// Get returns the element at the given N-D index.
func (a *Array) Get(ctx context.Context, idx []int) (any, error) {
	coords, rel, err := a.chunkCoordsAndRel(idx)
	if err != nil {
		return nil, err
	}
	chunk, err := a.chunkAt(ctx, coords)
	if err != nil {
		return nil, err
	}
	return chunk.Get(rel)
}

func (a *Array) setElement(ctx context.Context, idx []int, v any) error {
	coords, rel, err := a.chunkCoordsAndRel(idx)
	if err != nil {
		return err
	}
	chunk, err := a.chunkAt(ctx, coords)
	if err != nil {
		return err
	}
	return chunk.Set(rel, v)
}

// chunkAt returns the chunk at the given chunk-grid coordinates, fetching
// and decoding it from the backing store on first access (or synthesizing a
// fill-value chunk when the store has no file for it, or when the array is
// purely in-memory and this chunk was never touched), and caching the
// result.
func (a *Array) chunkAt(ctx context.Context, coords []int) (*Chunk, error) {
	key := ChunkKey(coords)

	if c, ok := a.chunks[key]; ok {
		return c, nil
	}

	_, logicalSize := a.shape.ChunkBounds(coords)

	if a.store == nil {
		c, err := NewChunk(a.Meta.DType, a.Meta.Chunks, logicalSize, a.Meta.Order, a.Meta.FillValue)
		if err != nil {
			return nil, err
		}
		a.chunks[key] = c
		return c, nil
	}

	p := JoinPath(a.dir, key)
	reader, err := a.store.OpenRead(ctx, p)
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			c, ferr := NewChunk(a.Meta.DType, a.Meta.Chunks, logicalSize, a.Meta.Order, a.Meta.FillValue)
			if ferr != nil {
				return nil, ferr
			}
			a.chunks[key] = c
			return c, nil
		}
		return nil, err
	}
	defer reader.Close()

	wrapped, err := a.Meta.Compressor.WrapReader(reader, a.Meta.DType.Size())
	if err != nil {
		return nil, err
	}
	defer wrapped.Close()

	buf, err := io.ReadAll(wrapped)
	if err != nil {
		return nil, &IOFailureError{Path: p, Cause: err}
	}

	chunk, err := decodeChunkPayload(buf, a.Meta.DType, a.Meta.Chunks, logicalSize, a.Meta.Order, a.Meta.Filters)
	if err != nil {
		var cc *ChunkCorruptError
		if errors.As(err, &cc) {
			cc.Key = key
		}
		return nil, err
	}
	a.chunks[key] = chunk
	return chunk, nil
}

// FoldLeft folds over every element of the array, in canonical order
// (chunk-major, then in-chunk order).
func (a *Array) FoldLeft(ctx context.Context, init any, f func(acc, v any) any) (any, error) {
	strides := GridStrides(a.grid)
	count := a.shape.ChunkCount()
	acc := init
	for k := 0; k < count; k++ {
		coords := ChunkCoords(k, a.grid, strides)
		chunk, err := a.chunkAt(ctx, coords)
		if err != nil {
			return nil, err
		}
		acc, err = chunk.FoldLeft(acc, f)
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// FoldRight folds over every element of the array, in reverse canonical
// order.
func (a *Array) FoldRight(ctx context.Context, init any, f func(v, acc any) any) (any, error) {
	strides := GridStrides(a.grid)
	count := a.shape.ChunkCount()
	acc := init
	for k := count - 1; k >= 0; k-- {
		coords := ChunkCoords(k, a.grid, strides)
		chunk, err := a.chunkAt(ctx, coords)
		if err != nil {
			return nil, err
		}
		acc, err = chunk.FoldRight(acc, f)
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// ReadRegion reads an N-dimensional sub-region of the array into a flat,
// row-major slice.
func (a *Array) ReadRegion(ctx context.Context, start, regionShape []int) ([]any, error) {
	sizes := a.shape.Sizes()
	if len(start) != len(sizes) || len(regionShape) != len(sizes) {
		return nil, fmt.Errorf("zarr: start and shape must match array rank %d", len(sizes))
	}
	for i := range sizes {
		if start[i] < 0 || regionShape[i] <= 0 || start[i]+regionShape[i] > sizes[i] {
			return nil, &IndexOutOfBoundsError{Index: append(append([]int{}, start...), regionShape...), Shape: sizes}
		}
	}

	out := make([]any, ElementCount(regionShape))
	i := 0
	var err error
	iterateShape(regionShape, 'C', func(rel []int) {
		if err != nil {
			return
		}
		global := make([]int, len(rel))
		for j, r := range rel {
			global[j] = start[j] + r
		}
		var v any
		v, err = a.Get(ctx, global)
		out[i] = v
		i++
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Save persists the array into dir on store: .zarray, optional .zattrs, and
// one compressed chunk file per grid cell, per spec.md §4.8.
func (a *Array) Save(ctx context.Context, store PathStore, dir string) error {
	if err := store.MkdirAll(ctx, dir); err != nil {
		return err
	}

	metaJSON, err := a.Meta.MarshalJSON()
	if err != nil {
		return err
	}
	if err := store.Write(ctx, JoinPath(dir, ".zarray"), metaJSON); err != nil {
		return err
	}

	if len(a.AttrsData) > 0 {
		attrsJSON, err := a.AttrsData.MarshalJSON()
		if err != nil {
			return err
		}
		if err := store.Write(ctx, JoinPath(dir, ".zattrs"), attrsJSON); err != nil {
			return err
		}
	}

	strides := GridStrides(a.grid)
	count := a.shape.ChunkCount()
	for k := 0; k < count; k++ {
		coords := ChunkCoords(k, a.grid, strides)
		chunk, err := a.chunkAt(ctx, coords)
		if err != nil {
			return err
		}
		if err := a.writeChunk(ctx, store, dir, coords, chunk); err != nil {
			return err
		}
	}

	a.store = store
	a.dir = dir
	return nil
}

func (a *Array) writeChunk(ctx context.Context, store PathStore, dir string, coords []int, chunk *Chunk) error {
	key := ChunkKey(coords)
	payload, err := encodeChunkPayload(chunk, a.Meta.Filters)
	if err != nil {
		return err
	}

	p := JoinPath(dir, key)
	w, err := store.OpenWrite(ctx, p)
	if err != nil {
		return err
	}
	wrapped, err := a.Meta.Compressor.WrapWriter(w, a.Meta.DType.Size())
	if err != nil {
		w.Close()
		return err
	}
	if _, err := wrapped.Write(payload); err != nil {
		wrapped.Close()
		w.Close()
		return &IOFailureError{Path: p, Cause: err}
	}
	if err := wrapped.Close(); err != nil {
		w.Close()
		return &IOFailureError{Path: p, Cause: err}
	}
	if err := w.Close(); err != nil {
		return &IOFailureError{Path: p, Cause: err}
	}
	return nil
}

// LoadArray reads .zarray (and, if present, .zattrs) from dir on store and
// returns an Array backed by it; chunks are fetched lazily on first access.
func LoadArray(ctx context.Context, store PathStore, dir string) (*Array, error) {
	metaBytes, err := store.Read(ctx, JoinPath(dir, ".zarray"))
	if err != nil {
		return nil, err
	}
	meta, err := LoadMetadata(bytes.NewReader(metaBytes))
	if err != nil {
		return nil, err
	}
	shp, err := NewShape(meta.Shape, meta.Chunks)
	if err != nil {
		return nil, err
	}

	var attrs Attrs
	attrsBytes, err := store.Read(ctx, JoinPath(dir, ".zattrs"))
	if err == nil {
		attrs, err = LoadAttrs(bytes.NewReader(attrsBytes))
		if err != nil {
			return nil, err
		}
	} else {
		var nf *NotFoundError
		if !errors.As(err, &nf) {
			return nil, err
		}
	}

	return &Array{
		Meta:      meta,
		AttrsData: attrs,
		shape:     shp,
		grid:      shp.GridShape(),
		chunks:    map[string]*Chunk{},
		store:     store,
		dir:       dir,
	}, nil
}

// encodeChunkPayload decodes every element across the chunk's full
// (declared) shape, applies the filter pipeline forward, and re-encodes the
// result into the on-wire byte buffer the compressor will consume.
func encodeChunkPayload(chunk *Chunk, filters []Filter) ([]byte, error) {
	total := ElementCount(chunk.ChunkShape)
	elems := make([]any, 0, total)
	var err error
	iterateShape(chunk.ChunkShape, chunk.Order, func(coord []int) {
		if err != nil {
			return
		}
		var v any
		v, err = chunk.Get(coord)
		elems = append(elems, v)
	})
	if err != nil {
		return nil, err
	}

	for _, f := range filters {
		elems, err = f.Encode(elems, chunk.DType)
		if err != nil {
			return nil, err
		}
	}

	esz := chunk.DType.Size()
	buf := make([]byte, esz*len(elems))
	for i, v := range elems {
		if err := chunk.DType.Encode(buf[i*esz:(i+1)*esz], v); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// decodeChunkPayload is the inverse of encodeChunkPayload: it decodes the
// on-wire byte buffer into elements, reverses the filter pipeline, and
// re-encodes the logical values into a fresh Chunk.
func decodeChunkPayload(buf []byte, dtype *DataType, chunkShape, logicalShape []int, order byte, filters []Filter) (*Chunk, error) {
	esz := dtype.Size()
	n := ElementCount(chunkShape)
	if len(buf) != esz*n {
		return nil, &ChunkCorruptError{Cause: fmt.Errorf("payload is %d bytes, want %d", len(buf), esz*n)}
	}

	elems := make([]any, n)
	for i := range elems {
		v, err := dtype.Decode(buf[i*esz : (i+1)*esz])
		if err != nil {
			return nil, &ChunkCorruptError{Cause: err}
		}
		elems[i] = v
	}

	for i := len(filters) - 1; i >= 0; i-- {
		var err error
		elems, err = filters[i].Decode(elems, dtype)
		if err != nil {
			return nil, &ChunkCorruptError{Cause: err}
		}
	}

	chunk, err := NewChunk(dtype, chunkShape, logicalShape, order, NoFill)
	if err != nil {
		return nil, err
	}
	idx := 0
	var setErr error
	iterateShape(chunkShape, order, func(coord []int) {
		if setErr != nil {
			return
		}
		setErr = chunk.Set(coord, elems[idx])
		idx++
	})
	if setErr != nil {
		return nil, &ChunkCorruptError{Cause: setErr}
	}
	return chunk, nil
}
