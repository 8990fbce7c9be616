package zarr

import "fmt"

// Chunk is an in-memory N-D tile of elements: a full dtype.size * prod(chunk
// shape) byte buffer, of which only the LogicalShape sub-box (the last chunk
// along any axis may be logically shorter) is meaningful data. Positions
// outside LogicalShape hold the array's fill value.
type Chunk struct {
	DType        *DataType
	ChunkShape   []int
	LogicalShape []int
	Order        byte
	Data         []byte
}

// NewChunk allocates a chunk buffer of the declared chunk shape, pre-filled
// with fill's encoded bytes (or left zeroed when fill is NoFill).
func NewChunk(dtype *DataType, chunkShape, logicalShape []int, order byte, fill FillValue) (*Chunk, error) {
	esz := dtype.Size()
	data := make([]byte, esz*ElementCount(chunkShape))
	if fill.Valid {
		fillBuf := make([]byte, esz)
		if err := dtype.Encode(fillBuf, fill.Value); err != nil {
			return nil, fmt.Errorf("zarr: encoding fill value: %w", err)
		}
		for off := 0; off < len(data); off += esz {
			copy(data[off:off+esz], fillBuf)
		}
	}
	return &Chunk{DType: dtype, ChunkShape: chunkShape, LogicalShape: logicalShape, Order: order, Data: data}, nil
}

// ChunkFromBytes wraps an already-decoded, full chunk-shape byte buffer
// (such as one just read off a PathStore and decompressed).
func ChunkFromBytes(dtype *DataType, chunkShape, logicalShape []int, order byte, data []byte) (*Chunk, error) {
	want := dtype.Size() * ElementCount(chunkShape)
	if len(data) != want {
		return nil, &ChunkCorruptError{Cause: fmt.Errorf("payload is %d bytes, want %d", len(data), want)}
	}
	return &Chunk{DType: dtype, ChunkShape: chunkShape, LogicalShape: logicalShape, Order: order, Data: data}, nil
}

func (c *Chunk) offset(coord []int) int {
	strides := ElementStrides(c.ChunkShape, c.Order)
	idx := 0
	for i, v := range coord {
		idx += v * strides[i]
	}
	return idx * c.DType.Size()
}

// Set encodes v at the given coordinate within the chunk's full (declared)
// shape.
func (c *Chunk) Set(coord []int, v any) error {
	esz := c.DType.Size()
	off := c.offset(coord)
	return c.DType.Encode(c.Data[off:off+esz], v)
}

// Get decodes the element at the given coordinate within the chunk's full
// (declared) shape.
func (c *Chunk) Get(coord []int) (any, error) {
	esz := c.DType.Size()
	off := c.offset(coord)
	return c.DType.Decode(c.Data[off : off+esz])
}

// SetLogicalElements writes elements, given in the chunk's traversal order
// over LogicalShape, into their corresponding positions in the full chunk
// buffer.
func (c *Chunk) SetLogicalElements(elements []any) error {
	n := ElementCount(c.LogicalShape)
	if len(elements) != n {
		return fmt.Errorf("zarr: chunk expects %d logical elements, got %d", n, len(elements))
	}
	i := 0
	var err error
	iterateShape(c.LogicalShape, c.Order, func(coord []int) {
		if err != nil {
			return
		}
		err = c.Set(coord, elements[i])
		i++
	})
	return err
}

// LogicalElements decodes every element within LogicalShape, in the chunk's
// traversal order.
func (c *Chunk) LogicalElements() ([]any, error) {
	n := ElementCount(c.LogicalShape)
	out := make([]any, 0, n)
	var err error
	iterateShape(c.LogicalShape, c.Order, func(coord []int) {
		if err != nil {
			return
		}
		v, e := c.Get(coord)
		if e != nil {
			err = e
			return
		}
		out = append(out, v)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FoldLeft folds over the chunk's logical elements, left to right.
func (c *Chunk) FoldLeft(init any, f func(acc, v any) any) (any, error) {
	elems, err := c.LogicalElements()
	if err != nil {
		return nil, err
	}
	acc := init
	for _, v := range elems {
		acc = f(acc, v)
	}
	return acc, nil
}

// FoldRight folds over the chunk's logical elements, right to left.
func (c *Chunk) FoldRight(init any, f func(v, acc any) any) (any, error) {
	elems, err := c.LogicalElements()
	if err != nil {
		return nil, err
	}
	acc := init
	for i := len(elems) - 1; i >= 0; i-- {
		acc = f(elems[i], acc)
	}
	return acc, nil
}
