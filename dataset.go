package zarr

import (
	"context"
	"fmt"
	"io"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// Dataset reads an Array in row-major batches along its first axis and
// hands each batch back as a *tensors.Tensor, generalizing the teacher's
// zarr.Dataset off its three hardcoded dtypes and two hardcoded compressors
// onto the full DataType/Compressor/Filter machinery. Bool, integer and
// float dtypes are supported; NextBatch rejects complex, fixed-length and
// structured dtypes.
type Dataset struct {
	arr          *Array
	CurrentIndex int
}

// NewDataset opens the array at dir on store and prepares it for batched
// reading.
func NewDataset(ctx context.Context, store PathStore, dir string) (*Dataset, error) {
	arr, err := LoadArray(ctx, store, dir)
	if err != nil {
		return nil, err
	}
	if arr.Shape().Rank() < 1 {
		return nil, fmt.Errorf("zarr: dataset requires an array of rank >= 1, got rank 0")
	}
	return &Dataset{arr: arr}, nil
}

// NextBatch reads the next batchSize rows along the first axis and returns
// them as a tensor of shape [actualBatchSize, shape[1:]...]. actualBatchSize
// is clamped to what remains. Returns io.EOF once the array is exhausted.
func (d *Dataset) NextBatch(ctx context.Context, batchSize int) (*tensors.Tensor, error) {
	sizes := d.arr.Shape().Sizes()
	if d.CurrentIndex >= sizes[0] {
		return nil, io.EOF
	}

	start := d.CurrentIndex
	end := start + batchSize
	if end > sizes[0] {
		end = sizes[0]
	}
	actual := end - start

	batchShape := make([]int, len(sizes))
	batchShape[0] = actual
	copy(batchShape[1:], sizes[1:])

	regionStart := make([]int, len(sizes))
	regionStart[0] = start

	elems, err := d.arr.ReadRegion(ctx, regionStart, batchShape)
	if err != nil {
		return nil, err
	}

	tensor, err := elementsToTensor(d.arr.Meta.DType, elems, batchShape)
	if err != nil {
		return nil, err
	}

	d.CurrentIndex = end
	return tensor, nil
}

// Reset rewinds the dataset to the first row.
func (d *Dataset) Reset() { d.CurrentIndex = 0 }

// Len returns the number of rows along the first axis.
func (d *Dataset) Len() int { return d.arr.Shape().Sizes()[0] }

func elementsToTensor(dtype *DataType, elems []any, shape []int) (*tensors.Tensor, error) {
	switch dtype.Kind {
	case KindFloat32, KindFloat16:
		out := make([]float32, len(elems))
		for i, v := range elems {
			f, err := asFloat64(v)
			if err != nil {
				return nil, err
			}
			out[i] = float32(f)
		}
		return tensors.FromFlatDataAndDimensions(out, shape...), nil
	case KindFloat64:
		out := make([]float64, len(elems))
		for i, v := range elems {
			f, err := asFloat64(v)
			if err != nil {
				return nil, err
			}
			out[i] = f
		}
		return tensors.FromFlatDataAndDimensions(out, shape...), nil
	case KindInt8, KindInt16, KindInt32:
		out := make([]int32, len(elems))
		for i, v := range elems {
			n, err := asInt64(v)
			if err != nil {
				return nil, err
			}
			out[i] = int32(n)
		}
		return tensors.FromFlatDataAndDimensions(out, shape...), nil
	case KindInt64:
		out := make([]int64, len(elems))
		for i, v := range elems {
			n, err := asInt64(v)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return tensors.FromFlatDataAndDimensions(out, shape...), nil
	case KindUint8, KindBool:
		out := make([]uint8, len(elems))
		for i, v := range elems {
			switch b := v.(type) {
			case bool:
				if b {
					out[i] = 1
				}
			default:
				n, err := asUint64(v)
				if err != nil {
					return nil, err
				}
				out[i] = uint8(n)
			}
		}
		return tensors.FromFlatDataAndDimensions(out, shape...), nil
	case KindUint16, KindUint32:
		out := make([]uint32, len(elems))
		for i, v := range elems {
			n, err := asUint64(v)
			if err != nil {
				return nil, err
			}
			out[i] = uint32(n)
		}
		return tensors.FromFlatDataAndDimensions(out, shape...), nil
	case KindUint64:
		out := make([]uint64, len(elems))
		for i, v := range elems {
			n, err := asUint64(v)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return tensors.FromFlatDataAndDimensions(out, shape...), nil
	default:
		return nil, fmt.Errorf("zarr: dataset does not support dtype kind %d", dtype.Kind)
	}
}
