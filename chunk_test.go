package zarr_test

import (
	"testing"

	"github.com/nimbuslabs/go-zarr"
	"github.com/stretchr/testify/require"
)

func TestChunkSetGet(t *testing.T) {
	dt, err := zarr.ParseTypestr("<i4")
	require.NoError(t, err)
	c, err := zarr.NewChunk(dt, []int{2, 2}, []int{2, 2}, 'C', zarr.NoFill)
	require.NoError(t, err)

	require.NoError(t, c.Set([]int{0, 0}, 1))
	require.NoError(t, c.Set([]int{0, 1}, 2))
	require.NoError(t, c.Set([]int{1, 0}, 3))
	require.NoError(t, c.Set([]int{1, 1}, 4))

	v, err := c.Get([]int{1, 0})
	require.NoError(t, err)
	require.Equal(t, int32(3), v)
}

func TestChunkFillValue(t *testing.T) {
	dt, err := zarr.ParseTypestr("<f4")
	require.NoError(t, err)
	c, err := zarr.NewChunk(dt, []int{3}, []int{3}, 'C', zarr.Fill(float32(9.5)))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		v, err := c.Get([]int{i})
		require.NoError(t, err)
		require.InDelta(t, 9.5, v, 1e-6)
	}
}

func TestChunkLogicalElementsRagged(t *testing.T) {
	dt, err := zarr.ParseTypestr("<i4")
	require.NoError(t, err)
	// declared chunk 4, but only the first 3 are logically meaningful (a ragged
	// trailing chunk along this axis).
	c, err := zarr.NewChunk(dt, []int{4}, []int{3}, 'C', zarr.Fill(0))
	require.NoError(t, err)
	require.NoError(t, c.SetLogicalElements([]any{10, 20, 30}))

	elems, err := c.LogicalElements()
	require.NoError(t, err)
	require.Equal(t, []any{int32(10), int32(20), int32(30)}, elems)
}

func TestChunkFold(t *testing.T) {
	dt, err := zarr.ParseTypestr("<i4")
	require.NoError(t, err)
	c, err := zarr.NewChunk(dt, []int{3}, []int{3}, 'C', zarr.NoFill)
	require.NoError(t, err)
	require.NoError(t, c.SetLogicalElements([]any{1, 2, 3}))

	sum, err := c.FoldLeft(0, func(acc, v any) any { return acc.(int) + int(v.(int32)) })
	require.NoError(t, err)
	require.Equal(t, 6, sum)

	var order []int32
	_, err = c.FoldRight(nil, func(v, acc any) any {
		order = append(order, v.(int32))
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []int32{3, 2, 1}, order)
}

func TestChunkFromBytesRejectsWrongSize(t *testing.T) {
	dt, err := zarr.ParseTypestr("<i4")
	require.NoError(t, err)
	_, err = zarr.ChunkFromBytes(dt, []int{4}, []int{4}, 'C', []byte{1, 2, 3})
	require.Error(t, err)
	var corrupt *zarr.ChunkCorruptError
	require.ErrorAs(t, err, &corrupt)
}
