package zarr_test

import (
	"testing"

	"github.com/nimbuslabs/go-zarr"
	"github.com/stretchr/testify/require"
)

func TestNewShapeValidation(t *testing.T) {
	_, err := zarr.NewShape([]int{10, 10}, []int{5})
	require.Error(t, err)

	_, err = zarr.NewShape([]int{10}, []int{0})
	require.Error(t, err)

	_, err = zarr.NewShape([]int{10}, []int{20})
	require.Error(t, err)

	shp, err := zarr.NewShape([]int{10, 10}, []int{4, 4})
	require.NoError(t, err)
	require.Equal(t, 2, shp.Rank())
	require.Equal(t, []int{10, 10}, shp.Sizes())
	require.Equal(t, []int{4, 4}, shp.Chunks())
}

func TestGridShapeRagged(t *testing.T) {
	shp, err := zarr.NewShape([]int{10}, []int{4})
	require.NoError(t, err)
	require.Equal(t, []int{3}, shp.GridShape())
	require.Equal(t, 3, shp.ChunkCount())

	start, size := shp.ChunkBounds([]int{2})
	require.Equal(t, []int{8}, start)
	require.Equal(t, []int{2}, size) // last chunk is logically short
}

func TestChunkKey(t *testing.T) {
	require.Equal(t, "0", zarr.ChunkKey(nil))
	require.Equal(t, "0", zarr.ChunkKey([]int{0}))
	require.Equal(t, "3", zarr.ChunkKey([]int{3}))
	require.Equal(t, "1.4", zarr.ChunkKey([]int{1, 4}))
	require.Equal(t, "0.0.2", zarr.ChunkKey([]int{0, 0, 2}))
}

func TestChunkCoordsRoundTrip(t *testing.T) {
	grid := []int{3, 4, 2}
	strides := zarr.GridStrides(grid)
	for linear := 0; linear < 3*4*2; linear++ {
		coords := zarr.ChunkCoords(linear, grid, strides)
		require.Equal(t, linear, zarr.LinearChunkIndex(coords, strides))
	}
}

func TestElementStridesOrder(t *testing.T) {
	shape := []int{2, 3}
	c := zarr.ElementStrides(shape, 'C')
	require.Equal(t, []int{3, 1}, c)

	f := zarr.ElementStrides(shape, 'F')
	require.Equal(t, []int{1, 2}, f)
}

func TestElementCountRank0(t *testing.T) {
	require.Equal(t, 1, zarr.ElementCount(nil))
	require.Equal(t, 6, zarr.ElementCount([]int{2, 3}))
}
