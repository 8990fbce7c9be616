package zarr_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nimbuslabs/go-zarr"
	"github.com/stretchr/testify/require"

	_ "gocloud.dev/blob/fileblob"
)

// S5: group of two arrays.
func TestGroup_TwoArraysRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := zarr.OpenBucketStore(ctx, "file://"+filepath.ToSlash(dir))
	require.NoError(t, err)
	defer store.Close()

	f32, err := zarr.ParseTypestr("<f4")
	require.NoError(t, err)
	u8, err := zarr.ParseTypestr("|u1")
	require.NoError(t, err)

	temp, err := zarr.NewArrayFromElements([]int{4}, f32, []any{float32(20.1), float32(20.2), float32(20.3), float32(20.4)})
	require.NoError(t, err)
	mask, err := zarr.NewArrayFromElements([]int{4}, u8, []any{uint8(1), uint8(0), uint8(1), uint8(1)})
	require.NoError(t, err)

	g := zarr.NewGroup(nil)
	g.SetArray("temp", temp)
	g.SetArray("mask", mask)

	require.NoError(t, g.Save(ctx, store, "dir"))

	for _, p := range []string{"dir/.zgroup", "dir/temp/.zarray", "dir/temp/0", "dir/mask/.zarray", "dir/mask/0"} {
		ok, err := store.Exists(ctx, p)
		require.NoError(t, err)
		require.True(t, ok, "expected %s to exist", p)
	}

	loaded, err := zarr.LoadGroup(ctx, store, "dir")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"temp", "mask"}, loaded.Names())

	for i, want := range []float32{20.1, 20.2, 20.3, 20.4} {
		v, err := loaded.Array("temp").Get(ctx, []int{i})
		require.NoError(t, err)
		require.InDelta(t, want, v, 1e-6)
	}
	for i, want := range []uint8{1, 0, 1, 1} {
		v, err := loaded.Array("mask").Get(ctx, []int{i})
		require.NoError(t, err)
		require.Equal(t, want, v)
	}
}

func TestGroup_NestedGroups(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := zarr.OpenBucketStore(ctx, "file://"+filepath.ToSlash(dir))
	require.NoError(t, err)
	defer store.Close()

	dt, _ := zarr.ParseTypestr("<i4")
	leaf, err := zarr.NewArrayFromElements([]int{2}, dt, []any{1, 2})
	require.NoError(t, err)

	inner := zarr.NewGroup(zarr.Attrs{"level": "inner"})
	inner.SetArray("values", leaf)

	outer := zarr.NewGroup(nil)
	outer.SetGroup("child", inner)

	require.NoError(t, outer.Save(ctx, store, "root"))

	loaded, err := zarr.LoadGroup(ctx, store, "root")
	require.NoError(t, err)
	childGroup := loaded.Group("child")
	require.NotNil(t, childGroup)
	require.Equal(t, "inner", childGroup.AttrsData["level"])

	v, err := childGroup.Array("values").Get(ctx, []int{1})
	require.NoError(t, err)
	require.Equal(t, int32(2), v)
}

func TestGroup_MissingChild(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := zarr.OpenBucketStore(ctx, "file://"+filepath.ToSlash(dir))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Write(ctx, "bad/.zgroup", []byte(`{"zarr_format":2}`)))
	require.NoError(t, store.Write(ctx, "bad/orphan/marker.txt", []byte("not a zarr node")))

	_, err = zarr.LoadGroup(ctx, store, "bad")
	require.Error(t, err)
	var missing *zarr.MissingChildError
	require.ErrorAs(t, err, &missing)
}
