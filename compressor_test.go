package zarr_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/nimbuslabs/go-zarr"
	"github.com/stretchr/testify/require"
)

func roundTripCompressor(t *testing.T, c zarr.Compressor, payload []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := c.WrapWriter(&buf, 4)
	require.NoError(t, err)
	_, err = w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := c.WrapReader(&buf, 4)
	require.NoError(t, err)
	defer r.Close()
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	return got
}

func TestNoneCompressorRoundTrip(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	got := roundTripCompressor(t, zarr.NoneCompressor{}, payload)
	require.Equal(t, payload, got)
}

func TestZlibCompressorRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB, 0xCD, 0x01, 0x02}, 100)
	got := roundTripCompressor(t, zarr.ZlibCompressor{}, payload)
	require.Equal(t, payload, got)
}

func TestZstdCompressorRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte{9, 8, 7, 6}, 250)
	got := roundTripCompressor(t, zarr.ZstdCompressor{}, payload)
	require.Equal(t, payload, got)
}

func TestBloscCompressorRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte{1, 0, 0, 0}, 64)
	got := roundTripCompressor(t, zarr.BloscCompressor{Cname: "lz4", Clevel: 5}, payload)
	require.Equal(t, payload, got)
}

func TestCompressorJSONRoundTrip(t *testing.T) {
	for _, c := range []zarr.Compressor{
		zarr.NoneCompressor{},
		zarr.ZlibCompressor{Level: 6},
		zarr.ZstdCompressor{Level: 3},
		zarr.BloscCompressor{Cname: "zstd", Clevel: 4, Shuffle: 1},
	} {
		data, err := zarr.EncodeCompressorJSON(c)
		require.NoError(t, err)
		decoded, err := zarr.DecodeCompressorJSON(data)
		require.NoError(t, err)
		require.Equal(t, c.CompressorID(), decoded.CompressorID())
	}
}

func TestDecodeCompressorJSONNull(t *testing.T) {
	c, err := zarr.DecodeCompressorJSON([]byte("null"))
	require.NoError(t, err)
	require.Equal(t, "", c.CompressorID())
}

func TestDecodeCompressorJSONUnknown(t *testing.T) {
	_, err := zarr.DecodeCompressorJSON([]byte(`{"id":"snappy"}`))
	require.Error(t, err)
	var unknown *zarr.UnknownCompressorError
	require.ErrorAs(t, err, &unknown)
}
