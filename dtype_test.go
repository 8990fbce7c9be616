package zarr_test

import (
	"testing"

	"github.com/nimbuslabs/go-zarr"
	"github.com/stretchr/testify/require"
)

func TestParseTypestr(t *testing.T) {
	tests := []struct {
		input      string
		wantKind   zarr.Kind
		wantSize   int
		wantErr    bool
		wantFixLen int
	}{
		{input: "<f4", wantKind: zarr.KindFloat32, wantSize: 4},
		{input: "<i8", wantKind: zarr.KindInt64, wantSize: 8},
		{input: "|u1", wantKind: zarr.KindUint8, wantSize: 1},
		{input: "|b1", wantKind: zarr.KindBool, wantSize: 1},
		{input: ">f8", wantKind: zarr.KindFloat64, wantSize: 8},
		{input: "|S10", wantKind: zarr.KindFixedBytes, wantSize: 10, wantFixLen: 10},
		{input: "<U5", wantKind: zarr.KindFixedUnicode, wantSize: 20, wantFixLen: 5},
		{input: "<f2", wantKind: zarr.KindFloat16, wantSize: 2},
		{input: "x2", wantErr: true},
		{input: "<x4", wantErr: true},
		{input: "<i", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			dt, err := zarr.ParseTypestr(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantKind, dt.Kind)
			require.Equal(t, tt.wantSize, dt.Size())
			if tt.wantFixLen != 0 {
				require.Equal(t, tt.wantFixLen, dt.FixedLen)
			}
		})
	}
}

func TestTypestrRoundTrip(t *testing.T) {
	for _, ts := range []string{"<f4", "<f8", "<i4", "<i8", ">u2", "|u1", "|b1", "|S8", "<U4"} {
		dt, err := zarr.ParseTypestr(ts)
		require.NoError(t, err)
		got, err := dt.Typestr()
		require.NoError(t, err)
		require.Equal(t, ts, got)
	}
}

func TestDataTypeEncodeDecode(t *testing.T) {
	dt, err := zarr.ParseTypestr("<f8")
	require.NoError(t, err)
	buf := make([]byte, dt.Size())
	require.NoError(t, dt.Encode(buf, 3.5))
	v, err := dt.Decode(buf)
	require.NoError(t, err)
	require.Equal(t, 3.5, v)
}

func TestDataTypeEncodeDecodeInt(t *testing.T) {
	dt, err := zarr.ParseTypestr(">i4")
	require.NoError(t, err)
	buf := make([]byte, dt.Size())
	require.NoError(t, dt.Encode(buf, 42))
	v, err := dt.Decode(buf)
	require.NoError(t, err)
	require.Equal(t, int32(42), v)
}

func TestStructuredDTypeJSON(t *testing.T) {
	data := []byte(`[["x","<f4"],["y","<f4"],["id","<i8"]]`)
	var dt zarr.DataType
	require.NoError(t, dt.UnmarshalJSON(data))
	require.Equal(t, zarr.KindStruct, dt.Kind)
	require.Len(t, dt.Fields, 3)
	require.Equal(t, 4+4+8, dt.Size())

	out, err := dt.MarshalJSON()
	require.NoError(t, err)

	var dt2 zarr.DataType
	require.NoError(t, dt2.UnmarshalJSON(out))
	require.Equal(t, dt.Size(), dt2.Size())
}

func TestStructuredDTypeEncodeDecode(t *testing.T) {
	data := []byte(`[["x","<f4"],["count","<i4"]]`)
	var dt zarr.DataType
	require.NoError(t, dt.UnmarshalJSON(data))

	buf := make([]byte, dt.Size())
	require.NoError(t, dt.Encode(buf, []any{float32(1.5), 7}))

	v, err := dt.Decode(buf)
	require.NoError(t, err)
	vals, ok := v.([]any)
	require.True(t, ok)
	require.InDelta(t, 1.5, vals[0], 1e-6)
	require.Equal(t, int32(7), vals[1])
}

func TestUnknownDType(t *testing.T) {
	_, err := zarr.ParseTypestr("<q9")
	require.Error(t, err)
	var unknown *zarr.UnknownDTypeError
	require.ErrorAs(t, err, &unknown)
}
