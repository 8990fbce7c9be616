package zarr

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	kzlib "github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	blosc "github.com/mrjoshuak/go-blosc"
)

// Compressor is a tagged byte-stream transform: wrap_writer/wrap_reader must
// be symmetric, and both must be flushable/closable with a deterministic
// end-of-stream, per spec.md §4.2/§5.
type Compressor interface {
	CompressorID() string
	WrapWriter(dst io.Writer, elemSize int) (io.WriteCloser, error)
	WrapReader(src io.Reader, elemSize int) (io.ReadCloser, error)
}

// compressorJSON is the wire shape of a .zarray "compressor" field.
type compressorJSON struct {
	ID        *string `json:"id"`
	Level     int     `json:"level,omitempty"`
	Cname     string  `json:"cname,omitempty"`
	Clevel    int     `json:"clevel,omitempty"`
	Shuffle   int     `json:"shuffle,omitempty"`
	Blocksize int     `json:"blocksize,omitempty"`
}

// DecodeCompressorJSON parses a .zarray "compressor" field. A JSON null
// decodes to NoneCompressor.
func DecodeCompressorJSON(data []byte) (Compressor, error) {
	trimmed := bytes.TrimSpace(data)
	if string(trimmed) == "null" || len(trimmed) == 0 {
		return NoneCompressor{}, nil
	}
	var cj compressorJSON
	if err := json.Unmarshal(data, &cj); err != nil {
		return nil, &MalformedMetadataError{Reason: "compressor is not a valid object", Cause: err}
	}
	if cj.ID == nil {
		return NoneCompressor{}, nil
	}
	switch *cj.ID {
	case "zlib", "gzip":
		return ZlibCompressor{Level: cj.Level}, nil
	case "blosc":
		return BloscCompressor{Cname: cj.Cname, Clevel: cj.Clevel, Shuffle: cj.Shuffle, Blocksize: cj.Blocksize}, nil
	case "zstd":
		return ZstdCompressor{Level: cj.Level}, nil
	default:
		return nil, &UnknownCompressorError{ID: *cj.ID}
	}
}

// EncodeCompressorJSON renders a Compressor as a .zarray "compressor" field.
func EncodeCompressorJSON(c Compressor) ([]byte, error) {
	switch v := c.(type) {
	case nil, NoneCompressor:
		return json.Marshal(nil)
	case ZlibCompressor:
		id := "zlib"
		return json.Marshal(compressorJSON{ID: &id, Level: v.Level})
	case BloscCompressor:
		id := "blosc"
		return json.Marshal(compressorJSON{ID: &id, Cname: v.Cname, Clevel: v.Clevel, Shuffle: v.Shuffle, Blocksize: v.Blocksize})
	case ZstdCompressor:
		id := "zstd"
		return json.Marshal(compressorJSON{ID: &id, Level: v.Level})
	default:
		return nil, fmt.Errorf("zarr: unknown compressor implementation %T", c)
	}
}

// NoneCompressor is the identity pass-through compressor.
type NoneCompressor struct{}

func (NoneCompressor) CompressorID() string { return "" }

func (NoneCompressor) WrapWriter(dst io.Writer, elemSize int) (io.WriteCloser, error) {
	return nopWriteCloser{dst}, nil
}

func (NoneCompressor) WrapReader(src io.Reader, elemSize int) (io.ReadCloser, error) {
	return io.NopCloser(src), nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// ZlibCompressor deflates with klauspost/compress/zlib, a faster drop-in
// replacement for the standard library's compress/zlib that the teacher
// already depends on transitively through its zstd sibling package.
type ZlibCompressor struct {
	Level int
}

func (ZlibCompressor) CompressorID() string { return "zlib" }

func (c ZlibCompressor) WrapWriter(dst io.Writer, elemSize int) (io.WriteCloser, error) {
	level := c.Level
	if level == 0 {
		level = kzlib.DefaultCompression
	}
	return kzlib.NewWriterLevel(dst, level)
}

func (ZlibCompressor) WrapReader(src io.Reader, elemSize int) (io.ReadCloser, error) {
	r, err := kzlib.NewReader(src)
	if err != nil {
		return nil, &ChunkCorruptError{Cause: err}
	}
	return r, nil
}

// ZstdCompressor compresses with klauspost/compress/zstd, the codec the
// teacher's zarr.Dataset already decodes one-sidedly; this core completes
// it into a symmetric, first-class Compressor variant.
type ZstdCompressor struct {
	Level int
}

func (ZstdCompressor) CompressorID() string { return "zstd" }

func (c ZstdCompressor) WrapWriter(dst io.Writer, elemSize int) (io.WriteCloser, error) {
	opts := []zstd.EOption{}
	if c.Level != 0 {
		opts = append(opts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(c.Level)))
	}
	enc, err := zstd.NewWriter(dst, opts...)
	if err != nil {
		return nil, err
	}
	return enc, nil
}

func (ZstdCompressor) WrapReader(src io.Reader, elemSize int) (io.ReadCloser, error) {
	dec, err := zstd.NewReader(src)
	if err != nil {
		return nil, &ChunkCorruptError{Cause: err}
	}
	return dec.IOReadCloser(), nil
}

// BloscCompressor wraps github.com/mrjoshuak/go-blosc, the exact binding the
// teacher's reader.go imports for decompression; this core generalizes it to
// compress as well. Blosc is a block codec with no streaming API, so both
// directions buffer the whole chunk in memory before calling into it -- the
// same granularity the teacher's own ReadChunk already uses.
type BloscCompressor struct {
	Cname     string // lz4, lz4hc, zlib, zstd, blosclz, snappy
	Clevel    int    // 0..9
	Shuffle   int    // 0=none, 1=byte, 2=bit
	Blocksize int    // 0 = auto
}

func (BloscCompressor) CompressorID() string { return "blosc" }

func (c BloscCompressor) WrapWriter(dst io.Writer, elemSize int) (io.WriteCloser, error) {
	return &bloscWriter{dst: dst, elemSize: elemSize, cfg: c}, nil
}

type bloscWriter struct {
	dst      io.Writer
	elemSize int
	cfg      BloscCompressor
	buf      bytes.Buffer
}

func (w *bloscWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *bloscWriter) Close() error {
	clevel := w.cfg.Clevel
	if clevel == 0 {
		clevel = 5
	}
	typesize := w.elemSize
	if typesize <= 0 {
		typesize = 1
	}
	compressed, err := blosc.Compress(clevel, w.cfg.Shuffle, typesize, w.buf.Bytes())
	if err != nil {
		return fmt.Errorf("zarr: blosc compress: %w", err)
	}
	_, err = w.dst.Write(compressed)
	return err
}

func (BloscCompressor) WrapReader(src io.Reader, elemSize int) (io.ReadCloser, error) {
	raw, err := io.ReadAll(src)
	if err != nil {
		return nil, &IOFailureError{Cause: err}
	}
	decompressed, err := blosc.Decompress(raw)
	if err != nil {
		return nil, &ChunkCorruptError{Cause: err}
	}
	return io.NopCloser(bytes.NewReader(decompressed)), nil
}
