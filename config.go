package zarr

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Defaults holds the knobs spec.md §4.6 leaves to the caller when they are
// not spelled out explicitly: the chunk-shape target size, the default
// in-chunk traversal order, and the default compressor for newly created
// arrays.
type Defaults struct {
	TargetChunkBytes int    `yaml:"target_chunk_bytes"`
	Order            string `yaml:"order"`
	Compressor       string `yaml:"compressor"`
}

// DefaultDefaults mirrors the constants this core otherwise falls back to
// when no config is loaded at all.
func DefaultDefaults() Defaults {
	return Defaults{
		TargetChunkBytes: DefaultTargetChunkBytes,
		Order:            "C",
		Compressor:       "none",
	}
}

// activeDefaults is the library-wide Defaults that NewArrayFromElements
// consults when a caller omits WithOrder/WithCompressor/WithChunkShape.
var activeDefaults = DefaultDefaults()

// SetDefaults installs d as the library-wide defaults consulted by
// NewArrayFromElements for any ArrayOption the caller omits.
func SetDefaults(d Defaults) { activeDefaults = d }

// LoadConfig parses a YAML document of the Defaults shape, filling in
// DefaultDefaults for any field the document omits.
func LoadConfig(r io.Reader) (Defaults, error) {
	cfg := DefaultDefaults()
	data, err := io.ReadAll(r)
	if err != nil {
		return Defaults{}, &IOFailureError{Cause: err}
	}
	if len(data) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Defaults{}, fmt.Errorf("zarr: invalid config: %w", err)
	}
	return cfg, nil
}

// CompressorValue resolves the configured compressor name to a Compressor value.
func (d Defaults) CompressorValue() (Compressor, error) {
	switch d.Compressor {
	case "", "none":
		return NoneCompressor{}, nil
	case "zlib", "gzip":
		return ZlibCompressor{}, nil
	case "zstd":
		return ZstdCompressor{}, nil
	case "blosc":
		return BloscCompressor{}, nil
	default:
		return nil, &UnknownCompressorError{ID: d.Compressor}
	}
}

// OrderByte resolves the configured order string to the byte
// NewArrayFromElements expects.
func (d Defaults) OrderByte() (byte, error) {
	switch d.Order {
	case "", "C":
		return 'C', nil
	case "F":
		return 'F', nil
	default:
		return 0, fmt.Errorf("zarr: config order must be C or F, got %q", d.Order)
	}
}
