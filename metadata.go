package zarr

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
)

// FillValue is Null (no fill) or Value(v): the element used to materialize
// chunk regions that are missing on disk.
type FillValue struct {
	Valid bool
	Value any
}

// NoFill is the FillValue representing "no fill" (JSON null).
var NoFill = FillValue{}

// Fill wraps v as a present fill value.
func Fill(v any) FillValue { return FillValue{Valid: true, Value: v} }

// Metadata is the JSON-serializable descriptor of a single Zarr v2 array,
// persisted as .zarray.
type Metadata struct {
	ZarrFormat int
	Shape      []int
	Chunks     []int
	DType      *DataType
	Compressor Compressor
	Order      byte // 'C' or 'F'
	FillValue  FillValue
	Filters    []Filter
}

type metadataJSON struct {
	ZarrFormat int               `json:"zarr_format"`
	Shape      []int             `json:"shape"`
	Chunks     []int             `json:"chunks"`
	DType      json.RawMessage   `json:"dtype"`
	Compressor json.RawMessage   `json:"compressor"`
	Order      string            `json:"order"`
	FillValue  json.RawMessage   `json:"fill_value"`
	Filters    []json.RawMessage `json:"filters,omitempty"`
}

type filterJSON struct {
	ID string `json:"id"`
}

// MarshalJSON renders Metadata as a .zarray document.
func (m *Metadata) MarshalJSON() ([]byte, error) {
	dtypeJSON, err := m.DType.MarshalJSON()
	if err != nil {
		return nil, err
	}
	compJSON, err := EncodeCompressorJSON(m.Compressor)
	if err != nil {
		return nil, err
	}
	fillJSON, err := marshalFillValue(m.DType, m.FillValue)
	if err != nil {
		return nil, err
	}
	var filters []json.RawMessage
	for _, f := range m.Filters {
		fj, err := json.Marshal(filterJSON{ID: f.FilterID()})
		if err != nil {
			return nil, err
		}
		filters = append(filters, fj)
	}
	// A rank-0 array is written with empty lists, never null, so that
	// UnmarshalJSON does not read it back as a missing shape or chunks.
	shape, chunks := m.Shape, m.Chunks
	if shape == nil {
		shape = []int{}
	}
	if chunks == nil {
		chunks = []int{}
	}
	mj := metadataJSON{
		ZarrFormat: 2,
		Shape:      shape,
		Chunks:     chunks,
		DType:      dtypeJSON,
		Compressor: compJSON,
		Order:      string(m.Order),
		FillValue:  fillJSON,
		Filters:    filters,
	}
	return json.Marshal(mj)
}

// UnmarshalJSON parses a .zarray document into Metadata. Unknown top-level
// keys are ignored; missing required fields fail with MalformedMetadataError.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var mj metadataJSON
	if err := json.Unmarshal(data, &mj); err != nil {
		return &MalformedMetadataError{Reason: "invalid JSON", Cause: err}
	}
	if mj.ZarrFormat != 2 {
		return &MalformedMetadataError{Reason: fmt.Sprintf("unsupported zarr_format: %d, expected 2", mj.ZarrFormat)}
	}
	if mj.Shape == nil {
		return &MalformedMetadataError{Reason: "missing required field: shape"}
	}
	if mj.Chunks == nil {
		return &MalformedMetadataError{Reason: "missing required field: chunks"}
	}
	if len(mj.Shape) != len(mj.Chunks) {
		return &MalformedMetadataError{Reason: fmt.Sprintf("shape rank %d does not match chunks rank %d", len(mj.Shape), len(mj.Chunks))}
	}
	if mj.DType == nil {
		return &MalformedMetadataError{Reason: "missing required field: dtype"}
	}
	if mj.Order != "C" && mj.Order != "F" {
		return &MalformedMetadataError{Reason: fmt.Sprintf("order must be C or F, got %q", mj.Order)}
	}

	var dtype DataType
	if err := dtype.UnmarshalJSON(mj.DType); err != nil {
		return err
	}

	var compressor Compressor
	if mj.Compressor != nil {
		c, err := DecodeCompressorJSON(mj.Compressor)
		if err != nil {
			return err
		}
		compressor = c
	} else {
		compressor = NoneCompressor{}
	}

	fv, err := unmarshalFillValue(&dtype, mj.FillValue)
	if err != nil {
		return err
	}

	var filters []Filter
	for _, fraw := range mj.Filters {
		var fj filterJSON
		if err := json.Unmarshal(fraw, &fj); err != nil {
			return &MalformedMetadataError{Reason: "invalid filter entry", Cause: err}
		}
		filter, err := DecodeFilterJSON(fj.ID)
		if err != nil {
			return err
		}
		filters = append(filters, filter)
	}

	m.ZarrFormat = 2
	m.Shape = mj.Shape
	m.Chunks = mj.Chunks
	m.DType = &dtype
	m.Compressor = compressor
	m.Order = mj.Order[0]
	m.FillValue = fv
	m.Filters = filters
	return nil
}

// LoadMetadata reads and parses a .zarray document from reader.
func LoadMetadata(reader io.Reader) (*Metadata, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, &IOFailureError{Cause: err}
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func marshalFillValue(dtype *DataType, fv FillValue) ([]byte, error) {
	if !fv.Valid {
		return json.Marshal(nil)
	}
	switch dtype.Kind {
	case KindFloat16, KindFloat32, KindFloat64:
		f, err := asFloat64(fv.Value)
		if err != nil {
			return nil, err
		}
		switch {
		case math.IsNaN(f):
			return json.Marshal("NaN")
		case math.IsInf(f, 1):
			return json.Marshal("Infinity")
		case math.IsInf(f, -1):
			return json.Marshal("-Infinity")
		default:
			return json.Marshal(f)
		}
	case KindFixedBytes:
		b, ok := fv.Value.([]byte)
		if !ok {
			return nil, fmt.Errorf("zarr: fill_value for bytes dtype must be []byte")
		}
		return json.Marshal(base64.StdEncoding.EncodeToString(b))
	case KindFixedUnicode:
		s, ok := fv.Value.(string)
		if !ok {
			return nil, fmt.Errorf("zarr: fill_value for unicode dtype must be string")
		}
		return json.Marshal(s)
	case KindStruct:
		return json.Marshal(nil)
	default:
		return json.Marshal(fv.Value)
	}
}

func unmarshalFillValue(dtype *DataType, data json.RawMessage) (FillValue, error) {
	if data == nil || string(data) == "null" {
		return NoFill, nil
	}
	switch dtype.Kind {
	case KindFloat16, KindFloat32, KindFloat64:
		var s string
		if err := json.Unmarshal(data, &s); err == nil {
			switch s {
			case "NaN":
				return Fill(math.NaN()), nil
			case "Infinity":
				return Fill(math.Inf(1)), nil
			case "-Infinity":
				return Fill(math.Inf(-1)), nil
			default:
				return FillValue{}, &MalformedMetadataError{Reason: fmt.Sprintf("invalid float fill_value sentinel %q", s)}
			}
		}
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return FillValue{}, &MalformedMetadataError{Reason: "fill_value is not a number", Cause: err}
		}
		return Fill(f), nil
	case KindFixedBytes:
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return FillValue{}, &MalformedMetadataError{Reason: "fill_value is not a base64 string", Cause: err}
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return FillValue{}, &MalformedMetadataError{Reason: "fill_value is not valid base64", Cause: err}
		}
		return Fill(b), nil
	case KindFixedUnicode:
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return FillValue{}, &MalformedMetadataError{Reason: "fill_value is not a string", Cause: err}
		}
		return Fill(s), nil
	case KindBool:
		var b bool
		if err := json.Unmarshal(data, &b); err == nil {
			return Fill(b), nil
		}
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return FillValue{}, &MalformedMetadataError{Reason: "fill_value is not a bool or number", Cause: err}
		}
		return Fill(f != 0), nil
	case KindStruct:
		return NoFill, nil
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return FillValue{}, &MalformedMetadataError{Reason: "fill_value is not a number", Cause: err}
		}
		return Fill(f), nil
	}
}
