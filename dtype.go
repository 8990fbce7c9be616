package zarr

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/x448/float16"
)

// Kind is the sum of primitive element kinds a DataType can describe.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat16
	KindFloat32
	KindFloat64
	KindComplex64
	KindComplex128
	KindFixedBytes
	KindFixedUnicode
	KindStruct
)

// Endian is a dtype's byte order: little, big, or not-applicable (single-byte
// and opaque-blob kinds carry EndianNone).
type Endian uint8

const (
	EndianNone Endian = iota
	EndianLittle
	EndianBig
)

func (e Endian) prefix() byte {
	switch e {
	case EndianLittle:
		return '<'
	case EndianBig:
		return '>'
	default:
		return '|'
	}
}

func (e Endian) order() binary.ByteOrder {
	if e == EndianBig {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Field describes one member of a structured DataType. Shape, when non-empty,
// repeats Type that many times (row-major) to form the field's payload.
type Field struct {
	Name  string
	Type  *DataType
	Shape []int
}

func (f Field) count() int {
	n := 1
	for _, s := range f.Shape {
		n *= s
	}
	return n
}

func (f Field) size() int {
	return f.Type.Size() * f.count()
}

// DataType is a runtime descriptor for one element type: logical kind, byte
// width, and endianness. It encodes and decodes a single value to/from a
// byte buffer and round-trips through the NumPy typestr JSON grammar.
type DataType struct {
	Kind     Kind
	Endian   Endian
	FixedLen int // element count N for FixedBytes/FixedUnicode
	Fields   []Field
}

// Size returns the dtype's fixed byte width.
func (d *DataType) Size() int {
	switch d.Kind {
	case KindBool, KindInt8, KindUint8:
		return 1
	case KindInt16, KindUint16, KindFloat16:
		return 2
	case KindInt32, KindUint32, KindFloat32:
		return 4
	case KindInt64, KindUint64, KindFloat64, KindComplex64:
		return 8
	case KindComplex128:
		return 16
	case KindFixedBytes:
		return d.FixedLen
	case KindFixedUnicode:
		return d.FixedLen * 4 // UCS-4, matching NumPy's 'U' kind
	case KindStruct:
		n := 0
		for _, f := range d.Fields {
			n += f.size()
		}
		return n
	default:
		return 0
	}
}

// Typestr renders the dtype as a NumPy typestr. Structured dtypes have no
// single-string typestr; callers must use MarshalJSON for those.
func (d *DataType) Typestr() (string, error) {
	if d.Kind == KindStruct {
		return "", fmt.Errorf("zarr: structured dtype has no scalar typestr")
	}
	letter, size, err := d.letterAndSize()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%c%c%d", d.Endian.prefix(), letter, size), nil
}

func (d *DataType) letterAndSize() (byte, int, error) {
	switch d.Kind {
	case KindBool:
		return 'b', 1, nil
	case KindInt8:
		return 'i', 1, nil
	case KindInt16:
		return 'i', 2, nil
	case KindInt32:
		return 'i', 4, nil
	case KindInt64:
		return 'i', 8, nil
	case KindUint8:
		return 'u', 1, nil
	case KindUint16:
		return 'u', 2, nil
	case KindUint32:
		return 'u', 4, nil
	case KindUint64:
		return 'u', 8, nil
	case KindFloat16:
		return 'f', 2, nil
	case KindFloat32:
		return 'f', 4, nil
	case KindFloat64:
		return 'f', 8, nil
	case KindComplex64:
		return 'c', 8, nil
	case KindComplex128:
		return 'c', 16, nil
	case KindFixedBytes:
		return 'S', d.FixedLen, nil
	case KindFixedUnicode:
		return 'U', d.FixedLen, nil
	default:
		return 0, 0, fmt.Errorf("zarr: dtype has no typestr letter")
	}
}

// ParseTypestr parses a NumPy-style typestr such as "<f8", ">i4", "|u1",
// "|S10", or "<U10" into a DataType.
func ParseTypestr(s string) (*DataType, error) {
	if len(s) < 3 {
		return nil, &UnknownDTypeError{Typestr: s}
	}

	var endian Endian
	switch s[0] {
	case '<':
		endian = EndianLittle
	case '>':
		endian = EndianBig
	case '|':
		endian = EndianNone
	default:
		return nil, &UnknownDTypeError{Typestr: s}
	}

	kindLetter := s[1]
	sizeStr := s[2:]
	size, err := strconv.Atoi(sizeStr)
	if err != nil || size < 0 {
		return nil, &UnknownDTypeError{Typestr: s}
	}

	d := &DataType{Endian: endian}
	switch kindLetter {
	case 'b':
		d.Kind = KindBool
	case 'i':
		switch size {
		case 1:
			d.Kind = KindInt8
		case 2:
			d.Kind = KindInt16
		case 4:
			d.Kind = KindInt32
		case 8:
			d.Kind = KindInt64
		default:
			return nil, &UnknownDTypeError{Typestr: s}
		}
	case 'u':
		switch size {
		case 1:
			d.Kind = KindUint8
		case 2:
			d.Kind = KindUint16
		case 4:
			d.Kind = KindUint32
		case 8:
			d.Kind = KindUint64
		default:
			return nil, &UnknownDTypeError{Typestr: s}
		}
	case 'f':
		switch size {
		case 2:
			d.Kind = KindFloat16
		case 4:
			d.Kind = KindFloat32
		case 8:
			d.Kind = KindFloat64
		default:
			return nil, &UnknownDTypeError{Typestr: s}
		}
	case 'c':
		switch size {
		case 8:
			d.Kind = KindComplex64
		case 16:
			d.Kind = KindComplex128
		default:
			return nil, &UnknownDTypeError{Typestr: s}
		}
	case 'S':
		d.Kind = KindFixedBytes
		d.FixedLen = size
	case 'U':
		d.Kind = KindFixedUnicode
		d.FixedLen = size
	default:
		return nil, &UnknownDTypeError{Typestr: s}
	}
	return d, nil
}

// MarshalJSON renders scalar dtypes as a typestr string and structured
// dtypes as a list of [name, typestr] or [name, typestr, shape] tuples.
func (d *DataType) MarshalJSON() ([]byte, error) {
	if d.Kind != KindStruct {
		ts, err := d.Typestr()
		if err != nil {
			return nil, err
		}
		return json.Marshal(ts)
	}

	tuples := make([][]any, len(d.Fields))
	for i, f := range d.Fields {
		ts, err := f.Type.Typestr()
		if err != nil {
			return nil, err
		}
		if len(f.Shape) == 0 {
			tuples[i] = []any{f.Name, ts}
		} else {
			tuples[i] = []any{f.Name, ts, f.Shape}
		}
	}
	return json.Marshal(tuples)
}

// UnmarshalJSON accepts either a typestr string or a structured-dtype tuple
// list, per the NumPy dtype JSON grammar used in .zarray's "dtype" field.
func (d *DataType) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var ts string
		if err := json.Unmarshal(data, &ts); err != nil {
			return err
		}
		parsed, err := ParseTypestr(ts)
		if err != nil {
			return err
		}
		*d = *parsed
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return &MalformedMetadataError{Reason: "dtype is neither a typestr string nor a tuple list", Cause: err}
	}

	fields := make([]Field, len(raw))
	for i, tupleRaw := range raw {
		var tuple []json.RawMessage
		if err := json.Unmarshal(tupleRaw, &tuple); err != nil {
			return &MalformedMetadataError{Reason: "structured dtype field is not a tuple", Cause: err}
		}
		if len(tuple) < 2 || len(tuple) > 3 {
			return &MalformedMetadataError{Reason: fmt.Sprintf("structured dtype field has %d elements, want 2 or 3", len(tuple))}
		}
		var name, typestr string
		if err := json.Unmarshal(tuple[0], &name); err != nil {
			return &MalformedMetadataError{Reason: "structured dtype field name is not a string", Cause: err}
		}
		if err := json.Unmarshal(tuple[1], &typestr); err != nil {
			return &MalformedMetadataError{Reason: "structured dtype field typestr is not a string", Cause: err}
		}
		elemType, err := ParseTypestr(typestr)
		if err != nil {
			return err
		}
		f := Field{Name: name, Type: elemType}
		if len(tuple) == 3 {
			var shape []int
			if err := json.Unmarshal(tuple[2], &shape); err != nil {
				return &MalformedMetadataError{Reason: "structured dtype field shape is not an int list", Cause: err}
			}
			f.Shape = shape
		}
		fields[i] = f
	}

	d.Kind = KindStruct
	d.Fields = fields
	return nil
}

// Encode writes v into buf[:d.Size()]. buf must have length >= d.Size().
func (d *DataType) Encode(buf []byte, v any) error {
	if len(buf) < d.Size() {
		return fmt.Errorf("zarr: encode buffer too small: need %d, have %d", d.Size(), len(buf))
	}
	order := d.Endian.order()

	switch d.Kind {
	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("zarr: expected bool, got %T", v)
		}
		if b {
			buf[0] = 1
		} else {
			buf[0] = 0
		}
	case KindInt8:
		iv, err := asInt64(v)
		if err != nil {
			return err
		}
		buf[0] = byte(int8(iv))
	case KindInt16:
		iv, err := asInt64(v)
		if err != nil {
			return err
		}
		order.PutUint16(buf, uint16(int16(iv)))
	case KindInt32:
		iv, err := asInt64(v)
		if err != nil {
			return err
		}
		order.PutUint32(buf, uint32(int32(iv)))
	case KindInt64:
		iv, err := asInt64(v)
		if err != nil {
			return err
		}
		order.PutUint64(buf, uint64(iv))
	case KindUint8:
		uv, err := asUint64(v)
		if err != nil {
			return err
		}
		buf[0] = byte(uv)
	case KindUint16:
		uv, err := asUint64(v)
		if err != nil {
			return err
		}
		order.PutUint16(buf, uint16(uv))
	case KindUint32:
		uv, err := asUint64(v)
		if err != nil {
			return err
		}
		order.PutUint32(buf, uint32(uv))
	case KindUint64:
		uv, err := asUint64(v)
		if err != nil {
			return err
		}
		order.PutUint64(buf, uv)
	case KindFloat16:
		fv, err := asFloat64(v)
		if err != nil {
			return err
		}
		order.PutUint16(buf, uint16(float16.Fromfloat32(float32(fv))))
	case KindFloat32:
		fv, err := asFloat64(v)
		if err != nil {
			return err
		}
		order.PutUint32(buf, math.Float32bits(float32(fv)))
	case KindFloat64:
		fv, err := asFloat64(v)
		if err != nil {
			return err
		}
		order.PutUint64(buf, math.Float64bits(fv))
	case KindComplex64:
		cv, ok := v.(complex64)
		if !ok {
			cv128, ok := v.(complex128)
			if !ok {
				return fmt.Errorf("zarr: expected complex64, got %T", v)
			}
			cv = complex64(cv128)
		}
		order.PutUint32(buf[0:4], math.Float32bits(real(cv)))
		order.PutUint32(buf[4:8], math.Float32bits(imag(cv)))
	case KindComplex128:
		cv, ok := v.(complex128)
		if !ok {
			return fmt.Errorf("zarr: expected complex128, got %T", v)
		}
		order.PutUint64(buf[0:8], math.Float64bits(real(cv)))
		order.PutUint64(buf[8:16], math.Float64bits(imag(cv)))
	case KindFixedBytes:
		bv, ok := v.([]byte)
		if !ok {
			return fmt.Errorf("zarr: expected []byte, got %T", v)
		}
		n := copy(buf, bv)
		for i := n; i < d.FixedLen; i++ {
			buf[i] = 0
		}
	case KindFixedUnicode:
		sv, ok := v.(string)
		if !ok {
			return fmt.Errorf("zarr: expected string, got %T", v)
		}
		runes := []rune(sv)
		for i := 0; i < d.FixedLen; i++ {
			var r rune
			if i < len(runes) {
				r = runes[i]
			}
			order.PutUint32(buf[i*4:i*4+4], uint32(r))
		}
	case KindStruct:
		vals, ok := v.([]any)
		if !ok {
			return fmt.Errorf("zarr: expected []any for struct, got %T", v)
		}
		if len(vals) != len(d.Fields) {
			return fmt.Errorf("zarr: struct expects %d fields, got %d values", len(d.Fields), len(vals))
		}
		off := 0
		for i, f := range d.Fields {
			elems, err := fieldValues(f, vals[i])
			if err != nil {
				return err
			}
			esz := f.Type.Size()
			for _, e := range elems {
				if err := f.Type.Encode(buf[off:off+esz], e); err != nil {
					return err
				}
				off += esz
			}
		}
	default:
		return fmt.Errorf("zarr: cannot encode unknown kind %d", d.Kind)
	}
	return nil
}

func fieldValues(f Field, v any) ([]any, error) {
	n := f.count()
	if n == 1 {
		return []any{v}, nil
	}
	vals, ok := v.([]any)
	if !ok || len(vals) != n {
		return nil, fmt.Errorf("zarr: field %q expects %d repeated values", f.Name, n)
	}
	return vals, nil
}

// Decode reads buf[:d.Size()] into a Go value appropriate for d.Kind.
func (d *DataType) Decode(buf []byte) (any, error) {
	if len(buf) < d.Size() {
		return nil, fmt.Errorf("zarr: decode buffer too small: need %d, have %d", d.Size(), len(buf))
	}
	order := d.Endian.order()

	switch d.Kind {
	case KindBool:
		return buf[0] != 0, nil
	case KindInt8:
		return int8(buf[0]), nil
	case KindInt16:
		return int16(order.Uint16(buf)), nil
	case KindInt32:
		return int32(order.Uint32(buf)), nil
	case KindInt64:
		return int64(order.Uint64(buf)), nil
	case KindUint8:
		return buf[0], nil
	case KindUint16:
		return order.Uint16(buf), nil
	case KindUint32:
		return order.Uint32(buf), nil
	case KindUint64:
		return order.Uint64(buf), nil
	case KindFloat16:
		return float16.Frombits(order.Uint16(buf)).Float32(), nil
	case KindFloat32:
		return math.Float32frombits(order.Uint32(buf)), nil
	case KindFloat64:
		return math.Float64frombits(order.Uint64(buf)), nil
	case KindComplex64:
		re := math.Float32frombits(order.Uint32(buf[0:4]))
		im := math.Float32frombits(order.Uint32(buf[4:8]))
		return complex(re, im), nil
	case KindComplex128:
		re := math.Float64frombits(order.Uint64(buf[0:8]))
		im := math.Float64frombits(order.Uint64(buf[8:16]))
		return complex(re, im), nil
	case KindFixedBytes:
		out := make([]byte, d.FixedLen)
		copy(out, buf[:d.FixedLen])
		return out, nil
	case KindFixedUnicode:
		runes := make([]rune, 0, d.FixedLen)
		for i := 0; i < d.FixedLen; i++ {
			r := rune(order.Uint32(buf[i*4 : i*4+4]))
			if r == 0 {
				break
			}
			runes = append(runes, r)
		}
		return string(runes), nil
	case KindStruct:
		vals := make([]any, len(d.Fields))
		off := 0
		for i, f := range d.Fields {
			esz := f.Type.Size()
			n := f.count()
			elems := make([]any, n)
			for j := 0; j < n; j++ {
				v, err := f.Type.Decode(buf[off : off+esz])
				if err != nil {
					return nil, err
				}
				elems[j] = v
				off += esz
			}
			if n == 1 {
				vals[i] = elems[0]
			} else {
				vals[i] = elems
			}
		}
		return vals, nil
	default:
		return nil, fmt.Errorf("zarr: cannot decode unknown kind %d", d.Kind)
	}
}

func asInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("zarr: expected an integer, got %T", v)
	}
}

func asUint64(v any) (uint64, error) {
	switch n := v.(type) {
	case int:
		return uint64(n), nil
	case uint8:
		return uint64(n), nil
	case uint16:
		return uint64(n), nil
	case uint32:
		return uint64(n), nil
	case uint64:
		return n, nil
	case int64:
		return uint64(n), nil
	case float64:
		return uint64(n), nil
	default:
		return 0, fmt.Errorf("zarr: expected an unsigned integer, got %T", v)
	}
}

func asFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("zarr: expected a float, got %T", v)
	}
}
