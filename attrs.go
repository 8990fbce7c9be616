package zarr

import (
	"encoding/json"
	"io"
)

// Attrs is the free-form JSON object persisted alongside an array or group
// as .zattrs.
type Attrs map[string]any

// LoadAttrs reads and parses a .zattrs document from reader.
func LoadAttrs(reader io.Reader) (Attrs, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, &IOFailureError{Cause: err}
	}
	var a Attrs
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, &MalformedMetadataError{Reason: "invalid .zattrs JSON", Cause: err}
	}
	return a, nil
}

// MarshalJSON renders Attrs, treating a nil map as an empty object rather
// than JSON null.
func (a Attrs) MarshalJSON() ([]byte, error) {
	if a == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]any(a))
}
