package zarr

import (
	"bytes"
	"context"
	"encoding/json"
)

// Group is a named collection of children, each either an Array or a nested
// Group, persisted as a directory of .zgroup/.zattrs plus one subdirectory
// per child, per spec.md §4.7.
type Group struct {
	AttrsData Attrs

	order    []string
	arrays   map[string]*Array
	children map[string]*Group
}

type zgroupJSON struct {
	ZarrFormat int `json:"zarr_format"`
}

// NewGroup returns an empty Group ready to accept children via SetArray and
// SetGroup.
func NewGroup(attrs Attrs) *Group {
	return &Group{
		AttrsData: attrs,
		arrays:    map[string]*Array{},
		children:  map[string]*Group{},
	}
}

// SetArray attaches arr as a named child, appending to declaration order the
// first time name is used.
func (g *Group) SetArray(name string, arr *Array) {
	if _, seen := g.arrays[name]; !seen {
		if _, seenGroup := g.children[name]; !seenGroup {
			g.order = append(g.order, name)
		}
	}
	delete(g.children, name)
	g.arrays[name] = arr
}

// SetGroup attaches child as a named nested group.
func (g *Group) SetGroup(name string, child *Group) {
	if _, seen := g.children[name]; !seen {
		if _, seenArray := g.arrays[name]; !seenArray {
			g.order = append(g.order, name)
		}
	}
	delete(g.arrays, name)
	g.children[name] = child
}

// Names returns child names in declaration order.
func (g *Group) Names() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Array returns the named array child, or nil if name is not an array child.
func (g *Group) Array(name string) *Array { return g.arrays[name] }

// Group returns the named group child, or nil if name is not a group child.
func (g *Group) Group(name string) *Group { return g.children[name] }

// Save persists the group: .zgroup, optional .zattrs, then every child in
// declaration order under its own name-keyed subdirectory.
func (g *Group) Save(ctx context.Context, store PathStore, dir string) error {
	if err := store.MkdirAll(ctx, dir); err != nil {
		return err
	}

	zgroup, err := json.Marshal(zgroupJSON{ZarrFormat: 2})
	if err != nil {
		return err
	}
	if err := store.Write(ctx, JoinPath(dir, ".zgroup"), zgroup); err != nil {
		return err
	}

	if len(g.AttrsData) > 0 {
		attrsJSON, err := g.AttrsData.MarshalJSON()
		if err != nil {
			return err
		}
		if err := store.Write(ctx, JoinPath(dir, ".zattrs"), attrsJSON); err != nil {
			return err
		}
	}

	for _, name := range g.order {
		childDir := JoinPath(dir, name)
		if arr, ok := g.arrays[name]; ok {
			if err := arr.Save(ctx, store, childDir); err != nil {
				return err
			}
			continue
		}
		if child, ok := g.children[name]; ok {
			if err := child.Save(ctx, store, childDir); err != nil {
				return err
			}
		}
	}
	return nil
}

// LoadGroup reads .zgroup (and, if present, .zattrs) from dir on store, then
// enumerates and loads every child directory, recursing into nested groups
// and loading arrays, per spec.md §4.7's missing/malformed-child contract.
func LoadGroup(ctx context.Context, store PathStore, dir string) (*Group, error) {
	zgroupBytes, err := store.Read(ctx, JoinPath(dir, ".zgroup"))
	if err != nil {
		return nil, err
	}
	var zg zgroupJSON
	if err := json.Unmarshal(zgroupBytes, &zg); err != nil {
		return nil, &MalformedMetadataError{Reason: "invalid .zgroup JSON", Cause: err}
	}
	if zg.ZarrFormat != 2 {
		return nil, &MalformedMetadataError{Reason: "unsupported zarr_format in .zgroup"}
	}

	var attrs Attrs
	attrsBytes, err := store.Read(ctx, JoinPath(dir, ".zattrs"))
	if err == nil {
		attrs, err = LoadAttrs(bytes.NewReader(attrsBytes))
		if err != nil {
			return nil, err
		}
	} else if !isNotFound(err) {
		return nil, err
	}

	names, err := store.List(ctx, dir)
	if err != nil {
		return nil, err
	}

	g := NewGroup(attrs)
	for _, name := range names {
		if name == ".zgroup" || name == ".zattrs" {
			continue
		}
		childDir := JoinPath(dir, name)

		if _, zarrErr := store.Read(ctx, JoinPath(childDir, ".zarray")); zarrErr == nil {
			arr, err := LoadArray(ctx, store, childDir)
			if err != nil {
				return nil, &MalformedChildError{Name: name, Cause: err}
			}
			g.SetArray(name, arr)
			continue
		}

		if _, zgroupErr := store.Read(ctx, JoinPath(childDir, ".zgroup")); zgroupErr == nil {
			child, err := LoadGroup(ctx, store, childDir)
			if err != nil {
				return nil, &MalformedChildError{Name: name, Cause: err}
			}
			g.SetGroup(name, child)
			continue
		}

		return nil, &MissingChildError{Name: name}
	}

	return g, nil
}

func isNotFound(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}
