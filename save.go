package zarr

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
)

// saver is satisfied by any leaf type that knows how to persist itself under
// a directory: Array and Group both qualify.
type saver interface {
	Save(ctx context.Context, store PathStore, dir string) error
}

type variantMarkerJSON struct {
	Variant string `json:"variant"`
}

var (
	variantFactories = map[string]func() any{}
	variantNames     = map[reflect.Type]string{}
)

// RegisterVariant associates name with a zero-value constructor for one
// concrete implementation of a sum-type interface field, so Save/Load can
// round-trip composite values whose fields hold an interface rather than a
// single concrete type. factory must return a pointer to the concrete type.
func RegisterVariant(name string, factory func() any) {
	variantFactories[name] = factory
	variantNames[reflect.TypeOf(factory())] = name
}

// Save persists v into dir on store, walking v's structure per spec.md
// §4.7: a struct is a product (one subdirectory per field, named by its
// "zarr" tag or field name), a nil pointer field is an absent optional (no
// subdirectory written), an interface field is a sum dispatched by its
// dynamic type's registered variant name, and an *Array/*Group field is a
// leaf saved directly. v is typically a pointer to a struct, *Array, or
// *Group.
func Save(ctx context.Context, store PathStore, dir string, v any) error {
	return saveValue(ctx, store, dir, v)
}

func saveValue(ctx context.Context, store PathStore, dir string, v any) error {
	if v == nil {
		return nil
	}
	if s, ok := v.(saver); ok {
		return s.Save(ctx, store, dir)
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return saveVariant(ctx, store, dir, rv.Interface())
	case reflect.Struct:
		return saveStruct(ctx, store, dir, rv)
	default:
		return fmt.Errorf("zarr: cannot save value of kind %s", rv.Kind())
	}
}

func saveStruct(ctx context.Context, store PathStore, dir string, rv reflect.Value) error {
	if err := store.MkdirAll(ctx, dir); err != nil {
		return err
	}
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			continue
		}
		fv := rv.Field(i)
		childDir := JoinPath(dir, fieldBasename(field))

		switch fv.Kind() {
		case reflect.Ptr:
			if fv.IsNil() {
				continue
			}
			if err := saveValue(ctx, store, childDir, fv.Interface()); err != nil {
				return err
			}
		case reflect.Interface:
			if fv.IsNil() {
				continue
			}
			if err := saveVariant(ctx, store, childDir, fv.Interface()); err != nil {
				return err
			}
		case reflect.Struct:
			if err := saveStruct(ctx, store, childDir, fv); err != nil {
				return err
			}
		default:
			continue
		}
	}
	return nil
}

func saveVariant(ctx context.Context, store PathStore, dir string, v any) error {
	name, ok := variantNames[reflect.TypeOf(v)]
	if !ok {
		return fmt.Errorf("zarr: variant %T has no registered name (call RegisterVariant)", v)
	}
	if err := store.MkdirAll(ctx, dir); err != nil {
		return err
	}
	marker, err := json.Marshal(variantMarkerJSON{Variant: name})
	if err != nil {
		return err
	}
	if err := store.Write(ctx, JoinPath(dir, ".zvariant"), marker); err != nil {
		return err
	}
	return saveValue(ctx, store, dir, v)
}

func fieldBasename(field reflect.StructField) string {
	if tag := field.Tag.Get("zarr"); tag != "" {
		return tag
	}
	return field.Name
}
