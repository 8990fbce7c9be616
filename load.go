package zarr

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
)

var (
	arrayType = reflect.TypeOf(Array{})
	groupType = reflect.TypeOf(Group{})
)

// Load populates dest, a pointer to a struct, *Array, or *Group, by walking
// dir on store with the same product/sum/optional/leaf rules Save used to
// write it.
func Load(ctx context.Context, store PathStore, dir string, dest any) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("zarr: Load destination must be a non-nil pointer")
	}
	return loadInto(ctx, store, dir, rv.Elem())
}

func loadInto(ctx context.Context, store PathStore, dir string, rv reflect.Value) error {
	t := rv.Type()

	if t == arrayType {
		arr, err := LoadArray(ctx, store, dir)
		if err != nil {
			return err
		}
		rv.Set(reflect.ValueOf(*arr))
		return nil
	}
	if t == groupType {
		g, err := LoadGroup(ctx, store, dir)
		if err != nil {
			return err
		}
		rv.Set(reflect.ValueOf(*g))
		return nil
	}

	switch rv.Kind() {
	case reflect.Ptr:
		return loadIntoPtr(ctx, store, dir, rv)
	case reflect.Interface:
		return loadIntoVariant(ctx, store, dir, rv)
	case reflect.Struct:
		return loadIntoStruct(ctx, store, dir, rv)
	default:
		return nil
	}
}

func loadIntoPtr(ctx context.Context, store PathStore, dir string, rv reflect.Value) error {
	elemType := rv.Type().Elem()

	if elemType == arrayType {
		exists, err := store.Exists(ctx, JoinPath(dir, ".zarray"))
		if err != nil {
			return err
		}
		if !exists {
			rv.Set(reflect.Zero(rv.Type()))
			return nil
		}
		arr, err := LoadArray(ctx, store, dir)
		if err != nil {
			return err
		}
		rv.Set(reflect.ValueOf(arr))
		return nil
	}
	if elemType == groupType {
		exists, err := store.Exists(ctx, JoinPath(dir, ".zgroup"))
		if err != nil {
			return err
		}
		if !exists {
			rv.Set(reflect.Zero(rv.Type()))
			return nil
		}
		g, err := LoadGroup(ctx, store, dir)
		if err != nil {
			return err
		}
		rv.Set(reflect.ValueOf(g))
		return nil
	}

	names, err := store.List(ctx, dir)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		rv.Set(reflect.Zero(rv.Type()))
		return nil
	}

	newVal := reflect.New(elemType)
	if err := loadInto(ctx, store, dir, newVal.Elem()); err != nil {
		return err
	}
	rv.Set(newVal)
	return nil
}

func loadIntoVariant(ctx context.Context, store PathStore, dir string, rv reflect.Value) error {
	markerBytes, err := store.Read(ctx, JoinPath(dir, ".zvariant"))
	if err != nil {
		return err
	}
	var vm variantMarkerJSON
	if err := json.Unmarshal(markerBytes, &vm); err != nil {
		return &MalformedMetadataError{Reason: "invalid .zvariant", Cause: err}
	}
	factory, ok := variantFactories[vm.Variant]
	if !ok {
		return fmt.Errorf("zarr: unknown variant %q (call RegisterVariant)", vm.Variant)
	}
	instance := factory()
	iv := reflect.ValueOf(instance)
	if !iv.Type().AssignableTo(rv.Type()) {
		return fmt.Errorf("zarr: variant %q (%T) does not implement %s", vm.Variant, instance, rv.Type())
	}
	if err := loadInto(ctx, store, dir, iv.Elem()); err != nil {
		return err
	}
	rv.Set(iv)
	return nil
}

func loadIntoStruct(ctx context.Context, store PathStore, dir string, rv reflect.Value) error {
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			continue
		}
		fv := rv.Field(i)
		childDir := JoinPath(dir, fieldBasename(field))
		if err := loadInto(ctx, store, childDir, fv); err != nil {
			return err
		}
	}
	return nil
}
