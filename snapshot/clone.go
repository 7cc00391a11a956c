package snapshot

import "reflect"

// Clone returns a deep copy of value. Maps, slices, arrays, pointers and
// exported struct fields are copied recursively. Unexported struct fields are
// copied shallowly, which keeps values such as time.Time intact; channels and
// funcs are copied by reference. Cycles and shared sub-values are reproduced
// in the copy rather than followed forever.
func Clone[T any](value T) T {
	var zero T
	c := newCloner()
	cloned := c.clone(reflect.ValueOf(value))
	if !cloned.IsValid() {
		return zero
	}
	out, ok := cloned.Interface().(T)
	if !ok {
		return value
	}
	return out
}

// CloneMap deep copies every entry of src into a new map. A nil map yields an
// empty, non-nil map. Values shared between entries stay shared in the copy.
func CloneMap(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	c := newCloner()
	for key, value := range src {
		cloned := c.clone(reflect.ValueOf(value))
		if !cloned.IsValid() {
			out[key] = nil
			continue
		}
		out[key] = cloned.Interface()
	}
	return out
}

// visitKey identifies a reference value by address and type. Slices also key
// on length since sub-slices share their backing address.
type visitKey struct {
	ptr uintptr
	typ reflect.Type
	len int
}

type cloner struct {
	visited map[visitKey]reflect.Value
}

func newCloner() *cloner {
	return &cloner{visited: map[visitKey]reflect.Value{}}
}

func (c *cloner) clone(v reflect.Value) reflect.Value {
	if !v.IsValid() {
		return v
	}

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		key := visitKey{ptr: v.Pointer(), typ: v.Type()}
		if seen, ok := c.visited[key]; ok {
			return seen
		}
		out := reflect.New(v.Type().Elem())
		c.visited[key] = out
		out.Elem().Set(c.clone(v.Elem()))
		return out
	case reflect.Interface:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		elem := c.clone(v.Elem())
		if !elem.IsValid() {
			return reflect.Zero(v.Type())
		}
		return elem.Convert(v.Type())
	case reflect.Struct:
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		for i := 0; i < v.NumField(); i++ {
			field := out.Field(i)
			if !field.CanSet() {
				continue
			}
			field.Set(c.clone(v.Field(i)))
		}
		return out
	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		key := visitKey{ptr: v.Pointer(), typ: v.Type()}
		if seen, ok := c.visited[key]; ok {
			return seen
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		c.visited[key] = out
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), c.elem(iter.Value(), v.Type().Elem()))
		}
		return out
	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		key := visitKey{ptr: v.Pointer(), typ: v.Type(), len: v.Len()}
		if seen, ok := c.visited[key]; ok {
			return seen
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		c.visited[key] = out
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(c.elem(v.Index(i), v.Type().Elem()))
		}
		return out
	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(c.elem(v.Index(i), v.Type().Elem()))
		}
		return out
	default:
		return v
	}
}

// elem clones a container element and converts it back to the container's
// element type. A nil interface element stays a typed zero.
func (c *cloner) elem(v reflect.Value, elemType reflect.Type) reflect.Value {
	cloned := c.clone(v)
	if !cloned.IsValid() {
		return reflect.Zero(elemType)
	}
	if cloned.Type() != elemType {
		return cloned.Convert(elemType)
	}
	return cloned
}
