package hooks

import (
	"math"
	"reflect"
)

// Deps is an effect dependency list.
//
// A nil Deps is the "no list" sentinel: the effect re-runs after every
// commit. A non-nil empty Deps (see DepsOf) runs the effect once, on the
// first commit only. Any other list re-runs the effect whenever one of its
// positions differs from the previous commit under Same.
type Deps []any

// DepsOf builds a dependency list. DepsOf() is the empty list, never nil.
// The values are copied, so later mutation of a spread slice is not seen.
func DepsOf(values ...any) Deps {
	return append(Deps{}, values...)
}

// Always is the "no list" sentinel, spelled out for readability.
var Always Deps

// equal compares two dependency lists of the same arity position by position.
func (d Deps) equal(other Deps) bool {
	if len(d) != len(other) {
		return false
	}
	for i := range d {
		if !Same(d[i], other[i]) {
			return false
		}
	}
	return true
}

// Same reports whether a and b are the same value under the shallow equality
// policy used for dependency lists and state writes.
//
// Reference-like values (pointers, maps, channels, slices) compare by
// identity; slices additionally compare length. Functions are never the same
// unless both are nil, since Go cannot observe closure identity. Booleans,
// numbers and strings compare by value, with NaN equal to NaN. Structs,
// arrays and interfaces compare member-wise under the same rules, so a struct
// holding a slice is the same only if it holds the same slice.
func Same(a, b any) bool {
	return sameValue(reflect.ValueOf(a), reflect.ValueOf(b))
}

func sameValue(a, b reflect.Value) bool {
	if !a.IsValid() || !b.IsValid() {
		return a.IsValid() == b.IsValid()
	}
	if a.Type() != b.Type() {
		return false
	}

	switch a.Kind() {
	case reflect.Bool:
		return a.Bool() == b.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return a.Int() == b.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return a.Uint() == b.Uint()
	case reflect.Float32, reflect.Float64:
		x, y := a.Float(), b.Float()
		return x == y || (math.IsNaN(x) && math.IsNaN(y))
	case reflect.Complex64, reflect.Complex128:
		return a.Complex() == b.Complex()
	case reflect.String:
		return a.String() == b.String()
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.UnsafePointer:
		return a.Pointer() == b.Pointer()
	case reflect.Slice:
		if a.IsNil() || b.IsNil() {
			return a.IsNil() == b.IsNil()
		}
		return a.Pointer() == b.Pointer() && a.Len() == b.Len()
	case reflect.Func:
		return a.IsNil() && b.IsNil()
	case reflect.Interface:
		if a.IsNil() || b.IsNil() {
			return a.IsNil() == b.IsNil()
		}
		return sameValue(a.Elem(), b.Elem())
	case reflect.Struct:
		for i := 0; i < a.NumField(); i++ {
			if !sameValue(a.Field(i), b.Field(i)) {
				return false
			}
		}
		return true
	case reflect.Array:
		for i := 0; i < a.Len(); i++ {
			if !sameValue(a.Index(i), b.Index(i)) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
