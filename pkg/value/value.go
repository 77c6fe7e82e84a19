// Package value provides the in-memory document model shared by every format.
//
// A Value is a tagged union over null, bool, number, string, array and object.
// Objects remember key insertion order for serialization while equality between
// objects ignores that order.
package value

import (
	"fmt"
	"math"
	"strconv"
)

// Kind identifies the variant held by a Value
type Kind uint8

const (
	// KindNull is the zero Kind
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// String returns the lowercase kind name
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is one node of a decoded document. The zero Value is Null.
type Value struct {
	kind  Kind
	b     bool
	isInt bool
	i     int64
	f     float64
	s     string
	arr   []Value
	obj   *Object
}

// Null returns the null value
func Null() Value { return Value{} }

// Bool wraps a boolean
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int wraps an integer number
func Int(i int64) Value { return Value{kind: KindNumber, isInt: true, i: i} }

// Float wraps a floating point number
func Float(f float64) Value { return Value{kind: KindNumber, f: f} }

// String wraps a string
func String(s string) Value { return Value{kind: KindString, s: s} }

// Array wraps a sequence of values. The slice is not copied.
func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindArray, arr: items}
}

// FromObject wraps an object. A nil object becomes an empty one.
func FromObject(o *Object) Value {
	if o == nil {
		o = NewObject()
	}
	return Value{kind: KindObject, obj: o}
}

// Kind reports the variant
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsInt reports whether a number holds an integer representation
func (v Value) IsInt() bool { return v.kind == KindNumber && v.isInt }

// AsBool returns the boolean and whether v is a bool
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsInt returns the integer form of a number
func (v Value) AsInt() (int64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	if v.isInt {
		return v.i, true
	}
	if v.f == math.Trunc(v.f) && v.f >= math.MinInt64 && v.f <= math.MaxInt64 {
		return int64(v.f), true
	}
	return 0, false
}

// AsFloat returns the floating form of a number
func (v Value) AsFloat() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	if v.isInt {
		return float64(v.i), true
	}
	return v.f, true
}

// AsString returns the string and whether v is a string
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsArray returns the elements and whether v is an array
func (v Value) AsArray() ([]Value, bool) { return v.arr, v.kind == KindArray }

// AsObject returns the object and whether v is an object
func (v Value) AsObject() (*Object, bool) { return v.obj, v.kind == KindObject }

// Len returns the element count for arrays and objects, zero otherwise
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.arr)
	case KindObject:
		return v.obj.Len()
	}
	return 0
}

// NumberText renders a number the way JSON would
func (v Value) NumberText() string {
	if v.isInt {
		return strconv.FormatInt(v.i, 10)
	}
	if math.IsInf(v.f, 0) || math.IsNaN(v.f) {
		return "null"
	}
	return strconv.FormatFloat(v.f, 'g', -1, 64)
}

// Scalar renders a scalar as plain text. Strings are returned unquoted,
// containers fall back to compact JSON.
func (v Value) Scalar() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return v.NumberText()
	case KindString:
		return v.s
	}
	return v.String()
}

// String renders v as compact JSON
func (v Value) String() string {
	data, err := v.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<%s>", v.kind)
	}
	return string(data)
}

// Equal reports structural equality. Object key order is ignored and numbers
// compare by numeric value regardless of representation.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		if a.isInt && b.isInt {
			return a.i == b.i
		}
		af, _ := a.AsFloat()
		bf, _ := b.AsFloat()
		return af == bf
	case KindString:
		return a.s == b.s
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		return a.obj.Equal(b.obj)
	}
	return false
}

// EqualAll compares two value sets element-wise
func EqualAll(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
