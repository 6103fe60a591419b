package domain

import (
	"fmt"
	"math"
	"reflect"
)

// Coerce returns the member of members equal to value. Equality is by
// value on the underlying primitive: strings compare to strings and numbers
// to numbers of any width. Anything else fails with *EnumConversionError.
func Coerce[E comparable](value any, members []E) (E, error) {
	for _, m := range members {
		if sameValue(m, value) {
			return m, nil
		}
	}
	var zero E
	return zero, &EnumConversionError{Value: value, Enum: fmt.Sprintf("%T", zero)}
}

// MustCoerce is like Coerce but panics on error.
func MustCoerce[E comparable](value any, members []E) E {
	m, err := Coerce(value, members)
	if err != nil {
		panic(err)
	}
	return m
}

func sameValue(member, value any) bool {
	mv := reflect.ValueOf(member)
	vv := reflect.ValueOf(value)
	if !mv.IsValid() || !vv.IsValid() {
		return false
	}

	switch {
	case mv.Kind() == reflect.String && vv.Kind() == reflect.String:
		return mv.String() == vv.String()
	case isNumber(mv) && isNumber(vv):
		return sameNumber(mv, vv)
	case mv.Kind() == reflect.Bool && vv.Kind() == reflect.Bool:
		return mv.Bool() == vv.Bool()
	default:
		return false
	}
}

func isNumber(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

type numberClass int

const (
	signed numberClass = iota
	unsigned
	float
)

func classOf(v reflect.Value) numberClass {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return signed
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return unsigned
	default:
		return float
	}
}

// sameNumber compares integers exactly. A float only equals an integer
// when it holds that integer's value with no fraction and no rounding.
func sameNumber(a, b reflect.Value) bool {
	ca, cb := classOf(a), classOf(b)
	if ca > cb {
		a, b, ca, cb = b, a, cb, ca
	}
	switch {
	case ca == signed && cb == signed:
		return a.Int() == b.Int()
	case ca == unsigned && cb == unsigned:
		return a.Uint() == b.Uint()
	case ca == signed && cb == unsigned:
		return a.Int() >= 0 && uint64(a.Int()) == b.Uint()
	case ca == float && cb == float:
		return a.Float() == b.Float()
	case ca == signed:
		f := b.Float()
		return f >= math.MinInt64 && f < math.MaxInt64 && f == math.Trunc(f) && int64(f) == a.Int()
	default:
		f := b.Float()
		return f >= 0 && f < math.MaxUint64 && f == math.Trunc(f) && uint64(f) == a.Uint()
	}
}
