package query

import (
	"cmp"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strings"
)

type numberKind uint8

const (
	signedNumber numberKind = iota
	unsignedNumber
	floatNumber
)

// number holds any Go numeric value without losing precision, so that an
// int read from YAML, an int64 read from JSON and a float64 literal compare
// by value.
type number struct {
	kind numberKind
	i    int64
	u    uint64
	f    float64
}

func toNumber(v any) (number, bool) {
	switch n := v.(type) {
	case int:
		return number{kind: signedNumber, i: int64(n)}, true
	case int8:
		return number{kind: signedNumber, i: int64(n)}, true
	case int16:
		return number{kind: signedNumber, i: int64(n)}, true
	case int32:
		return number{kind: signedNumber, i: int64(n)}, true
	case int64:
		return number{kind: signedNumber, i: n}, true
	case uint:
		return number{kind: unsignedNumber, u: uint64(n)}, true
	case uint8:
		return number{kind: unsignedNumber, u: uint64(n)}, true
	case uint16:
		return number{kind: unsignedNumber, u: uint64(n)}, true
	case uint32:
		return number{kind: unsignedNumber, u: uint64(n)}, true
	case uint64:
		return number{kind: unsignedNumber, u: n}, true
	case float32:
		return number{kind: floatNumber, f: float64(n)}, true
	case float64:
		return number{kind: floatNumber, f: n}, true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return number{kind: signedNumber, i: i}, true
		}
		f, err := n.Float64()
		return number{kind: floatNumber, f: f}, err == nil
	}
	return number{}, false
}

func (n number) isNaN() bool { return n.kind == floatNumber && math.IsNaN(n.f) }

func (n number) float() float64 {
	switch n.kind {
	case signedNumber:
		return float64(n.i)
	case unsignedNumber:
		return float64(n.u)
	}
	return n.f
}

func (n number) big() *big.Float {
	switch n.kind {
	case signedNumber:
		return new(big.Float).SetInt64(n.i)
	case unsignedNumber:
		return new(big.Float).SetUint64(n.u)
	}
	return new(big.Float).SetFloat64(n.f)
}

// compareNumbers orders a against b exactly. NaN falls back to cmp.Compare,
// which sorts it before every other value.
func compareNumbers(a, b number) int {
	if a.isNaN() || b.isNaN() {
		return cmp.Compare(a.float(), b.float())
	}
	if a.kind == b.kind {
		switch a.kind {
		case signedNumber:
			return cmp.Compare(a.i, b.i)
		case unsignedNumber:
			return cmp.Compare(a.u, b.u)
		default:
			return cmp.Compare(a.f, b.f)
		}
	}
	return a.big().Cmp(b.big())
}

// equal never fails: values of different kinds are simply unequal. Lists and
// string-keyed objects compare element by element with the same rules.
func equal(a, b any) bool {
	na, aNum := toNumber(a)
	nb, bNum := toNumber(b)
	if aNum || bNum {
		return aNum && bNum && !na.isNaN() && !nb.isNaN() && compareNumbers(na, nb) == 0
	}
	switch av := a.(type) {
	case nil:
		return b == nil
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}

	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	switch {
	case isList(av) && isList(bv):
		if av.Len() != bv.Len() {
			return false
		}
		for i := range av.Len() {
			if !equal(av.Index(i).Interface(), bv.Index(i).Interface()) {
				return false
			}
		}
		return true
	case isObject(av) && isObject(bv):
		if av.Len() != bv.Len() {
			return false
		}
		iter := av.MapRange()
		for iter.Next() {
			other := bv.MapIndex(reflect.ValueOf(iter.Key().String()).Convert(bv.Type().Key()))
			if !other.IsValid() || !equal(iter.Value().Interface(), other.Interface()) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

func isList(v reflect.Value) bool {
	return v.Kind() == reflect.Slice || v.Kind() == reflect.Array
}

func isObject(v reflect.Value) bool {
	return v.Kind() == reflect.Map && v.Type().Key().Kind() == reflect.String
}

// order returns -1, 0 or 1. Only numbers and strings are ordered.
func order(a, b any) (int, error) {
	na, aNum := toNumber(a)
	nb, bNum := toNumber(b)
	if aNum && bNum {
		return compareNumbers(na, nb), nil
	}
	as, aStr := a.(string)
	bs, bStr := b.(string)
	if aStr && bStr {
		return strings.Compare(as, bs), nil
	}
	return 0, fmt.Errorf("%w: cannot order %T against %T", ErrTypeMismatch, a, b)
}
