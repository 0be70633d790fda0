package codec

import (
	"encoding/json"
	"reflect"
	"strconv"
)

// resolveNumbers walks a value decoded with UseNumber and replaces every
// json.Number held in an interface with a Go number: int64 when the literal
// is an integer that fits, uint64 above that, float64 otherwise.
func resolveNumbers(v reflect.Value) {
	switch v.Kind() {
	case reflect.Pointer:
		if !v.IsNil() {
			resolveNumbers(v.Elem())
		}
	case reflect.Interface:
		if v.IsNil() {
			return
		}
		if n, ok := v.Interface().(json.Number); ok {
			if v.CanSet() {
				v.Set(reflect.ValueOf(numberValue(n)))
			}
			return
		}
		resolveNumbers(v.Elem())
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			val := iter.Value()
			if val.Kind() == reflect.Interface && !val.IsNil() {
				if n, ok := val.Interface().(json.Number); ok {
					v.SetMapIndex(iter.Key(), reflect.ValueOf(numberValue(n)))
					continue
				}
			}
			resolveNumbers(val)
		}
	case reflect.Slice:
		for i := range v.Len() {
			resolveNumbers(v.Index(i))
		}
	}
}

func numberValue(n json.Number) any {
	s := n.String()
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if u, err := strconv.ParseUint(s, 10, 64); err == nil {
		return u
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
