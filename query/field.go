package query

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	gojson "github.com/goccy/go-json"
)

// FieldRef names a document field. It is not a predicate on its own; call a
// comparison method, or Exists, to get one.
type FieldRef struct {
	key string
}

// Field starts a predicate on key.
func Field(key string) FieldRef { return FieldRef{key: key} }

// Has is shorthand for Field(key).Exists().
func Has(key string) Predicate { return Field(key).Exists() }

// Key returns the referenced field name.
func (f FieldRef) Key() string { return f.key }

// Exists matches documents that contain the field, whatever its value.
func (f FieldRef) Exists() Predicate {
	key := f.key
	return Predicate{
		op:   OpExists,
		key:  key,
		desc: fmt.Sprintf("has %s", quoteKey(key)),
		eval: func(doc map[string]any) (bool, error) {
			_, ok := doc[key]
			return ok, nil
		},
	}
}

// Eq matches when the field equals v.
func (f FieldRef) Eq(v any) Predicate {
	return f.compare(OpEq, v, func(got any) (bool, error) { return equal(got, v), nil })
}

// Ne matches when the field is present and differs from v.
func (f FieldRef) Ne(v any) Predicate {
	return f.compare(OpNe, v, func(got any) (bool, error) { return !equal(got, v), nil })
}

// Lt matches when the field orders before v.
func (f FieldRef) Lt(v any) Predicate {
	return f.ordered(OpLt, v, func(c int) bool { return c < 0 })
}

// Le matches when the field orders before or equal to v.
func (f FieldRef) Le(v any) Predicate {
	return f.ordered(OpLe, v, func(c int) bool { return c <= 0 })
}

// Gt matches when the field orders after v.
func (f FieldRef) Gt(v any) Predicate {
	return f.ordered(OpGt, v, func(c int) bool { return c > 0 })
}

// Ge matches when the field orders after or equal to v.
func (f FieldRef) Ge(v any) Predicate {
	return f.ordered(OpGe, v, func(c int) bool { return c >= 0 })
}

// Matches matches string fields whose value matches pattern at its start.
// The pattern must match a prefix of the value: it is neither a full match
// nor a search anywhere in the string.
func (f FieldRef) Matches(pattern string) (Predicate, error) {
	// Compile the bare pattern first so that anchoring cannot turn an
	// unbalanced pattern into a valid but different expression.
	if _, err := regexp.Compile(pattern); err != nil {
		return Predicate{}, fmt.Errorf("%w %q: %w", ErrInvalidPattern, pattern, err)
	}
	re := regexp.MustCompile(`\A(?:` + pattern + `)`)

	key := f.key
	return f.compare(OpRegex, pattern, func(got any) (bool, error) {
		s, ok := got.(string)
		if !ok {
			return false, fmt.Errorf("%w: %s =~ %q on %T", ErrTypeMismatch, quoteKey(key), pattern, got)
		}
		return re.MatchString(s), nil
	}), nil
}

// MustMatches is like Matches but panics on an invalid pattern.
func (f FieldRef) MustMatches(pattern string) Predicate {
	p, err := f.Matches(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

func (f FieldRef) compare(op Op, v any, fn func(got any) (bool, error)) Predicate {
	key := f.key
	return Predicate{
		op:    op,
		key:   key,
		value: v,
		desc:  fmt.Sprintf("%s %s %s", quoteKey(key), op, formatLiteral(v)),
		eval: func(doc map[string]any) (bool, error) {
			got, ok := doc[key]
			if !ok {
				return false, nil
			}
			return fn(got)
		},
	}
}

func (f FieldRef) ordered(op Op, v any, accept func(int) bool) Predicate {
	key := f.key
	return f.compare(op, v, func(got any) (bool, error) {
		c, err := order(got, v)
		if err != nil {
			return false, fmt.Errorf("%s %s %s: %w", quoteKey(key), op, formatLiteral(v), err)
		}
		return accept(c), nil
	})
}

var keyEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// quoteKey wraps key in single quotes, escaping backslashes and quotes so
// that no key can close the quote early.
func quoteKey(key string) string {
	return "'" + keyEscaper.Replace(key) + "'"
}

// formatLiteral renders v so that literals of different types or contents
// never share a rendering, unless they are numbers of equal value.
func formatLiteral(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(x)
	case float32:
		return fmt.Sprintf("%v", float64(x))
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
		float64, json.Number:
		return fmt.Sprintf("%v", x)
	}
	if plainValue(reflect.ValueOf(v)) {
		if b, err := gojson.Marshal(v); err == nil {
			return string(b)
		}
	}
	return fmt.Sprintf("%T(%#v)", v, v)
}

// plainValue reports whether v holds only JSON-shaped data built from
// unnamed types: scalars, lists and string-keyed objects. Those are the
// values equal compares by content, so their JSON rendering identifies them.
func plainValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Invalid:
		return true
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return v.Type().Name() == v.Kind().String()
	case reflect.Interface:
		return plainValue(v.Elem())
	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return false
		}
		for i := range v.Len() {
			if !plainValue(v.Index(i)) {
				return false
			}
		}
		return true
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return false
		}
		iter := v.MapRange()
		for iter.Next() {
			if !plainValue(iter.Value()) {
				return false
			}
		}
		return true
	}
	return false
}
