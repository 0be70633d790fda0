// Package schema validates documents against a JSON Schema subset.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
)

var (
	// ErrViolation wraps every validation failure reported by Validate.
	ErrViolation = errors.New("schema violation")

	// ErrInvalidSchema is returned by Check for schemas Validate cannot apply.
	ErrInvalidSchema = errors.New("invalid schema")
)

var knownTypes = map[string]bool{
	"string": true, "number": true, "integer": true, "boolean": true,
	"object": true, "array": true, "null": true,
}

// Validate checks a document against a JSON Schema (draft-07 subset).
// Returns nil if validation passes or the schema is nil.
//
// Supported JSON Schema keywords:
//   - type (string, number, integer, boolean, object, array, null)
//   - properties, required, additionalProperties
//   - items (for arrays)
//   - minimum, maximum, exclusiveMinimum, exclusiveMaximum
//   - minLength, maxLength, pattern
//   - minItems, maxItems
//   - enum, const
func Validate(schema map[string]any, doc map[string]any) error {
	if schema == nil {
		return nil
	}
	if err := validateValue(schema, doc, "$"); err != nil {
		return fmt.Errorf("%w: %w", ErrViolation, err)
	}
	return nil
}

// Check reports whether schema is usable by Validate: known types, object
// valued properties and items, string required entries and compilable
// patterns. A nil schema is valid.
func Check(schema map[string]any) error {
	if schema == nil {
		return nil
	}
	if err := checkSchema(schema, "$"); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSchema, err)
	}
	return nil
}

func checkSchema(schema map[string]any, path string) error {
	if t, ok := schema["type"]; ok {
		ts, ok := t.(string)
		if !ok || !knownTypes[ts] {
			return fmt.Errorf("%s: unknown type %v", path, t)
		}
	}
	if req, ok := schema["required"]; ok {
		list, ok := req.([]any)
		if !ok {
			return fmt.Errorf("%s: required must be a list", path)
		}
		for _, r := range list {
			if _, ok := r.(string); !ok {
				return fmt.Errorf("%s: required entries must be strings, got %v", path, r)
			}
		}
	}
	if p, ok := schema["pattern"]; ok {
		ps, ok := p.(string)
		if !ok {
			return fmt.Errorf("%s: pattern must be a string", path)
		}
		if _, err := regexp.Compile(ps); err != nil {
			return fmt.Errorf("%s: pattern: %w", path, err)
		}
	}
	if props, ok := schema["properties"]; ok {
		propsMap, ok := props.(map[string]any)
		if !ok {
			return fmt.Errorf("%s: properties must be an object", path)
		}
		names := make([]string, 0, len(propsMap))
		for name := range propsMap {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			ps, ok := propsMap[name].(map[string]any)
			if !ok {
				return fmt.Errorf("%s.%s: property schema must be an object", path, name)
			}
			if err := checkSchema(ps, path+"."+name); err != nil {
				return err
			}
		}
	}
	if items, ok := schema["items"]; ok {
		is, ok := items.(map[string]any)
		if !ok {
			return fmt.Errorf("%s: items must be an object", path)
		}
		return checkSchema(is, path+"[]")
	}
	return nil
}

func validateValue(schema map[string]any, value any, path string) error {
	if t, ok := schema["type"]; ok {
		if ts, ok := t.(string); ok {
			if err := checkType(ts, value, path); err != nil {
				return err
			}
		}
	}

	if enumRaw, ok := schema["enum"]; ok {
		if enumList, ok := enumRaw.([]any); ok {
			if err := checkEnum(enumList, value, path); err != nil {
				return err
			}
		}
	}

	if c, ok := schema["const"]; ok && !sameValue(c, value) {
		return fmt.Errorf("%s: value %v is not %v", path, value, c)
	}

	switch v := value.(type) {
	case map[string]any:
		return validateObject(schema, v, path)
	case []any:
		return validateArray(schema, v, path)
	case string:
		return validateString(schema, v, path)
	}
	if n, ok := toFloat(value); ok {
		return validateNumber(schema, n, path)
	}
	return nil
}

func checkType(expected string, value any, path string) error {
	actual := jsonType(value)
	if expected == "integer" {
		if f, ok := toFloat(value); ok && f == float64(int64(f)) {
			return nil
		}
		return fmt.Errorf("%s: expected type %q, got %q", path, expected, actual)
	}
	if actual != expected {
		// "number" also accepts integer
		if expected == "number" && actual == "integer" {
			return nil
		}
		return fmt.Errorf("%s: expected type %q, got %q", path, expected, actual)
	}
	return nil
}

func jsonType(v any) string {
	if v == nil {
		return "null"
	}
	switch v.(type) {
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float32, float64, json.Number:
		return "number"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "integer"
	default:
		return reflect.TypeOf(v).String()
	}
}

func checkEnum(allowed []any, value any, path string) error {
	for _, a := range allowed {
		if sameValue(a, value) {
			return nil
		}
	}
	return fmt.Errorf("%s: value not in enum %v", path, allowed)
}

// sameValue compares numbers by value, so that 1 from a Go literal equals
// 1.0 decoded from JSON.
func sameValue(a, b any) bool {
	fa, aok := toFloat(a)
	fb, bok := toFloat(b)
	if aok && bok {
		return fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func validateObject(schema map[string]any, obj map[string]any, path string) error {
	if req, ok := schema["required"]; ok {
		if reqList, ok := req.([]any); ok {
			for _, r := range reqList {
				if field, ok := r.(string); ok {
					if _, exists := obj[field]; !exists {
						return fmt.Errorf("%s: missing required field %q", path, field)
					}
				}
			}
		}
	}

	propsMap := map[string]any{}
	if props, ok := schema["properties"]; ok {
		if pm, ok := props.(map[string]any); ok {
			propsMap = pm
		}
	}

	fields := make([]string, 0, len(obj))
	for field := range obj {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		ps, ok := propsMap[field].(map[string]any)
		if !ok {
			continue
		}
		if err := validateValue(ps, obj[field], path+"."+field); err != nil {
			return err
		}
	}

	if ap, ok := schema["additionalProperties"]; ok {
		if apBool, ok := ap.(bool); ok && !apBool {
			var extra []string
			for _, field := range fields {
				if _, defined := propsMap[field]; !defined {
					extra = append(extra, field)
				}
			}
			if len(extra) > 0 {
				return fmt.Errorf("%s: additional properties not allowed: %s", path, strings.Join(extra, ", "))
			}
		}
	}

	return nil
}

func validateArray(schema map[string]any, arr []any, path string) error {
	if v, ok := toFloat(schema["minItems"]); ok {
		if float64(len(arr)) < v {
			return fmt.Errorf("%s: array length %d is less than minItems %v", path, len(arr), v)
		}
	}
	if v, ok := toFloat(schema["maxItems"]); ok {
		if float64(len(arr)) > v {
			return fmt.Errorf("%s: array length %d is greater than maxItems %v", path, len(arr), v)
		}
	}
	if items, ok := schema["items"]; ok {
		if itemSchema, ok := items.(map[string]any); ok {
			for i, elem := range arr {
				if err := validateValue(itemSchema, elem, fmt.Sprintf("%s[%d]", path, i)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func validateString(schema map[string]any, s string, path string) error {
	if v, ok := toFloat(schema["minLength"]); ok {
		if float64(len(s)) < v {
			return fmt.Errorf("%s: string length %d is less than minLength %v", path, len(s), v)
		}
	}
	if v, ok := toFloat(schema["maxLength"]); ok {
		if float64(len(s)) > v {
			return fmt.Errorf("%s: string length %d is greater than maxLength %v", path, len(s), v)
		}
	}
	if p, ok := schema["pattern"].(string); ok {
		re, err := regexp.Compile(p)
		if err != nil {
			return fmt.Errorf("%s: pattern: %w", path, err)
		}
		if !re.MatchString(s) {
			return fmt.Errorf("%s: %q does not match pattern %q", path, s, p)
		}
	}
	return nil
}

func validateNumber(schema map[string]any, n float64, path string) error {
	if v, ok := toFloat(schema["minimum"]); ok {
		if n < v {
			return fmt.Errorf("%s: %v is less than minimum %v", path, n, v)
		}
	}
	if v, ok := toFloat(schema["maximum"]); ok {
		if n > v {
			return fmt.Errorf("%s: %v is greater than maximum %v", path, n, v)
		}
	}
	if v, ok := toFloat(schema["exclusiveMinimum"]); ok {
		if n <= v {
			return fmt.Errorf("%s: %v is not greater than exclusiveMinimum %v", path, n, v)
		}
	}
	if v, ok := toFloat(schema["exclusiveMaximum"]); ok {
		if n >= v {
			return fmt.Errorf("%s: %v is not less than exclusiveMaximum %v", path, n, v)
		}
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
