package query

import (
	"fmt"
	"sort"
	"strings"

	gojson "github.com/goccy/go-json"
)

// Parse converts a query document into a Predicate.
//
//	{"age": {"$gt": 25}, "status": "active"}
//	{"$or": [{"char": "a"}, {"char": "b"}]}
//	{"$not": {"name": {"$regex": "^tmp"}}}
//	{"email": {"$exists": true}}
//
// A bare value is an implicit $eq. Multiple keys, and multiple operators on
// one field, are combined with And in sorted order so the resulting
// description is stable.
func Parse(q map[string]any) (Predicate, error) {
	if len(q) == 0 {
		return Predicate{}, fmt.Errorf("%w: empty query", ErrInvalidQuery)
	}

	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	nodes := make([]Predicate, 0, len(keys))
	for _, key := range keys {
		var (
			node Predicate
			err  error
		)
		switch key {
		case "$and", "$or":
			node, err = parseLogical(key, q[key])
		case "$not":
			sub, ok := q[key].(map[string]any)
			if !ok {
				return Predicate{}, fmt.Errorf("%w: value for $not must be an object", ErrInvalidQuery)
			}
			node, err = Parse(sub)
			node = Not(node)
		default:
			if strings.HasPrefix(key, "$") {
				return Predicate{}, fmt.Errorf("%w: unknown operator %s", ErrInvalidQuery, key)
			}
			node, err = parseField(key, q[key])
		}
		if err != nil {
			return Predicate{}, err
		}
		nodes = append(nodes, node)
	}
	return fold(And, nodes), nil
}

// ParseJSON decodes data as a JSON object and parses it with Parse.
func ParseJSON(data []byte) (Predicate, error) {
	var q map[string]any
	if err := gojson.Unmarshal(data, &q); err != nil {
		return Predicate{}, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	return Parse(q)
}

func parseLogical(op string, val any) (Predicate, error) {
	list, ok := val.([]any)
	if !ok || len(list) == 0 {
		return Predicate{}, fmt.Errorf("%w: value for %s must be a non-empty list", ErrInvalidQuery, op)
	}
	children := make([]Predicate, 0, len(list))
	for _, item := range list {
		sub, ok := item.(map[string]any)
		if !ok {
			return Predicate{}, fmt.Errorf("%w: element of %s must be an object", ErrInvalidQuery, op)
		}
		child, err := Parse(sub)
		if err != nil {
			return Predicate{}, err
		}
		children = append(children, child)
	}
	if op == "$or" {
		return fold(Or, children), nil
	}
	return fold(And, children), nil
}

func parseField(key string, val any) (Predicate, error) {
	ops, ok := val.(map[string]any)
	if !ok || !isOperatorObject(ops) {
		return Field(key).Eq(val), nil
	}

	names := make([]string, 0, len(ops))
	for name := range ops {
		names = append(names, name)
	}
	sort.Strings(names)

	f := Field(key)
	nodes := make([]Predicate, 0, len(names))
	for _, name := range names {
		arg := ops[name]
		var node Predicate
		switch name {
		case "$eq":
			node = f.Eq(arg)
		case "$ne":
			node = f.Ne(arg)
		case "$lt":
			node = f.Lt(arg)
		case "$lte":
			node = f.Le(arg)
		case "$gt":
			node = f.Gt(arg)
		case "$gte":
			node = f.Ge(arg)
		case "$regex":
			pattern, ok := arg.(string)
			if !ok {
				return Predicate{}, fmt.Errorf("%w: $regex on %q must be a string", ErrInvalidQuery, key)
			}
			var err error
			node, err = f.Matches(pattern)
			if err != nil {
				return Predicate{}, err
			}
		case "$exists":
			want, ok := arg.(bool)
			if !ok {
				return Predicate{}, fmt.Errorf("%w: $exists on %q must be a boolean", ErrInvalidQuery, key)
			}
			node = f.Exists()
			if !want {
				node = Not(node)
			}
		default:
			return Predicate{}, fmt.Errorf("%w: unknown operator %s", ErrInvalidQuery, name)
		}
		nodes = append(nodes, node)
	}
	return fold(And, nodes), nil
}

// isOperatorObject reports whether every key of m is an operator. Objects
// without operator keys are literal values compared with $eq.
func isOperatorObject(m map[string]any) bool {
	if len(m) == 0 {
		return false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}

func fold(combine func(p, q Predicate) Predicate, nodes []Predicate) Predicate {
	p := nodes[0]
	for _, n := range nodes[1:] {
		p = combine(p, n)
	}
	return p
}
