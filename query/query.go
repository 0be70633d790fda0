// Package query builds composable boolean matchers over documents.
//
// A predicate is built from a field reference and a comparison, then combined
// with And, Or and Not:
//
//	p := query.Field("int").Eq(1).And(query.Field("char").Ne("b"))
//	ok, err := p.Match(map[string]any{"int": 1, "char": "a"})
//
// Predicates are immutable values. Every node carries its own evaluation
// function; there is no query planner, a predicate is evaluated directly
// against one document at a time.
package query

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDocument is returned when a predicate is evaluated against
	// something that is not a document.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidPattern is returned by Matches for a pattern that does not compile.
	ErrInvalidPattern = errors.New("invalid pattern")

	// ErrTypeMismatch is returned at evaluation time when a field value cannot
	// be compared with the literal of the predicate.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrPredicateNotReady is returned when the zero Predicate is evaluated.
	ErrPredicateNotReady = errors.New("predicate not ready")

	// ErrInvalidQuery is returned by Parse for malformed query documents.
	ErrInvalidQuery = errors.New("invalid query")
)

// Op tags the kind of a predicate node.
type Op int

const (
	OpInvalid Op = iota
	OpExists
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpRegex
	OpAnd
	OpOr
	OpNot
)

var opSymbols = map[Op]string{
	OpExists: "has",
	OpEq:     "==",
	OpNe:     "!=",
	OpLt:     "<",
	OpLe:     "<=",
	OpGt:     ">",
	OpGe:     ">=",
	OpRegex:  "=~",
	OpAnd:    "and",
	OpOr:     "or",
	OpNot:    "not",
}

func (o Op) String() string {
	if s, ok := opSymbols[o]; ok {
		return s
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Predicate is a boolean function of a document.
//
// The zero value is not usable: evaluating it fails with ErrPredicateNotReady.
type Predicate struct {
	op       Op
	key      string
	value    any
	desc     string
	operands []Predicate
	eval     func(doc map[string]any) (bool, error)
}

// Op reports the node kind.
func (p Predicate) Op() Op { return p.op }

// Key reports the field a comparison node is bound to. Empty for combinators.
func (p Predicate) Key() string { return p.key }

// Value reports the literal of a comparison node (the pattern for OpRegex).
func (p Predicate) Value() any { return p.value }

// Operands returns the children of a combinator node.
func (p Predicate) Operands() []Predicate {
	out := make([]Predicate, len(p.operands))
	copy(out, p.operands)
	return out
}

// IsZero reports whether p is the zero Predicate.
func (p Predicate) IsZero() bool { return p.eval == nil }

// String returns a stable description of the predicate. Two predicates with
// the same description match the same documents.
func (p Predicate) String() string {
	if p.eval == nil {
		return "<not ready>"
	}
	return p.desc
}

// Match evaluates the predicate against doc.
func (p Predicate) Match(doc map[string]any) (bool, error) {
	if doc == nil {
		return false, ErrInvalidDocument
	}
	return p.test(doc)
}

// MatchValue evaluates the predicate against an arbitrary decoded value.
// Anything other than a map[string]any fails with ErrInvalidDocument.
func (p Predicate) MatchValue(v any) (bool, error) {
	doc, ok := v.(map[string]any)
	if !ok {
		return false, fmt.Errorf("%w: got %T", ErrInvalidDocument, v)
	}
	return p.Match(doc)
}

func (p Predicate) test(doc map[string]any) (bool, error) {
	if p.eval == nil {
		return false, ErrPredicateNotReady
	}
	return p.eval(doc)
}

// And is shorthand for And(p, q).
func (p Predicate) And(q Predicate) Predicate { return And(p, q) }

// Or is shorthand for Or(p, q).
func (p Predicate) Or(q Predicate) Predicate { return Or(p, q) }

// Not is shorthand for Not(p).
func (p Predicate) Not() Predicate { return Not(p) }

// And matches when both p and q match. q is not evaluated when p fails.
func And(p, q Predicate) Predicate {
	return Predicate{
		op:       OpAnd,
		desc:     fmt.Sprintf("(%s) and (%s)", p, q),
		operands: []Predicate{p, q},
		eval: func(doc map[string]any) (bool, error) {
			ok, err := p.test(doc)
			if err != nil || !ok {
				return false, err
			}
			return q.test(doc)
		},
	}
}

// Or matches when p or q matches. q is not evaluated when p matches.
func Or(p, q Predicate) Predicate {
	return Predicate{
		op:       OpOr,
		desc:     fmt.Sprintf("(%s) or (%s)", p, q),
		operands: []Predicate{p, q},
		eval: func(doc map[string]any) (bool, error) {
			ok, err := p.test(doc)
			if err != nil || ok {
				return ok, err
			}
			return q.test(doc)
		},
	}
}

// Not inverts p. Errors from p are passed through unchanged.
func Not(p Predicate) Predicate {
	return Predicate{
		op:       OpNot,
		desc:     fmt.Sprintf("not (%s)", p),
		operands: []Predicate{p},
		eval: func(doc map[string]any) (bool, error) {
			ok, err := p.test(doc)
			if err != nil {
				return false, err
			}
			return !ok, nil
		},
	}
}
