package docstore

import (
	"errors"

	"github.com/stevemurr/plaindb/query"
)

var (
	// ErrReservedField is returned by Insert when a document already carries
	// the identifier field.
	ErrReservedField = errors.New("reserved field conflict")

	// ErrNotFound is returned by the identifier based operations when the
	// identifier does not exist. Predicate based lookups never return it.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTableName is returned for an empty table name.
	ErrInvalidTableName = errors.New("invalid table name")

	// ErrInvalidDocument is returned when a document fails the table schema.
	// It is the same value as query.ErrInvalidDocument.
	ErrInvalidDocument = query.ErrInvalidDocument
)
