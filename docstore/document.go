package docstore

import (
	"maps"
	"strconv"
)

// IDField is the reserved field holding a document's identifier.
const IDField = "_id"

// Document is one record of a table.
type Document map[string]any

// ID returns the identifier stamped on the document, or 0 if it has none.
func (d Document) ID() int {
	switch v := d[IDField].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Clone returns a shallow copy of d.
func (d Document) Clone() Document {
	if d == nil {
		return Document{}
	}
	return maps.Clone(d)
}

func formatID(id int) string { return strconv.Itoa(id) }
