package docstore_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/stevemurr/plaindb/docstore"
	"github.com/stevemurr/plaindb/store"
)

// countingStore records how often the backing store is touched and can be
// told to fail writes.
type countingStore struct {
	store.Store
	reads     int
	writes    int
	failWrite error
}

func newCountingStore() *countingStore {
	return &countingStore{Store: store.NewMemoryStore()}
}

func (c *countingStore) Read() (store.Snapshot, error) {
	c.reads++
	return c.Store.Read()
}

func (c *countingStore) Write(s store.Snapshot) error {
	if c.failWrite != nil {
		return c.failWrite
	}
	c.writes++
	return c.Store.Write(s)
}

var errDiskFull = errors.New("disk full")

func openDB(t *testing.T, s store.Store, opts ...docstore.Option) *docstore.DB {
	t.Helper()
	db, err := docstore.Open(s, opts...)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustInsert(t *testing.T, tbl interface {
	Insert(docstore.Document) (int, error)
}, docs ...docstore.Document) []int {
	t.Helper()
	ids := make([]int, 0, len(docs))
	for _, doc := range docs {
		id, err := tbl.Insert(doc)
		if err != nil {
			t.Fatalf("insert %v: %v", doc, err)
		}
		ids = append(ids, id)
	}
	return ids
}

func ids(docs []docstore.Document) []int {
	out := make([]int, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID())
	}
	return out
}

// equateNumbers treats numbers of different Go types holding the same value
// as equal, since YAML decodes integers as int and JSON as int64.
var equateNumbers = cmp.FilterValues(func(x, y any) bool {
	_, xok := number(x)
	_, yok := number(y)
	return xok && yok
}, cmp.Comparer(func(x, y any) bool {
	a, _ := number(x)
	b, _ := number(y)
	return a == b
}))

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
