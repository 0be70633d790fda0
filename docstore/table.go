package docstore

import (
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/stevemurr/plaindb/query"
	"github.com/stevemurr/plaindb/schema"
	"github.com/stevemurr/plaindb/store"
)

// Container reads and writes whole tables. *DB is the usual implementation.
type Container interface {
	ReadTable(name string) (store.Documents, error)
	WriteTable(name string, docs store.Documents) error
}

// Table is one named collection of documents with its own identifier
// sequence and query cache.
//
// Every operation reads the full table from the container; every mutation
// writes the full table back. Identifiers are assigned from a counter derived
// at construction as the largest identifier present, so they are never reused
// by this Table. The counter is not persisted: if the documents holding the
// largest identifiers are removed, a Table constructed later starts again
// from the largest remaining identifier.
//
// # Query cache
//
// Search results are cached per predicate description and the cache is
// cleared by every successful mutation made through this Table. Writes made
// through any other handle to the same storage are not observed, so the cache
// is only coherent while this Table is the sole writer of its table.
//
// # Concurrency
//
// A Table is not safe for concurrent use and has no coordination with other
// Tables over the same storage. Callers that share one must serialize access.
type Table struct {
	name      string
	container Container
	lastID    int
	cache     map[string][]Document
	schema    map[string]any
	log       *slog.Logger
	metrics   MetricsCollector
}

// NewTable opens the table name stored in c.
func NewTable(name string, c Container, opts ...Option) (*Table, error) {
	if name == "" {
		return nil, ErrInvalidTableName
	}
	s := newSettings(opts)
	t := &Table{
		name:      name,
		container: c,
		cache:     make(map[string][]Document),
		log:       s.logger.With("table", name),
		metrics:   s.metrics,
	}

	docs, err := t.read()
	if err != nil {
		return nil, fmt.Errorf("open table %q: %w", name, err)
	}
	for _, doc := range docs {
		t.lastID = max(t.lastID, doc.ID())
	}
	return t, nil
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// LastID returns the most recently assigned identifier.
func (t *Table) LastID() int { return t.lastID }

// SetSchema makes Insert validate documents against a JSON Schema. A nil
// schema disables validation. The schema is kept in memory only.
func (t *Table) SetSchema(s map[string]any) error {
	if err := schema.Check(s); err != nil {
		return err
	}
	t.schema = s
	return nil
}

// Schema returns the schema set with SetSchema, or nil.
func (t *Table) Schema() map[string]any { return t.schema }

// All returns every document in ascending identifier order.
func (t *Table) All() (docs []Document, err error) {
	defer t.observe("all", time.Now(), &err)
	return t.read()
}

// Len returns the number of documents.
func (t *Table) Len() (int, error) {
	docs, err := t.All()
	return len(docs), err
}

// Insert stores a copy of doc under a new identifier and returns it.
//
// doc must not contain IDField. The caller's map is not modified.
func (t *Table) Insert(doc Document) (id int, err error) {
	defer t.observe("insert", time.Now(), &err)

	if err := t.validate(doc); err != nil {
		return 0, err
	}
	docs, err := t.readMap()
	if err != nil {
		return 0, err
	}

	t.lastID++
	id = t.lastID
	stamped := doc.Clone()
	stamped[IDField] = id
	docs[formatID(id)] = stamped

	if err := t.write("insert", docs); err != nil {
		return 0, err
	}
	return id, nil
}

// InsertMany inserts every document with one write. Either all documents
// are inserted or, if any fails validation, none is.
func (t *Table) InsertMany(in ...Document) (ids []int, err error) {
	defer t.observe("insert_many", time.Now(), &err)

	for i, doc := range in {
		if err := t.validate(doc); err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
	}
	docs, err := t.readMap()
	if err != nil {
		return nil, err
	}

	ids = make([]int, 0, len(in))
	for _, doc := range in {
		t.lastID++
		stamped := doc.Clone()
		stamped[IDField] = t.lastID
		docs[formatID(t.lastID)] = stamped
		ids = append(ids, t.lastID)
	}
	if err := t.write("insert_many", docs); err != nil {
		return nil, err
	}
	return ids, nil
}

// Search returns every document matching p, in ascending identifier order.
//
// A repeated search with a predicate of the same description is answered
// from the query cache without reading storage. The returned documents are
// shared with the cache and must not be modified.
func (t *Table) Search(p query.Predicate) (docs []Document, err error) {
	defer t.observe("search", time.Now(), &err)

	if p.IsZero() {
		return nil, query.ErrPredicateNotReady
	}
	key := p.String()
	if cached, ok := t.cache[key]; ok {
		t.metrics.RecordCache(t.name, true)
		t.log.Debug("query cache hit", "query", key, "count", len(cached))
		return slices.Clone(cached), nil
	}
	t.metrics.RecordCache(t.name, false)

	all, err := t.read()
	if err != nil {
		return nil, err
	}
	docs = make([]Document, 0)
	for _, doc := range all {
		ok, err := p.Match(doc)
		if err != nil {
			return nil, fmt.Errorf("search %s: %w", key, err)
		}
		if ok {
			docs = append(docs, doc)
		}
	}
	t.cache[key] = docs
	t.log.Debug("query cache store", "query", key, "count", len(docs))
	return slices.Clone(docs), nil
}

// Contains reports whether any document matches p.
func (t *Table) Contains(p query.Predicate) (bool, error) {
	docs, err := t.Search(p)
	return len(docs) > 0, err
}

// Get returns the first document, in ascending identifier order, that
// matches p. A miss is reported with ok == false, not with an error.
func (t *Table) Get(p query.Predicate) (doc Document, ok bool, err error) {
	defer t.observe("get", time.Now(), &err)

	if p.IsZero() {
		return nil, false, query.ErrPredicateNotReady
	}
	all, err := t.read()
	if err != nil {
		return nil, false, err
	}
	for _, doc := range all {
		ok, err := p.Match(doc)
		if err != nil {
			return nil, false, fmt.Errorf("get %s: %w", p, err)
		}
		if ok {
			return doc, true, nil
		}
	}
	return nil, false, nil
}

// GetByID returns the document with identifier id, or ErrNotFound.
func (t *Table) GetByID(id int) (doc Document, err error) {
	defer t.observe("get_by_id", time.Now(), &err)

	docs, err := t.readMap()
	if err != nil {
		return nil, err
	}
	raw, ok := docs[formatID(id)]
	if !ok {
		return nil, t.notFound(id)
	}
	return Document(raw), nil
}

// GetMany returns the documents with the given identifiers, in the order
// given. Any missing identifier fails the whole call with ErrNotFound.
func (t *Table) GetMany(ids ...int) (out []Document, err error) {
	defer t.observe("get_many", time.Now(), &err)

	docs, err := t.readMap()
	if err != nil {
		return nil, err
	}
	out = make([]Document, 0, len(ids))
	for _, id := range ids {
		raw, ok := docs[formatID(id)]
		if !ok {
			return nil, t.notFound(id)
		}
		out = append(out, Document(raw))
	}
	return out, nil
}

// Remove deletes every document matching p and returns their identifiers.
//
// Matching goes through Search, so a cached result is reused. Documents are
// removed by identifier: another document with identical content but a
// different identifier is kept.
func (t *Table) Remove(p query.Predicate) (ids []int, err error) {
	defer t.observe("remove", time.Now(), &err)

	matched, err := t.Search(p)
	if err != nil {
		return nil, err
	}
	docs, err := t.readMap()
	if err != nil {
		return nil, err
	}
	ids = make([]int, 0, len(matched))
	for _, doc := range matched {
		key := formatID(doc.ID())
		if _, ok := docs[key]; ok {
			delete(docs, key)
			ids = append(ids, doc.ID())
		}
	}
	if err := t.write("remove", docs); err != nil {
		return nil, err
	}
	return ids, nil
}

// RemoveByID deletes the document with identifier id, or fails with
// ErrNotFound.
func (t *Table) RemoveByID(id int) error {
	return t.RemoveByIDs(id)
}

// RemoveByIDs deletes several documents with one write. It fails fast: if
// any identifier is missing nothing is removed and ErrNotFound is returned.
func (t *Table) RemoveByIDs(ids ...int) (err error) {
	defer t.observe("remove_by_id", time.Now(), &err)

	docs, err := t.readMap()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, ok := docs[formatID(id)]; !ok {
			return t.notFound(id)
		}
	}
	for _, id := range ids {
		delete(docs, formatID(id))
	}
	return t.write("remove_by_id", docs)
}

// Purge removes every document. Identifiers keep increasing afterwards.
func (t *Table) Purge() (err error) {
	defer t.observe("purge", time.Now(), &err)
	return t.write("purge", store.Documents{})
}

func (t *Table) validate(doc Document) error {
	if _, ok := doc[IDField]; ok {
		return fmt.Errorf("%w: %q is assigned by the table", ErrReservedField, IDField)
	}
	if t.schema == nil {
		return nil
	}
	if err := schema.Validate(t.schema, doc); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return nil
}

// readMap returns the table keyed by identifier, with IDField stamped from
// the key so that it is an int whatever the codec decoded.
func (t *Table) readMap() (store.Documents, error) {
	docs, err := t.container.ReadTable(t.name)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = store.Documents{}
	}
	for key, doc := range docs {
		id, err := strconv.Atoi(key)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%w: table %q: identifier %q", store.ErrCorrupt, t.name, key)
		}
		if doc == nil {
			doc = map[string]any{}
			docs[key] = doc
		}
		doc[IDField] = id
	}
	return docs, nil
}

func (t *Table) read() ([]Document, error) {
	docs, err := t.readMap()
	if err != nil {
		return nil, err
	}
	out := make([]Document, 0, len(docs))
	for _, doc := range docs {
		out = append(out, Document(doc))
	}
	slices.SortFunc(out, func(a, b Document) int { return a.ID() - b.ID() })
	return out, nil
}

// write persists docs and, only once that succeeded, clears the query cache.
func (t *Table) write(op string, docs store.Documents) error {
	if err := t.container.WriteTable(t.name, docs); err != nil {
		return err
	}
	t.clearCache()
	t.metrics.RecordSize(t.name, len(docs))
	t.log.Debug("table written", "op", op, "count", len(docs))
	return nil
}

func (t *Table) clearCache() {
	if len(t.cache) > 0 {
		t.log.Debug("query cache cleared", "entries", len(t.cache))
	}
	clear(t.cache)
}

func (t *Table) notFound(id int) error {
	return fmt.Errorf("%w: table %q has no document %d", ErrNotFound, t.name, id)
}

func (t *Table) observe(op string, start time.Time, err *error) {
	t.metrics.RecordOp(t.name, op, time.Since(start), *err)
}
