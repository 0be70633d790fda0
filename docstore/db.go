// Package docstore is an embedded, schema-less document store.
//
// A DB holds named tables of documents in a single backing store. Tables
// assign integer identifiers, answer predicate queries built with package
// query, and cache query results until the next write:
//
//	db, err := docstore.Open(store.NewMemoryStore())
//	id, err := db.Insert(docstore.Document{"int": 1, "char": "a"})
//	docs, err := db.Search(query.Field("int").Eq(1))
//
// Every operation reads the whole table and every mutation writes the whole
// snapshot back; there are no indexes, transactions or coordination between
// writers.
package docstore

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/stevemurr/plaindb/query"
	"github.com/stevemurr/plaindb/store"
)

// DB is the container of tables. It owns the registry of opened tables:
// Table returns the same *Table for the same name for the lifetime of the DB.
type DB struct {
	store    store.Store
	settings settings
	tables   map[string]*Table
	def      *Table
	log      *slog.Logger
}

// Open wraps s and opens the default table.
func Open(s store.Store, opts ...Option) (*DB, error) {
	st := newSettings(opts)
	db := &DB{
		store:    s,
		settings: st,
		tables:   make(map[string]*Table),
		log:      st.logger,
	}
	def, err := db.Table(st.defaultTable)
	if err != nil {
		return nil, err
	}
	db.def = def
	return db, nil
}

// Table returns the table called name, opening it on first use.
func (db *DB) Table(name string) (*Table, error) {
	if t, ok := db.tables[name]; ok {
		return t, nil
	}
	t, err := NewTable(name, db, WithLogger(db.settings.logger), WithMetrics(db.settings.metrics))
	if err != nil {
		return nil, err
	}
	db.tables[name] = t
	db.log.Debug("table opened", "table", name, "last_id", t.LastID())
	return t, nil
}

// Lookup returns the table called name if it is already open or present in
// storage, and ErrNotFound otherwise. Unlike Table it never registers a
// table that does not exist.
func (db *DB) Lookup(name string) (*Table, error) {
	if t, ok := db.tables[name]; ok {
		return t, nil
	}
	snap, err := db.store.Read()
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if _, ok := snap[name]; !ok {
		return nil, fmt.Errorf("%w: table %q", ErrNotFound, name)
	}
	return db.Table(name)
}

// OpenTables lists the names of the tables with a registered handle, sorted.
func (db *DB) OpenTables() []string {
	return slices.Sorted(maps.Keys(db.tables))
}

// Default returns the table the document methods of DB forward to.
func (db *DB) Default() *Table { return db.def }

// Tables lists the tables present in storage, sorted by name.
func (db *DB) Tables() ([]string, error) {
	snap, err := db.store.Read()
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return slices.Sorted(maps.Keys(snap)), nil
}

// DropTable deletes a table from storage and forgets its handle. A later
// Table call with the same name starts a fresh identifier sequence.
func (db *DB) DropTable(name string) error {
	snap, err := db.store.Read()
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	if _, ok := snap[name]; !ok {
		if _, open := db.tables[name]; !open {
			return fmt.Errorf("%w: table %q", ErrNotFound, name)
		}
	}
	delete(snap, name)
	if err := db.store.Write(snap); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if t, ok := db.tables[name]; ok {
		t.clearCache()
		if t != db.def {
			delete(db.tables, name)
		}
	}
	db.log.Info("table dropped", "table", name)
	return nil
}

// PurgeAll removes every table from storage. It cannot be undone.
func (db *DB) PurgeAll() error {
	if err := db.store.Write(store.Snapshot{}); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	for _, t := range db.tables {
		t.clearCache()
	}
	db.log.Info("all tables purged", "open_tables", len(db.tables))
	return nil
}

// Close closes the backing store.
func (db *DB) Close() error {
	return db.store.Close()
}

// ReadTable implements Container.
func (db *DB) ReadTable(name string) (store.Documents, error) {
	snap, err := db.store.Read()
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	docs, ok := snap[name]
	if !ok || docs == nil {
		return store.Documents{}, nil
	}
	return docs, nil
}

// WriteTable implements Container. The other tables of the snapshot are
// written back unchanged.
func (db *DB) WriteTable(name string, docs store.Documents) error {
	snap, err := db.store.Read()
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	snap[name] = docs
	if err := db.store.Write(snap); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// The methods below forward to the default table.

func (db *DB) Insert(doc Document) (int, error)              { return db.def.Insert(doc) }
func (db *DB) InsertMany(docs ...Document) ([]int, error)    { return db.def.InsertMany(docs...) }
func (db *DB) All() ([]Document, error)                      { return db.def.All() }
func (db *DB) Len() (int, error)                             { return db.def.Len() }
func (db *DB) Search(p query.Predicate) ([]Document, error)  { return db.def.Search(p) }
func (db *DB) Contains(p query.Predicate) (bool, error)      { return db.def.Contains(p) }
func (db *DB) Get(p query.Predicate) (Document, bool, error) { return db.def.Get(p) }
func (db *DB) GetByID(id int) (Document, error)              { return db.def.GetByID(id) }
func (db *DB) Remove(p query.Predicate) ([]int, error)       { return db.def.Remove(p) }
func (db *DB) RemoveByID(id int) error                       { return db.def.RemoveByID(id) }
func (db *DB) Purge() error                                  { return db.def.Purge() }
