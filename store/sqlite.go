package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/stevemurr/plaindb/codec"
)

// SqliteStore stores the snapshot in a SQLite database.
//
// Tables:
//
//	tables(name)               PRIMARY KEY (name)
//	documents(tbl, id, data)   PRIMARY KEY (tbl, id)
//
// The caller must import a "sqlite3" driver, e.g. github.com/mattn/go-sqlite3.
type SqliteStore struct {
	mu    sync.RWMutex
	db    *sql.DB
	codec codec.Codec
}

func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS tables (
		name TEXT PRIMARY KEY
	)`); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		tbl TEXT NOT NULL,
		id TEXT NOT NULL,
		data TEXT NOT NULL,
		PRIMARY KEY (tbl, id)
	)`); err != nil {
		db.Close()
		return nil, err
	}
	return &SqliteStore{db: db, codec: codec.GoJSON{}}, nil
}

func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func (s *SqliteStore) Read() (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{}
	names, err := s.db.Query("SELECT name FROM tables")
	if err != nil {
		return nil, err
	}
	defer names.Close()
	for names.Next() {
		var name string
		if err := names.Scan(&name); err != nil {
			return nil, err
		}
		snap[name] = Documents{}
	}
	if err := names.Err(); err != nil {
		return nil, err
	}

	rows, err := s.db.Query("SELECT tbl, id, data FROM documents")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var tbl, id, raw string
		if err := rows.Scan(&tbl, &id, &raw); err != nil {
			return nil, err
		}
		var doc map[string]any
		if err := s.codec.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("%w: %s/%s: %w", ErrCorrupt, tbl, id, err)
		}
		if snap[tbl] == nil {
			snap[tbl] = Documents{}
		}
		snap[tbl][id] = doc
	}
	return snap, rows.Err()
}

func (s *SqliteStore) Write(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM documents"); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM tables"); err != nil {
		return err
	}
	for tbl, docs := range snap {
		if _, err := tx.Exec("INSERT INTO tables (name) VALUES (?)", tbl); err != nil {
			return err
		}
		for id, doc := range docs {
			b, err := s.codec.Marshal(doc)
			if err != nil {
				return fmt.Errorf("encode %s/%s: %w", tbl, id, err)
			}
			if _, err := tx.Exec(
				"INSERT INTO documents (tbl, id, data) VALUES (?, ?, ?)",
				tbl, id, string(b),
			); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}
