package store_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	_ "github.com/mattn/go-sqlite3"

	"github.com/stevemurr/plaindb/codec"
	"github.com/stevemurr/plaindb/store"
)

// runStoreTests runs a common test suite against any Store implementation.
func runStoreTests(t *testing.T, s store.Store) {
	t.Helper()

	t.Run("Read empty", func(t *testing.T) {
		snap, err := s.Read()
		if err != nil {
			t.Fatal(err)
		}
		if snap == nil {
			t.Fatal("expected empty snapshot, got nil")
		}
		if len(snap) != 0 {
			t.Fatalf("expected 0 tables, got %d", len(snap))
		}
	})

	t.Run("Write and Read", func(t *testing.T) {
		want := store.Snapshot{
			"_default": store.Documents{
				"1": {"_id": float64(1), "title": "hello", "count": float64(42)},
				"2": {"_id": float64(2), "tags": []any{"a", "b"}, "meta": map[string]any{"ok": true}},
			},
			"notes": store.Documents{},
		}
		if err := s.Write(want); err != nil {
			t.Fatal(err)
		}
		got, err := s.Read()
		if err != nil {
			t.Fatal(err)
		}
		// YAML keeps whole numbers as int; compare numbers by value.
		if diff := cmp.Diff(want, got, equateNumbers); diff != "" {
			t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Write replaces", func(t *testing.T) {
		if err := s.Write(store.Snapshot{"other": store.Documents{"7": {"x": "y"}}}); err != nil {
			t.Fatal(err)
		}
		got, err := s.Read()
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 {
			t.Fatalf("expected 1 table, got %d: %v", len(got), got)
		}
		if got["other"]["7"]["x"] != "y" {
			t.Fatalf("expected other/7 x=y, got %v", got["other"]["7"])
		}
	})

	t.Run("Read returns copies", func(t *testing.T) {
		got, err := s.Read()
		if err != nil {
			t.Fatal(err)
		}
		got["other"]["7"]["x"] = "mutated"
		delete(got, "other")

		again, err := s.Read()
		if err != nil {
			t.Fatal(err)
		}
		if again["other"]["7"]["x"] != "y" {
			t.Fatalf("store was aliased: %v", again)
		}
	})

	t.Run("Write empty", func(t *testing.T) {
		if err := s.Write(store.Snapshot{}); err != nil {
			t.Fatal(err)
		}
		got, err := s.Read()
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 0 {
			t.Fatalf("expected empty snapshot, got %v", got)
		}
	})
}

// equateNumbers treats numbers of different Go types holding the same value
// as equal.
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
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, store.NewMemoryStore())
}

func TestMemoryStoreYAML(t *testing.T) {
	runStoreTests(t, store.NewMemoryStoreWithCodec(codec.YAML{}))
}

func TestFileStore(t *testing.T) {
	tests := []struct {
		name string
		opts []store.FileOption
	}{
		{"go-json", nil},
		{"json", []store.FileOption{store.WithCodec(codec.JSON{})}},
		{"yaml", []store.FileOption{store.WithCodec(codec.YAML{})}},
		{"zstd", []store.FileOption{store.WithCompression(store.CompressZstd)}},
		{"lz4", []store.FileOption{store.WithCompression(store.CompressLZ4)}},
		{"yaml+zstd", []store.FileOption{store.WithCodec(codec.YAML{}), store.WithCompression(store.CompressZstd)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", "db")
			s, err := store.NewFileStore(path, tc.opts...)
			if err != nil {
				t.Fatal(err)
			}
			runStoreTests(t, s)
		})
	}
}

func TestSqliteStore(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	s, err := store.NewSqliteStore(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	runStoreTests(t, s)
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	first, err := store.NewFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Write(store.Snapshot{"t": store.Documents{"1": {"v": "a"}}}); err != nil {
		t.Fatal(err)
	}

	second, err := store.NewFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	got, err := second.Read()
	if err != nil {
		t.Fatal(err)
	}
	if got["t"]["1"]["v"] != "a" {
		t.Fatalf("expected t/1 v=a, got %v", got)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o644 {
		t.Fatalf("expected mode 0644, got %v", info.Mode().Perm())
	}
}

func TestFileStoreEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := store.NewFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.Read()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty snapshot, got %v", got)
	}
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := store.NewFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Read(); !errors.Is(err, store.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}

	zs, err := store.NewFileStore(path, store.WithCompression(store.CompressZstd))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := zs.Read(); !errors.Is(err, store.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt for bad zstd frame, got %v", err)
	}
}

func TestFileStoreUnknownCompression(t *testing.T) {
	_, err := store.NewFileStore(filepath.Join(t.TempDir(), "db"), store.WithCompression("brotli"))
	if !errors.Is(err, store.ErrUnknownCompression) {
		t.Fatalf("expected ErrUnknownCompression, got %v", err)
	}
}

func TestParseCompression(t *testing.T) {
	for in, want := range map[string]store.Compression{
		"":     store.CompressNone,
		"none": store.CompressNone,
		"zstd": store.CompressZstd,
		"lz4":  store.CompressLZ4,
	} {
		got, err := store.ParseCompression(in)
		if err != nil {
			t.Fatalf("ParseCompression(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseCompression(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := store.ParseCompression("gzip"); err == nil {
		t.Fatal("expected error for gzip")
	}
}

func TestFactory(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		backend string
	}{
		{"json"},
		{"yaml"},
		{"sqlite"},
		{"memory"},
		{""},
	}
	for _, tc := range tests {
		t.Run(tc.backend, func(t *testing.T) {
			s, err := store.New(tc.backend, filepath.Join(dir, tc.backend))
			if err != nil {
				t.Fatal(err)
			}
			defer s.Close()
			if err := s.Write(store.Snapshot{"t": store.Documents{}}); err != nil {
				t.Fatal(err)
			}
		})
	}

	t.Run("compressed file name", func(t *testing.T) {
		s, err := store.New("json", filepath.Join(dir, "z"), store.WithCompression(store.CompressZstd))
		if err != nil {
			t.Fatal(err)
		}
		fs, ok := s.(*store.FileStore)
		if !ok {
			t.Fatalf("expected *store.FileStore, got %T", s)
		}
		if filepath.Base(fs.Path()) != "plaindb.json.zst" {
			t.Fatalf("unexpected path %s", fs.Path())
		}
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := store.New("redis", dir)
		if !errors.Is(err, store.ErrUnknownBackend) {
			t.Fatalf("expected ErrUnknownBackend, got %v", err)
		}
	})
}
