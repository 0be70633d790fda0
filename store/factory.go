package store

import (
	"fmt"
	"path/filepath"

	"github.com/stevemurr/plaindb/codec"
)

// New creates a Store based on the backend name.
//
// Supported backends:
//
//	"json"   - dataDir/plaindb.json (default)
//	"yaml"   - dataDir/plaindb.yaml
//	"sqlite" - SQLite database at dataDir/plaindb.db
//	"memory" - In-memory (ephemeral, for testing)
//
// File backends get the compression suffix appended to the file name, e.g.
// plaindb.json.zst. opts only apply to file backends and are applied after
// the backend's own codec, so WithCodec(codec.JSON{}) selects the standard
// library encoder for the json backend.
func New(backend, dataDir string, opts ...FileOption) (Store, error) {
	switch backend {
	case "json", "":
		return newFile(dataDir, "plaindb.json", codec.GoJSON{}, opts)
	case "yaml":
		return newFile(dataDir, "plaindb.yaml", codec.YAML{}, opts)
	case "sqlite":
		return NewSqliteStore(filepath.Join(dataDir, "plaindb.db"))
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q (supported: json, yaml, sqlite, memory)", ErrUnknownBackend, backend)
	}
}

func newFile(dataDir, name string, c codec.Codec, opts []FileOption) (*FileStore, error) {
	tmp := &FileStore{}
	for _, opt := range opts {
		opt(tmp)
	}
	path := filepath.Join(dataDir, name+tmp.compression.Ext())
	return NewFileStore(path, append([]FileOption{WithCodec(c)}, opts...)...)
}
