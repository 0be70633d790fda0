package store

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/natefinch/atomic"

	"github.com/stevemurr/plaindb/codec"
)

// FileStore stores the whole snapshot in a single file.
//
// Layout (json codec):
//
//	{
//	  "_default": {"1": {"_id": 1, "title": "hello"}},
//	  "notes":    {}
//	}
//
// Every Write replaces the file through a temp file and rename, so a crash
// leaves either the old or the new snapshot on disk.
type FileStore struct {
	mu          sync.RWMutex
	path        string
	codec       codec.Codec
	compression Compression
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithCodec sets the encoding of the file. Defaults to codec.Default.
func WithCodec(c codec.Codec) FileOption {
	return func(s *FileStore) {
		if c != nil {
			s.codec = c
		}
	}
}

// WithCompression compresses the encoded snapshot before writing it.
func WithCompression(c Compression) FileOption {
	return func(s *FileStore) { s.compression = c }
}

func NewFileStore(path string, opts ...FileOption) (*FileStore, error) {
	s := &FileStore{path: path, codec: codec.Default}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := ParseCompression(string(s.compression)); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the file the snapshot is stored in.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Read() (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return Snapshot{}, nil
	}
	raw, err := s.compression.decompress(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, s.path, err)
	}
	return decodeSnapshot(s.codec, raw)
}

func (s *FileStore) Write(snap Snapshot) error {
	b, err := s.codec.Marshal(normalize(snap))
	if err != nil {
		return fmt.Errorf("encode snapshot (%s): %w", s.codec.Name(), err)
	}
	b, err = s.compression.compress(b)
	if err != nil {
		return fmt.Errorf("compress snapshot (%s): %w", s.compression, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := atomic.WriteFile(s.path, bytes.NewReader(b)); err != nil {
		return err
	}
	// The temp file behind atomic.WriteFile is created 0600.
	return os.Chmod(s.path, 0o644)
}

func (s *FileStore) Close() error { return nil }
