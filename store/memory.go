package store

import (
	"fmt"
	"sync"

	"github.com/stevemurr/plaindb/codec"
)

// MemoryStore keeps the snapshot in memory. Data is lost on restart.
//
// The snapshot is held in encoded form, so every Read decodes a fresh copy
// and callers can never alias stored documents. Safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	codec codec.Codec
	data  []byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{codec: codec.Default}
}

// NewMemoryStoreWithCodec is NewMemoryStore with an explicit encoding.
func NewMemoryStoreWithCodec(c codec.Codec) *MemoryStore {
	if c == nil {
		c = codec.Default
	}
	return &MemoryStore{codec: c}
}

func (m *MemoryStore) Read() (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return decodeSnapshot(m.codec, m.data)
}

func (m *MemoryStore) Write(s Snapshot) error {
	b, err := m.codec.Marshal(normalize(s))
	if err != nil {
		return fmt.Errorf("encode snapshot (%s): %w", m.codec.Name(), err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = b
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// decodeSnapshot decodes b, treating no bytes as an empty snapshot.
func decodeSnapshot(c codec.Codec, b []byte) (Snapshot, error) {
	if len(b) == 0 {
		return Snapshot{}, nil
	}
	var s Snapshot
	if err := c.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("%w (%s): %w", ErrCorrupt, c.Name(), err)
	}
	return normalize(s), nil
}

// normalize replaces nil maps so that empty tables survive a round trip as
// empty objects rather than nulls.
func normalize(s Snapshot) Snapshot {
	if s == nil {
		return Snapshot{}
	}
	for name, docs := range s {
		if docs == nil {
			s[name] = Documents{}
		}
	}
	return s
}
