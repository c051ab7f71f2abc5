package metastore

import (
	"context"
	"sort"
	"strings"
	"sync"
)

type memoryRecord struct {
	value    []byte
	revision uint64
}

// MemoryStore is an in-process Store. Revisions are drawn from a single
// monotonically increasing sequence, like a JetStream stream.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
	seq     uint64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]memoryRecord)}
}

func (m *MemoryStore) Get(ctx context.Context, key string) (*Entry, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &Entry{Key: key, Value: clone(rec.value), Revision: rec.revision}, nil
}

func (m *MemoryStore) Create(ctx context.Context, key string, value []byte) (uint64, error) {
	if err := ValidateKey(key); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[key]; ok {
		return 0, ErrKeyExists
	}
	return m.writeLocked(key, value), nil
}

func (m *MemoryStore) Put(ctx context.Context, key string, value []byte) (uint64, error) {
	if err := ValidateKey(key); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeLocked(key, value), nil
}

func (m *MemoryStore) Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error) {
	if err := ValidateKey(key); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		return 0, ErrNotFound
	}
	if rec.revision != revision {
		return 0, ErrRevisionMismatch
	}
	return m.writeLocked(key, value), nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key)
	return nil
}

func (m *MemoryStore) List(ctx context.Context, prefix string) ([]Entry, error) {
	if err := ValidatePrefix(prefix); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	entries := make([]Entry, 0)
	for k, rec := range m.records {
		if strings.HasPrefix(k, prefix) {
			entries = append(entries, Entry{Key: k, Value: clone(rec.value), Revision: rec.revision})
		}
	}
	m.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) writeLocked(key string, value []byte) uint64 {
	m.seq++
	m.records[key] = memoryRecord{value: clone(value), revision: m.seq}
	return m.seq
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

var _ Store = (*MemoryStore)(nil)
