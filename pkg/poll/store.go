package poll

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Store caches the latest fetched response per resource key. Writes are
// last-write-wins; readers treat the content as advisory.
type Store interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]byte)}
}

func (m *MemoryStore) Put(_ context.Context, key string, value []byte) error {
	cp := append([]byte(nil), value...)
	m.mu.Lock()
	m.entries[key] = cp
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	v, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Load decodes the cached value for key into a T.
func Load[T any](ctx context.Context, store Store, key string) (T, bool, error) {
	var out T
	raw, ok, err := store.Get(ctx, key)
	if err != nil || !ok {
		return out, false, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return out, true, nil
}

// Key builds a cache key such as "deployment:12:345".
func Key(resource string, ids ...any) string {
	k := resource
	for _, id := range ids {
		k += ":" + fmt.Sprint(id)
	}
	return k
}
