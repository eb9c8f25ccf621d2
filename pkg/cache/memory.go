package cache

import (
	"context"
	"fmt"
	"sync"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStorage keeps named stores in process memory.
// Entries never expire; a store lives until it is deleted.
type MemoryStorage struct {
	mu     sync.RWMutex
	stores map[string]*memoryStore
	order  []string
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		stores: make(map[string]*memoryStore),
	}
}

// Open returns the named store, creating it if absent.
func (s *MemoryStorage) Open(_ context.Context, name string) (Store, error) {
	if name == "" {
		return nil, fmt.Errorf("store name cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.stores[name]; ok {
		return st, nil
	}

	// cleanupInterval 0 disables the janitor goroutine
	st := &memoryStore{
		storage: s,
		name:    name,
		items:   gocache.New(gocache.NoExpiration, 0),
	}
	s.stores[name] = st
	s.order = append(s.order, name)
	return st, nil
}

// Has reports whether a store with this name exists.
func (s *MemoryStorage) Has(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.stores[name]
	return ok, nil
}

// Keys lists store names in creation order.
func (s *MemoryStorage) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, len(s.order))
	copy(names, s.order)
	return names, nil
}

// Delete removes the named store.
func (s *MemoryStorage) Delete(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.stores[name]
	if !ok {
		return false, nil
	}
	delete(s.stores, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	st.mu.Lock()
	st.deleted = true
	st.items.Flush()
	st.mu.Unlock()

	return true, nil
}

type memoryStore struct {
	storage *MemoryStorage
	name    string

	// mu serialises writers so PutAll is applied as a unit
	mu      sync.Mutex
	deleted bool
	items   *gocache.Cache
}

func (s *memoryStore) Name() string {
	return s.name
}

func (s *memoryStore) Match(_ context.Context, key RequestKey) (*Entry, error) {
	v, ok := s.items.Get(key.String())
	if !ok {
		CacheMisses.WithLabelValues("memory").Inc()
		return nil, ErrCacheMiss
	}
	entry, ok := v.(*Entry)
	if !ok {
		CacheErrors.WithLabelValues("match").Inc()
		return nil, ErrInvalidEntry
	}

	CacheHits.WithLabelValues("memory").Inc()
	return copyEntry(entry), nil
}

func (s *memoryStore) Put(ctx context.Context, key RequestKey, entry *Entry) error {
	return s.PutAll(ctx, []Item{{Key: key, Entry: entry}})
}

func (s *memoryStore) PutAll(_ context.Context, items []Item) error {
	for _, item := range items {
		if item.Entry == nil {
			return fmt.Errorf("cache entry cannot be nil")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.deleted {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("%w: %s", ErrStoreNotFound, s.name)
	}

	size := 0
	for _, item := range items {
		s.items.Set(item.Key.String(), copyEntry(item.Entry), gocache.NoExpiration)
		size += item.Entry.Size()
	}

	CacheWrittenBytes.WithLabelValues("memory").Add(float64(size))
	return nil
}

func (s *memoryStore) Delete(_ context.Context, key RequestKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key.String()
	if _, ok := s.items.Get(k); !ok {
		return false, nil
	}
	s.items.Delete(k)
	return true, nil
}

func (s *memoryStore) Len(_ context.Context) (int, error) {
	return s.items.ItemCount(), nil
}

// copyEntry detaches an entry from caller-owned slices and maps.
func copyEntry(e *Entry) *Entry {
	c := *e
	c.Headers = e.Headers.Clone()
	if e.Data != nil {
		c.Data = append([]byte(nil), e.Data...)
	}
	return &c
}
