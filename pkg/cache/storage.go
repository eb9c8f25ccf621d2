package cache

import (
	"context"
	"errors"
)

var (
	// ErrCacheMiss indicates the requested key was not found in the store
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")

	// ErrStoreNotFound indicates the named store does not exist (or was deleted)
	ErrStoreNotFound = errors.New("cache store not found")
)

// Item is a key/entry pair written by Store.PutAll.
type Item struct {
	Key   RequestKey
	Entry *Entry
}

// Store is a single named cache store.
// Implementations must be safe for concurrent use.
type Store interface {
	// Name returns the store name (e.g., "talent-cache-v1").
	Name() string

	// Match returns the entry stored for key, or ErrCacheMiss.
	Match(ctx context.Context, key RequestKey) (*Entry, error)

	// Put stores entry under key, replacing any previous entry.
	Put(ctx context.Context, key RequestKey, entry *Entry) error

	// PutAll stores every item or none of them.
	PutAll(ctx context.Context, items []Item) error

	// Delete removes the entry for key. It reports whether an entry existed.
	Delete(ctx context.Context, key RequestKey) (bool, error)

	// Len returns the number of entries in the store.
	Len(ctx context.Context) (int, error)
}

// Storage holds the named cache stores of one origin.
type Storage interface {
	// Open returns the named store, creating it if absent.
	Open(ctx context.Context, name string) (Store, error)

	// Has reports whether a store with this name exists.
	Has(ctx context.Context, name string) (bool, error)

	// Keys lists store names in creation order.
	Keys(ctx context.Context) ([]string, error)

	// Delete removes the named store and all its entries.
	// It reports whether the store existed.
	Delete(ctx context.Context, name string) (bool, error)
}
