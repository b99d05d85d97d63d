package storage

import (
	"context"
	"errors"

	"github.com/zerodaysoftware/storekit/internal/core/domain"
)

var (
	// ErrNotFound is returned when a key has no stored entry
	ErrNotFound = errors.New("entry not found")
)

// CacheStore persists last-known-good response bodies across restarts.
// Writes are partitioned by resource family (domain.RegionForKey); TTL
// policy is the cache manager's job, stores only keep bytes.
type CacheStore interface {
	// Get retrieves the entry for a key, ErrNotFound when absent
	Get(ctx context.Context, key string) (*domain.CacheEntry, error)

	// Put inserts or overwrites the entry for its key
	Put(ctx context.Context, entry *domain.CacheEntry) error

	// Delete removes the entry for a key, nil if absent
	Delete(ctx context.Context, key string) error
}

// QueueStore persists buffered mutations in FIFO order across restarts.
type QueueStore interface {
	// Append stores a new mutation and assigns its monotonic ID
	Append(ctx context.Context, m *domain.Mutation) error

	// Remove deletes a mutation after a confirmed successful replay
	Remove(ctx context.Context, id int64) error

	// Update records replay bookkeeping (attempts, last error)
	Update(ctx context.Context, m *domain.Mutation) error

	// List returns all mutations ordered by ID ascending
	List(ctx context.Context) ([]*domain.Mutation, error)

	// Len returns the number of buffered mutations
	Len(ctx context.Context) (int, error)
}

// Store bundles both repositories behind one durable backend.
type Store interface {
	Cache() CacheStore
	Queue() QueueStore
	Close() error
}
