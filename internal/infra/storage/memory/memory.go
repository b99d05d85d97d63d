package memory

import (
	"context"
	"sync"

	"github.com/zerodaysoftware/storekit/internal/core/domain"
	"github.com/zerodaysoftware/storekit/internal/infra/storage"
)

// MemoryStore is a non-durable storage.Store used in tests and when no
// device database is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*domain.CacheEntry
	queue   []*domain.Mutation
	nextID  int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*domain.CacheEntry),
		nextID:  1,
	}
}

func (s *MemoryStore) Cache() storage.CacheStore { return &cacheRepo{store: s} }
func (s *MemoryStore) Queue() storage.QueueStore { return &queueRepo{store: s} }
func (s *MemoryStore) Close() error              { return nil }

type cacheRepo struct {
	store *MemoryStore
}

func (r *cacheRepo) Get(ctx context.Context, key string) (*domain.CacheEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	e, ok := r.store.entries[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *cacheRepo) Put(ctx context.Context, entry *domain.CacheEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *entry
	r.store.entries[entry.Key] = &cp
	return nil
}

func (r *cacheRepo) Delete(ctx context.Context, key string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.entries, key)
	return nil
}

type queueRepo struct {
	store *MemoryStore
}

func (r *queueRepo) Append(ctx context.Context, m *domain.Mutation) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	m.ID = r.store.nextID
	r.store.nextID++
	cp := *m
	r.store.queue = append(r.store.queue, &cp)
	return nil
}

func (r *queueRepo) Remove(ctx context.Context, id int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for i, m := range r.store.queue {
		if m.ID == id {
			r.store.queue = append(r.store.queue[:i], r.store.queue[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

func (r *queueRepo) Update(ctx context.Context, m *domain.Mutation) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, q := range r.store.queue {
		if q.ID == m.ID {
			q.Attempts = m.Attempts
			q.LastError = m.LastError
			return nil
		}
	}
	return storage.ErrNotFound
}

func (r *queueRepo) List(ctx context.Context) ([]*domain.Mutation, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]*domain.Mutation, 0, len(r.store.queue))
	for _, m := range r.store.queue {
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func (r *queueRepo) Len(ctx context.Context) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.queue), nil
}
