// Package cache provides the tiered read-through cache: a process-local
// map in front of a durable store, with differentiated TTLs for entries
// captured online versus offline.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zerodaysoftware/storekit/internal/core/domain"
	"github.com/zerodaysoftware/storekit/internal/infra/storage"
	"github.com/zerodaysoftware/storekit/internal/metrics"
)

// Config holds TTL policy for the cache.
type Config struct {
	OnlineTTL  time.Duration `yaml:"online_ttl"`
	OfflineTTL time.Duration `yaml:"offline_ttl"`
}

// Manager is a best-effort optimization layer, never a source of truth:
// durable-store failures degrade to a miss instead of propagating.
type Manager struct {
	store      storage.CacheStore
	onlineTTL  time.Duration
	offlineTTL time.Duration
	log        *slog.Logger

	mu      sync.RWMutex
	entries map[string]*domain.CacheEntry

	// now is swappable in tests
	now func() time.Time
}

// NewManager creates a cache manager over a durable store.
func NewManager(store storage.CacheStore, cfg Config, log *slog.Logger) *Manager {
	onlineTTL := cfg.OnlineTTL
	if onlineTTL == 0 {
		onlineTTL = 5 * time.Minute
	}
	offlineTTL := cfg.OfflineTTL
	if offlineTTL == 0 {
		offlineTTL = 24 * time.Hour
	}
	if log == nil {
		log = slog.Default()
	}

	return &Manager{
		store:      store,
		onlineTTL:  onlineTTL,
		offlineTTL: offlineTTL,
		log:        log,
		entries:    make(map[string]*domain.CacheEntry),
		now:        time.Now,
	}
}

// Key builds the composite cache key for an endpoint and its query
// params. Params are sorted so equivalent requests share one key.
func Key(endpoint string, params url.Values) string {
	if len(params) == 0 {
		return endpoint
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(endpoint)
	b.WriteByte('?')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strings.Join(params[k], ","))
	}
	return b.String()
}

// Get returns the cached payload for a key, or nil if absent or expired.
// Durable hits are promoted into the memory tier.
func (m *Manager) Get(ctx context.Context, key string) json.RawMessage {
	return m.get(ctx, key, false)
}

// GetStale is the degraded-mode read: it accepts entries up to the
// offline TTL regardless of how they were written. Used when the network
// is down and stale data beats no data.
func (m *Manager) GetStale(ctx context.Context, key string) json.RawMessage {
	return m.get(ctx, key, true)
}

func (m *Manager) get(ctx context.Context, key string, stale bool) json.RawMessage {
	now := m.now()

	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if ok && m.usable(entry, now, stale) {
		metrics.CacheHitsTotal.WithLabelValues("memory").Inc()
		return entry.Payload
	}

	stored, err := m.store.Get(ctx, key)
	if err != nil {
		if err != storage.ErrNotFound {
			m.log.Warn("cache read failed, treating as miss", "key", key, "error", err)
		}
		metrics.CacheMissesTotal.Inc()
		return nil
	}

	if !m.usable(stored, now, stale) {
		// Lazy expiry: the row stays until overwritten.
		metrics.CacheMissesTotal.Inc()
		return nil
	}

	m.mu.Lock()
	m.entries[key] = stored
	m.mu.Unlock()

	metrics.CacheHitsTotal.WithLabelValues("durable").Inc()
	return stored.Payload
}

func (m *Manager) usable(e *domain.CacheEntry, now time.Time, stale bool) bool {
	if stale {
		return now.Sub(e.WrittenAt) < m.offlineTTL
	}
	return e.Fresh(now, m.onlineTTL, m.offlineTTL)
}

// Set writes an entry through both tiers. Durable failures are logged
// and swallowed; the memory tier always reflects the latest write.
func (m *Manager) Set(ctx context.Context, key string, payload json.RawMessage, originOffline bool) {
	entry := &domain.CacheEntry{
		Key:           key,
		Payload:       payload,
		WrittenAt:     m.now(),
		OriginOffline: originOffline,
	}

	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()

	if err := m.store.Put(ctx, entry); err != nil {
		m.log.Warn("cache write failed", "key", key, "error", err)
	}
}

// Clear drops all in-memory entries. Durable entries expire by TTL or
// are overwritten on the next fetch.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.entries = make(map[string]*domain.CacheEntry)
	m.mu.Unlock()
}

// ClearPrefix drops in-memory entries whose key contains the pattern.
func (m *Manager) ClearPrefix(pattern string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.entries {
		if strings.Contains(key, pattern) {
			delete(m.entries, key)
		}
	}
}
