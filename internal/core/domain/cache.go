package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// CacheRegion names a durable cache partition. High-volume resource
// families get their own region so one hot family cannot crowd out the rest.
type CacheRegion string

const (
	RegionProducts   CacheRegion = "products"
	RegionCategories CacheRegion = "categories"
	RegionGeneral    CacheRegion = "general"
)

// RegionForKey maps a cache key to its durable region by resource family.
func RegionForKey(key string) CacheRegion {
	switch {
	case strings.Contains(key, "/products"):
		return RegionProducts
	case strings.Contains(key, "/categories"):
		return RegionCategories
	default:
		return RegionGeneral
	}
}

// CacheEntry is a last-known-good response body for one logical resource.
// Entries captured while offline are kept far longer than online ones.
type CacheEntry struct {
	Key           string          `db:"cache_key"      json:"key"`
	Payload       json.RawMessage `db:"payload"        json:"payload"`
	WrittenAt     time.Time       `db:"written_at"     json:"writtenAt"`
	OriginOffline bool            `db:"origin_offline" json:"originOffline"`
}

// Fresh reports whether the entry is still within its TTL at the given time.
func (e *CacheEntry) Fresh(now time.Time, onlineTTL, offlineTTL time.Duration) bool {
	ttl := onlineTTL
	if e.OriginOffline {
		ttl = offlineTTL
	}
	return now.Sub(e.WrittenAt) < ttl
}
