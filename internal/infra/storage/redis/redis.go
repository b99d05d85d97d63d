// Package redis implements storage.Store on a Redis server. It is meant
// for shared kiosk or integration deployments where several client
// processes share one durable backend; single-device installs use the
// sqlite store instead.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zerodaysoftware/storekit/internal/core/domain"
	"github.com/zerodaysoftware/storekit/internal/infra/storage"
)

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	// EntryTTL bounds how long cache entries live server-side. Logical
	// freshness is still decided by the cache manager.
	EntryTTL time.Duration `yaml:"entry_ttl"`
}

// RedisStore is a storage.Store backed by a Redis server.
type RedisStore struct {
	rdb      *redis.Client
	entryTTL time.Duration
}

// NewStore connects to Redis and verifies the connection.
func NewStore(cfg Config) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := cfg.EntryTTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}

	return &RedisStore{rdb: rdb, entryTTL: ttl}, nil
}

func (s *RedisStore) Cache() storage.CacheStore { return &cacheRepo{store: s} }
func (s *RedisStore) Queue() storage.QueueStore { return &queueRepo{store: s} }
func (s *RedisStore) Close() error              { return s.rdb.Close() }

// Key helpers
func cacheKey(key string) string {
	return fmt.Sprintf("storekit:cache:%s:%s", domain.RegionForKey(key), key)
}

const (
	queueKey    = "storekit:queue"
	queueSeqKey = "storekit:queue:seq"
)

type cacheRepo struct {
	store *RedisStore
}

func (r *cacheRepo) Get(ctx context.Context, key string) (*domain.CacheEntry, error) {
	val, err := r.store.rdb.Get(ctx, cacheKey(key)).Bytes()
	if err == redis.Nil {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(val, &entry); err != nil {
		return nil, fmt.Errorf("cache decode: %w", err)
	}
	return &entry, nil
}

func (r *cacheRepo) Put(ctx context.Context, entry *domain.CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := r.store.rdb.Set(ctx, cacheKey(entry.Key), data, r.store.entryTTL).Err(); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

func (r *cacheRepo) Delete(ctx context.Context, key string) error {
	return r.store.rdb.Del(ctx, cacheKey(key)).Err()
}

type queueRepo struct {
	store *RedisStore
}

func (r *queueRepo) Append(ctx context.Context, m *domain.Mutation) error {
	id, err := r.store.rdb.Incr(ctx, queueSeqKey).Result()
	if err != nil {
		return fmt.Errorf("queue seq: %w", err)
	}
	m.ID = id

	member, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("queue encode: %w", err)
	}

	if err := r.store.rdb.ZAdd(ctx, queueKey, redis.Z{
		Score:  float64(id),
		Member: string(member),
	}).Err(); err != nil {
		return fmt.Errorf("queue append: %w", err)
	}
	return nil
}

func (r *queueRepo) Remove(ctx context.Context, id int64) error {
	members, err := r.membersByID(ctx, id)
	if err != nil {
		return err
	}
	if len(members) == 0 {
		return storage.ErrNotFound
	}
	if err := r.store.rdb.ZRem(ctx, queueKey, members[0]).Err(); err != nil {
		return fmt.Errorf("queue remove: %w", err)
	}
	return nil
}

func (r *queueRepo) Update(ctx context.Context, m *domain.Mutation) error {
	members, err := r.membersByID(ctx, m.ID)
	if err != nil {
		return err
	}
	if len(members) == 0 {
		return storage.ErrNotFound
	}

	member, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("queue encode: %w", err)
	}

	// Replace the member in place; the score (id) stays the same so
	// FIFO order is preserved.
	pipe := r.store.rdb.TxPipeline()
	pipe.ZRem(ctx, queueKey, members[0])
	pipe.ZAdd(ctx, queueKey, redis.Z{Score: float64(m.ID), Member: string(member)})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("queue update: %w", err)
	}
	return nil
}

func (r *queueRepo) List(ctx context.Context) ([]*domain.Mutation, error) {
	members, err := r.store.rdb.ZRange(ctx, queueKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("queue list: %w", err)
	}

	out := make([]*domain.Mutation, 0, len(members))
	for _, member := range members {
		var m domain.Mutation
		if err := json.Unmarshal([]byte(member), &m); err != nil {
			return nil, fmt.Errorf("queue decode: %w", err)
		}
		out = append(out, &m)
	}
	return out, nil
}

func (r *queueRepo) Len(ctx context.Context) (int, error) {
	n, err := r.store.rdb.ZCard(ctx, queueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("queue len: %w", err)
	}
	return int(n), nil
}

func (r *queueRepo) membersByID(ctx context.Context, id int64) ([]string, error) {
	score := strconv.FormatInt(id, 10)
	members, err := r.store.rdb.ZRangeByScore(ctx, queueKey, &redis.ZRangeBy{
		Min: score,
		Max: score,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("queue lookup: %w", err)
	}
	return members, nil
}
