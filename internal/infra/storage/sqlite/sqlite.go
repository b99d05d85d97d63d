// Package sqlite implements the durable device-local store on top of an
// embedded SQLite database. Cache entries are partitioned into one table
// per resource family; the mutation queue relies on AUTOINCREMENT ids
// for FIFO ordering.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/zerodaysoftware/storekit/internal/core/domain"
	"github.com/zerodaysoftware/storekit/internal/infra/storage"
)

//go:embed migrations/*.sql
var migrations embed.FS

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Config holds SQLite store configuration.
type Config struct {
	Path string `yaml:"path"`
}

// SQLiteStore is a durable storage.Store backed by one database file.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewStore opens (or creates) the database and runs pending migrations.
func NewStore(ctx context.Context, cfg Config) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cfg.Path)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// modernc sqlite allows a single writer; serialize through one conn
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := goose.Up(db.DB, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Cache() storage.CacheStore { return &cacheRepo{db: s.db} }
func (s *SQLiteStore) Queue() storage.QueueStore { return &queueRepo{db: s.db} }
func (s *SQLiteStore) Close() error              { return s.db.Close() }

func cacheTable(key string) string {
	// Region names are fixed constants, safe to interpolate.
	return "cache_" + string(domain.RegionForKey(key))
}

type cacheRow struct {
	CacheKey      string `db:"cache_key"`
	Payload       []byte `db:"payload"`
	WrittenAt     int64  `db:"written_at"`
	OriginOffline bool   `db:"origin_offline"`
}

type cacheRepo struct {
	db *sqlx.DB
}

func (r *cacheRepo) Get(ctx context.Context, key string) (*domain.CacheEntry, error) {
	query := fmt.Sprintf(
		"SELECT cache_key, payload, written_at, origin_offline FROM %s WHERE cache_key = ?",
		cacheTable(key),
	)

	var row cacheRow
	err := r.db.GetContext(ctx, &row, query, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}

	return &domain.CacheEntry{
		Key:           row.CacheKey,
		Payload:       row.Payload,
		WrittenAt:     time.UnixMilli(row.WrittenAt),
		OriginOffline: row.OriginOffline,
	}, nil
}

func (r *cacheRepo) Put(ctx context.Context, entry *domain.CacheEntry) error {
	query := fmt.Sprintf(
		"INSERT OR REPLACE INTO %s (cache_key, payload, written_at, origin_offline) VALUES (?, ?, ?, ?)",
		cacheTable(entry.Key),
	)
	_, err := r.db.ExecContext(ctx, query,
		entry.Key, []byte(entry.Payload), entry.WrittenAt.UnixMilli(), entry.OriginOffline)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

func (r *cacheRepo) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE cache_key = ?", cacheTable(key))
	if _, err := r.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

type queueRow struct {
	ID          int64  `db:"id"`
	OperationID string `db:"operation_id"`
	Endpoint    string `db:"endpoint"`
	Method      string `db:"method"`
	Body        []byte `db:"body"`
	EnqueuedAt  int64  `db:"enqueued_at"`
	Attempts    int    `db:"attempts"`
	LastError   string `db:"last_error"`
}

func (row *queueRow) toDomain() *domain.Mutation {
	return &domain.Mutation{
		ID:          row.ID,
		OperationID: row.OperationID,
		Endpoint:    row.Endpoint,
		Method:      row.Method,
		Body:        row.Body,
		EnqueuedAt:  time.UnixMilli(row.EnqueuedAt),
		Attempts:    row.Attempts,
		LastError:   row.LastError,
	}
}

type queueRepo struct {
	db *sqlx.DB
}

func (r *queueRepo) Append(ctx context.Context, m *domain.Mutation) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO mutation_queue (operation_id, endpoint, method, body, enqueued_at, attempts, last_error)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.OperationID, m.Endpoint, m.Method, []byte(m.Body),
		m.EnqueuedAt.UnixMilli(), m.Attempts, m.LastError)
	if err != nil {
		return fmt.Errorf("queue append: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("queue append id: %w", err)
	}
	m.ID = id
	return nil
}

func (r *queueRepo) Remove(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM mutation_queue WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("queue remove: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *queueRepo) Update(ctx context.Context, m *domain.Mutation) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE mutation_queue SET attempts = ?, last_error = ? WHERE id = ?",
		m.Attempts, m.LastError, m.ID)
	if err != nil {
		return fmt.Errorf("queue update: %w", err)
	}
	return nil
}

func (r *queueRepo) List(ctx context.Context) ([]*domain.Mutation, error) {
	var rows []queueRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT id, operation_id, endpoint, method, body, enqueued_at, attempts, last_error
		 FROM mutation_queue ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("queue list: %w", err)
	}

	out := make([]*domain.Mutation, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

func (r *queueRepo) Len(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM mutation_queue"); err != nil {
		return 0, fmt.Errorf("queue len: %w", err)
	}
	return count, nil
}
