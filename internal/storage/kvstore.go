// Package storage persists link cache snapshots in a SQL database. SQLite
// serves single-node deployments and tests; Postgres serves shared ones.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/spherical-ai/spherical/libs/link-engine/internal/cache"
)

// Dialect selects the SQL flavour.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
)

// ErrUnsupportedDialect is returned for drivers other than sqlite3 and postgres.
var ErrUnsupportedDialect = errors.New("unsupported sql dialect")

// DB represents a database connection interface.
type DB interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// KVStore implements cache.Client on a single SQL table.
type KVStore struct {
	db      DB
	closer  func() error
	dialect Dialect
	table   string
	now     func() time.Time
}

var _ cache.Client = (*KVStore)(nil)

// Open connects to dsn with driver, verifies the connection and creates
// the table when missing.
func Open(ctx context.Context, driver, dsn string) (*KVStore, error) {
	dialect := Dialect(driver)
	if dialect != DialectSQLite && dialect != DialectPostgres {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDialect, driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if dialect == DialectSQLite {
		// one connection keeps ":memory:" databases alive and avoids SQLITE_BUSY
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	s := NewKVStore(db, dialect)
	s.closer = db.Close
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewKVStore wraps an existing connection. The caller owns db.
func NewKVStore(db DB, dialect Dialect) *KVStore {
	return &KVStore{
		db:      db,
		dialect: dialect,
		table:   "link_cache_kv",
		now:     time.Now,
	}
}

// Migrate creates the key/value table.
func (s *KVStore) Migrate(ctx context.Context) error {
	blob := "BLOB"
	if s.dialect == DialectPostgres {
		blob = "BYTEA"
	}
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			cache_key  TEXT PRIMARY KEY,
			value      %s NOT NULL,
			expires_at BIGINT,
			updated_at BIGINT NOT NULL
		)
	`, s.table, blob)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("migrate %s: %w", s.table, err)
	}
	return nil
}

// Get retrieves a value. Expired rows are deleted and reported as a miss.
func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	query := s.rebind(fmt.Sprintf(`SELECT value, expires_at FROM %s WHERE cache_key = $1`, s.table))

	var value []byte
	var expiresAt sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cache.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("kv get: %w", err)
	}
	if expiresAt.Valid && s.now().UnixMilli() > expiresAt.Int64 {
		_ = s.Delete(ctx, key)
		return nil, cache.ErrCacheMiss
	}
	return value, nil
}

// Set upserts a value. A zero ttl stores without expiry.
func (s *KVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := s.now()
	var expiresAt sql.NullInt64
	if ttl > 0 {
		expiresAt = sql.NullInt64{Int64: now.Add(ttl).UnixMilli(), Valid: true}
	}
	query := s.rebind(fmt.Sprintf(`
		INSERT INTO %s (cache_key, value, expires_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cache_key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`, s.table))
	if _, err := s.db.ExecContext(ctx, query, key, value, expiresAt, now.UnixMilli()); err != nil {
		return fmt.Errorf("kv set: %w", err)
	}
	return nil
}

// Delete removes a value.
func (s *KVStore) Delete(ctx context.Context, key string) error {
	query := s.rebind(fmt.Sprintf(`DELETE FROM %s WHERE cache_key = $1`, s.table))
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("kv delete: %w", err)
	}
	return nil
}

// DeleteByPrefix removes every key starting with prefix.
func (s *KVStore) DeleteByPrefix(ctx context.Context, prefix string) error {
	query := s.rebind(fmt.Sprintf(`DELETE FROM %s WHERE substr(cache_key, 1, $1) = $2`, s.table))
	if _, err := s.db.ExecContext(ctx, query, len(prefix), prefix); err != nil {
		return fmt.Errorf("kv delete by prefix: %w", err)
	}
	return nil
}

// PurgeExpired deletes expired rows and returns how many were removed.
func (s *KVStore) PurgeExpired(ctx context.Context) (int64, error) {
	query := s.rebind(fmt.Sprintf(`DELETE FROM %s WHERE expires_at IS NOT NULL AND expires_at < $1`, s.table))
	res, err := s.db.ExecContext(ctx, query, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("kv purge: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the connection when the store opened it.
func (s *KVStore) Close() error {
	if s.closer != nil {
		return s.closer()
	}
	return nil
}

// rebind rewrites $N placeholders to ? for SQLite.
func (s *KVStore) rebind(query string) string {
	if s.dialect != DialectSQLite {
		return query
	}
	var b strings.Builder
	for i := 0; i < len(query); i++ {
		if query[i] == '$' && i+1 < len(query) && query[i+1] >= '0' && query[i+1] <= '9' {
			j := i + 1
			for j < len(query) && query[j] >= '0' && query[j] <= '9' {
				j++
			}
			if _, err := strconv.Atoi(query[i+1 : j]); err == nil {
				b.WriteByte('?')
				i = j - 1
				continue
			}
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
