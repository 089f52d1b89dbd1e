// Package runcache keeps serialized optimization results in the cache database.
package runcache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// DefaultTTL is how long entries stay readable when no TTL is configured.
const DefaultTTL = 24 * time.Hour

// Cache stores msgpack-encoded values with an expiry.
// Database: cache.db (run_cache table)
type Cache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
	log zerolog.Logger
}

// New creates a new run cache
func New(db *sql.DB, ttl time.Duration, log zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		db:  db,
		ttl: ttl,
		now: time.Now,
		log: log.With().Str("component", "run_cache").Logger(),
	}
}

// Set encodes value and stores it under key, replacing any previous entry.
func (c *Cache) Set(ctx context.Context, key string, value interface{}) error {
	payload, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", key, err)
	}

	expires := c.now().Add(c.ttl).Unix()
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO run_cache (key, payload, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, expires_at = excluded.expires_at
	`, key, payload, expires)
	if err != nil {
		return fmt.Errorf("failed to write cache entry %s: %w", key, err)
	}

	c.log.Debug().Str("key", key).Int("bytes", len(payload)).Msg("Cached entry")
	return nil
}

// Get decodes the entry under key into dst. found is false when the key is
// absent or expired.
func (c *Cache) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	var payload []byte
	err := c.db.QueryRowContext(ctx, `
		SELECT payload FROM run_cache WHERE key = ? AND expires_at > ?
	`, key, c.now().Unix()).Scan(&payload)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cache entry %s: %w", key, err)
	}

	if err := msgpack.Unmarshal(payload, dst); err != nil {
		return false, fmt.Errorf("failed to decode cache entry %s: %w", key, err)
	}
	return true, nil
}

// Purge deletes expired entries and returns how many were removed.
func (c *Cache) Purge(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM run_cache WHERE expires_at <= ?`, c.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		c.log.Info().Int64("removed", n).Msg("Purged expired cache entries")
	}
	return n, nil
}
