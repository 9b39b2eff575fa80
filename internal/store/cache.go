package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// CacheEntry is a previously fetched read result kept for offline use.
type CacheEntry struct {
	Key        string          `json:"key"`
	Payload    json.RawMessage `json:"payload"`
	RecordedAt time.Time       `json:"recorded_at"`
	ExpiresAt  time.Time       `json:"expires_at"`
}

// PutCache upserts the entry for key with expires_at = now + ttl.
// A negative ttl is treated as zero, which makes the entry unreadable
// immediately.
func (s *Store) PutCache(ctx context.Context, key string, payload any, ttl time.Duration) error {
	data, err := marshalPayload(payload)
	if err != nil {
		return storageErr("put cache", err)
	}
	if ttl < 0 {
		ttl = 0
	}

	now := s.now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cache (key, payload, recorded_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			payload     = excluded.payload,
			recorded_at = excluded.recorded_at,
			expires_at  = excluded.expires_at
	`,
		normalizeKey(key),
		data,
		now.UnixNano(),
		now.Add(ttl).UnixNano(),
	)
	if err != nil {
		return storageErr("put cache", err)
	}
	return nil
}

// GetCache returns the payload stored under key. ok is false when the key
// is missing or its expires_at is at or before now, whether or not the
// sweeper has removed the row yet.
func (s *Store) GetCache(ctx context.Context, key string) (payload json.RawMessage, ok bool, err error) {
	entry, ok, err := s.GetCacheEntry(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	return entry.Payload, true, nil
}

// GetCacheEntry is GetCache returning the full entry with its timestamps.
func (s *Store) GetCacheEntry(ctx context.Context, key string) (CacheEntry, bool, error) {
	var (
		entry                 CacheEntry
		payload               string
		recordedAt, expiresAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT key, payload, recorded_at, expires_at
		FROM cache
		WHERE key = ? AND expires_at > ?
	`, normalizeKey(key), s.now().UnixNano()).Scan(&entry.Key, &payload, &recordedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return CacheEntry{}, false, nil
	}
	if err != nil {
		return CacheEntry{}, false, storageErr("get cache", err)
	}

	entry.Payload = json.RawMessage(payload)
	entry.RecordedAt = time.Unix(0, recordedAt).UTC()
	entry.ExpiresAt = time.Unix(0, expiresAt).UTC()
	return entry, true, nil
}

// GetCacheInto decodes the live payload for key into dst.
func (s *Store) GetCacheInto(ctx context.Context, key string, dst any) (bool, error) {
	payload, ok, err := s.GetCache(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return false, storageErr("get cache", fmt.Errorf("decode payload: %w", err))
	}
	return true, nil
}

// SweepExpiredCache deletes every entry whose expires_at is at or before now
// and returns how many rows were removed.
//
// The delete is a single statement over idx_cache_expires_at, so a row
// refreshed by a concurrent PutCache carries its new expires_at and is not
// matched.
func (s *Store) SweepExpiredCache(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM cache WHERE expires_at <= ?
	`, s.now().UnixNano())
	if err != nil {
		return 0, storageErr("sweep cache", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, storageErr("sweep cache", err)
	}
	return n, nil
}

// CacheLen returns the number of physical cache rows, expired or not.
func (s *Store) CacheLen(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache`).Scan(&n); err != nil {
		return 0, storageErr("cache len", err)
	}
	return n, nil
}
