package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// QueuedRequest is one mutation that has not been confirmed by the server.
type QueuedRequest struct {
	// ID is assigned by Enqueue and never reused.
	ID int64 `json:"id" yaml:"id"`

	URL     string      `json:"url" yaml:"url"`
	Method  string      `json:"method" yaml:"method"`
	Headers http.Header `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body    string      `json:"body,omitempty" yaml:"body,omitempty"`

	// Category is a caller-supplied label for diagnostics and grouping.
	// It plays no part in ordering.
	Category string `json:"category,omitempty" yaml:"category,omitempty"`

	// SyncTag is the wake tag registered when the request was queued.
	SyncTag string `json:"sync_tag,omitempty" yaml:"sync_tag,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Retries   int       `json:"retries" yaml:"retries"`
}

const queueColumns = `id, url, method, headers, body, category, sync_tag, created_at, retries`

// Enqueue inserts req with retries=0 and created_at=now and returns the
// assigned id. ID, Retries and CreatedAt on req are ignored.
func (s *Store) Enqueue(ctx context.Context, req QueuedRequest) (int64, error) {
	headers, err := marshalHeaders(req.Headers)
	if err != nil {
		return 0, storageErr("enqueue", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO request_queue
		(url, method, headers, body, category, sync_tag, created_at, retries)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0)
	`,
		req.URL,
		req.Method,
		headers,
		req.Body,
		req.Category,
		req.SyncTag,
		s.now().UnixNano(),
	)
	if err != nil {
		return 0, storageErr("enqueue", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, storageErr("enqueue", fmt.Errorf("last insert id: %w", err))
	}
	return id, nil
}

// ListQueued returns every pending request in insertion order.
//
// The result is a snapshot: rows are fully read before returning, so a
// request enqueued afterwards shows up in the next call, never twice.
func (s *Store) ListQueued(ctx context.Context) ([]QueuedRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+queueColumns+`
		FROM request_queue
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, storageErr("list queued", err)
	}
	defer rows.Close()

	var out []QueuedRequest
	for rows.Next() {
		req, err := scanQueued(rows)
		if err != nil {
			return nil, storageErr("list queued", err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list queued", err)
	}
	return out, nil
}

// GetQueued returns a single pending request, or ErrNotFound.
func (s *Store) GetQueued(ctx context.Context, id int64) (QueuedRequest, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+queueColumns+`
		FROM request_queue
		WHERE id = ?
	`, id)

	req, err := scanQueued(row)
	if errors.Is(err, sql.ErrNoRows) {
		return QueuedRequest{}, ErrNotFound
	}
	if err != nil {
		return QueuedRequest{}, storageErr("get queued", err)
	}
	return req, nil
}

// RemoveQueued deletes a pending request. Removing an id that does not
// exist is a no-op.
func (s *Store) RemoveQueued(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM request_queue WHERE id = ?`, id); err != nil {
		return storageErr("remove queued", err)
	}
	return nil
}

// IncrementRetry atomically adds one to the retry counter of id.
// Missing ids are ignored.
func (s *Store) IncrementRetry(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE request_queue SET retries = retries + 1 WHERE id = ?
	`, id)
	if err != nil {
		return storageErr("increment retry", err)
	}
	return nil
}

// Count returns the current queue depth.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM request_queue`).Scan(&n); err != nil {
		return 0, storageErr("count", err)
	}
	return n, nil
}

// ClearQueue deletes every pending request and returns how many were removed.
func (s *Store) ClearQueue(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM request_queue`)
	if err != nil {
		return 0, storageErr("clear queue", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, storageErr("clear queue", err)
	}
	return n, nil
}

// SyncTags returns the distinct non-empty sync tags of pending requests.
func (s *Store) SyncTags(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT sync_tag FROM request_queue
		WHERE sync_tag != ''
		ORDER BY sync_tag ASC
	`)
	if err != nil {
		return nil, storageErr("sync tags", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, storageErr("sync tags", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("sync tags", err)
	}
	return tags, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQueued(row rowScanner) (QueuedRequest, error) {
	var (
		req       QueuedRequest
		headers   string
		createdAt int64
	)
	err := row.Scan(
		&req.ID,
		&req.URL,
		&req.Method,
		&headers,
		&req.Body,
		&req.Category,
		&req.SyncTag,
		&createdAt,
		&req.Retries,
	)
	if err != nil {
		return QueuedRequest{}, err
	}

	req.Headers, err = unmarshalHeaders(headers)
	if err != nil {
		return QueuedRequest{}, err
	}
	req.CreatedAt = time.Unix(0, createdAt).UTC()
	return req, nil
}
