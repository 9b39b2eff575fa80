package gate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/transport"
)

// CacheHeader is set to "hit" on responses served from the cache.
const CacheHeader = "X-Offline-Cache"

// ReadThrough sends a read request and remembers successful JSON responses
// under key for ttl (DefaultCacheTTL when ttl is zero). When the device is
// offline, or the send fails below HTTP, the last live cached payload is
// returned instead with FromCache set.
//
// Non-2xx responses are returned as they are and never cached.
func (g *Gate) ReadThrough(ctx context.Context, req transport.Request, key string, ttl time.Duration) (*transport.Response, error) {
	if !transport.IsRead(req.Method) {
		return nil, fmt.Errorf("gate: read-through needs a read method, got %s", req.Method)
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("gate: %w", err)
	}
	if ttl <= 0 {
		ttl = g.opts.DefaultCacheTTL
	}

	if !g.checker.Online() {
		return g.fromCache(ctx, key, ErrOffline)
	}

	res, err := g.transport.Send(ctx, req)
	if err != nil {
		if !errors.Is(err, transport.ErrTransport) {
			return nil, err
		}
		return g.fromCache(ctx, key, err)
	}

	if res.StatusCode >= 200 && res.StatusCode < 300 && json.Valid(res.Body) {
		if err := g.store.PutCache(ctx, key, json.RawMessage(res.Body), ttl); err != nil {
			g.opts.Logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return res, nil
}

// fromCache serves key from the cache, or returns miss when nothing live is
// stored under it.
func (g *Gate) fromCache(ctx context.Context, key string, miss error) (*transport.Response, error) {
	payload, ok, err := g.store.GetCache(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, miss
	}

	g.opts.Logger.Debug("served from cache", zap.String("key", key))
	return &transport.Response{
		StatusCode: http.StatusOK,
		Header: http.Header{
			"Content-Type": {"application/json"},
			CacheHeader:    {"hit"},
		},
		Body:      payload,
		FromCache: true,
	}, nil
}
