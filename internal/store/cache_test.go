package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type freightView struct {
	ID     int    `json:"id"`
	Origin string `json:"origin"`
}

func TestPutCache_GetCache(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutCache(ctx, "freights:1", freightView{ID: 1, Origin: "Rotterdam"}, time.Minute))

	payload, ok, err := s.GetCache(ctx, "freights:1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"id":1,"origin":"Rotterdam"}`, string(payload))

	var got freightView
	ok, err = s.GetCacheInto(ctx, "freights:1", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, freightView{ID: 1, Origin: "Rotterdam"}, got)
}

func TestGetCache_Missing(t *testing.T) {
	s, _ := createTestStore(t)

	_, ok, err := s.GetCache(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPutCache_Overwrites(t *testing.T) {
	s, clock := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutCache(ctx, "orders", []int{1}, time.Minute))
	clock.Advance(30 * time.Second)
	require.NoError(t, s.PutCache(ctx, "orders", []int{1, 2}, time.Minute))

	entry, ok, err := s.GetCacheEntry(ctx, "orders")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `[1,2]`, string(entry.Payload))
	assert.True(t, clock.Now().Equal(entry.RecordedAt))
	assert.True(t, clock.Now().Add(time.Minute).Equal(entry.ExpiresAt))

	n, err := s.CacheLen(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGetCache_ZeroTTLUnreadable(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutCache(ctx, "k", "v", 0))

	_, ok, err := s.GetCache(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "ttl=0 entry must be unreadable before any sweep")

	// The row is still physically present
	n, err := s.CacheLen(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGetCache_NegativeTTL(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutCache(ctx, "k", "v", -time.Hour))

	_, ok, err := s.GetCache(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetCache_ExpiresAtBoundary(t *testing.T) {
	s, clock := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutCache(ctx, "k", "v", 10*time.Second))

	clock.Advance(10*time.Second - time.Nanosecond)
	_, ok, err := s.GetCache(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok, "entry is live until expires_at")

	clock.Advance(time.Nanosecond)
	_, ok, err = s.GetCache(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "entry is dead at expires_at")
}

func TestSweepExpiredCache(t *testing.T) {
	s, clock := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutCache(ctx, "short", 1, time.Second))
	require.NoError(t, s.PutCache(ctx, "long", 2, time.Hour))
	require.NoError(t, s.PutCache(ctx, "zero", 3, 0))

	clock.Advance(2 * time.Second)

	removed, err := s.SweepExpiredCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	n, err := s.CacheLen(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok, err := s.GetCache(ctx, "long")
	require.NoError(t, err)
	assert.True(t, ok)

	// Nothing left to sweep
	removed, err = s.SweepExpiredCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), removed)
}

func TestSweepExpiredCache_KeepsRefreshedRow(t *testing.T) {
	s, clock := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutCache(ctx, "k", "old", time.Second))
	clock.Advance(2 * time.Second)
	require.NoError(t, s.PutCache(ctx, "k", "new", time.Minute))

	removed, err := s.SweepExpiredCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), removed)

	payload, ok, err := s.GetCache(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `"new"`, string(payload))
}

func TestCacheKey_NFCNormalised(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	precomposed := "route:Mor\u00e9"
	decomposed := "route:More\u0301"
	require.NotEqual(t, precomposed, decomposed)

	require.NoError(t, s.PutCache(ctx, decomposed, "x", time.Minute))

	_, ok, err := s.GetCache(ctx, precomposed)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPutCache_RawJSON(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutCache(ctx, "raw", json.RawMessage(`{"a":[1,2]}`), time.Minute))
	payload, ok, err := s.GetCache(ctx, "raw")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"a":[1,2]}`, string(payload))

	err = s.PutCache(ctx, "bad", json.RawMessage(`{not json`), time.Minute)
	require.Error(t, err)
	assert.True(t, IsStorageError(err))
}

func TestPutCache_ByteSliceStoredAsJSON(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	// A response body handed over as []byte is kept as JSON, not base64.
	require.NoError(t, s.PutCache(ctx, "route:42", []byte(`{"eta":"14:05"}`), time.Minute))
	payload, ok, err := s.GetCache(ctx, "route:42")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"eta":"14:05"}`, string(payload))

	err = s.PutCache(ctx, "bad", []byte("not json"), time.Minute)
	require.Error(t, err)
	assert.True(t, IsStorageError(err))
}
