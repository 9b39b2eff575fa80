package replay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/metrics"
	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/mocks/mock_transport"
	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/store"
	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/transport"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "replay.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func enqueue(t *testing.T, s *store.Store, method, url, body string) int64 {
	t.Helper()
	id, err := s.Enqueue(context.Background(), store.QueuedRequest{
		Method:  method,
		URL:     url,
		Headers: http.Header{"Content-Type": []string{"application/json"}},
		Body:    body,
	})
	require.NoError(t, err)
	return id
}

func status(code int) *transport.Response {
	return &transport.Response{StatusCode: code}
}

func TestReplay_OrderCreated(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := openTestStore(t)
	ctx := context.Background()

	enqueue(t, s, http.MethodPost, "https://api.test/orders", `{"id":1}`)

	tr := mock_transport.NewMockTransport(ctrl)
	tr.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req transport.Request) (*transport.Response, error) {
			assert.Equal(t, http.MethodPost, req.Method)
			assert.Equal(t, "https://api.test/orders", req.URL)
			assert.Equal(t, `{"id":1}`, string(req.Body))
			assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
			return status(http.StatusCreated), nil
		})

	result, err := New(s, tr, Options{}).Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Succeeded: 1, Failed: 0}, result)

	reqs, err := s.ListQueued(ctx)
	require.NoError(t, err)
	assert.Empty(t, reqs)
}

func TestReplay_ServerErrorsThenSuccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := openTestStore(t)
	ctx := context.Background()

	id := enqueue(t, s, http.MethodPut, "https://api.test/vehicles/5", `{"plate":"B-XY 123"}`)

	tr := mock_transport.NewMockTransport(ctrl)
	gomock.InOrder(
		tr.EXPECT().Send(gomock.Any(), gomock.Any()).Return(status(http.StatusInternalServerError), nil).Times(3),
		tr.EXPECT().Send(gomock.Any(), gomock.Any()).Return(status(http.StatusOK), nil),
	)

	engine := New(s, tr, Options{})

	for want := 1; want <= 3; want++ {
		result, err := engine.Replay(ctx)
		require.NoError(t, err)
		assert.Equal(t, Result{Succeeded: 0, Failed: 1}, result)

		req, err := s.GetQueued(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, req.Retries)
	}

	result, err := engine.Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Succeeded: 1, Failed: 0}, result)

	_, err = s.GetQueued(ctx, id)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestReplay_RetryCeilingDiscardsOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := openTestStore(t)
	ctx := context.Background()

	id := enqueue(t, s, http.MethodPost, "https://api.test/tracking", `{}`)

	tr := mock_transport.NewMockTransport(ctrl)
	tr.EXPECT().Send(gomock.Any(), gomock.Any()).Return(status(http.StatusServiceUnavailable), nil).Times(DefaultMaxRetries)

	m := metrics.New(nil)
	engine := New(s, tr, Options{Metrics: m})

	// Five attempts, each bumping the counter
	for want := 1; want <= DefaultMaxRetries; want++ {
		result, err := engine.Replay(ctx)
		require.NoError(t, err)
		assert.Equal(t, Result{Failed: 1}, result)

		req, err := s.GetQueued(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, req.Retries)
	}

	// Counter is at the ceiling: removed without another send
	result, err := engine.Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Failed: 1}, result)

	_, err = s.GetQueued(ctx, id)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReplayDiscarded.WithLabelValues(metrics.ReasonRetryCeiling)))

	// Gone for good: later passes report nothing
	result, err = engine.Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{}, result)
}

func TestReplay_ClientErrorIsTerminal(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := openTestStore(t)
	ctx := context.Background()

	enqueue(t, s, http.MethodPost, "https://api.test/freights", `{"weight":-1}`)

	tr := mock_transport.NewMockTransport(ctrl)
	tr.EXPECT().Send(gomock.Any(), gomock.Any()).Return(status(http.StatusUnprocessableEntity), nil)

	m := metrics.New(nil)
	result, err := New(s, tr, Options{Metrics: m}).Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Succeeded: 1}, result)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReplayDiscarded.WithLabelValues(metrics.ReasonClientError)))
}

func TestReplay_TransportErrorRetries(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := openTestStore(t)
	ctx := context.Background()

	id := enqueue(t, s, http.MethodDelete, "https://api.test/orders/9", "")

	tr := mock_transport.NewMockTransport(ctrl)
	tr.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil, &transport.Error{
		Method: http.MethodDelete,
		URL:    "https://api.test/orders/9",
		Err:    context.DeadlineExceeded,
	})

	result, err := New(s, tr, Options{}).Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Failed: 1}, result)

	req, err := s.GetQueued(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, req.Retries)
}

func TestReplay_FIFOAndNoEarlyAbort(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := openTestStore(t)
	ctx := context.Background()

	enqueue(t, s, http.MethodPost, "https://api.test/a", `{}`)
	idB := enqueue(t, s, http.MethodPost, "https://api.test/b", `{}`)
	enqueue(t, s, http.MethodPost, "https://api.test/c", `{}`)
	idD := enqueue(t, s, http.MethodPost, "https://api.test/d", `{}`)

	var order []string
	tr := mock_transport.NewMockTransport(ctrl)
	tr.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req transport.Request) (*transport.Response, error) {
			order = append(order, req.URL)
			switch req.URL {
			case "https://api.test/b":
				return status(http.StatusBadGateway), nil
			case "https://api.test/d":
				return nil, errors.New("connection refused")
			}
			return status(http.StatusOK), nil
		}).Times(4)

	result, err := New(s, tr, Options{}).Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Succeeded: 2, Failed: 2}, result)
	assert.Equal(t, []string{
		"https://api.test/a",
		"https://api.test/b",
		"https://api.test/c",
		"https://api.test/d",
	}, order)

	reqs, err := s.ListQueued(ctx)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, idB, reqs[0].ID)
	assert.Equal(t, idD, reqs[1].ID)
}

func TestReplay_NoDuplicateDispatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := openTestStore(t)
	ctx := context.Background()

	id := enqueue(t, s, http.MethodPost, "https://api.test/orders", `{"id":2}`)

	tr := mock_transport.NewMockTransport(ctrl)
	tr.EXPECT().Send(gomock.Any(), gomock.Any()).Return(status(http.StatusOK), nil).Times(1)

	engine := New(s, tr, Options{})
	_, err := engine.Replay(ctx)
	require.NoError(t, err)

	reqs, err := s.ListQueued(ctx)
	require.NoError(t, err)
	for _, r := range reqs {
		assert.NotEqual(t, id, r.ID)
	}

	// A second pass sends nothing (gomock fails on an extra call)
	result, err := engine.Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{}, result)
}

func TestReplay_CustomCeiling(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := openTestStore(t)
	ctx := context.Background()

	enqueue(t, s, http.MethodPost, "https://api.test/x", `{}`)

	tr := mock_transport.NewMockTransport(ctrl)
	tr.EXPECT().Send(gomock.Any(), gomock.Any()).Return(status(http.StatusInternalServerError), nil).Times(2)

	engine := New(s, tr, Options{MaxRetries: 2})
	for i := 0; i < 3; i++ {
		result, err := engine.Replay(ctx)
		require.NoError(t, err)
		assert.Equal(t, Result{Failed: 1}, result)
	}

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestReplay_CancelledContextFinishesPass(t *testing.T) {
	s := openTestStore(t)
	enqueue(t, s, http.MethodPost, "https://api.test/a", `{}`)
	enqueue(t, s, http.MethodPost, "https://api.test/b", `{}`)

	ctx, cancel := context.WithCancel(context.Background())

	var sent int
	tr := transport.Func(func(ctx context.Context, req transport.Request) (*transport.Response, error) {
		sent++
		cancel()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return status(http.StatusOK), nil
	})

	result, err := New(s, tr, Options{}).Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, Result{Succeeded: 2}, result)
}

func TestReplay_ConcurrentCallsSerialised(t *testing.T) {
	s := openTestStore(t)
	for i := 0; i < 5; i++ {
		enqueue(t, s, http.MethodPost, "https://api.test/orders", `{}`)
	}

	var inFlight, maxInFlight, sends atomic.Int32
	tr := transport.Func(func(ctx context.Context, req transport.Request) (*transport.Response, error) {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		sends.Add(1)
		return status(http.StatusOK), nil
	})

	engine := New(s, tr, Options{})

	var wg sync.WaitGroup
	var total atomic.Int32
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := engine.Replay(context.Background())
			assert.NoError(t, err)
			total.Add(int32(result.Succeeded))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInFlight.Load())
	assert.Equal(t, int32(5), sends.Load(), "each request is sent once across overlapping passes")
	assert.Equal(t, int32(5), total.Load())
}

type brokenQueue struct {
	reqs []store.QueuedRequest
}

func (q *brokenQueue) ListQueued(context.Context) ([]store.QueuedRequest, error) { return q.reqs, nil }
func (q *brokenQueue) RemoveQueued(context.Context, int64) error {
	return &store.StorageError{Op: "remove queued", Err: errors.New("disk I/O error")}
}
func (q *brokenQueue) IncrementRetry(context.Context, int64) error { return nil }
func (q *brokenQueue) Count(context.Context) (int, error)          { return len(q.reqs), nil }

func TestReplay_StorageFaultAborts(t *testing.T) {
	q := &brokenQueue{reqs: []store.QueuedRequest{
		{ID: 1, Method: http.MethodPost, URL: "https://api.test/a"},
		{ID: 2, Method: http.MethodPost, URL: "https://api.test/b"},
	}}

	var sent int
	tr := transport.Func(func(ctx context.Context, req transport.Request) (*transport.Response, error) {
		sent++
		return status(http.StatusOK), nil
	})

	_, err := New(q, tr, Options{}).Replay(context.Background())
	require.Error(t, err)
	assert.True(t, store.IsStorageError(err))
	assert.Equal(t, 1, sent)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		res  *transport.Response
		err  error
		want Outcome
	}{
		{"created", status(201), nil, OutcomeDelivered},
		{"redirect", status(304), nil, OutcomeDelivered},
		{"bad_request", status(400), nil, OutcomeDelivered},
		{"conflict", status(409), nil, OutcomeDelivered},
		{"internal", status(500), nil, OutcomeServerError},
		{"unavailable", status(503), nil, OutcomeServerError},
		{"transport", nil, transport.ErrTransport, OutcomeTransportError},
		{"nil_response", nil, nil, OutcomeTransportError},
		{"invalid_request", nil, fmt.Errorf("%w: method %q", transport.ErrInvalidRequest, "PO ST"), OutcomeInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.res, tt.err))
		})
	}
}

func TestReplay_InvalidRequestDiscarded(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := openTestStore(t)
	ctx := context.Background()

	enqueue(t, s, http.MethodPost, "orders/1", `{}`)
	id := enqueue(t, s, http.MethodPost, "https://api.test/orders", `{}`)

	tr := mock_transport.NewMockTransport(ctrl)
	gomock.InOrder(
		tr.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req transport.Request) (*transport.Response, error) {
				return nil, req.Validate()
			}),
		tr.EXPECT().Send(gomock.Any(), gomock.Any()).Return(status(http.StatusInternalServerError), nil),
	)

	m := metrics.New(nil)
	result, err := New(s, tr, Options{Metrics: m}).Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Succeeded: 0, Failed: 2}, result)

	reqs, err := s.ListQueued(ctx)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, id, reqs[0].ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReplayDiscarded.WithLabelValues(metrics.ReasonInvalidRequest)))
}
