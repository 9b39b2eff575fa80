package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/connectivity"
	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/gate"
	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/metrics"
	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/mocks/mock_transport"
	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/store"
	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/transport"
)

type countingTrigger struct {
	n atomic.Int32
}

func (c *countingTrigger) Trigger() { c.n.Add(1) }

type fixture struct {
	srv     *httptest.Server
	store   *store.Store
	conn    *connectivity.Static
	tr      *mock_transport.MockTransport
	trigger *countingTrigger
}

func newFixture(t *testing.T, online bool) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	s, err := store.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	reg := metrics.NewRegistry()
	m := metrics.New(reg)

	f := &fixture{
		store:   s,
		conn:    connectivity.NewStatic(online),
		tr:      mock_transport.NewMockTransport(ctrl),
		trigger: &countingTrigger{},
	}
	g := gate.New(f.tr, s, f.conn, gate.Options{Metrics: m})
	f.srv = httptest.NewServer(New(s, g, f.trigger, Options{Gatherer: reg}).Handler())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) post(t *testing.T, path, body string) *http.Response {
	t.Helper()
	res, err := http.Post(f.srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func (f *fixture) get(t *testing.T, path string) *http.Response {
	t.Helper()
	res, err := http.Get(f.srv.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func readBody(t *testing.T, res *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return string(data)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, true)
	res := f.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "ok", readBody(t, res))
}

func TestQueue_Empty(t *testing.T) {
	f := newFixture(t, true)
	res := f.get(t, "/v1/queue")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"count":0,"items":[]}`, readBody(t, res))
}

func TestDispatch_OfflineQueues(t *testing.T) {
	f := newFixture(t, false)

	res := f.post(t, "/v1/dispatch", `{
		"method": "POST",
		"url": "https://api.test/orders",
		"body": "{\"id\":1}",
		"content_type": "application/json",
		"sync_tag": "orders",
		"category": "freight"
	}`)
	assert.Equal(t, http.StatusAccepted, res.StatusCode)
	assert.Equal(t, "true", res.Header.Get(gate.QueuedHeader))

	var body gate.QueuedBody
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.True(t, body.Queued)
	assert.Equal(t, int64(1), body.ID)

	var q QueueResponse
	require.NoError(t, json.NewDecoder(f.get(t, "/v1/queue").Body).Decode(&q))
	require.Equal(t, 1, q.Count)
	assert.Equal(t, "https://api.test/orders", q.Items[0].URL)
	assert.Equal(t, "orders", q.Items[0].SyncTag)
	assert.Equal(t, "freight", q.Items[0].Category)
	assert.Equal(t, `{"id":1}`, q.Items[0].Body)
}

func TestDispatch_OnlinePassesThrough(t *testing.T) {
	f := newFixture(t, true)
	f.tr.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req transport.Request) (*transport.Response, error) {
			assert.Equal(t, http.MethodPatch, req.Method)
			assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
			assert.Equal(t, "abc", req.Header.Get("X-Trace"))
			return &transport.Response{
				StatusCode: http.StatusCreated,
				Header:     http.Header{"Content-Type": {"application/json"}, "Content-Length": {"999"}},
				Body:       []byte(`{"updated":true}`),
			}, nil
		})

	res := f.post(t, "/v1/dispatch", `{
		"method": "PATCH",
		"url": "https://api.test/vehicles/5",
		"headers": {"X-Trace": "abc"},
		"body": "{}",
		"content_type": "application/json"
	}`)
	assert.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Empty(t, res.Header.Get(gate.QueuedHeader))
	assert.JSONEq(t, `{"updated":true}`, readBody(t, res))
}

func TestDispatch_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"bad_json", `{"method":`, http.StatusBadRequest},
		{"missing_url", `{"method":"POST"}`, http.StatusBadRequest},
		{"bad_method", `{"method":"BREW","url":"https://api.test/pot"}`, http.StatusBadRequest},
		{"unsupported_scheme", `{"method":"POST","url":"ftp://api.test/orders","body":"{}"}`, http.StatusBadRequest},
		{"multipart", `{"method":"POST","url":"https://api.test/docs","body":"--x","content_type":"multipart/form-data; boundary=x"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, false)
			res := f.post(t, "/v1/dispatch", tt.body)
			assert.Equal(t, tt.status, res.StatusCode)

			var e errorResponse
			require.NoError(t, json.NewDecoder(res.Body).Decode(&e))
			assert.NotEmpty(t, e.Error)
		})
	}
}

func TestDispatch_WithoutQueueingSurfacesTransportError(t *testing.T) {
	f := newFixture(t, false)
	f.tr.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil, &transport.Error{
		Method: http.MethodDelete,
		URL:    "https://api.test/orders/3",
		Err:    errors.New("connection refused"),
	})

	res := f.post(t, "/v1/dispatch", `{"method":"DELETE","url":"https://api.test/orders/3","queue_offline":false}`)
	assert.Equal(t, http.StatusBadGateway, res.StatusCode)

	n, err := f.store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestReplay_Triggers(t *testing.T) {
	f := newFixture(t, true)
	res := f.post(t, "/v1/replay", "")
	assert.Equal(t, http.StatusAccepted, res.StatusCode)
	assert.Equal(t, int32(1), f.trigger.n.Load())
}

func TestMetrics(t *testing.T) {
	f := newFixture(t, false)
	f.post(t, "/v1/dispatch", `{"method":"POST","url":"https://api.test/orders","body":"{}"}`)

	res := f.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	body := readBody(t, res)
	assert.Contains(t, body, "offsync_enqueued_total 1")
	assert.Contains(t, body, "go_goroutines")
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	s := New(nil, nil, &countingTrigger{}, Options{})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		res, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		res.Body.Close()
		return res.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
