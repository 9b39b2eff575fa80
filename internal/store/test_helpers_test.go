package store

import (
	"net/http"
	"path/filepath"
	"testing"

	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/testutil"
)

// createTestStore creates a new store in a temp dir for testing.
func createTestStore(t *testing.T) (*Store, *testutil.Clock) {
	t.Helper()
	clock := testutil.NewClock()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, clock
}

// createTestRequest creates a queued request with minimal required fields.
func createTestRequest(method, url, body string) QueuedRequest {
	return QueuedRequest{
		URL:     url,
		Method:  method,
		Headers: http.Header{"Content-Type": []string{"application/json"}},
		Body:    body,
	}
}
