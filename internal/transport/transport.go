// Package transport defines the boundary between the sync engine and the
// HTTP client that talks to the logistics API.
//
// A Transport returns an error only when no response was received at all
// (connection refused, DNS failure, timeout). Any HTTP status, including
// 4xx and 5xx, is a successful send from the transport's point of view;
// classifying it is the caller's job.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

var (
	// ErrTransport matches every transport-level failure via errors.Is.
	ErrTransport = errors.New("transport failure")

	// ErrInvalidRequest matches requests that can never be sent, such as a
	// malformed method or a URL that is not absolute http(s). It is not a
	// transport failure: retrying cannot fix it.
	ErrInvalidRequest = errors.New("invalid request")
)

// Request is a captured outgoing HTTP request.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Validate checks that req can be sent: the method is an HTTP token and
// the URL is an absolute http or https URL with a host.
func (r Request) Validate() error {
	if !validMethod(r.Method) {
		return fmt.Errorf("%w: method %q", ErrInvalidRequest, r.Method)
	}
	u, err := url.Parse(r.URL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: url %q is not an absolute http(s) url", ErrInvalidRequest, r.URL)
	}
	return nil
}

func validMethod(m string) bool {
	return m != "" && !strings.ContainsFunc(m, func(r rune) bool {
		return r <= ' ' || r >= 0x7f || strings.ContainsRune(`"(),/:;<=>?@[\]{}`, r)
	})
}

// Response is what came back, or the synthetic acknowledgement produced
// when a mutation was queued instead of sent.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// Queued is true when the mutation was stored for later replay and has
	// not reached the server. Callers must treat it as pending.
	Queued bool

	// QueuedID is the queue identity of the stored mutation when Queued is set.
	QueuedID int64

	// FromCache is true when the body was served from the local cache
	// because the network was unusable.
	FromCache bool
}

//go:generate mockgen -source=transport.go -destination=../mocks/mock_transport/transport.go -package=mock_transport

// Transport sends a request and returns the server's response.
type Transport interface {
	Send(ctx context.Context, req Request) (*Response, error)
}

// Func adapts an ordinary function to the Transport interface.
type Func func(ctx context.Context, req Request) (*Response, error)

// Send calls f(ctx, req).
func (f Func) Send(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// Error reports a request that produced no response.
type Error struct {
	Method string
	URL    string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrTransport) true for every *Error.
func (e *Error) Is(target error) bool {
	return target == ErrTransport
}

// IsRead reports whether method is free of side effects. Reads are never
// queued.
func IsRead(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
