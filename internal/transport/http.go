package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

var nopLogger = zap.NewNop()

const (
	defaultTimeout          = 15 * time.Second
	defaultMaxResponseBytes = 4 << 20
	defaultUserAgent        = "offsync/1"
)

// HTTPOptions configures an HTTPTransport.
type HTTPOptions struct {
	// Client performs the round trips. Default is a new http.Client.
	Client *http.Client

	// Timeout bounds one request, including reading the body.
	// Default is 15s.
	Timeout time.Duration

	// MaxResponseBytes caps how much of a response body is kept.
	// Default is 4MiB.
	MaxResponseBytes int64

	// UserAgent is set when the request carries none.
	UserAgent string

	// Logger is the *zap.Logger for this transport.
	// A nil Logger will disable logging.
	Logger *zap.Logger
}

// Init fills in defaults.
func (opts *HTTPOptions) Init() {
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxResponseBytes <= 0 {
		opts.MaxResponseBytes = defaultMaxResponseBytes
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger
	}
}

// HTTPTransport is the production Transport backed by net/http.
type HTTPTransport struct {
	opts HTTPOptions
}

// NewHTTPTransport creates an HTTPTransport.
func NewHTTPTransport(opts HTTPOptions) *HTTPTransport {
	opts.Init()
	return &HTTPTransport{opts: opts}
}

// Send performs one HTTP round trip. Every replayed request goes through
// the same timeout as a fresh one; a timeout surfaces as a transport error.
func (t *HTTPTransport) Send(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, t.opts.Timeout)
	defer cancel()

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrInvalidRequest, err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", t.opts.UserAgent)
	}

	res, err := t.opts.Client.Do(httpReq)
	if err != nil {
		t.opts.Logger.Debug("http send failed",
			zap.String("method", req.Method),
			zap.String("url", req.URL),
			zap.Error(err))
		return nil, &Error{Method: req.Method, URL: req.URL, Err: err}
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, t.opts.MaxResponseBytes))
	if err != nil {
		return nil, &Error{Method: req.Method, URL: req.URL, Err: fmt.Errorf("read body: %w", err)}
	}

	return &Response{
		StatusCode: res.StatusCode,
		Header:     res.Header,
		Body:       data,
	}, nil
}

// Close releases idle connections.
func (t *HTTPTransport) Close() error {
	t.opts.Client.CloseIdleConnections()
	return nil
}
