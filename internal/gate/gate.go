// Package gate decides, for every outgoing request, whether it goes to the
// network now or into the durable queue for later replay.
//
// Reads always go straight to the transport. Mutations are sent directly
// while the device reports connectivity; when it does not, or when the
// direct send fails below HTTP (connection refused, timeout), the mutation
// is stored and the caller receives a synthetic 202 marked as queued. A
// queued response means pending, never applied.
package gate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/connectivity"
	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/metrics"
	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/store"
	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/transport"
)

const (
	// QueuedHeader is set to "true" on every synthetic queued response.
	QueuedHeader = "X-Offline-Queued"

	// QueuedMessage explains a queued response to the end user.
	QueuedMessage = "You are offline. The change was saved on this device and will be sent when the connection is restored."

	defaultIdempotencyHeader = "Idempotency-Key"
	defaultSyncTag           = "offline-sync"
	defaultCacheTTL          = 5 * time.Minute
)

var (
	// ErrUnserializableBody is returned for mutations whose body cannot be
	// stored as text, such as multipart uploads. Such requests are never
	// queued.
	ErrUnserializableBody = errors.New("gate: request body cannot be queued")

	// ErrOffline is returned by ReadThrough when the network is unusable and
	// nothing is cached under the key.
	ErrOffline = errors.New("gate: offline and no cached response")
)

var nopLogger = zap.NewNop()

// Store is the part of the durable store the gate writes to.
type Store interface {
	Enqueue(ctx context.Context, req store.QueuedRequest) (int64, error)
	PutCache(ctx context.Context, key string, payload any, ttl time.Duration) error
	GetCache(ctx context.Context, key string) (json.RawMessage, bool, error)
}

// Waker is told about every queued mutation so the host can wake the
// process to replay it.
type Waker interface {
	Register(ctx context.Context, tag string)
}

// Options configures a Gate.
type Options struct {
	// IdempotencyHeader names the header stamped with a fresh UUIDv7 on
	// every queued mutation that does not carry one. Default is
	// "Idempotency-Key".
	IdempotencyHeader string

	// DisableIdempotencyKey turns stamping off.
	DisableIdempotencyKey bool

	// DefaultSyncTag is registered when Do is called without WithSyncTag.
	// Default is "offline-sync".
	DefaultSyncTag string

	// DefaultCacheTTL is used by ReadThrough when ttl is zero. Default is 5m.
	DefaultCacheTTL time.Duration

	// Waker is optional.
	Waker Waker

	// Logger is the *zap.Logger for this Gate.
	// A nil Logger will disable logging.
	Logger *zap.Logger

	Metrics *metrics.Metrics

	// NewID generates idempotency keys. Default is uuid.NewV7.
	NewID func() (uuid.UUID, error)
}

// Init fills in defaults.
func (opts *Options) Init() {
	if opts.IdempotencyHeader == "" {
		opts.IdempotencyHeader = defaultIdempotencyHeader
	}
	if opts.DefaultSyncTag == "" {
		opts.DefaultSyncTag = defaultSyncTag
	}
	if opts.DefaultCacheTTL <= 0 {
		opts.DefaultCacheTTL = defaultCacheTTL
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(nil)
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewV7
	}
}

// Gate routes requests between the transport and the durable queue.
type Gate struct {
	transport transport.Transport
	store     Store
	checker   connectivity.Checker
	opts      Options
}

// New creates a Gate.
func New(t transport.Transport, s Store, checker connectivity.Checker, opts Options) *Gate {
	opts.Init()
	return &Gate{
		transport: t,
		store:     s,
		checker:   checker,
		opts:      opts,
	}
}

type dispatchOptions struct {
	syncTag  string
	category string
	queue    bool
}

// DispatchOption adjusts a single Do call.
type DispatchOption func(*dispatchOptions)

// WithSyncTag sets the wake tag registered if the request is queued.
func WithSyncTag(tag string) DispatchOption {
	return func(o *dispatchOptions) {
		if tag != "" {
			o.syncTag = tag
		}
	}
}

// WithCategory labels the queued request.
func WithCategory(category string) DispatchOption {
	return func(o *dispatchOptions) {
		o.category = category
	}
}

// WithoutQueueing sends the request directly and surfaces every error.
func WithoutQueueing() DispatchOption {
	return func(o *dispatchOptions) {
		o.queue = false
	}
}

// Do sends req or queues it. A queued request yields a 202 response with
// Queued set; any other response is the server's, unchanged.
//
// Errors: transport.ErrInvalidRequest for requests that can never be sent
// (these are not queued either), ErrUnserializableBody for bodies that
// cannot be queued, a *store.StorageError if the queue write fails, and
// transport errors only for reads and WithoutQueueing requests.
func (g *Gate) Do(ctx context.Context, req transport.Request, opts ...DispatchOption) (*transport.Response, error) {
	o := dispatchOptions{syncTag: g.opts.DefaultSyncTag, queue: true}
	for _, opt := range opts {
		opt(&o)
	}

	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("gate: %w", err)
	}

	if transport.IsRead(req.Method) || !o.queue {
		return g.transport.Send(ctx, req)
	}

	if !g.checker.Online() {
		return g.enqueue(ctx, req, o, nil)
	}

	res, err := g.transport.Send(ctx, req)
	if err == nil {
		return res, nil
	}
	if !errors.Is(err, transport.ErrTransport) {
		return nil, err
	}

	// The online signal was stale.
	g.opts.Logger.Info("direct send failed, queueing",
		zap.String("method", req.Method),
		zap.String("url", req.URL),
		zap.Error(err))
	return g.enqueue(ctx, req, o, err)
}

func (g *Gate) enqueue(ctx context.Context, req transport.Request, o dispatchOptions, sendErr error) (*transport.Response, error) {
	if err := CheckSerializable(req); err != nil {
		if sendErr != nil {
			return nil, fmt.Errorf("%w (direct send: %w)", err, sendErr)
		}
		return nil, err
	}

	header := req.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	if !g.opts.DisableIdempotencyKey && header.Get(g.opts.IdempotencyHeader) == "" {
		key, err := g.opts.NewID()
		if err != nil {
			return nil, fmt.Errorf("gate: idempotency key: %w", err)
		}
		header.Set(g.opts.IdempotencyHeader, key.String())
	}

	id, err := g.store.Enqueue(ctx, store.QueuedRequest{
		URL:      req.URL,
		Method:   req.Method,
		Headers:  header,
		Body:     string(req.Body),
		Category: o.category,
		SyncTag:  o.syncTag,
	})
	if err != nil {
		g.opts.Logger.Error("enqueue failed", zap.String("url", req.URL), zap.Error(err))
		return nil, err
	}

	g.opts.Metrics.Enqueued.Inc()
	g.opts.Metrics.QueueDepth.Inc()
	g.opts.Logger.Info("request queued",
		zap.Int64("id", id),
		zap.String("method", req.Method),
		zap.String("url", req.URL),
		zap.String("sync_tag", o.syncTag))

	if g.opts.Waker != nil {
		g.opts.Waker.Register(ctx, o.syncTag)
	}

	return queuedResponse(id), nil
}

// QueuedBody is the JSON body of a synthetic queued response.
type QueuedBody struct {
	Queued  bool   `json:"queued"`
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

func queuedResponse(id int64) *transport.Response {
	body, _ := json.Marshal(QueuedBody{Queued: true, ID: id, Message: QueuedMessage})
	return &transport.Response{
		StatusCode: http.StatusAccepted,
		Header: http.Header{
			"Content-Type": {"application/json"},
			QueuedHeader:   {"true"},
		},
		Body:     body,
		Queued:   true,
		QueuedID: id,
	}
}

// CheckSerializable reports ErrUnserializableBody for request bodies that
// cannot be stored as text: multipart and octet-stream content, or bytes
// that are not valid UTF-8.
func CheckSerializable(req transport.Request) error {
	if len(req.Body) == 0 {
		return nil
	}

	if ct := req.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil {
			mediaType = strings.ToLower(strings.TrimSpace(strings.Split(ct, ";")[0]))
		}
		if strings.HasPrefix(mediaType, "multipart/") || mediaType == "application/octet-stream" {
			return fmt.Errorf("%w: content type %s", ErrUnserializableBody, mediaType)
		}
	}

	if !utf8.Valid(req.Body) {
		return fmt.Errorf("%w: body is not valid UTF-8", ErrUnserializableBody)
	}
	return nil
}
