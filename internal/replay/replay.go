// Package replay drains the durable request queue against the server.
//
// # Algorithm
//
// One pass takes a snapshot of the queue and walks it in insertion order,
// one request at a time:
//
//  1. retries >= MaxRetries: remove, count as failed (terminal discard)
//  2. otherwise re-send the request exactly as captured
//  3. classify:
//     - status < 500 (2xx, 3xx and 4xx alike): remove, count as succeeded
//     - status >= 500: increment retries, count as failed
//     - no response (transport error, timeout): increment retries, count as failed
//     - request that can never be sent (malformed url or method): remove,
//       count as failed
//  4. move on to the next request whatever happened
//
// A 4xx is terminal because re-sending unchanged input cannot help. The
// original caller already received a pending acknowledgement, so neither a
// 4xx nor a ceiling discard is reported back to it.
//
// Delivery is at-least-once with eventual discard: a request may reach the
// server more than once (a response lost after the server applied it), so
// replayed endpoints must be idempotent.
package replay

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/metrics"
	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/store"
	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/transport"
)

// DefaultMaxRetries is the retry ceiling applied when Options.MaxRetries is 0.
const DefaultMaxRetries = 5

var nopLogger = zap.NewNop()

// Queue is the part of the durable store the engine needs.
type Queue interface {
	ListQueued(ctx context.Context) ([]store.QueuedRequest, error)
	RemoveQueued(ctx context.Context, id int64) error
	IncrementRetry(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
}

// Result summarises one pass.
type Result struct {
	Succeeded int `json:"succeeded" yaml:"succeeded"`
	Failed    int `json:"failed" yaml:"failed"`
}

// Options configures an Engine.
type Options struct {
	// MaxRetries is the retry ceiling. Default is DefaultMaxRetries.
	MaxRetries int

	// Logger is the *zap.Logger for this Engine.
	// A nil Logger will disable logging.
	Logger *zap.Logger

	// Metrics receives per-attempt counters. Default is an unregistered set.
	Metrics *metrics.Metrics
}

// Init fills in defaults.
func (opts *Options) Init() {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(nil)
	}
}

// Engine re-issues queued requests.
//
// Thread-safety: Replay may be called from any goroutine; concurrent calls
// run one after another, never interleaved.
type Engine struct {
	queue     Queue
	transport transport.Transport
	opts      Options

	mu sync.Mutex
}

// New creates an Engine.
func New(q Queue, t transport.Transport, opts Options) *Engine {
	opts.Init()
	return &Engine{
		queue:     q,
		transport: t,
		opts:      opts,
	}
}

// Outcome classifies one replay attempt.
type Outcome int

const (
	// OutcomeDelivered: the server answered below 500. Terminal.
	OutcomeDelivered Outcome = iota + 1
	// OutcomeServerError: the server answered 500 or above. Retry later.
	OutcomeServerError
	// OutcomeTransportError: no response at all. Retry later.
	OutcomeTransportError
	// OutcomeInvalid: the request can never be sent. Terminal.
	OutcomeInvalid
)

// Classify maps a transport result to an Outcome.
func Classify(res *transport.Response, err error) Outcome {
	if errors.Is(err, transport.ErrInvalidRequest) {
		return OutcomeInvalid
	}
	if err != nil || res == nil {
		return OutcomeTransportError
	}
	if res.StatusCode >= http.StatusInternalServerError {
		return OutcomeServerError
	}
	return OutcomeDelivered
}

// Replay runs one pass over the requests queued at the moment it starts.
// Requests enqueued during the pass wait for the next one.
//
// Cancelling ctx does not stop a pass that has begun; the pass always
// finishes its snapshot. A storage fault aborts the pass and is returned
// together with the counts so far.
func (e *Engine) Replay(ctx context.Context) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx = context.WithoutCancel(ctx)

	var result Result

	reqs, err := e.queue.ListQueued(ctx)
	if err != nil {
		return result, err
	}
	if len(reqs) == 0 {
		e.opts.Metrics.QueueDepth.Set(0)
		return result, nil
	}

	e.opts.Logger.Info("replay started", zap.Int("queued", len(reqs)))

	for _, req := range reqs {
		succeeded, err := e.replayOne(ctx, req)
		if err != nil {
			return result, err
		}
		if succeeded {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}

	e.opts.Metrics.ReplayPasses.Inc()
	if n, err := e.queue.Count(ctx); err == nil {
		e.opts.Metrics.QueueDepth.Set(float64(n))
	}

	e.opts.Logger.Info("replay finished",
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed))

	return result, nil
}

// replayOne handles a single queued request and reports whether it counts
// as succeeded. Only storage faults are returned as errors.
func (e *Engine) replayOne(ctx context.Context, req store.QueuedRequest) (bool, error) {
	log := e.opts.Logger.With(
		zap.Int64("id", req.ID),
		zap.String("method", req.Method),
		zap.String("url", req.URL),
		zap.String("category", req.Category),
		zap.Int("retries", req.Retries),
	)

	if req.Retries >= e.opts.MaxRetries {
		if err := e.queue.RemoveQueued(ctx, req.ID); err != nil {
			return false, err
		}
		e.opts.Metrics.ReplayDiscarded.WithLabelValues(metrics.ReasonRetryCeiling).Inc()
		log.Warn("retry ceiling reached, request discarded", zap.Int("max_retries", e.opts.MaxRetries))
		return false, nil
	}

	res, sendErr := e.transport.Send(ctx, transport.Request{
		Method: req.Method,
		URL:    req.URL,
		Header: req.Headers.Clone(),
		Body:   []byte(req.Body),
	})

	switch Classify(res, sendErr) {
	case OutcomeDelivered:
		if err := e.queue.RemoveQueued(ctx, req.ID); err != nil {
			return false, err
		}
		if res.StatusCode >= http.StatusBadRequest {
			e.opts.Metrics.ReplayAttempts.WithLabelValues(metrics.OutcomeClientError).Inc()
			e.opts.Metrics.ReplayDiscarded.WithLabelValues(metrics.ReasonClientError).Inc()
			log.Warn("server rejected request, discarded", zap.Int("status", res.StatusCode))
		} else {
			e.opts.Metrics.ReplayAttempts.WithLabelValues(metrics.OutcomeSuccess).Inc()
			log.Debug("request replayed", zap.Int("status", res.StatusCode))
		}
		return true, nil

	case OutcomeInvalid:
		if err := e.queue.RemoveQueued(ctx, req.ID); err != nil {
			return false, err
		}
		e.opts.Metrics.ReplayAttempts.WithLabelValues(metrics.OutcomeInvalidRequest).Inc()
		e.opts.Metrics.ReplayDiscarded.WithLabelValues(metrics.ReasonInvalidRequest).Inc()
		log.Warn("request cannot be sent, discarded", zap.Error(sendErr))
		return false, nil

	case OutcomeServerError:
		e.opts.Metrics.ReplayAttempts.WithLabelValues(metrics.OutcomeServerError).Inc()
		log.Debug("server error, will retry", zap.Int("status", res.StatusCode))

	default:
		e.opts.Metrics.ReplayAttempts.WithLabelValues(metrics.OutcomeTransportError).Inc()
		log.Debug("transport error, will retry", zap.Error(sendErr))
	}

	if err := e.queue.IncrementRetry(ctx, req.ID); err != nil {
		return false, err
	}
	return false, nil
}
