// Package api serves the local admin and dispatch HTTP API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/gate"
	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/store"
	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/transport"
)

const shutdownTimeout = 5 * time.Second

var (
	nopLogger = zap.NewNop()
	validate  = validator.New()
)

// Queue is the read side of the request queue.
type Queue interface {
	ListQueued(ctx context.Context) ([]store.QueuedRequest, error)
	Count(ctx context.Context) (int, error)
}

// Dispatcher routes a request through the dispatch gate.
type Dispatcher interface {
	Do(ctx context.Context, req transport.Request, opts ...gate.DispatchOption) (*transport.Response, error)
}

// Trigger schedules a replay pass.
type Trigger interface {
	Trigger()
}

// Options configures a Server.
type Options struct {
	// Gatherer backs /metrics. The endpoint is not mounted when nil.
	Gatherer prometheus.Gatherer

	// Logger is the *zap.Logger for this Server.
	// A nil Logger will disable logging.
	Logger *zap.Logger
}

// Init fills in defaults.
func (opts *Options) Init() {
	if opts.Logger == nil {
		opts.Logger = nopLogger
	}
}

// Server is the local admin and dispatch API. It holds no state of its
// own; every route reads the queue or goes through the gate.
type Server struct {
	queue   Queue
	gate    Dispatcher
	trigger Trigger
	opts    Options
}

// New creates a Server. t receives POST /v1/replay.
func New(q Queue, d Dispatcher, t Trigger, opts Options) *Server {
	opts.Init()
	return &Server{queue: q, gate: d, trigger: t, opts: opts}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/queue", s.listQueue)
		r.Post("/replay", s.replay)
		r.Post("/dispatch", s.dispatch)
	})

	if s.opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.opts.Logger.Info("api listening", zap.Stringer("addr", ln.Addr()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.opts.Logger.Debug("api request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Error: msg})
}
