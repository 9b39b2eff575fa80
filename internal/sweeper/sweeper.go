// Package sweeper periodically deletes expired cache rows.
//
// Sweeping only reclaims space. GetCache already hides expired entries,
// so a failed or delayed sweep never makes a stale read visible.
package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/metrics"
)

const defaultInterval = time.Minute

var nopLogger = zap.NewNop()

// Cache is the part of the durable store the sweeper needs.
type Cache interface {
	SweepExpiredCache(ctx context.Context) (int64, error)
}

// Options configures a Sweeper.
type Options struct {
	// Interval between sweeps. Default is 1m.
	Interval time.Duration

	// Logger is the *zap.Logger for this Sweeper.
	// A nil Logger will disable logging.
	Logger *zap.Logger

	Metrics *metrics.Metrics
}

// Init fills in defaults.
func (opts *Options) Init() {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(nil)
	}
}

// Sweeper deletes expired cache rows on a timer.
type Sweeper struct {
	cache Cache
	opts  Options
}

// New creates a Sweeper over c. Call Run to start the timer.
func New(c Cache, opts Options) *Sweeper {
	opts.Init()
	return &Sweeper{cache: c, opts: opts}
}

// Run sweeps on every tick until ctx is done. Sweep errors are logged and
// counted, never returned.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs one sweep and returns the number of deleted rows, or -1
// if the sweep failed.
func (s *Sweeper) SweepOnce(ctx context.Context) int64 {
	n, err := s.Sweep(ctx)
	if err != nil {
		return -1
	}
	return n
}

// Sweep is SweepOnce returning the storage error to the caller. The error
// is logged and counted either way.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	n, err := s.cache.SweepExpiredCache(ctx)
	if err != nil {
		s.opts.Metrics.SweepErrors.Inc()
		s.opts.Logger.Warn("cache sweep failed", zap.Error(err))
		return 0, err
	}
	if n > 0 {
		s.opts.Metrics.CacheSwept.Add(float64(n))
		s.opts.Logger.Debug("cache swept", zap.Int64("deleted", n))
	}
	return n, nil
}
