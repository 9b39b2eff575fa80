// Package wake turns external signals into replay passes.
//
// A Coordinator owns a single loop. Connectivity transitions, the periodic
// timer, pub/sub wake messages and manual triggers all feed one buffered
// signal of size one, so any number of triggers arriving while a pass is
// running collapse into at most one trailing pass.
package wake

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/connectivity"
	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/metrics"
	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/replay"
)

const (
	defaultInterval        = 30 * time.Second
	defaultRegisterTimeout = time.Second
)

// Registration results recorded in metrics.
const (
	ResultRegistered  = "registered"
	ResultUnavailable = "unavailable"
	ResultFailed      = "failed"
)

var nopLogger = zap.NewNop()

// ErrUnavailable is returned by a Registrar that exists but cannot reach its
// backing facility.
var ErrUnavailable = errors.New("wake: background facility unavailable")

//go:generate mockgen -source=wake.go -destination=../mocks/mock_wake/wake.go -package=mock_wake

// Registrar is the host background-execution facility. Register records a
// named interest so the host can wake the process later.
type Registrar interface {
	Register(ctx context.Context, tag string) error
}

// Releaser is implemented by registrars that can drop a tag once nothing is
// pending under it.
type Releaser interface {
	Release(ctx context.Context, tag string) error
}

// Listener is an external wake source. Listen blocks until ctx is done and
// calls wake for every received signal.
type Listener interface {
	Listen(ctx context.Context, wake func()) error
}

// Replayer runs one replay pass.
type Replayer interface {
	Replay(ctx context.Context) (replay.Result, error)
}

// Pending reports the distinct sync tags of requests still queued.
type Pending interface {
	SyncTags(ctx context.Context) ([]string, error)
}

// Options configures a Coordinator.
type Options struct {
	// Interval of the periodic timer. Default is 30s.
	Interval time.Duration

	// Registrar is optional. Without one, Register only logs.
	Registrar Registrar

	// RegisterTimeout bounds one call to the Registrar. Default is 1s.
	RegisterTimeout time.Duration

	// Connectivity delivers online transitions. Optional.
	Connectivity connectivity.Source

	// Checker, when set, suppresses passes while it reports offline.
	// A transition to online always triggers a pass.
	Checker connectivity.Checker

	// Listeners are additional wake sources, e.g. a RedisFacility.
	Listeners []Listener

	// Logger is the *zap.Logger for this Coordinator.
	// A nil Logger will disable logging.
	Logger *zap.Logger

	Metrics *metrics.Metrics
}

// Init fills in defaults.
func (opts *Options) Init() {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.RegisterTimeout <= 0 {
		opts.RegisterTimeout = defaultRegisterTimeout
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(nil)
	}
}

// Coordinator serialises replay passes triggered by independent signals.
type Coordinator struct {
	replayer Replayer
	queue    Pending
	opts     Options

	signal chan struct{}

	mu   sync.Mutex
	tags map[string]struct{}
	// gen counts Register calls per tag. A release that raced with a
	// registration sees a changed generation and registers again.
	gen map[string]uint64

	newTicker func(time.Duration) (<-chan time.Time, func())

	// passDone, if set, observes every finished pass. Used by tests.
	passDone func(replay.Result, error)
}

// NewCoordinator creates a Coordinator. queue may be nil, in which case
// registered tags are never released.
func NewCoordinator(r Replayer, queue Pending, opts Options) *Coordinator {
	opts.Init()
	return &Coordinator{
		replayer:  r,
		queue:     queue,
		opts:      opts,
		signal:    make(chan struct{}, 1),
		tags:      make(map[string]struct{}),
		gen:       make(map[string]uint64),
		newTicker: newTicker,
	}
}

func newTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Register asks the background facility to wake this process for tag.
// Failure or absence of the facility is logged and otherwise ignored: the
// timer and connectivity signals still drive replay. The facility call is
// bounded by RegisterTimeout.
func (c *Coordinator) Register(ctx context.Context, tag string) {
	log := c.opts.Logger.With(zap.String("tag", tag))

	if c.opts.Registrar == nil {
		c.opts.Metrics.WakeRegistrations.WithLabelValues(ResultUnavailable).Inc()
		log.Debug("no background facility, relying on timer and connectivity")
		return
	}

	c.mu.Lock()
	c.gen[tag]++
	c.mu.Unlock()

	if err := c.register(ctx, tag); err != nil {
		result := ResultFailed
		if errors.Is(err, ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
			result = ResultUnavailable
		}
		c.opts.Metrics.WakeRegistrations.WithLabelValues(result).Inc()
		log.Warn("wake registration failed", zap.Error(err))
		return
	}

	c.mu.Lock()
	c.tags[tag] = struct{}{}
	c.mu.Unlock()

	c.opts.Metrics.WakeRegistrations.WithLabelValues(ResultRegistered).Inc()
	log.Debug("wake registered")
}

func (c *Coordinator) register(ctx context.Context, tag string) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.RegisterTimeout)
	defer cancel()
	return c.opts.Registrar.Register(ctx, tag)
}

// Tags returns the tags registered and not yet released.
func (c *Coordinator) Tags() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.tags))
	for tag := range c.tags {
		out = append(out, tag)
	}
	return out
}

// Trigger schedules a pass. It never blocks; triggers that arrive while one
// is already pending are merged into it.
func (c *Coordinator) Trigger() {
	select {
	case c.signal <- struct{}{}:
	default:
	}
}

// Run drives replay until ctx is done. It always returns nil once ctx is
// cancelled; a pass in progress at that moment finishes first.
func (c *Coordinator) Run(ctx context.Context) error {
	if c.opts.Connectivity != nil {
		cancel := c.opts.Connectivity.Subscribe(func(online bool) {
			if online {
				c.Trigger()
			}
		})
		defer cancel()
	}

	var wg sync.WaitGroup
	for _, l := range c.opts.Listeners {
		wg.Add(1)
		go func(l Listener) {
			defer wg.Done()
			if err := l.Listen(ctx, c.Trigger); err != nil && ctx.Err() == nil {
				c.opts.Logger.Warn("wake listener stopped", zap.Error(err))
			}
		}(l)
	}
	defer wg.Wait()

	// Timer ticks go through Trigger like every other source, so a tick
	// during a pass merges with any other pending trigger.
	ticks, stopTicker := c.newTicker(c.opts.Interval)
	defer stopTicker()
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticks:
				c.Trigger()
			}
		}
	}()

	c.opts.Logger.Info("wake coordinator started", zap.Duration("interval", c.opts.Interval))

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.signal:
			c.runPass(ctx)
		}
	}
}

func (c *Coordinator) runPass(ctx context.Context) {
	if c.opts.Checker != nil && !c.opts.Checker.Online() {
		c.opts.Logger.Debug("offline, replay skipped")
		return
	}

	result, err := c.replayer.Replay(ctx)
	if err != nil {
		c.opts.Logger.Error("replay pass failed", zap.Error(err))
	} else {
		c.releaseIfDrained(ctx)
	}

	if c.passDone != nil {
		c.passDone(result, err)
	}
}

// releaseIfDrained releases every registered tag with no queued request
// left under it.
func (c *Coordinator) releaseIfDrained(ctx context.Context) {
	releaser, ok := c.opts.Registrar.(Releaser)
	if !ok || c.queue == nil {
		return
	}

	type idleTag struct {
		tag string
		gen uint64
	}

	// Generations are taken before the queue is read. A registration that
	// lands after this point is seen below, whatever the queue said.
	c.mu.Lock()
	candidates := make([]idleTag, 0, len(c.tags))
	for tag := range c.tags {
		candidates = append(candidates, idleTag{tag: tag, gen: c.gen[tag]})
	}
	c.mu.Unlock()
	if len(candidates) == 0 {
		return
	}

	pending, err := c.queue.SyncTags(ctx)
	if err != nil {
		c.opts.Logger.Warn("wake release skipped", zap.Error(err))
		return
	}

	for _, t := range candidates {
		if slices.Contains(pending, t.tag) {
			continue
		}
		log := c.opts.Logger.With(zap.String("tag", t.tag))
		if err := releaser.Release(ctx, t.tag); err != nil {
			log.Warn("wake release failed", zap.Error(err))
			continue
		}

		c.mu.Lock()
		raced := c.gen[t.tag] != t.gen
		if !raced {
			delete(c.tags, t.tag)
		}
		c.mu.Unlock()

		if !raced {
			log.Debug("wake released")
			continue
		}
		log.Debug("tag registered during release, registering again")
		if err := c.register(ctx, t.tag); err != nil {
			c.mu.Lock()
			delete(c.tags, t.tag)
			c.mu.Unlock()
			log.Warn("wake registration failed", zap.Error(err))
		}
	}
}
