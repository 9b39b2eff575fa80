package connectivity

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var nopLogger = zap.NewNop()

const (
	defaultProbeInterval = 10 * time.Second
	defaultProbeTimeout  = 3 * time.Second
)

// MonitorOptions configures a Monitor.
type MonitorOptions struct {
	// ProbeURL is requested with HEAD on every tick. Any HTTP response
	// counts as online. An empty ProbeURL disables probing and the monitor
	// stays online.
	ProbeURL string

	// Interval between probes. Default is 10s.
	Interval time.Duration

	// Timeout for one probe. Default is 3s.
	Timeout time.Duration

	// Client performs the probes. Default is a new http.Client.
	Client *http.Client

	// Logger is the *zap.Logger for this Monitor.
	// A nil Logger will disable logging.
	Logger *zap.Logger
}

// Init fills in defaults.
func (opts *MonitorOptions) Init() {
	if opts.Interval <= 0 {
		opts.Interval = defaultProbeInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultProbeTimeout
	}
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger
	}
}

// Monitor probes the API periodically and publishes online/offline
// transitions.
type Monitor struct {
	opts   MonitorOptions
	online atomic.Bool
	subs   subscribers
}

// NewMonitor creates a Monitor. It starts out online until the first probe
// says otherwise.
func NewMonitor(opts MonitorOptions) *Monitor {
	opts.Init()
	m := &Monitor{opts: opts}
	m.online.Store(true)
	return m
}

// Online implements Checker.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Subscribe implements Source.
func (m *Monitor) Subscribe(fn func(online bool)) func() {
	return m.subs.add(fn)
}

// Set records an externally observed state, e.g. from an OS network hook.
func (m *Monitor) Set(online bool) {
	if m.online.Swap(online) == online {
		return
	}
	if online {
		m.opts.Logger.Info("connectivity restored")
	} else {
		m.opts.Logger.Warn("connectivity lost")
	}
	m.subs.notify(online)
}

// Run probes until ctx is done. It returns nil immediately when no probe
// URL is configured.
func (m *Monitor) Run(ctx context.Context) error {
	if m.opts.ProbeURL == "" {
		m.opts.Logger.Info("connectivity probe disabled, assuming online")
		return nil
	}

	m.Set(m.probe(ctx))

	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Set(m.probe(ctx))
		}
	}
}

// Probe runs one probe now and records the result.
func (m *Monitor) Probe(ctx context.Context) bool {
	online := m.probe(ctx)
	m.Set(online)
	return online
}

func (m *Monitor) probe(ctx context.Context) bool {
	if m.opts.ProbeURL == "" {
		return true
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.opts.ProbeURL, nil)
	if err != nil {
		m.opts.Logger.Error("bad probe url", zap.String("url", m.opts.ProbeURL), zap.Error(err))
		return false
	}
	res, err := m.opts.Client.Do(req)
	if err != nil {
		m.opts.Logger.Debug("probe failed", zap.Error(err))
		return false
	}
	res.Body.Close()
	return true
}
