package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/api"
	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/connectivity"
	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/gate"
	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/metrics"
	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/replay"
	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/sweeper"
	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/transport"
	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/wake"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Listen   string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the sync daemon",
		Long: `Start the offsync daemon.

The daemon opens the store, probes connectivity, replays the queue on every
reconnect, on a timer and on wake messages, sweeps expired cache entries and
serves the local HTTP API. It stops on SIGINT or SIGTERM; a replay pass in
progress finishes first.

Example:
  offsync run --db ./offsync.db
  offsync run --config /etc/offsync/offsync.yaml --listen 127.0.0.1:9477`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(opts, cmd)
		},
	}

	addDBFlag(cmd, &opts.Database)
	cmd.Flags().StringVar(&opts.Listen, "listen", "", "API listen address (overrides api.listen)")

	return cmd
}

func runDaemon(opts *RunOptions, cmd *cobra.Command) error {
	a, err := setup(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer a.close()

	cfg, lg := a.cfg, a.log
	if opts.Listen != "" {
		cfg.API.Listen = opts.Listen
	}

	reg := metrics.NewRegistry()
	m := metrics.New(reg)

	monitor := connectivity.NewMonitor(connectivity.MonitorOptions{
		ProbeURL: cfg.Connectivity.ProbeURL,
		Interval: cfg.Connectivity.Interval,
		Timeout:  cfg.Connectivity.Timeout,
		Logger:   lg.Named("connectivity"),
	})

	httpT := transport.NewHTTPTransport(transport.HTTPOptions{
		Timeout: cfg.Replay.RequestTimeout,
		Logger:  lg.Named("transport"),
	})
	defer httpT.Close()

	engine := replay.New(a.store, httpT, replay.Options{
		MaxRetries: cfg.Replay.MaxRetries,
		Logger:     lg.Named("replay"),
		Metrics:    m,
	})

	wakeOpts := wake.Options{
		Interval:        cfg.Replay.Interval,
		RegisterTimeout: cfg.Wake.RegisterTimeout,
		Connectivity:    monitor,
		Checker:         monitor,
		Logger:          lg.Named("wake"),
		Metrics:         m,
	}
	if cfg.Wake.Redis.Addr != "" {
		client := newRedisClient(cfg.Wake.Redis)
		defer client.Close()

		facility := wake.NewRedisFacility(client, wake.RedisOptions{
			Key:     cfg.Wake.Redis.Key,
			Channel: cfg.Wake.Redis.Channel,
			Logger:  lg.Named("redis"),
		})
		wakeOpts.Registrar = facility
		wakeOpts.Listeners = append(wakeOpts.Listeners, facility)
	}
	coord := wake.NewCoordinator(engine, a.store, wakeOpts)

	g := gate.New(httpT, a.store, monitor, gate.Options{
		IdempotencyHeader:     cfg.Gate.IdempotencyHeader,
		DisableIdempotencyKey: cfg.Gate.IdempotencyHeader == "",
		DefaultSyncTag:        cfg.Gate.DefaultSyncTag,
		DefaultCacheTTL:       cfg.Gate.DefaultCacheTTL,
		Waker:                 coord,
		Logger:                lg.Named("gate"),
		Metrics:               m,
	})

	sw := sweeper.New(a.store, sweeper.Options{
		Interval: cfg.Sweeper.Interval,
		Logger:   lg.Named("sweeper"),
		Metrics:  m,
	})

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Requests left over from a previous session keep their wake tags.
	tags, err := a.store.SyncTags(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read pending sync tags", err)
	}
	for _, tag := range tags {
		coord.Register(ctx, tag)
	}
	if n, err := a.store.Count(ctx); err == nil {
		m.QueueDepth.Set(float64(n))
		lg.Info("store opened", zap.String("path", cfg.Store.Path), zap.Int("queued", n))
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return monitor.Run(ctx) })
	eg.Go(func() error { return coord.Run(ctx) })
	eg.Go(func() error { return sw.Run(ctx) })
	if cfg.API.Listen != "" {
		server := api.New(a.store, g, coord, api.Options{
			Gatherer: reg,
			Logger:   lg.Named("api"),
		})
		eg.Go(func() error { return server.ListenAndServe(ctx, cfg.API.Listen) })
	}

	coord.Trigger()
	fmt.Fprintln(cmd.OutOrStdout(), "offsync started. Press Ctrl-C to stop.")

	if err := eg.Wait(); err != nil {
		return WrapExitError(ExitFailure, "daemon error", err)
	}

	lg.Info("offsync stopped")
	return nil
}
