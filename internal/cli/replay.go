package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/connectivity"
	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/replay"
	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/transport"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Force    bool
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Run one replay pass over the queue",
		Long: `Send every pending request once, in queue order.

Requests answered below 500 are removed. Server errors and network failures
bump the retry counter; a request that reached the retry ceiling is dropped.

If connectivity.probe_url is configured the probe runs first and the pass is
skipped while offline, unless --force is given.

Exit codes:
  0 - Pass completed (individual requests may still have failed)
  1 - Offline, or the store failed during the pass
  2 - Command error (config or database not usable)

Examples:
  offsync replay --db ./offsync.db
  offsync replay --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	addDBFlag(cmd, &opts.Database)
	cmd.Flags().BoolVar(&opts.Force, "force", false, "replay even if the probe reports offline")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)

	a, err := setup(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer a.close()

	f := opts.formatter(cmd)

	if !opts.Force {
		monitor := connectivity.NewMonitor(connectivity.MonitorOptions{
			ProbeURL: a.cfg.Connectivity.ProbeURL,
			Timeout:  a.cfg.Connectivity.Timeout,
			Logger:   a.log,
		})
		if !monitor.Probe(ctx) {
			if f.Structured() {
				f.Error("E_OFFLINE", "probe failed, replay skipped", a.cfg.Connectivity.ProbeURL)
			}
			return NewExitError(ExitFailure, "offline: replay skipped")
		}
	}

	httpT := transport.NewHTTPTransport(transport.HTTPOptions{
		Timeout: a.cfg.Replay.RequestTimeout,
		Logger:  a.log,
	})
	defer httpT.Close()

	engine := replay.New(a.store, httpT, replay.Options{
		MaxRetries: a.cfg.Replay.MaxRetries,
		Logger:     a.log,
	})

	f.VerboseLog("replay: retry ceiling %d, request timeout %s", a.cfg.Replay.MaxRetries, a.cfg.Replay.RequestTimeout)
	result, err := engine.Replay(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "replay aborted", err)
	}

	if f.Structured() {
		return f.Success(result)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Replayed: %d succeeded, %d failed\n", result.Succeeded, result.Failed)
	return nil
}
