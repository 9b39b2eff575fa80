package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/sweeper"
)

// SweepOptions holds flags for the sweep command.
type SweepOptions struct {
	*RootOptions
	Database string
}

// SweepResult is the structured output of the sweep command.
type SweepResult struct {
	Deleted int64 `json:"deleted" yaml:"deleted"`
	Remain  int   `json:"remaining" yaml:"remaining"`
}

// NewSweepCommand creates the sweep command.
func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SweepOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "sweep",
		Short:         "Delete expired cache entries once",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(opts, cmd)
		},
	}
	addDBFlag(cmd, &opts.Database)

	return cmd
}

func runSweep(opts *SweepOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)

	a, err := setup(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer a.close()

	n, err := sweeper.New(a.store, sweeper.Options{Logger: a.log}).Sweep(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "sweep failed", err)
	}
	remain, err := a.store.CacheLen(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "sweep failed", err)
	}

	f := opts.formatter(cmd)
	if f.Structured() {
		return f.Success(SweepResult{Deleted: n, Remain: remain})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d expired cache entries, %d remaining.\n", n, remain)
	return nil
}
