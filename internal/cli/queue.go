package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/store"
)

// QueueOptions holds flags for the queue commands.
type QueueOptions struct {
	*RootOptions
	Database string
	Yes      bool
}

// NewQueueCommand creates the queue command group.
func NewQueueCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueueOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect or reset the request queue",
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides store.path)")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List pending requests in replay order",
		Example: `  offsync queue list --db ./offsync.db
  offsync queue list --format yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueueList(opts, cmd)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "count",
		Short:         "Print the queue depth",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueueCount(opts, cmd)
		},
	})

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every pending request",
		Long: `Delete every pending request without sending it.

The deleted mutations are lost. The original callers were told their
requests were pending and will not be notified.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueueClear(opts, cmd)
		},
	}
	clearCmd.Flags().BoolVar(&opts.Yes, "yes", false, "confirm deletion")
	cmd.AddCommand(clearCmd)

	return cmd
}

func runQueueList(opts *QueueOptions, cmd *cobra.Command) error {
	a, err := setup(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer a.close()

	items, err := a.store.ListQueued(commandContext(cmd))
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list queue", err)
	}

	f := opts.formatter(cmd)
	if f.Structured() {
		if items == nil {
			items = []store.QueuedRequest{}
		}
		return f.Success(items)
	}

	if len(items) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty.")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tMETHOD\tURL\tRETRIES\tCATEGORY\tQUEUED AT")
	for _, r := range items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\n",
			r.ID, r.Method, r.URL, r.Retries, r.Category, r.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

// QueueCount is the structured output of queue count and queue clear.
type QueueCount struct {
	Count int64 `json:"count" yaml:"count"`
}

func runQueueCount(opts *QueueOptions, cmd *cobra.Command) error {
	a, err := setup(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer a.close()

	n, err := a.store.Count(commandContext(cmd))
	if err != nil {
		return WrapExitError(ExitFailure, "failed to count queue", err)
	}

	f := opts.formatter(cmd)
	if f.Structured() {
		return f.Success(QueueCount{Count: int64(n)})
	}
	return f.Success(n)
}

func runQueueClear(opts *QueueOptions, cmd *cobra.Command) error {
	if !opts.Yes {
		return NewExitError(ExitCommandError, "refusing to clear the queue without --yes")
	}

	a, err := setup(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer a.close()

	n, err := a.store.ClearQueue(commandContext(cmd))
	if err != nil {
		return WrapExitError(ExitFailure, "failed to clear queue", err)
	}

	f := opts.formatter(cmd)
	if f.Structured() {
		return f.Success(QueueCount{Count: n})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d pending request(s).\n", n)
	return nil
}
