package cli

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/connectivity"
	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/gate"
	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/transport"
)

// EnqueueOptions holds flags for the enqueue command.
type EnqueueOptions struct {
	*RootOptions
	Database string
	Method   string
	URL      string
	Headers  []string
	Body     string
	Category string
	SyncTag  string
}

// EnqueueResult is the structured output of the enqueue command.
type EnqueueResult struct {
	ID             int64  `json:"id" yaml:"id"`
	IdempotencyKey string `json:"idempotency_key,omitempty" yaml:"idempotency_key,omitempty"`
}

// NewEnqueueCommand creates the enqueue command.
func NewEnqueueCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EnqueueOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Queue a mutation for later replay",
		Long: `Queue a mutating request as if it had been issued while offline.

The request goes through the same checks as the dispatch gate: reads are
rejected, bodies that cannot be stored as text are rejected, and an
idempotency key is added unless one is present.

Examples:
  offsync enqueue --url https://api.example.eu/orders --body '{"id":1}' \
    --header 'Content-Type: application/json'
  offsync enqueue --method DELETE --url https://api.example.eu/orders/9`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnqueue(opts, cmd)
		},
	}

	addDBFlag(cmd, &opts.Database)
	cmd.Flags().StringVarP(&opts.Method, "method", "X", http.MethodPost, "HTTP method")
	cmd.Flags().StringVar(&opts.URL, "url", "", "request URL (required)")
	_ = cmd.MarkFlagRequired("url")
	cmd.Flags().StringArrayVarP(&opts.Headers, "header", "H", nil, `request header "Name: value" (repeatable)`)
	cmd.Flags().StringVarP(&opts.Body, "body", "d", "", "request body")
	cmd.Flags().StringVar(&opts.Category, "category", "", "category label")
	cmd.Flags().StringVar(&opts.SyncTag, "sync-tag", "", "wake tag (default gate.default_sync_tag)")

	return cmd
}

func runEnqueue(opts *EnqueueOptions, cmd *cobra.Command) error {
	method := strings.ToUpper(opts.Method)
	if transport.IsRead(method) {
		return NewExitError(ExitCommandError, fmt.Sprintf("%s requests are never queued", method))
	}

	header := make(http.Header, len(opts.Headers))
	for _, h := range opts.Headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return NewExitError(ExitCommandError, fmt.Sprintf("invalid header %q, want \"Name: value\"", h))
		}
		header.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	ctx := commandContext(cmd)

	a, err := setup(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer a.close()

	// Offline gate: every mutation takes the enqueue path.
	g := gate.New(nil, a.store, connectivity.NewStatic(false), gate.Options{
		IdempotencyHeader:     a.cfg.Gate.IdempotencyHeader,
		DisableIdempotencyKey: a.cfg.Gate.IdempotencyHeader == "",
		DefaultSyncTag:        a.cfg.Gate.DefaultSyncTag,
		Logger:                a.log,
	})

	var body []byte
	if opts.Body != "" {
		body = []byte(opts.Body)
	}
	res, err := g.Do(ctx, transport.Request{
		Method: method,
		URL:    opts.URL,
		Header: header,
		Body:   body,
	}, gate.WithSyncTag(opts.SyncTag), gate.WithCategory(opts.Category))
	if errors.Is(err, transport.ErrInvalidRequest) {
		return WrapExitError(ExitCommandError, "invalid request", err)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "failed to enqueue", err)
	}

	result := EnqueueResult{ID: res.QueuedID}
	queued, err := a.store.GetQueued(ctx, res.QueuedID)
	if err == nil && a.cfg.Gate.IdempotencyHeader != "" {
		result.IdempotencyKey = queued.Headers.Get(a.cfg.Gate.IdempotencyHeader)
	}

	f := opts.formatter(cmd)
	if f.Structured() {
		return f.Success(result)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Queued request %d.\n", result.ID)
	return nil
}
