package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/config"
	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/wake"
)

const wakeTimeout = 5 * time.Second

// WakeResult is the structured output of the wake command.
type WakeResult struct {
	Tag       string `json:"tag" yaml:"tag"`
	Receivers int64  `json:"receivers" yaml:"receivers"`
}

// NewWakeCommand creates the wake command.
func NewWakeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wake [tag]",
		Short: "Ask running daemons to replay now",
		Long: `Publish a wake message on the Redis wake channel. Every offsync daemon
subscribed to the channel starts a replay pass.

Requires wake.redis.addr.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			tag := ""
			if len(args) == 1 {
				tag = args[0]
			}
			return runWake(rootOpts, tag, cmd)
		},
	}
	return cmd
}

func runWake(opts *RootOptions, tag string, cmd *cobra.Command) error {
	cfg, _, err := config.Load(opts.ConfigFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if cfg.Wake.Redis.Addr == "" {
		return NewExitError(ExitCommandError, "wake.redis.addr is not configured")
	}
	if tag == "" {
		tag = cfg.Gate.DefaultSyncTag
	}

	client := newRedisClient(cfg.Wake.Redis)
	defer client.Close()

	facility := wake.NewRedisFacility(client, wake.RedisOptions{
		Key:     cfg.Wake.Redis.Key,
		Channel: cfg.Wake.Redis.Channel,
	})

	ctx, cancel := context.WithTimeout(commandContext(cmd), wakeTimeout)
	defer cancel()

	n, err := facility.Wake(ctx, tag)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to publish wake", err)
	}

	f := opts.formatter(cmd)
	if f.Structured() {
		return f.Success(WakeResult{Tag: tag, Receivers: n})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Woke %d daemon(s) for tag %q.\n", n, tag)
	return nil
}

// newRedisClient builds the wake client with the configured dial timeout
// and retry count.
func newRedisClient(rc config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        rc.Addr,
		Password:    rc.Password,
		DB:          rc.DB,
		DialTimeout: rc.DialTimeout,
		MaxRetries:  rc.MaxRetries,
	})
}
