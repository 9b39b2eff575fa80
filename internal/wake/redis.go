package wake

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultRedisKey     = "offsync:wake:tags"
	defaultRedisChannel = "offsync:wake"
)

// RedisOptions configures a RedisFacility.
type RedisOptions struct {
	// Key of the set holding registered tags. Default is "offsync:wake:tags".
	Key string

	// Channel carrying wake messages. Default is "offsync:wake".
	Channel string

	// Logger is the *zap.Logger for this facility.
	// A nil Logger will disable logging.
	Logger *zap.Logger
}

// Init fills in defaults.
func (opts *RedisOptions) Init() {
	if opts.Key == "" {
		opts.Key = defaultRedisKey
	}
	if opts.Channel == "" {
		opts.Channel = defaultRedisChannel
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger
	}
}

// RedisFacility is a background-execution facility backed by Redis.
// Registered tags live in a set; a scheduler or another process wakes us by
// publishing a tag on the channel.
type RedisFacility struct {
	client redis.UniversalClient
	opts   RedisOptions
}

// NewRedisFacility wraps an existing client. The caller owns the client.
func NewRedisFacility(client redis.UniversalClient, opts RedisOptions) *RedisFacility {
	opts.Init()
	return &RedisFacility{client: client, opts: opts}
}

// Register implements Registrar.
func (f *RedisFacility) Register(ctx context.Context, tag string) error {
	if err := f.client.SAdd(ctx, f.opts.Key, tag).Err(); err != nil {
		return redisErr("register", err)
	}
	return nil
}

// Release implements Releaser.
func (f *RedisFacility) Release(ctx context.Context, tag string) error {
	if err := f.client.SRem(ctx, f.opts.Key, tag).Err(); err != nil {
		return redisErr("release", err)
	}
	return nil
}

// Tags lists the registered tags.
func (f *RedisFacility) Tags(ctx context.Context) ([]string, error) {
	tags, err := f.client.SMembers(ctx, f.opts.Key).Result()
	if err != nil {
		return nil, redisErr("tags", err)
	}
	return tags, nil
}

// Wake publishes tag on the wake channel and returns the number of
// listeners that received it.
func (f *RedisFacility) Wake(ctx context.Context, tag string) (int64, error) {
	n, err := f.client.Publish(ctx, f.opts.Channel, tag).Result()
	if err != nil {
		return 0, redisErr("wake", err)
	}
	return n, nil
}

// Listen implements Listener.
func (f *RedisFacility) Listen(ctx context.Context, wake func()) error {
	sub := f.client.Subscribe(ctx, f.opts.Channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed so a Wake issued right after
	// Listen starts is not lost.
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return redisErr("listen", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			f.opts.Logger.Debug("wake message", zap.String("channel", msg.Channel), zap.String("tag", msg.Payload))
			wake()
		}
	}
}

// redisErr maps connection-level failures to ErrUnavailable so the
// coordinator can tell "no facility" from "facility refused".
func redisErr(op string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, redis.ErrClosed) {
		return fmt.Errorf("redis %s: %w: %w", op, ErrUnavailable, err)
	}
	return fmt.Errorf("redis %s: %w", op, err)
}
