package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kikoba/kikoba/pkg/eventbus"
	"github.com/redis/go-redis/v9"
)

// ErrInvalidRedisURL is returned for a missing or malformed connection URL.
var ErrInvalidRedisURL = errors.New("redis change bus: invalid URL")

// RedisBus fans changes out over Redis Pub/Sub, one channel per collection, so
// every server process sees writes committed by the others.
type RedisBus struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewWithRedis creates a Redis-backed change bus.
// url: Redis connection URL (e.g., "redis://localhost:6379")
// prefix: channel name prefix, e.g. "kikoba:changes:"
func NewWithRedis(url, prefix string, logger *slog.Logger) (*RedisBus, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidRedisURL)
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRedisURL, err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis change bus: connection failed: %w", err)
	}
	return NewWithRedisClient(client, prefix, logger), nil
}

// NewWithRedisClient wraps an existing client.
func NewWithRedisClient(client *redis.Client, prefix string, logger *slog.Logger) *RedisBus {
	return &RedisBus{
		client: client,
		prefix: prefix,
		logger: logger.With("component", "redis-change-bus"),
	}
}

func (b *RedisBus) channel(collection string) string {
	return b.prefix + collection
}

// Publish sends the change as JSON on the collection channel.
func (b *RedisBus) Publish(ctx context.Context, c eventbus.Change) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("redis change bus: marshal failed: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel(c.Collection), data).Err(); err != nil {
		b.logger.Error("failed to publish change", "error", err, "collection", c.Collection)
		return fmt.Errorf("redis change bus: publish failed: %w", err)
	}
	b.logger.Debug("change published", "collection", c.Collection, "id", c.ID)
	return nil
}

// Subscribe listens on the collection channel. It returns once the subscription is
// confirmed by the server.
func (b *RedisBus) Subscribe(
	ctx context.Context,
	collection string,
	filter eventbus.Filter,
	handler eventbus.HandlerFunc,
) (func(), error) {
	ps := b.client.Subscribe(ctx, b.channel(collection))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis change bus: subscribe failed: %w", err)
	}

	go func() {
		for msg := range ps.Channel() {
			var c eventbus.Change
			if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
				b.logger.Error("failed to unmarshal change", "error", err, "channel", msg.Channel)
				continue
			}
			if !filter.Match(c) {
				continue
			}
			func() {
				defer func() {
					if r := recover(); r != nil {
						b.logger.Error("handler panic recovered", "panic", r, "collection", collection)
					}
				}()
				if err := handler(ctx, c); err != nil {
					b.logger.Error("handler error", "error", err, "collection", collection)
				}
			}()
		}
	}()

	stop := context.AfterFunc(ctx, func() { _ = ps.Close() })
	return func() {
		stop()
		_ = ps.Close()
	}, nil
}

// Close releases the underlying client.
func (b *RedisBus) Close() error {
	return b.client.Close()
}

var _ eventbus.Bus = (*RedisBus)(nil)
