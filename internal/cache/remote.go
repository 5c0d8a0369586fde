package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pmhub/pmhub/internal/config"
)

const scanCount = 500

// ErrMiss is returned by Remote.Get for absent keys.
var ErrMiss = errors.New("cache miss")

// Remote is the external redis tier. Every call is bounded by the operation timeout.
type Remote struct {
	client    redis.UniversalClient
	opTimeout time.Duration
}

// NewRedisClient builds a go-redis client from the cache configuration.
func NewRedisClient(cfg *config.Cache) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.Database,
		DialTimeout:  config.Seconds(cfg.DialTimeout),
		ReadTimeout:  config.Seconds(cfg.ReadTimeout),
		WriteTimeout: config.Seconds(cfg.WriteTimeout),
		PoolTimeout:  config.Seconds(cfg.DialTimeout + cfg.ReadTimeout),
		MaxRetries:   1,
	})
}

// NewRemote wraps client. opTimeout bounds each round trip.
func NewRemote(client redis.UniversalClient, opTimeout time.Duration) *Remote {
	if opTimeout <= 0 {
		opTimeout = 2 * time.Second
	}

	return &Remote{client: client, opTimeout: opTimeout}
}

func (r *Remote) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.opTimeout)
}

// Get returns the value and its remaining lifetime.
// The lifetime is -1 for keys without expiry and -2 if the key vanished between the two reads.
func (r *Remote) Get(ctx context.Context, key string) ([]byte, time.Duration, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	pipe := r.client.Pipeline()
	getCmd := pipe.Get(ctx, key)
	ttlCmd := pipe.PTTL(ctx, key)

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, err //nolint:wrapcheck
	}

	data, err := getCmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, 0, ErrMiss
	}

	if err != nil {
		return nil, 0, err //nolint:wrapcheck
	}

	return data, ttlCmd.Val(), nil
}

// Set writes value with expiry.
func (r *Remote) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	return r.client.Set(ctx, key, value, ttl).Err() //nolint:wrapcheck
}

// Del removes keys and returns how many existed.
func (r *Remote) Del(ctx context.Context, keys ...string) (int64, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	return r.client.Del(ctx, keys...).Result() //nolint:wrapcheck
}

// DeletePattern walks the keyspace with SCAN and deletes every match.
// It returns the deleted keys; on error the keys deleted so far are returned with it.
func (r *Remote) DeletePattern(ctx context.Context, pattern string) ([]string, error) {
	var (
		cursor  uint64
		deleted []string
	)

	for {
		keys, next, err := r.scan(ctx, cursor, pattern)
		if err != nil {
			return deleted, err
		}

		if len(keys) > 0 {
			if _, err := r.Del(ctx, keys...); err != nil {
				return deleted, err
			}

			deleted = append(deleted, keys...)
		}

		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

func (r *Remote) scan(ctx context.Context, cursor uint64, pattern string) ([]string, uint64, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	return r.client.Scan(ctx, cursor, pattern, scanCount).Result() //nolint:wrapcheck
}

// Ping checks the connection.
func (r *Remote) Ping(ctx context.Context) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	return r.client.Ping(ctx).Err() //nolint:wrapcheck
}

// Publish sends payload on channel.
func (r *Remote) Publish(ctx context.Context, channel string, payload []byte) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	return r.client.Publish(ctx, channel, payload).Err() //nolint:wrapcheck
}

// Subscribe opens a subscription on channel. The caller closes it.
func (r *Remote) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	return r.client.Subscribe(ctx, channel)
}

// Close releases the client connections.
func (r *Remote) Close() error {
	return r.client.Close() //nolint:wrapcheck
}
