// Package redis implements cache.Driver on Redis lists.
package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/papercomputeco/memoir/pkg/cache"
	"github.com/papercomputeco/memoir/pkg/retry"
)

// Config configures the Redis connection.
type Config struct {
	// Addr is host:port of the Redis server.
	Addr string

	Password string
	DB       int

	// PoolSize bounds concurrent connections. Zero keeps the client default.
	PoolSize int

	// MinIdleConns keeps warm connections around.
	MinIdleConns int

	// Retry drives the client's own retry loop for network failures.
	Retry retry.Policy

	Logger *zap.Logger
}

// Driver implements cache.Driver with go-redis.
type Driver struct {
	client *redis.Client
	logger *zap.Logger
	mu     sync.RWMutex
	closed bool
}

// NewDriver connects to Redis and verifies the connection.
func NewDriver(c Config) (*Driver, error) {
	if c.Retry.BaseDelay == 0 {
		c.Retry = retry.DefaultPolicy()
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}

	// go-redis treats zero as "use the default", -1 disables retries.
	maxRetries := int(c.Retry.Retries)
	if maxRetries == 0 {
		maxRetries = -1
	}

	client := redis.NewClient(&redis.Options{
		Addr:            c.Addr,
		Password:        c.Password,
		DB:              c.DB,
		MaxRetries:      maxRetries,
		MinRetryBackoff: c.Retry.BaseDelay,
		MaxRetryBackoff: c.Retry.MaxDelay,
		PoolSize:        c.PoolSize,
		MinIdleConns:    c.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	c.Logger.Info("cache driver initialized",
		zap.String("addr", c.Addr),
		zap.Int("db", c.DB),
	)

	return &Driver{
		client: client,
		logger: c.Logger.With(zap.String("component", "cache")),
	}, nil
}

// Range returns the whole list, newest first.
func (d *Driver) Range(ctx context.Context, key string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, cache.ErrClosed
	}

	vals, err := d.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		d.logger.Error("cache range failed", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("cache range failed: %w", err)
	}
	return vals, nil
}

// Push prepends values and refreshes the expiry in one MULTI/EXEC.
func (d *Driver) Push(ctx context.Context, key string, values []string, ttl time.Duration) error {
	if len(values) == 0 {
		return nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return cache.ErrClosed
	}

	_, err := d.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, toArgs(values)...)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		d.logger.Error("cache push failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("cache push failed: %w", err)
	}
	return nil
}

// Overwrite replaces the list atomically.
func (d *Driver) Overwrite(ctx context.Context, key string, values []string, ttl time.Duration) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return cache.ErrClosed
	}

	_, err := d.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) > 0 {
			pipe.LPush(ctx, key, toArgs(values)...)
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		d.logger.Error("cache overwrite failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("cache overwrite failed: %w", err)
	}
	return nil
}

func (d *Driver) Delete(ctx context.Context, key string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return cache.ErrClosed
	}

	if err := d.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache delete failed: %w", err)
	}
	return nil
}

func (d *Driver) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}

// Close closes the connection pool. Further calls return cache.ErrClosed.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	d.logger.Info("closing cache driver")
	return d.client.Close()
}

func toArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
