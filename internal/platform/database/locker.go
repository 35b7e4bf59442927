package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
)

// ErrLockNotObtained is returned when another instance holds the lock.
var ErrLockNotObtained = errors.New("database: lock not obtained")

// Locker serialises work across service instances.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration, wait time.Duration) (Unlock, error)
}

// Unlock releases a lock obtained from a Locker.
type Unlock func(ctx context.Context) error

// NoopLocker always grants the lock. Used when only one instance runs (no Redis configured).
type NoopLocker struct{}

// Obtain implements Locker.
func (NoopLocker) Obtain(context.Context, string, time.Duration, time.Duration) (Unlock, error) {
	return func(context.Context) error { return nil }, nil
}

// RedisLocker implements Locker with bsm/redislock.
type RedisLocker struct {
	client *redislock.Client
	prefix string
}

// NewRedisLocker wraps a redislock client; keys are namespaced with prefix.
func NewRedisLocker(client *redislock.Client, prefix string) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix}
}

// Obtain tries to take key for ttl, polling every 100ms for up to wait. A zero wait makes a
// single attempt.
func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration, wait time.Duration) (Unlock, error) {
	var strategy redislock.RetryStrategy = redislock.NoRetry()
	if wait > 0 {
		strategy = redislock.LinearBackoff(100 * time.Millisecond)
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wait)
		defer cancel()
	}
	lock, err := l.client.Obtain(ctx, l.prefix+key, ttl, &redislock.Options{RetryStrategy: strategy})
	if errors.Is(err, redislock.ErrNotObtained) || errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: %s", ErrLockNotObtained, key)
	}
	if err != nil {
		return nil, fmt.Errorf("database: obtain lock %s: %w", key, err)
	}
	return func(ctx context.Context) error {
		if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			return err
		}
		return nil
	}, nil
}
