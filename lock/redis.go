package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis is a distributed Locker. The TTL bounds how long a crashed holder
// can block a key; a live holder refreshes it every TTL/2 until release.
type Redis struct {
	locker *redislock.Client
	ttl    time.Duration
	retry  time.Duration
	logger *zap.Logger
}

func NewRedis(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{
		locker: redislock.New(client),
		ttl:    ttl,
		retry:  50 * time.Millisecond,
		logger: logger,
	}
}

// Acquire retries every 50ms until the lock is obtained, ctx is done, or
// one TTL has passed.
func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	attempts := int(r.ttl / r.retry)
	if attempts < 1 {
		attempts = 1
	}
	lk, err := r.locker.Obtain(ctx, key, r.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(r.retry), attempts),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrNotObtained, key)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go r.keepAlive(ctx, lk, key, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			// The request context may already be cancelled by the time the
			// caller releases.
			if err := lk.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				r.logger.Warn("release lock failed", zap.String("key", key), zap.Error(err))
			}
		})
	}, nil
}

// keepAlive extends the lock every half TTL until stop is closed, so a
// write that outlives one TTL keeps its key.
func (r *Redis) keepAlive(ctx context.Context, lk *redislock.Lock, key string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.ttl / 2)
	defer ticker.Stop()

	ctx = context.WithoutCancel(ctx)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := lk.Refresh(ctx, r.ttl, nil); err != nil {
				r.logger.Warn("refresh lock failed", zap.String("key", key), zap.Error(err))
				return
			}
		}
	}
}
