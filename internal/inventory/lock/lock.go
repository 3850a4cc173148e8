package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fekuna/funeral-inventory-service/pkg/cache"
	"github.com/fekuna/funeral-inventory-service/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrBusy = errors.New("system busy, please try again later (lock)")

// RedisLocker takes a short-lived SET NX lock, retrying a few times before
// giving up.
type RedisLocker struct {
	cache    *cache.RedisClient
	attempts int
	backoff  time.Duration
	logger   logger.ZapLogger
}

func NewRedisLocker(c *cache.RedisClient, log logger.ZapLogger) *RedisLocker {
	return &RedisLocker{
		cache:    c,
		attempts: 3,
		backoff:  100 * time.Millisecond,
		logger:   log,
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	value := uuid.New().String()

	for i := 0; i < l.attempts; i++ {
		ok, err := l.cache.AcquireLock(ctx, key, value, ttl)
		if err != nil {
			l.logger.Error("failed to acquire lock redis error", zap.String("key", key), zap.Error(err))
		}
		if ok {
			return func() {
				// The caller's ctx may already be cancelled by the time we unlock.
				if err := l.cache.ReleaseLock(context.Background(), key, value); err != nil {
					l.logger.Warn("failed to release lock", zap.String("key", key), zap.Error(err))
				}
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.backoff):
		}
	}
	return nil, ErrBusy
}

// LocalLocker serializes keys within one process. It backs the in-memory
// store and tests.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *LocalLocker) Lock(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock, nil
}
