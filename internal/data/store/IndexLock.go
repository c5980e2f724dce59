package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/akolanti/DocQA/internal/config"
	"github.com/akolanti/DocQA/internal/data/redisStore"
	"github.com/akolanti/DocQA/pkg/logger_i"
	"github.com/google/uuid"
)

// RedisIndexLock serializes reindexing across processes with SET NX and a token-checked release.
type RedisIndexLock struct {
	store  *redisStore.Store
	ttl    time.Duration
	retry  time.Duration
	logger *logger_i.Logger
}

func GetRedisIndexLock(ctx context.Context, opts redisStore.Options) (*RedisIndexLock, bool) {
	s := redisStore.GetRedisStore(ctx, opts, config.RedisLockStore)
	if s == nil {
		return nil, false
	}
	return NewRedisIndexLock(s, config.IndexLockTTL, config.IndexLockRetryPeriod), true
}

func NewRedisIndexLock(s *redisStore.Store, ttl time.Duration, retry time.Duration) *RedisIndexLock {
	return &RedisIndexLock{
		store:  s,
		ttl:    ttl,
		retry:  retry,
		logger: logger_i.NewLogger("IndexLock"),
	}
}

func lockKey(collection string) string { return "lock:index:" + collection }

// Acquire polls until the lock is free or ctx is done.
func (l *RedisIndexLock) Acquire(ctx context.Context, collection string) (func(), error) {
	key := lockKey(collection)
	token := uuid.NewString()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()
	for {
		ok, err := l.store.SetNX(ctx, key, token, l.ttl)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("acquire %s: %w", key, ctxErr)
			}
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			stop := make(chan struct{})
			done := make(chan struct{})
			go l.keepAlive(key, token, stop, done)
			var once sync.Once
			return func() {
				once.Do(func() {
					close(stop)
					<-done
					// release must work even if the reindex ctx was cancelled
					releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
					defer cancel()
					if _, err := l.store.CompareAndDelete(releaseCtx, key, token); err != nil {
						l.logger.Error("Failed to release index lock", "collection", collection, "error", err)
					}
				})
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire %s: %w", key, ctx.Err())
		case <-ticker.C:
		}
	}
}

// keepAlive resets the ttl every third of it so a long reindex keeps the lock.
// It gives up once the token is gone, since the lock then belongs to someone else.
func (l *RedisIndexLock) keepAlive(key string, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	interval := l.ttl / 3
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			owned, err := l.store.CompareAndExpire(ctx, key, token, l.ttl)
			cancel()
			if err != nil {
				l.logger.Warn("Failed to extend index lock", "key", key, "error", err)
				continue
			}
			if !owned {
				l.logger.Error("Index lock lost while reindexing", "key", key)
				return
			}
		}
	}
}

// InMemoryIndexLock is the single-process fallback.
type InMemoryIndexLock struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func InitInMemoryIndexLock() *InMemoryIndexLock {
	return &InMemoryIndexLock{locks: make(map[string]chan struct{})}
}

func (l *InMemoryIndexLock) Acquire(ctx context.Context, collection string) (func(), error) {
	l.mu.Lock()
	ch, ok := l.locks[collection]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[collection] = ch
	}
	l.mu.Unlock()

	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire %s: %w", lockKey(collection), ctx.Err())
	}
}
