package releasetxman

import (
	"context"
	"sync"
	"time"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/valtbridge/bridge-service/utils/gerror"
)

const defaultLockTTL = 5 * time.Minute

// Locker serializes the payouts of a network across workers. Lock returns
// gerror.ErrLockNotAcquired when the key is held elsewhere.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

type memoryLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewMemoryLocker returns a locker for workers of the same process
func NewMemoryLocker() Locker {
	return &memoryLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *memoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()
	if !m.TryLock() {
		return nil, gerror.ErrLockNotAcquired
	}
	return m.Unlock, nil
}

type redisLocker struct {
	storage lockStorage
	ttl     time.Duration
}

// NewRedisLocker returns a locker shared by every instance using the same redis
func NewRedisLocker(storage lockStorage, ttl time.Duration) Locker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &redisLocker{storage: storage, ttl: ttl}
}

func (l *redisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token, ok, err := l.storage.AcquireLock(ctx, key, l.ttl)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, gerror.ErrLockNotAcquired
	}
	return func() {
		if err := l.storage.ReleaseLock(context.Background(), key, token); err != nil {
			log.Errorf("error releasing lock %s: %v", key, err)
		}
	}, nil
}
