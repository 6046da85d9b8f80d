package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// Locker grants the "placement-in-flight" guard across process
// boundaries — a single in-process sync.Mutex per Application is
// enough for one instance, but a fleet running several core instances
// needs a shared lock so re-entrancy (§3 invariant) is rejected
// cluster-wide, not just locally.
type Locker interface {
	// TryLock attempts to acquire name for ttl. ok is false if another
	// holder already has it; callers map that to placeerr.ErrReentry.
	TryLock(ctx context.Context, name string, ttl time.Duration) (unlock func(context.Context), ok bool, err error)
}

// RedisLocker guards placement runs with github.com/bsm/redislock,
// matching the teacher's use of the same library for its distributed
// critical sections.
type RedisLocker struct {
	locker *redislock.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{locker: redislock.New(client)}
}

func (l *RedisLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (func(context.Context), bool, error) {
	lock, err := l.locker.Obtain(ctx, "lock:"+name, ttl, nil)
	if err == redislock.ErrNotObtained {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("registry lock %s: %w", name, err)
	}

	unlock := func(ctx context.Context) {
		_ = lock.Release(ctx)
	}

	return unlock, true, nil
}

// MemoryLocker is the single-process fallback, used with
// MemoryRegistry in tests and the single-node dev profile.
type MemoryLocker struct {
	mu      sync.Mutex
	holders map[string]struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{holders: make(map[string]struct{})}
}

func (l *MemoryLocker) TryLock(_ context.Context, name string, _ time.Duration) (func(context.Context), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, held := l.holders[name]; held {
		return nil, false, nil
	}

	l.holders[name] = struct{}{}

	unlock := func(context.Context) {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.holders, name)
	}

	return unlock, true, nil
}
