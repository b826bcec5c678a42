package payment

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Locker provides per-order mutual exclusion around the settlement
// transition step. The mongo conditional update remains the final
// authority; the lock keeps the two convergent triggers (client confirm and
// provider webhook) from interleaving their side effects.
type Locker interface {
	// Acquire blocks until the lock for key is held or ctx is done, and
	// returns a release function.
	Acquire(ctx context.Context, key string) (func(), error)
}

const lockTTL = 15 * time.Second

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SETNX and a TTL, so a crashed holder
// cannot wedge an order forever.
type RedisLocker struct {
	Client *redis.Client
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	lockKey := "settle:" + key
	token := uuid.New().String()

	for {
		ok, err := l.Client.SetNX(ctx, lockKey, token, lockTTL).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			release := func() {
				releaseScript.Run(context.Background(), l.Client, []string{lockKey}, token)
			}
			return release, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// MemoryLocker implements Locker in-process. Suitable when settlement is
// confined to one node, and used by tests.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string) (func(), error) {
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
