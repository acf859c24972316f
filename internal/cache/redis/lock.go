package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

// unlockLua deletes a lock key only if its value matches the caller's
// token, so one holder can never release another holder's lock.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// extendLua refreshes the TTL only while the caller still holds the lock.
const extendLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`

// LockManager implements domain.LockManager using SET NX with a TTL and
// token-checked unlock and extend scripts. It remembers the token of every
// lock it holds so Extend can be called with just the key.
type LockManager struct {
	rdb      *redis.Client
	prefix   string
	unlockSc *redis.Script
	extendSc *redis.Script

	mu     sync.Mutex
	tokens map[string]string
}

// NewLockManager creates a LockManager backed by the given Client.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{
		rdb:      c.Underlying(),
		prefix:   c.prefix,
		unlockSc: redis.NewScript(unlockLua),
		extendSc: redis.NewScript(extendLua),
		tokens:   make(map[string]string),
	}
}

func (lm *LockManager) lockKey(key string) string {
	return joinKey(lm.prefix, "lock", key)
}

// Acquire obtains the lock for key with the given TTL. The returned unlock
// function is safe to call more than once. It returns domain.ErrLockHeld if
// another party holds the lock.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.New().String()
	lk := lm.lockKey(key)

	ok, err := lm.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("redis: lock %s: %w", key, domain.ErrLockHeld)
	}

	lm.mu.Lock()
	lm.tokens[key] = token
	lm.mu.Unlock()

	var once sync.Once
	unlock := func() {
		once.Do(func() {
			lm.mu.Lock()
			delete(lm.tokens, key)
			lm.mu.Unlock()

			// The caller's context is usually cancelled by now.
			unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = lm.unlockSc.Run(unlockCtx, lm.rdb, []string{lk}, token).Err()
		})
	}
	return unlock, nil
}

// Extend refreshes the TTL of a lock this manager holds. It returns
// domain.ErrLockHeld when the lock expired and was taken by someone else,
// and domain.ErrNotFound when this manager never acquired key.
func (lm *LockManager) Extend(ctx context.Context, key string, ttl time.Duration) error {
	lm.mu.Lock()
	token, ok := lm.tokens[key]
	lm.mu.Unlock()
	if !ok {
		return fmt.Errorf("redis: extend lock %s: %w", key, domain.ErrNotFound)
	}

	n, err := lm.extendSc.Run(ctx, lm.rdb, []string{lm.lockKey(key)}, token, ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("redis: extend lock %s: %w", key, err)
	}
	if n == 0 {
		return fmt.Errorf("redis: extend lock %s: %w", key, domain.ErrLockHeld)
	}
	return nil
}

// Compile-time interface check.
var _ domain.LockManager = (*LockManager)(nil)
