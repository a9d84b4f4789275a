package wizard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var ErrLockReleased = errors.New("wizard session lock already released")

// Locker serializes mutations of one session
type Locker interface {
	Lock(ctx context.Context, id string) (unlock func(), err error)
	Forget(id string)
}

// MemoryLocker serializes sessions within a single process
type MemoryLocker struct {
	locks sync.Map
}

// NewMemoryLocker creates a new in-process session locker
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{}
}

func (m *MemoryLocker) Lock(ctx context.Context, id string) (func(), error) {
	v, _ := m.locks.LoadOrStore(id, make(chan struct{}, 1))
	ch := v.(chan struct{})

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("failed to lock session %s: %w", id, ctx.Err())
	}
}

func (m *MemoryLocker) Forget(id string) {
	m.locks.Delete(id)
}

const (
	redisLockPrefix    = "wizard:lock:"
	redisLockRetry     = 50 * time.Millisecond
	redisUnlockTimeout = 5 * time.Second
)

// only the holder's token may delete the lock
var redisUnlock = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker serializes sessions across instances sharing a redis store.
// The lease expires after ttl so a crashed holder cannot wedge a session.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLocker creates a new redis-backed session locker
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl}
}

func (r *RedisLocker) Lock(ctx context.Context, id string) (func(), error) {
	key := redisLockPrefix + id
	token := uuid.NewString()

	ticker := time.NewTicker(redisLockRetry)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to lock session %s: %w", id, err)
		}
		if ok {
			return func() { r.unlock(key, token) }, nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to lock session %s: %w", id, ctx.Err())
		}
	}
}

func (r *RedisLocker) unlock(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), redisUnlockTimeout)
	defer cancel()

	n, err := redisUnlock.Run(ctx, r.client, []string{key}, token).Int()
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to release session lock")
		return
	}
	if n == 0 {
		log.Warn().Err(ErrLockReleased).Str("key", key).Msg("Session lock expired before release")
	}
}

// Forget is a no-op, redis leases expire on their own
func (r *RedisLocker) Forget(id string) {}
