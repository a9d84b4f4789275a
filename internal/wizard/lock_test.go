package wizard

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertLockerSerializes(t *testing.T, locker Locker, id string) {
	t.Helper()
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, id)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(waitCtx, id)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	other, err := locker.Lock(ctx, id+"-other")
	require.NoError(t, err)
	other()

	acquired := make(chan struct{})
	go func() {
		next, err := locker.Lock(ctx, id)
		if err == nil {
			next()
		}
		close(acquired)
	}()

	unlock()
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("waiting lock was not handed over after unlock")
	}
}

func TestMemoryLocker(t *testing.T) {
	locker := NewMemoryLocker()
	assertLockerSerializes(t, locker, "session-1")

	locker.Forget("session-1")
	unlock, err := locker.Lock(context.Background(), "session-1")
	require.NoError(t, err)
	unlock()
}

// Run with: TEST_REDIS_ADDR=localhost:6379 go test ./internal/wizard/...
func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("Skipping redis test. Set TEST_REDIS_ADDR to run")
	}

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	require.NoError(t, client.Ping(ctx).Err())

	id := "lock-" + time.Now().Format("150405.000000")
	assertLockerSerializes(t, NewRedisLocker(client, time.Minute), id)

	t.Run("lease expires", func(t *testing.T) {
		short := NewRedisLocker(client, 200*time.Millisecond)
		_, err := short.Lock(ctx, id+"-lease")
		require.NoError(t, err)

		waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		unlock, err := short.Lock(waitCtx, id+"-lease")
		require.NoError(t, err)
		unlock()
	})

	t.Run("stale holder cannot release", func(t *testing.T) {
		short := NewRedisLocker(client, 100*time.Millisecond)
		stale, err := short.Lock(ctx, id+"-stale")
		require.NoError(t, err)
		time.Sleep(200 * time.Millisecond)

		long := NewRedisLocker(client, time.Minute)
		unlock, err := long.Lock(ctx, id+"-stale")
		require.NoError(t, err)
		defer unlock()

		stale()
		exists, err := client.Exists(ctx, redisLockPrefix+id+"-stale").Result()
		require.NoError(t, err)
		assert.Equal(t, int64(1), exists)
	})
}
