package cache

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// redisClient apunta a AUTHCORE_TEST_REDIS_ADDR; sin esa variable el test se saltea.
func redisClient(t *testing.T) (*Redis, *redis.Client, string) {
	t.Helper()
	addr := os.Getenv("AUTHCORE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("AUTHCORE_TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		t.Skipf("redis not reachable at %s: %v", addr, err)
	}
	prefix := "authcore-test-" + uuid.NewString()
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisFromClient(rdb, prefix), rdb, prefix
}

func TestRedis_GetDel(t *testing.T) {
	ctx := context.Background()
	c, rdb, prefix := redisClient(t)

	_, err := c.GetDel(ctx, "code")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.Set(ctx, "code", "grant", time.Minute))
	v, err := c.GetDel(ctx, "code")
	require.NoError(t, err)
	require.Equal(t, "grant", v)

	n, err := rdb.Exists(ctx, prefixed(prefix, "code")).Result()
	require.NoError(t, err)
	require.Zero(t, n, "GETDEL must remove the key")
	_, err = c.GetDel(ctx, "code")
	require.ErrorIs(t, err, ErrNotFound)

	// expirada antes de consumirse
	require.NoError(t, c.Set(ctx, "short", "grant", 50*time.Millisecond))
	time.Sleep(120 * time.Millisecond)
	_, err = c.GetDel(ctx, "short")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRedis_IncrWindow(t *testing.T) {
	ctx := context.Background()
	c, rdb, prefix := redisClient(t)
	const window = 300 * time.Millisecond

	n, left, err := c.Incr(ctx, "hits", window)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	require.Equal(t, window, left)

	pttl, err := rdb.PTTL(ctx, prefixed(prefix, "hits")).Result()
	require.NoError(t, err)
	require.Greater(t, pttl, time.Duration(0))
	require.LessOrEqual(t, pttl, window)

	n, left, err = c.Incr(ctx, "hits", window)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
	require.Greater(t, left, time.Duration(0))
	require.LessOrEqual(t, left, window, "later hits must not extend the window")

	time.Sleep(window + 150*time.Millisecond)
	n, _, err = c.Incr(ctx, "hits", window)
	require.NoError(t, err)
	require.Equal(t, int64(1), n, "a new window starts after expiry")
}

func TestRedis_IncrRestoresMissingTTL(t *testing.T) {
	ctx := context.Background()
	c, rdb, prefix := redisClient(t)

	require.NoError(t, rdb.Set(ctx, prefixed(prefix, "hits"), "5", 0).Err())
	n, left, err := c.Incr(ctx, "hits", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(6), n)
	require.Equal(t, time.Minute, left)

	pttl, err := rdb.PTTL(ctx, prefixed(prefix, "hits")).Result()
	require.NoError(t, err)
	require.Greater(t, pttl, time.Duration(0))
}

func TestRedis_IncrConcurrentCountsEveryHit(t *testing.T) {
	ctx := context.Background()
	c, _, _ := redisClient(t)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.Incr(ctx, "burst", time.Minute)
			if err != nil {
				t.Errorf("incr: %v", err)
			}
		}()
	}
	wg.Wait()

	got, left, err := c.Incr(ctx, "burst", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(n+1), got)
	require.Greater(t, left, time.Duration(0))
}
