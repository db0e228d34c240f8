package cache

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func clients(t *testing.T) map[string]Client {
	t.Helper()
	out := map[string]Client{"memory": NewMemory("test", 0)}
	if addr := os.Getenv("AUTHCORE_TEST_REDIS_ADDR"); addr != "" {
		r, err := NewRedis(context.Background(), Config{Driver: "redis", Addr: addr, Prefix: "authcore-test-" + uuid.NewString()})
		require.NoError(t, err)
		out["redis"] = r
	}
	for _, c := range out {
		t.Cleanup(func() { _ = c.Close() })
	}
	return out
}

func TestClient_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	for name, c := range clients(t) {
		t.Run(name, func(t *testing.T) {
			_, err := c.Get(ctx, "missing")
			require.True(t, IsNotFound(err))

			require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
			v, err := c.Get(ctx, "k")
			require.NoError(t, err)
			require.Equal(t, "v", v)

			ok, err := c.SetNX(ctx, "k", "other", time.Minute)
			require.NoError(t, err)
			require.False(t, ok)

			require.NoError(t, c.Delete(ctx, "k"))
			require.NoError(t, c.Delete(ctx, "k"))
			_, err = c.Get(ctx, "k")
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestClient_GetDelExactlyOnce(t *testing.T) {
	ctx := context.Background()
	for name, c := range clients(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, c.Set(ctx, "code", "grant", time.Minute))

			const n = 64
			var wins atomic.Int32
			var wg sync.WaitGroup
			start := make(chan struct{})
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					v, err := c.GetDel(ctx, "code")
					if err == nil && v == "grant" {
						wins.Add(1)
					}
				}()
			}
			close(start)
			wg.Wait()
			require.Equal(t, int32(1), wins.Load())
		})
	}
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("", 0)
	now := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "a", "1", time.Second))
	require.NoError(t, m.Set(ctx, "b", "2", 0))
	require.Equal(t, 2, m.Len())

	now = now.Add(2 * time.Second)
	_, err := m.Get(ctx, "a")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = m.GetDel(ctx, "a")
	require.ErrorIs(t, err, ErrNotFound)

	ok, err := m.SetNX(ctx, "a", "again", time.Second)
	require.NoError(t, err)
	require.True(t, ok, "expired keys can be reused")

	now = now.Add(2 * time.Second)
	m.Cleanup()
	require.Equal(t, 1, m.Len())
	v, err := m.Get(ctx, "b")
	require.NoError(t, err)
	require.Equal(t, "2", v)
}

func TestClient_Incr(t *testing.T) {
	ctx := context.Background()
	for name, c := range clients(t) {
		t.Run(name, func(t *testing.T) {
			for want := int64(1); want <= 3; want++ {
				n, left, err := c.Incr(ctx, "hits", time.Minute)
				require.NoError(t, err)
				require.Equal(t, want, n)
				require.Greater(t, left, time.Duration(0))
				require.LessOrEqual(t, left, time.Minute)
			}
			require.NoError(t, c.Set(ctx, "text", "abc", time.Minute))
			_, _, err := c.Incr(ctx, "text", time.Minute)
			require.Error(t, err)
		})
	}
}

func TestMemory_IncrWindowRestarts(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("", 0)
	now := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return now }

	_, _, err := m.Incr(ctx, "k", time.Second)
	require.NoError(t, err)
	n, left, err := m.Incr(ctx, "k", time.Second)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
	require.Equal(t, time.Second, left)

	now = now.Add(1500 * time.Millisecond)
	n, _, err = m.Incr(ctx, "k", time.Second)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestNew_UnknownDriver(t *testing.T) {
	_, err := New(context.Background(), Config{Driver: "memcached"})
	require.Error(t, err)
}
