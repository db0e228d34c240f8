package rate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authcore/internal/cache"
)

func TestWindowLimiter(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemory("", 0)
	t.Cleanup(func() { _ = c.Close() })

	l := NewWindowLimiter(c, "", 2, time.Hour)
	l.now = func() time.Time { return time.Date(2026, 1, 1, 10, 30, 0, 0, time.UTC) }

	for i := int64(1); i <= 2; i++ {
		res, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		require.True(t, res.Allowed)
		require.Equal(t, 2-i, res.Remaining)
	}
	res, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Equal(t, int64(3), res.CurrentHits)
	require.Greater(t, res.RetryAfter, time.Duration(0))

	// otra key, contador propio
	res, err = l.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	require.True(t, res.Allowed)

	// nueva ventana
	l.now = func() time.Time { return time.Date(2026, 1, 1, 11, 0, 1, 0, time.UTC) }
	res, err = l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	require.True(t, res.Allowed)
}

func TestNoop(t *testing.T) {
	res, err := Noop{}.Allow(context.Background(), "x")
	require.NoError(t, err)
	require.True(t, res.Allowed)
}
