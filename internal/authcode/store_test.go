package authcode

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dropDatabas3/authcore/internal/cache"
	"github.com/dropDatabas3/authcore/internal/domain"
	"github.com/dropDatabas3/authcore/internal/oautherr"
	"github.com/stretchr/testify/require"
)

func grant() domain.AuthorizationGrant {
	return domain.AuthorizationGrant{
		ClientID:        "web-app",
		ResourceOwnerID: "alice",
		Scopes:          []string{"read"},
		RedirectURI:     "https://app.example.com/cb",
	}
}

func TestStore_IssueConsume(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemory("", 0)
	s := NewStore(mem, 0)
	require.Equal(t, DefaultTTL, s.TTL())

	code, err := s.Issue(ctx, grant())
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(code), 43, "32 random bytes, base64url")

	_, err = mem.Get(ctx, "code:"+code)
	require.ErrorIs(t, err, cache.ErrNotFound, "raw code is never a cache key")

	g, err := s.Consume(ctx, code)
	require.NoError(t, err)
	require.Equal(t, "alice", g.ResourceOwnerID)
	require.Equal(t, "https://app.example.com/cb", g.RedirectURI)
	require.Equal(t, DefaultTTL, g.ExpiresAt.Sub(g.CreatedAt))

	_, err = s.Consume(ctx, code)
	require.ErrorIs(t, err, oautherr.ErrInvalidGrant)
}

func TestStore_UnknownConsumedExpiredAreIndistinguishable(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	s := NewStore(cache.NewMemory("", 0), time.Minute)
	s.now = func() time.Time { return now }

	used, err := s.Issue(ctx, grant())
	require.NoError(t, err)
	_, err = s.Consume(ctx, used)
	require.NoError(t, err)

	stale, err := s.Issue(ctx, grant())
	require.NoError(t, err)
	now = now.Add(2 * time.Minute)

	var msgs []string
	for _, code := range []string{"does-not-exist", used, stale, ""} {
		_, err := s.Consume(ctx, code)
		require.ErrorIs(t, err, oautherr.ErrInvalidGrant)
		msgs = append(msgs, oautherr.From(err).Description)
	}
	for _, m := range msgs[1:] {
		require.Equal(t, msgs[0], m)
	}
}

func TestStore_ConcurrentConsumeExactlyOnce(t *testing.T) {
	ctx := context.Background()
	s := NewStore(cache.NewMemory("", 0), 0)
	code, err := s.Issue(ctx, grant())
	require.NoError(t, err)

	const n = 50
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, fail int
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := s.Consume(ctx, code)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if strings.Contains(err.Error(), "invalid_grant") {
				fail++
			}
		}()
	}
	close(start)
	wg.Wait()
	require.Equal(t, 1, ok)
	require.Equal(t, n-1, fail)
}

func TestStore_TTLBounds(t *testing.T) {
	require.Equal(t, MaxTTL, NewStore(cache.NewMemory("", 0), time.Hour).TTL())
	require.Equal(t, 90*time.Second, NewStore(cache.NewMemory("", 0), 90*time.Second).TTL())
}

func TestStore_IssueRequiresClientAndOwner(t *testing.T) {
	s := NewStore(cache.NewMemory("", 0), 0)
	g := grant()
	g.ResourceOwnerID = ""
	_, err := s.Issue(context.Background(), g)
	require.ErrorIs(t, err, oautherr.ErrInvalidRequest)
}
