package clients

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authcore/internal/domain"
	"github.com/dropDatabas3/authcore/internal/oautherr"
	"github.com/dropDatabas3/authcore/internal/security/password"
)

// countingHasher cuenta verificaciones para comprobar que ambos caminos de
// Authenticate hacen el mismo trabajo.
type countingHasher struct {
	*password.Hasher
	verifies atomic.Int32
}

func (c *countingHasher) Verify(plain, encoded string) bool {
	c.verifies.Add(1)
	return c.Hasher.Verify(plain, encoded)
}

func fastHasher(t *testing.T) *password.Hasher {
	t.Helper()
	h, err := password.NewHasher(
		password.Argon2id(password.Params{Memory: 1024, Time: 1, Parallelism: 1, KeyLen: 32}),
		password.Bcrypt(4),
	)
	require.NoError(t, err)
	return h
}

func webApp() domain.ClientRegistration {
	return domain.ClientRegistration{
		ClientID:        "web-app",
		Name:            "Web App",
		Secret:          "secret",
		GrantTypes:      []domain.GrantType{domain.GrantPassword, domain.GrantRefreshToken},
		Scopes:          []string{"read", "write"},
		Authorities:     []string{"ROLE_CLIENT"},
		AccessTokenTTL:  3600,
		RefreshTokenTTL: 1209600,
	}
}

func newRegistry(t *testing.T, opts Options) (*Registry, *MemoryStore) {
	t.Helper()
	if opts.Hasher == nil {
		opts.Hasher = fastHasher(t)
	}
	st := NewMemoryStore()
	r, err := NewRegistry(st, opts)
	require.NoError(t, err)
	return r, st
}

func TestRegistry_RegisterFindRemove(t *testing.T) {
	ctx := context.Background()
	r, st := newRegistry(t, Options{})

	c, err := r.Register(ctx, webApp())
	require.NoError(t, err)
	require.Equal(t, "web-app", c.ClientID)
	require.NotContains(t, c.SecretHash, "secret")
	require.True(t, c.AllowsGrant(domain.GrantPassword))

	_, err = r.Register(ctx, webApp())
	require.ErrorIs(t, err, ErrDuplicateClient)

	got, err := r.Find(ctx, "web-app")
	require.NoError(t, err)
	require.Equal(t, []string{"read", "write"}, got.Scopes)

	got.Scopes[0] = "admin"
	again, err := r.Find(ctx, "web-app")
	require.NoError(t, err)
	require.Equal(t, "read", again.Scopes[0], "callers get copies")

	require.NoError(t, r.Remove(ctx, "web-app"))
	require.NoError(t, r.Remove(ctx, "web-app"))
	_, err = r.Find(ctx, "web-app")
	require.ErrorIs(t, err, ErrNoSuchClient)

	list, err := st.List(ctx)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestRegistry_Authenticate(t *testing.T) {
	ctx := context.Background()
	h := &countingHasher{Hasher: fastHasher(t)}
	r, _ := newRegistry(t, Options{Hasher: h})
	_, err := r.Register(ctx, webApp())
	require.NoError(t, err)

	c, err := r.Authenticate(ctx, "web-app", "secret")
	require.NoError(t, err)
	require.Equal(t, "web-app", c.ClientID)

	for name, tc := range map[string][2]string{
		"wrong secret":   {"web-app", "nope"},
		"empty secret":   {"web-app", ""},
		"unknown client": {"ghost", "secret"},
		"empty id":       {"", "secret"},
	} {
		t.Run(name, func(t *testing.T) {
			before := h.verifies.Load()
			_, err := r.Authenticate(ctx, tc[0], tc[1])
			require.ErrorIs(t, err, oautherr.ErrInvalidClient)
			require.Equal(t, oautherr.ErrInvalidClient.Description, oautherr.From(err).Description)
			require.Equal(t, int32(1), h.verifies.Load()-before, "exactly one verification per attempt")
		})
	}
}

func TestRegistry_AuthenticateTimingIndependentOfExistence(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}
	ctx := context.Background()
	r, _ := newRegistry(t, Options{Hasher: password.Default()})
	_, err := r.Register(ctx, webApp())
	require.NoError(t, err)

	measure := func(id string) time.Duration {
		var best time.Duration
		for i := 0; i < 5; i++ {
			start := time.Now()
			_, _ = r.Authenticate(ctx, id, "wrong-secret")
			if d := time.Since(start); best == 0 || d < best {
				best = d
			}
		}
		return best
	}
	known, unknown := measure("web-app"), measure("ghost")
	ratio := float64(known) / float64(unknown)
	require.InDelta(t, 1.0, ratio, 0.5, "known=%s unknown=%s", known, unknown)
}

func TestRegistry_Update(t *testing.T) {
	ctx := context.Background()
	r, _ := newRegistry(t, Options{})
	orig, err := r.Register(ctx, webApp())
	require.NoError(t, err)

	// calienta el cache para verificar que Update lo invalida
	_, err = r.Find(ctx, "web-app")
	require.NoError(t, err)

	upd := webApp()
	upd.Secret = ""
	upd.Scopes = []string{"read"}
	c, err := r.Update(ctx, upd)
	require.NoError(t, err)
	require.Equal(t, orig.SecretHash, c.SecretHash)
	require.Equal(t, orig.CreatedAt, c.CreatedAt)

	got, err := r.Find(ctx, "web-app")
	require.NoError(t, err)
	require.Equal(t, []string{"read"}, got.Scopes)

	upd.Secret = "rotated"
	_, err = r.Update(ctx, upd)
	require.NoError(t, err)
	_, err = r.Authenticate(ctx, "web-app", "secret")
	require.ErrorIs(t, err, oautherr.ErrInvalidClient)
	_, err = r.Authenticate(ctx, "web-app", "rotated")
	require.NoError(t, err)

	ghost := webApp()
	ghost.ClientID = "ghost"
	_, err = r.Update(ctx, ghost)
	require.ErrorIs(t, err, ErrNoSuchClient)
}

func TestRegistry_RegistrationValidation(t *testing.T) {
	r, _ := newRegistry(t, Options{SecretPolicy: password.Policy{MinLength: 8}})
	ctx := context.Background()

	cases := map[string]func(*domain.ClientRegistration){
		"weak secret":     func(c *domain.ClientRegistration) { c.Secret = "short" },
		"no id":           func(c *domain.ClientRegistration) { c.ClientID = " " },
		"no grants":       func(c *domain.ClientRegistration) { c.GrantTypes = nil },
		"unknown grant":   func(c *domain.ClientRegistration) { c.GrantTypes = []domain.GrantType{"magic"} },
		"zero access ttl": func(c *domain.ClientRegistration) { c.AccessTokenTTL = 0 },
		"refresh no ttl":  func(c *domain.ClientRegistration) { c.RefreshTokenTTL = 0 },
		"bad scope":       func(c *domain.ClientRegistration) { c.Scopes = []string{"read write"} },
		"relative uri":    func(c *domain.ClientRegistration) { c.RedirectURIs = []string{"/cb"} },
		"code no uri": func(c *domain.ClientRegistration) {
			c.GrantTypes = []domain.GrantType{domain.GrantAuthorizationCode}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			reg := webApp()
			reg.Secret = "long-enough-secret"
			mutate(&reg)
			_, err := r.Register(ctx, reg)
			require.ErrorIs(t, err, ErrInvalidRegistration)
		})
	}
}

func TestRegistry_UpgradesLegacyHashes(t *testing.T) {
	ctx := context.Background()
	r, st := newRegistry(t, Options{UpgradeHashes: true})

	legacy, err := password.Bcrypt(4).Hash("secret")
	require.NoError(t, err)
	require.NoError(t, st.Put(ctx, &domain.Client{
		ClientID:       "legacy",
		SecretHash:     "{bcrypt}" + legacy,
		GrantTypes:     []domain.GrantType{domain.GrantClientCredentials},
		AccessTokenTTL: 60,
	}, false))

	_, err = r.Authenticate(ctx, "legacy", "secret")
	require.NoError(t, err)

	stored, err := st.Get(ctx, "legacy")
	require.NoError(t, err)
	require.Contains(t, stored.SecretHash, "{argon2id}")

	_, err = r.Authenticate(ctx, "legacy", "secret")
	require.NoError(t, err)
}

type failingStore struct {
	*MemoryStore
	err error
}

func (f failingStore) Get(context.Context, string) (*domain.Client, error) { return nil, f.err }

// countingStore cuenta los Get que llegan al store.
type countingStore struct {
	*MemoryStore
	gets atomic.Int32
}

func (c *countingStore) Get(ctx context.Context, id string) (*domain.Client, error) {
	c.gets.Add(1)
	return c.MemoryStore.Get(ctx, id)
}

func TestRegistry_UnknownClientIsCachedUntilRegistered(t *testing.T) {
	ctx := context.Background()
	st := &countingStore{MemoryStore: NewMemoryStore()}
	r, err := NewRegistry(st, Options{Hasher: fastHasher(t)})
	require.NoError(t, err)

	for range 3 {
		_, err = r.Authenticate(ctx, "web-app", "secret")
		require.ErrorIs(t, err, oautherr.ErrInvalidClient)
	}
	require.EqualValues(t, 1, st.gets.Load(), "unknown id must hit the store once")

	_, err = r.Register(ctx, webApp())
	require.NoError(t, err)
	c, err := r.Authenticate(ctx, "web-app", "secret")
	require.NoError(t, err)
	require.Equal(t, "web-app", c.ClientID)
}

func TestRegistry_UnknownClientEntryExpires(t *testing.T) {
	ctx := context.Background()
	st := &countingStore{MemoryStore: NewMemoryStore()}
	r, err := NewRegistry(st, Options{Hasher: fastHasher(t), CacheTTL: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = r.Find(ctx, "ghost")
	require.Error(t, err)
	time.Sleep(80 * time.Millisecond)
	_, err = r.Find(ctx, "ghost")
	require.Error(t, err)
	require.EqualValues(t, 2, st.gets.Load())
}

func TestRegistry_StoreErrorsAreNotInvalidClient(t *testing.T) {
	boom := errors.New("connection refused")
	r, err := NewRegistry(failingStore{MemoryStore: NewMemoryStore(), err: boom}, Options{Hasher: fastHasher(t)})
	require.NoError(t, err)

	_, err = r.Authenticate(context.Background(), "web-app", "secret")
	require.ErrorIs(t, err, boom)
	require.False(t, errors.Is(err, oautherr.ErrInvalidClient))
}

func TestRegistry_ConcurrentReadsAndWrites(t *testing.T) {
	ctx := context.Background()
	r, _ := newRegistry(t, Options{})
	_, err := r.Register(ctx, webApp())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := r.Authenticate(ctx, "web-app", "secret"); err != nil {
				t.Errorf("authenticate: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			upd := webApp()
			upd.Secret = ""
			if _, err := r.Update(ctx, upd); err != nil {
				t.Errorf("update: %v", err)
			}
		}()
	}
	wg.Wait()
}
