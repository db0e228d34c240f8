package pg

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authcore/internal/domain"
)

func TestParseMigrations_Embedded(t *testing.T) {
	migs, err := ParseMigrations(nil)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(migs), 2)
	require.Equal(t, 1, migs[0].Version)
	require.Equal(t, "oauth_client", migs[0].Name)
	for i := 1; i < len(migs); i++ {
		require.Less(t, migs[i-1].Version, migs[i].Version)
	}
}

// Los tests contra Postgres real corren solo con AUTHCORE_TEST_PG_DSN.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("AUTHCORE_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("AUTHCORE_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, Config{DSN: dsn, MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	_, err = s.Migrate(ctx)
	require.NoError(t, err)
	res, err := s.Migrate(ctx)
	require.NoError(t, err)
	require.Empty(t, res.Applied, "second run is a no-op")
	return s
}

func TestClientStore_CRUD(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	cs := s.Clients()

	id := "test-" + uuid.NewString()
	t.Cleanup(func() { _ = cs.Delete(context.Background(), id) })

	now := time.Now().UTC().Truncate(time.Microsecond)
	c := &domain.Client{
		ClientID:        id,
		Name:            "Test",
		SecretHash:      "{bcrypt}$2a$04$abc",
		GrantTypes:      []domain.GrantType{domain.GrantPassword, domain.GrantRefreshToken},
		Scopes:          []string{"read", "write"},
		AccessTokenTTL:  3600,
		RefreshTokenTTL: 7200,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, cs.Put(ctx, c, false))
	require.ErrorIs(t, cs.Put(ctx, c, false), domain.ErrConflict)

	got, err := cs.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, c.GrantTypes, got.GrantTypes)
	require.Equal(t, c.Scopes, got.Scopes)
	require.Empty(t, got.RedirectURIs)
	require.True(t, now.Equal(got.CreatedAt))

	c.Scopes = []string{"read"}
	require.NoError(t, cs.Put(ctx, c, true))
	got, err = cs.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, []string{"read"}, got.Scopes)

	all, err := cs.List(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, all)

	require.NoError(t, cs.Delete(ctx, id))
	require.NoError(t, cs.Delete(ctx, id))
	_, err = cs.Get(ctx, id)
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.ErrorIs(t, cs.Put(ctx, c, true), domain.ErrNotFound)
}

func TestOwnerStore(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	owners := s.Owners()

	name := "alice-" + uuid.NewString()[:8]
	o, err := owners.CreateOwner(ctx, name, "{bcrypt}$2a$04$abc")
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = s.Pool().Exec(context.Background(), `DELETE FROM resource_owner WHERE id = $1`, o.ID)
	})

	_, err = owners.CreateOwner(ctx, name, "x")
	require.ErrorIs(t, err, domain.ErrConflict)

	got, err := owners.FindOwner(ctx, name)
	require.NoError(t, err)
	require.Equal(t, o.ID, got.ID)
	require.False(t, got.Disabled)

	require.NoError(t, owners.SetOwnerDisabled(ctx, name, true))
	got, err = owners.FindOwner(ctx, name)
	require.NoError(t, err)
	require.True(t, got.Disabled)

	_, err = owners.FindOwner(ctx, "nobody-"+uuid.NewString())
	require.ErrorIs(t, err, domain.ErrNotFound)
}
