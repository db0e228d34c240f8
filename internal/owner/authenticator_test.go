package owner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authcore/internal/domain"
	"github.com/dropDatabas3/authcore/internal/security/password"
)

func testHasher(t *testing.T) *password.Hasher {
	t.Helper()
	h, err := password.NewHasher(password.Bcrypt(4))
	require.NoError(t, err)
	return h
}

func newAuth(t *testing.T) *Authenticator {
	t.Helper()
	h := testHasher(t)
	pw, err := h.Hash("pw")
	require.NoError(t, err)
	st, err := NewStatic([]StaticUser{
		{ID: "alice", Username: "Alice", PasswordHash: pw},
		{ID: "bob", Username: "bob", PasswordHash: pw, Disabled: true},
	})
	require.NoError(t, err)
	a, err := New(st, h)
	require.NoError(t, err)
	return a
}

func TestAuthenticator(t *testing.T) {
	a := newAuth(t)
	ctx := context.Background()

	id, err := a.Authenticate(ctx, "alice", "pw")
	require.NoError(t, err)
	require.Equal(t, "alice", id)

	for name, creds := range map[string][2]string{
		"wrong password": {"alice", "nope"},
		"unknown user":   {"carol", "pw"},
		"disabled":       {"bob", "pw"},
		"empty password": {"alice", ""},
	} {
		_, err := a.Authenticate(ctx, creds[0], creds[1])
		require.ErrorIs(t, err, domain.ErrAuthentication, name)
	}
}

type brokenLookup struct{}

func (brokenLookup) FindOwner(context.Context, string) (*domain.ResourceOwner, error) {
	return nil, errors.New("db down")
}

func TestAuthenticator_LookupErrorIsNotAuthFailure(t *testing.T) {
	a, err := New(brokenLookup{}, testHasher(t))
	require.NoError(t, err)
	_, err = a.Authenticate(context.Background(), "alice", "pw")
	require.Error(t, err)
	require.False(t, errors.Is(err, domain.ErrAuthentication))
}

func TestNewStatic_Validation(t *testing.T) {
	_, err := NewStatic([]StaticUser{{ID: "a", Username: "x", PasswordHash: "h"}, {ID: "b", Username: "X", PasswordHash: "h"}})
	require.Error(t, err)
	_, err = NewStatic([]StaticUser{{ID: "a", Username: "x"}})
	require.Error(t, err)
}
