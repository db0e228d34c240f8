// Package owner autentica resource owners (usuarios finales) para el grant password.
package owner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dropDatabas3/authcore/internal/domain"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
	"github.com/dropDatabas3/authcore/internal/security/password"
	tokens "github.com/dropDatabas3/authcore/internal/security/token"
)

// Verifier es el subconjunto de *password.Hasher que se usa acá.
type Verifier interface {
	Hash(plain string) (string, error)
	Verify(plain, encoded string) bool
}

// Authenticator implementa domain.ResourceOwnerAuthenticator sobre cualquier lookup
// (Static en memoria o pg.OwnerStore). Username inexistente, owner deshabilitado y
// password incorrecta devuelven el mismo domain.ErrAuthentication.
type Authenticator struct {
	lookup    domain.ResourceOwnerLookup
	hasher    Verifier
	dummyHash string
}

var _ domain.ResourceOwnerAuthenticator = (*Authenticator)(nil)

// New: hasher nil => password.Default().
func New(lookup domain.ResourceOwnerLookup, hasher Verifier) (*Authenticator, error) {
	if lookup == nil {
		return nil, errors.New("owner: lookup is required")
	}
	if hasher == nil {
		hasher = password.Default()
	}
	seed, err := tokens.GenerateOpaqueToken(tokens.MinOpaqueBytes)
	if err != nil {
		return nil, err
	}
	dummy, err := hasher.Hash(seed)
	if err != nil {
		return nil, fmt.Errorf("owner: dummy hash: %w", err)
	}
	return &Authenticator{lookup: lookup, hasher: hasher, dummyHash: dummy}, nil
}

func (a *Authenticator) Authenticate(ctx context.Context, username, pw string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || pw == "" {
		return "", domain.ErrAuthentication
	}

	o, err := a.lookup.FindOwner(ctx, username)
	if err != nil && !domain.IsNotFound(err) {
		return "", fmt.Errorf("owner: lookup: %w", err)
	}

	hash := a.dummyHash
	if o != nil {
		hash = o.PasswordHash
	}
	ok := a.hasher.Verify(pw, hash)
	if o == nil || !ok || o.Disabled {
		logger.From(ctx).Debug("resource owner authentication failed",
			logger.Layer("service"), logger.Op("owner.Authenticate"))
		return "", domain.ErrAuthentication
	}
	return o.ID, nil
}
