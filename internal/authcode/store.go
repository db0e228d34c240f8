// Package authcode emite y consume authorization codes de un solo uso.
package authcode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dropDatabas3/authcore/internal/cache"
	"github.com/dropDatabas3/authcore/internal/domain"
	"github.com/dropDatabas3/authcore/internal/oautherr"
	tokens "github.com/dropDatabas3/authcore/internal/security/token"
)

const (
	DefaultTTL = 5 * time.Minute
	MaxTTL     = 10 * time.Minute

	codeBytes = 32 // 256 bits
	keyPrefix = "code:"
)

// Store guarda los grants en un cache.Client bajo "code:"+sha256(code); el code
// en claro solo lo conoce el cliente.
type Store struct {
	cache cache.Client
	ttl   time.Duration
	now   func() time.Time
}

// NewStore: ttl <= 0 usa DefaultTTL; ttl > MaxTTL se recorta a MaxTTL.
func NewStore(c cache.Client, ttl time.Duration) *Store {
	switch {
	case ttl <= 0:
		ttl = DefaultTTL
	case ttl > MaxTTL:
		ttl = MaxTTL
	}
	return &Store{cache: c, ttl: ttl, now: time.Now}
}

func (s *Store) TTL() time.Duration { return s.ttl }

// Issue genera un code nuevo para g. CreatedAt/ExpiresAt los pone el store.
func (s *Store) Issue(ctx context.Context, g domain.AuthorizationGrant) (string, error) {
	if g.ClientID == "" || g.ResourceOwnerID == "" {
		return "", oautherr.WithDescription(oautherr.ErrInvalidRequest, "authorization grant requires client and resource owner")
	}
	code, err := tokens.GenerateOpaqueToken(codeBytes)
	if err != nil {
		return "", oautherr.WithCause(oautherr.ErrServerError, err)
	}

	now := s.now().UTC()
	g.Scopes = slices.Clone(g.Scopes)
	g.CreatedAt = now
	g.ExpiresAt = now.Add(s.ttl)
	payload, err := json.Marshal(g)
	if err != nil {
		return "", oautherr.WithCause(oautherr.ErrServerError, err)
	}

	ok, err := s.cache.SetNX(ctx, key(code), string(payload), s.ttl)
	if err != nil {
		return "", oautherr.WithCause(oautherr.ErrServerError, fmt.Errorf("authcode: store: %w", err))
	}
	if !ok {
		// 256 bits aleatorios: una colisión indica un RNG roto.
		return "", oautherr.WithCause(oautherr.ErrServerError, errors.New("authcode: code collision"))
	}
	return code, nil
}

// Consume lee y borra el grant en un solo paso. Code desconocido, ya usado o
// expirado: siempre ErrInvalidGrant, sin distinguir.
func (s *Store) Consume(ctx context.Context, code string) (*domain.AuthorizationGrant, error) {
	if code == "" {
		return nil, oautherr.ErrInvalidGrant
	}
	raw, err := s.cache.GetDel(ctx, key(code))
	if err != nil {
		if cache.IsNotFound(err) {
			return nil, oautherr.ErrInvalidGrant
		}
		return nil, oautherr.WithCause(oautherr.ErrServerError, fmt.Errorf("authcode: consume: %w", err))
	}
	var g domain.AuthorizationGrant
	if err := json.Unmarshal([]byte(raw), &g); err != nil {
		return nil, oautherr.WithCause(oautherr.ErrInvalidGrant, err)
	}
	// el TTL del backend es la fuente principal; esto cubre relojes desfasados.
	if !s.now().Before(g.ExpiresAt) {
		return nil, oautherr.ErrInvalidGrant
	}
	return &g, nil
}

func key(code string) string { return keyPrefix + tokens.SHA256Base64URL(code) }
