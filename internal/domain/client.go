package domain

import (
	"context"
	"slices"
	"strings"
	"time"
)

// GrantType es un método OAuth2 para obtener tokens.
type GrantType string

const (
	GrantPassword          GrantType = "password"
	GrantAuthorizationCode GrantType = "authorization_code"
	GrantRefreshToken      GrantType = "refresh_token"
	GrantImplicit          GrantType = "implicit"
	GrantClientCredentials GrantType = "client_credentials"
)

// ParseGrantType normaliza y valida un grant_type recibido por el caller.
func ParseGrantType(s string) (GrantType, bool) {
	switch g := GrantType(strings.ToLower(strings.TrimSpace(s))); g {
	case GrantPassword, GrantAuthorizationCode, GrantRefreshToken, GrantImplicit, GrantClientCredentials:
		return g, true
	default:
		return "", false
	}
}

// Client es un cliente OAuth registrado. El token path nunca lo muta.
type Client struct {
	ClientID        string
	Name            string
	SecretHash      string // {id}encoded, ver security/password
	GrantTypes      []GrantType
	Scopes          []string
	Authorities     []string
	RedirectURIs    []string
	AccessTokenTTL  int // segundos
	RefreshTokenTTL int // segundos
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AllowsGrant indica si el grant está en el set permitido del client.
func (c *Client) AllowsGrant(g GrantType) bool {
	return slices.Contains(c.GrantTypes, g)
}

// HasRedirectURI compara exacto contra las URIs registradas.
func (c *Client) HasRedirectURI(uri string) bool {
	return slices.Contains(c.RedirectURIs, uri)
}

// Clone copia profunda: el registry entrega copias para que nadie mute el cache.
func (c *Client) Clone() *Client {
	if c == nil {
		return nil
	}
	cp := *c
	cp.GrantTypes = slices.Clone(c.GrantTypes)
	cp.Scopes = slices.Clone(c.Scopes)
	cp.Authorities = slices.Clone(c.Authorities)
	cp.RedirectURIs = slices.Clone(c.RedirectURIs)
	return &cp
}

// ClientRegistration son los datos administrativos para crear/actualizar un client.
// Secret viaja en plano y se hashea antes de persistir.
type ClientRegistration struct {
	ClientID        string
	Name            string
	Secret          string
	GrantTypes      []GrantType
	Scopes          []string
	Authorities     []string
	RedirectURIs    []string
	AccessTokenTTL  int
	RefreshTokenTTL int
}

// ClientStore es la persistencia de clients (colaborador externo).
type ClientStore interface {
	// Get retorna ErrNotFound si no existe.
	Get(ctx context.Context, clientID string) (*Client, error)

	// Put inserta (overwrite=false, ErrConflict si ya existe) o reemplaza (overwrite=true,
	// ErrNotFound si no existe).
	Put(ctx context.Context, c *Client, overwrite bool) error

	// Delete es idempotente.
	Delete(ctx context.Context, clientID string) error

	// List devuelve todos los clients ordenados por client_id.
	List(ctx context.Context) ([]Client, error)
}
