package domain

import (
	"context"
	"time"
)

// AuthorizationGrant es el contexto pendiente detrás de un authorization code.
type AuthorizationGrant struct {
	ClientID        string    `json:"client_id"`
	ResourceOwnerID string    `json:"owner_id"`
	Scopes          []string  `json:"scopes"`
	RedirectURI     string    `json:"redirect_uri"`
	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// ResourceOwnerAuthenticator verifica credenciales de usuario final (colaborador externo).
// Retorna el owner id o un error que envuelve ErrAuthentication.
type ResourceOwnerAuthenticator interface {
	Authenticate(ctx context.Context, username, password string) (ownerID string, err error)
}

// ResourceOwnerAuthenticatorFunc adapta una función al contrato.
type ResourceOwnerAuthenticatorFunc func(ctx context.Context, username, password string) (string, error)

func (f ResourceOwnerAuthenticatorFunc) Authenticate(ctx context.Context, username, password string) (string, error) {
	return f(ctx, username, password)
}

// ResourceOwner es el usuario final tal como lo guarda un backend de credenciales.
type ResourceOwner struct {
	ID           string
	Username     string
	PasswordHash string // {id}encoded
	Disabled     bool
	CreatedAt    time.Time
}

// ResourceOwnerLookup busca owners por username. Retorna ErrNotFound si no existe.
type ResourceOwnerLookup interface {
	FindOwner(ctx context.Context, username string) (*ResourceOwner, error)
}
