package grant

import (
	"context"
	"time"

	"github.com/dropDatabas3/authcore/internal/domain"
	"github.com/dropDatabas3/authcore/internal/jwt"
)

// TokenRequest is the single entry point of the token endpoint.
type TokenRequest struct {
	GrantType    string
	ClientID     string
	ClientSecret string
	Params       Params
}

// Params holds grant-specific fields. Unused fields are ignored by each branch.
type Params struct {
	Username     string
	Password     string
	Code         string
	RedirectURI  string
	RefreshToken string
	Scope        string // space-delimited

	// ResourceOwnerID is set only by trusted callers that already authenticated
	// the owner (implicit flow behind a login page). Transport adapters must never
	// fill it from request input.
	ResourceOwnerID string
}

// TokenPair is the successful token response.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope,omitempty"`
	JTI          string `json:"jti"`

	subject string
}

// AuthorizeRequest approves an authorization_code request for an owner that the
// caller has already authenticated.
type AuthorizeRequest struct {
	ClientID        string
	ResourceOwnerID string
	RedirectURI     string
	Scope           string
}

// AuthorizeResponse carries the code and where to send it.
type AuthorizeResponse struct {
	Code        string
	RedirectURI string
	Scope       string
	ExpiresIn   int
}

// ClientDirectory is what the engine needs from the client registry.
type ClientDirectory interface {
	Authenticate(ctx context.Context, clientID, secret string) (*domain.Client, error)
	Find(ctx context.Context, clientID string) (*domain.Client, error)
}

// CodeStore issues and consumes single-use authorization codes.
type CodeStore interface {
	Issue(ctx context.Context, g domain.AuthorizationGrant) (string, error)
	Consume(ctx context.Context, code string) (*domain.AuthorizationGrant, error)
	TTL() time.Duration
}

// TokenCodec signs and verifies tokens.
type TokenCodec interface {
	Encode(c jwt.Claims) (string, error)
	Decode(token string) (jwt.Claims, error)
	Introspect(token string) (map[string]any, error)
}

// Observer receives one event per issuance attempt (metrics).
type Observer interface {
	ObserveIssue(grantType, outcome string, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveIssue(string, string, time.Duration) {}
