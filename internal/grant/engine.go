// Package grant is the OAuth2 grant-type state machine: it authenticates the
// client, runs the grant-specific branch, builds claims, passes them through the
// enhancer chain and signs the resulting token pair. It owns no state.
package grant

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dropDatabas3/authcore/internal/domain"
	"github.com/dropDatabas3/authcore/internal/enhancer"
	"github.com/dropDatabas3/authcore/internal/jwt"
	"github.com/dropDatabas3/authcore/internal/oautherr"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
)

// DefaultCallTimeout bounds every collaborator call (registry, owners, code store).
const DefaultCallTimeout = 5 * time.Second

// TokenTypeBearer is the only token_type this server issues.
const TokenTypeBearer = "bearer"

// Config is the immutable engine policy.
type Config struct {
	// Issuer is written to "iss" when not empty.
	Issuer string
	// StrictScopes rejects requests asking for scopes outside the allowed set
	// with invalid_scope instead of narrowing them.
	StrictScopes bool
	// RotateRefreshTokens issues a new refresh token on every refresh grant.
	// When false the presented refresh token is returned unchanged.
	RotateRefreshTokens bool
	// CallTimeout bounds each collaborator call. Zero means DefaultCallTimeout.
	CallTimeout time.Duration
}

// Deps are the engine collaborators. Owners may be nil when no client uses the
// password grant; Codes may be nil when no client uses authorization_code.
type Deps struct {
	Clients   ClientDirectory
	Owners    domain.ResourceOwnerAuthenticator
	Codes     CodeStore
	Codec     TokenCodec
	Enhancers *enhancer.Chain
	Observer  Observer
	Clock     func() time.Time
}

// Engine is safe for concurrent use.
type Engine struct {
	cfg      Config
	clients  ClientDirectory
	owners   domain.ResourceOwnerAuthenticator
	codes    CodeStore
	codec    TokenCodec
	chain    *enhancer.Chain
	observer Observer
	now      func() time.Time
	tracer   trace.Tracer
}

func NewEngine(cfg Config, d Deps) (*Engine, error) {
	if d.Clients == nil || d.Codec == nil {
		return nil, errors.New("grant: clients and codec are required")
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	e := &Engine{
		cfg:      cfg,
		clients:  d.Clients,
		owners:   d.Owners,
		codes:    d.Codes,
		codec:    d.Codec,
		chain:    d.Enhancers,
		observer: d.Observer,
		now:      d.Clock,
		tracer:   otel.Tracer("github.com/dropDatabas3/authcore/internal/grant"),
	}
	if e.observer == nil {
		e.observer = nopObserver{}
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e, nil
}

// IssueToken runs Received -> ClientAuthenticated -> grant branch -> Granted|Denied.
// Every failure is an *oautherr.Error.
func (e *Engine) IssueToken(ctx context.Context, req TokenRequest) (pair *TokenPair, err error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "grant.IssueToken", trace.WithAttributes(
		attribute.String("oauth.grant_type", req.GrantType),
		attribute.String("oauth.client_id", req.ClientID),
	))
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Op("grant.IssueToken"),
		logger.GrantType(req.GrantType),
		logger.ClientID(req.ClientID),
	)
	defer func() {
		outcome := "granted"
		if err != nil {
			oe := oautherr.From(err)
			err = oe
			outcome = oe.Code
			span.RecordError(err)
			span.SetStatus(codes.Error, oe.Code)
		} else {
			span.SetAttributes(attribute.String("oauth.jti", pair.JTI))
		}
		e.observer.ObserveIssue(req.GrantType, outcome, time.Since(start))
		span.End()
	}()

	client, err := call(ctx, e.cfg.CallTimeout, func(ctx context.Context) (*domain.Client, error) {
		return e.clients.Authenticate(ctx, req.ClientID, req.ClientSecret)
	})
	if err != nil {
		log.Warn("client authentication failed", logger.Err(err))
		return nil, err
	}

	gt, ok := domain.ParseGrantType(req.GrantType)
	if !ok {
		log.Warn("unsupported grant_type")
		return nil, oautherr.ErrUnsupportedGrantType
	}
	if !client.AllowsGrant(gt) {
		log.Warn("grant_type not allowed for client")
		return nil, oautherr.ErrUnauthorizedClient
	}

	switch gt {
	case domain.GrantPassword:
		pair, err = e.passwordGrant(ctx, log, client, req.Params)
	case domain.GrantAuthorizationCode:
		pair, err = e.authorizationCodeGrant(ctx, log, client, req.Params)
	case domain.GrantRefreshToken:
		pair, err = e.refreshTokenGrant(ctx, log, client, req.Params)
	case domain.GrantImplicit:
		pair, err = e.implicitGrant(ctx, log, client, req.Params)
	case domain.GrantClientCredentials:
		pair, err = e.clientCredentialsGrant(ctx, client, req.Params)
	}
	if err != nil {
		return nil, err
	}
	log.Info("token issued",
		logger.Subject(pair.subject),
		logger.JTI(pair.JTI),
		logger.Bool("refresh", pair.RefreshToken != ""),
	)
	return pair, nil
}

func (e *Engine) passwordGrant(ctx context.Context, log *zap.Logger, c *domain.Client, p Params) (*TokenPair, error) {
	if p.Username == "" || p.Password == "" {
		return nil, oautherr.WithDescription(oautherr.ErrInvalidRequest, "username and password are required")
	}
	ownerID, err := e.authenticateOwner(ctx, p.Username, p.Password)
	if err != nil {
		log.Warn("resource owner authentication failed", logger.Err(err))
		return nil, err
	}
	scopes, err := e.resolveScopes(p.Scope, c.Scopes)
	if err != nil {
		return nil, err
	}
	return e.mint(ctx, c, mintRequest{subject: ownerID, scopes: scopes, grant: domain.GrantPassword})
}

func (e *Engine) authorizationCodeGrant(ctx context.Context, log *zap.Logger, c *domain.Client, p Params) (*TokenPair, error) {
	if p.Code == "" {
		return nil, oautherr.WithDescription(oautherr.ErrInvalidRequest, "code is required")
	}
	if e.codes == nil {
		return nil, oautherr.WithCause(oautherr.ErrServerError, errors.New("grant: no code store configured"))
	}
	g, err := call(ctx, e.cfg.CallTimeout, func(ctx context.Context) (*domain.AuthorizationGrant, error) {
		return e.codes.Consume(ctx, p.Code)
	})
	if err != nil {
		log.Warn("authorization code rejected", logger.Err(err))
		return nil, err
	}
	if g.ClientID != c.ClientID || g.RedirectURI != p.RedirectURI {
		log.Warn("client/redirect_uri mismatch")
		return nil, oautherr.ErrInvalidGrant
	}
	// the client's scopes may have shrunk since the code was issued
	scopes := intersect(g.Scopes, c.Scopes)
	if len(scopes) == 0 && len(g.Scopes) > 0 {
		return nil, oautherr.ErrInvalidScope
	}
	return e.mint(ctx, c, mintRequest{subject: g.ResourceOwnerID, scopes: scopes, grant: domain.GrantAuthorizationCode})
}

func (e *Engine) refreshTokenGrant(ctx context.Context, log *zap.Logger, c *domain.Client, p Params) (*TokenPair, error) {
	if p.RefreshToken == "" {
		return nil, oautherr.WithDescription(oautherr.ErrInvalidRequest, "refresh_token is required")
	}
	prev, err := e.codec.Decode(p.RefreshToken)
	if err != nil {
		log.Warn("refresh token rejected", logger.Err(err))
		return nil, oautherr.WithCause(oautherr.ErrInvalidGrant, err)
	}
	if prev.TokenType != jwt.TokenTypeRefresh {
		log.Warn("token presented as refresh token is not a refresh token", logger.String("token_type", string(prev.TokenType)))
		return nil, oautherr.ErrInvalidGrant
	}
	if prev.ClientID != c.ClientID {
		log.Warn("refresh token issued to another client")
		return nil, oautherr.ErrInvalidGrant
	}
	scopes, err := e.resolveScopes(p.Scope, intersect(prev.Scopes, c.Scopes))
	if err != nil {
		return nil, err
	}
	return e.mint(ctx, c, mintRequest{
		subject:     prev.Subject,
		scopes:      scopes,
		authorities: prev.Authorities,
		grant:       domain.GrantRefreshToken,
		presented:   p.RefreshToken,
	})
}

func (e *Engine) implicitGrant(ctx context.Context, log *zap.Logger, c *domain.Client, p Params) (*TokenPair, error) {
	if p.RedirectURI != "" && !c.HasRedirectURI(p.RedirectURI) {
		log.Warn("redirect_uri not registered")
		return nil, oautherr.WithDescription(oautherr.ErrInvalidRequest, "redirect_uri is not registered for this client")
	}
	ownerID := p.ResourceOwnerID
	if ownerID == "" {
		if p.Username == "" || p.Password == "" {
			return nil, oautherr.WithDescription(oautherr.ErrInvalidRequest, "an authenticated resource owner is required")
		}
		id, err := e.authenticateOwner(ctx, p.Username, p.Password)
		if err != nil {
			log.Warn("resource owner authentication failed", logger.Err(err))
			return nil, err
		}
		ownerID = id
	}
	scopes, err := e.resolveScopes(p.Scope, c.Scopes)
	if err != nil {
		return nil, err
	}
	return e.mint(ctx, c, mintRequest{subject: ownerID, scopes: scopes, grant: domain.GrantImplicit})
}

func (e *Engine) clientCredentialsGrant(ctx context.Context, c *domain.Client, p Params) (*TokenPair, error) {
	scopes, err := e.resolveScopes(p.Scope, c.Scopes)
	if err != nil {
		return nil, err
	}
	return e.mint(ctx, c, mintRequest{
		subject:     c.ClientID,
		scopes:      scopes,
		authorities: c.Authorities,
		grant:       domain.GrantClientCredentials,
	})
}

func (e *Engine) authenticateOwner(ctx context.Context, username, password string) (string, error) {
	if e.owners == nil {
		return "", oautherr.WithCause(oautherr.ErrServerError, errors.New("grant: no resource owner authenticator configured"))
	}
	id, err := call(ctx, e.cfg.CallTimeout, func(ctx context.Context) (string, error) {
		return e.owners.Authenticate(ctx, username, password)
	})
	if errors.Is(err, domain.ErrAuthentication) {
		return "", oautherr.WithCause(oautherr.ErrInvalidGrant, err)
	}
	return id, err
}

// resolveScopes narrows the requested scope to the allowed set. An empty request
// gets the full allowed set. Nothing grantable is invalid_scope.
func (e *Engine) resolveScopes(requested string, allowed []string) ([]string, error) {
	req := dedupe(strings.Fields(requested))
	if len(req) == 0 {
		return slices.Clone(allowed), nil
	}
	granted := intersect(req, allowed)
	if e.cfg.StrictScopes && len(granted) < len(req) {
		return nil, oautherr.ErrInvalidScope
	}
	if len(granted) == 0 {
		return nil, oautherr.ErrInvalidScope
	}
	return granted, nil
}

type mintRequest struct {
	subject     string
	scopes      []string
	authorities []string
	grant       domain.GrantType
	presented   string // refresh token being exchanged, reused when not rotating
}

// mint builds, enhances and signs the access token and, when the client and the
// grant allow it, the refresh token. TTLs come from the client record only.
func (e *Engine) mint(_ context.Context, c *domain.Client, r mintRequest) (*TokenPair, error) {
	now := e.now().UTC().Truncate(time.Second)
	access := jwt.Claims{
		Subject:     r.subject,
		ClientID:    c.ClientID,
		Scopes:      r.scopes,
		Authorities: slices.Clone(r.authorities),
		IssuedAt:    now,
		ExpiresAt:   now.Add(time.Duration(c.AccessTokenTTL) * time.Second),
		JTI:         uuid.NewString(),
		TokenType:   jwt.TokenTypeAccess,
		Issuer:      e.cfg.Issuer,
	}
	at, err := e.sign(access)
	if err != nil {
		return nil, err
	}
	pair := &TokenPair{
		AccessToken: at,
		TokenType:   TokenTypeBearer,
		ExpiresIn:   c.AccessTokenTTL,
		Scope:       strings.Join(r.scopes, " "),
		JTI:         access.JTI,
		subject:     access.Subject,
	}

	if !refreshAllowed(c, r.grant) {
		return pair, nil
	}
	if r.presented != "" && !e.cfg.RotateRefreshTokens {
		pair.RefreshToken = r.presented
		return pair, nil
	}
	refresh := access.Clone()
	refresh.JTI = uuid.NewString()
	refresh.TokenType = jwt.TokenTypeRefresh
	refresh.ExpiresAt = now.Add(time.Duration(c.RefreshTokenTTL) * time.Second)
	refresh.AccessTokenID = access.JTI
	rt, err := e.sign(refresh)
	if err != nil {
		return nil, err
	}
	pair.RefreshToken = rt
	return pair, nil
}

func (e *Engine) sign(c jwt.Claims) (string, error) {
	enhanced, err := e.chain.Apply(c)
	if err != nil {
		return "", oautherr.WithCause(oautherr.ErrServerError, err)
	}
	tok, err := e.codec.Encode(enhanced)
	if err != nil {
		return "", oautherr.WithCause(oautherr.ErrServerError, fmt.Errorf("grant: encode %s token: %w", c.TokenType, err))
	}
	return tok, nil
}

func refreshAllowed(c *domain.Client, g domain.GrantType) bool {
	if !c.AllowsGrant(domain.GrantRefreshToken) || c.RefreshTokenTTL <= 0 {
		return false
	}
	switch g {
	case domain.GrantPassword, domain.GrantAuthorizationCode, domain.GrantRefreshToken:
		return true
	default:
		return false
	}
}

func intersect(a, allowed []string) []string {
	out := make([]string, 0, len(a))
	for _, s := range a {
		if slices.Contains(allowed, s) {
			out = append(out, s)
		}
	}
	return out
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
