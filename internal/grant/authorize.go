package grant

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dropDatabas3/authcore/internal/clients"
	"github.com/dropDatabas3/authcore/internal/domain"
	"github.com/dropDatabas3/authcore/internal/oautherr"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
)

// Authorize approves an authorization_code request for an owner the caller has
// already authenticated and returns a single-use code bound to the client, the
// redirect URI and the granted scope.
func (e *Engine) Authorize(ctx context.Context, req AuthorizeRequest) (resp *AuthorizeResponse, err error) {
	ctx, span := e.tracer.Start(ctx, "grant.Authorize", trace.WithAttributes(
		attribute.String("oauth.client_id", req.ClientID),
	))
	defer func() {
		if err != nil {
			err = oautherr.From(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "authorize failed")
		}
		span.End()
	}()
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("grant.authorize"), logger.ClientID(req.ClientID))

	if req.ResourceOwnerID == "" {
		return nil, oautherr.WithDescription(oautherr.ErrInvalidRequest, "resource owner is not authenticated")
	}
	if e.codes == nil {
		return nil, oautherr.WithCause(oautherr.ErrServerError, errors.New("grant: no code store configured"))
	}

	client, err := call(ctx, e.cfg.CallTimeout, func(ctx context.Context) (*domain.Client, error) {
		return e.clients.Find(ctx, req.ClientID)
	})
	if err != nil {
		if errors.Is(err, clients.ErrNoSuchClient) {
			log.Warn("unknown client")
			return nil, oautherr.ErrInvalidClient
		}
		return nil, err
	}
	if !client.AllowsGrant(domain.GrantAuthorizationCode) {
		log.Warn("authorization_code not allowed for client")
		return nil, oautherr.ErrUnauthorizedClient
	}

	redirect := req.RedirectURI
	switch {
	case redirect == "" && len(client.RedirectURIs) == 1:
		redirect = client.RedirectURIs[0]
	case !client.HasRedirectURI(redirect):
		log.Warn("redirect_uri not registered")
		return nil, oautherr.WithDescription(oautherr.ErrInvalidRequest, "redirect_uri is not registered for this client")
	}

	scopes, err := e.resolveScopes(req.Scope, client.Scopes)
	if err != nil {
		return nil, err
	}

	code, err := call(ctx, e.cfg.CallTimeout, func(ctx context.Context) (string, error) {
		return e.codes.Issue(ctx, domain.AuthorizationGrant{
			ClientID:        client.ClientID,
			ResourceOwnerID: req.ResourceOwnerID,
			Scopes:          scopes,
			// the token request must repeat exactly what was sent here
			RedirectURI: req.RedirectURI,
		})
	})
	if err != nil {
		return nil, err
	}
	log.Info("authorization code issued")
	return &AuthorizeResponse{
		Code:        code,
		RedirectURI: redirect,
		Scope:       strings.Join(scopes, " "),
		ExpiresIn:   int(e.codes.TTL().Seconds()),
	}, nil
}

// CheckToken introspects a token on behalf of an authenticated client.
func (e *Engine) CheckToken(ctx context.Context, clientID, secret, token string) (map[string]any, error) {
	ctx, span := e.tracer.Start(ctx, "grant.CheckToken")
	defer span.End()

	if _, err := call(ctx, e.cfg.CallTimeout, func(ctx context.Context) (*domain.Client, error) {
		return e.clients.Authenticate(ctx, clientID, secret)
	}); err != nil {
		span.SetStatus(codes.Error, "client authentication failed")
		return nil, oautherr.From(err)
	}
	if token == "" {
		return nil, oautherr.WithDescription(oautherr.ErrInvalidRequest, "token is required")
	}
	claims, err := e.codec.Introspect(token)
	if err != nil {
		logger.From(ctx).Debug("check_token rejected token",
			logger.Layer("service"), logger.Op("grant.check_token"), logger.ClientID(clientID), logger.Err(err))
		return nil, oautherr.WithCause(oautherr.ErrInvalidToken, err)
	}
	return claims, nil
}
