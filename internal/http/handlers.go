package http

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dropDatabas3/authcore/internal/grant"
	"github.com/dropDatabas3/authcore/internal/oautherr"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
)

type handlers struct {
	tokens  TokenService
	keys    KeyPublisher
	health  []HealthCheck
	maxForm int64
}

// token: POST /oauth/token (application/x-www-form-urlencoded).
// resource_owner_id nunca se toma del request: el owner se autentica en el engine.
func (h *handlers) token(w http.ResponseWriter, r *http.Request) {
	form, ok := h.parseForm(w, r)
	if !ok {
		return
	}
	clientID, secret, err := clientCredentials(r, form)
	if err != nil {
		WriteOAuthError(w, err)
		return
	}
	grantType := form.Get("grant_type")
	if grantType == "" {
		WriteOAuthError(w, oautherr.WithDescription(oautherr.ErrInvalidRequest, "grant_type is required"))
		return
	}

	pair, err := h.tokens.IssueToken(r.Context(), grant.TokenRequest{
		GrantType:    grantType,
		ClientID:     clientID,
		ClientSecret: secret,
		Params: grant.Params{
			Username:     form.Get("username"),
			Password:     form.Get("password"),
			Code:         form.Get("code"),
			RedirectURI:  form.Get("redirect_uri"),
			RefreshToken: form.Get("refresh_token"),
			Scope:        form.Get("scope"),
		},
	})
	if err != nil {
		WriteOAuthError(w, err)
		return
	}
	noStore(w)
	WriteJSON(w, http.StatusOK, pair)
}

// checkToken: POST /oauth/check_token, exige HTTP Basic.
func (h *handlers) checkToken(w http.ResponseWriter, r *http.Request) {
	form, ok := h.parseForm(w, r)
	if !ok {
		return
	}
	clientID, secret, hasBasic, err := basicCredentials(r)
	if err != nil {
		WriteOAuthError(w, err)
		return
	}
	if !hasBasic {
		WriteOAuthError(w, oautherr.WithDescription(oautherr.ErrInvalidClient, "HTTP Basic client authentication is required"))
		return
	}
	claims, err := h.tokens.CheckToken(r.Context(), clientID, secret, form.Get("token"))
	if err != nil {
		WriteOAuthError(w, err)
		return
	}
	noStore(w)
	WriteJSON(w, http.StatusOK, claims)
}

// tokenKey: GET /oauth/token_key, público.
func (h *handlers) tokenKey(w http.ResponseWriter, r *http.Request) {
	pem, err := h.keys.PublicKeyPEM()
	if err != nil {
		logger.From(r.Context()).Error("encode public key", logger.Err(err))
		WriteOAuthError(w, oautherr.WithCause(oautherr.ErrServerError, err))
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"alg":   h.keys.Algorithm(),
		"kid":   h.keys.KeyID(),
		"value": pem,
	})
}

func (h *handlers) jwks(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.keys.JWKSJSON())
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.health))
	for _, c := range h.health {
		if err := c.Check(ctx); err != nil {
			logger.From(ctx).Warn("health check failed", logger.Component(c.Name), logger.Err(err))
			checks[c.Name] = "fail"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[c.Name] = "ok"
	}
	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	noStore(w)
	WriteJSON(w, status, map[string]any{"status": overall, "checks": checks})
}

func (h *handlers) parseForm(w http.ResponseWriter, r *http.Request) (url.Values, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxForm)
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if !strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		WriteOAuthError(w, oautherr.WithDescription(oautherr.ErrInvalidRequest, "Content-Type must be application/x-www-form-urlencoded"))
		return nil, false
	}
	if err := r.ParseForm(); err != nil {
		WriteOAuthError(w, oautherr.WithDescription(oautherr.ErrInvalidRequest, "malformed form body"))
		return nil, false
	}
	for k, v := range r.PostForm {
		if len(v) > 1 {
			// RFC 6749 §3.2: los parámetros no se repiten
			WriteOAuthError(w, oautherr.WithDescription(oautherr.ErrInvalidRequest, "parameter "+k+" is repeated"))
			return nil, false
		}
	}
	return r.PostForm, true
}

// clientCredentials acepta HTTP Basic o client_id/client_secret en el form,
// nunca ambos.
func clientCredentials(r *http.Request, form url.Values) (id, secret string, err error) {
	id, secret, hasBasic, err := basicCredentials(r)
	if err != nil {
		return "", "", err
	}
	if hasBasic {
		if form.Get("client_secret") != "" {
			return "", "", oautherr.WithDescription(oautherr.ErrInvalidRequest, "use only one client authentication method")
		}
		if fid := form.Get("client_id"); fid != "" && fid != id {
			return "", "", oautherr.WithDescription(oautherr.ErrInvalidRequest, "client_id does not match the authenticated client")
		}
		return id, secret, nil
	}
	id = form.Get("client_id")
	if id == "" {
		return "", "", oautherr.ErrInvalidClient
	}
	return id, form.Get("client_secret"), nil
}

// basicCredentials decodifica Authorization: Basic con form-encoding (RFC 6749 §2.3.1).
func basicCredentials(r *http.Request) (id, secret string, ok bool, err error) {
	rawID, rawSecret, ok := r.BasicAuth()
	if !ok {
		if r.Header.Get("Authorization") != "" {
			return "", "", false, oautherr.ErrInvalidClient
		}
		return "", "", false, nil
	}
	if id, err = url.QueryUnescape(rawID); err != nil {
		return "", "", false, oautherr.ErrInvalidClient
	}
	if secret, err = url.QueryUnescape(rawSecret); err != nil {
		return "", "", false, oautherr.ErrInvalidClient
	}
	return id, secret, true, nil
}
