// Package http es el adaptador HTTP del core: token endpoint, check_token y
// publicación de la clave de firma. No contiene lógica OAuth propia.
package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dropDatabas3/authcore/internal/grant"
	"github.com/dropDatabas3/authcore/internal/rate"
)

// DefaultMaxFormBytes acota el body de los endpoints con formulario.
const DefaultMaxFormBytes = 64 << 10

// TokenService es lo que el adaptador necesita del engine.
type TokenService interface {
	IssueToken(ctx context.Context, req grant.TokenRequest) (*grant.TokenPair, error)
	CheckToken(ctx context.Context, clientID, secret, token string) (map[string]any, error)
}

// KeyPublisher expone la parte pública de la clave de firma.
type KeyPublisher interface {
	Algorithm() string
	KeyID() string
	PublicKeyPEM() (string, error)
	JWKSJSON() []byte
}

// HealthCheck es un chequeo nombrado para /healthz (pg, cache).
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// MetricsProvider instrumenta requests y sirve /metrics.
type MetricsProvider interface {
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
}

// RouterDeps contiene las dependencias del router.
type RouterDeps struct {
	Tokens       TokenService
	Keys         KeyPublisher
	Health       []HealthCheck
	Metrics      MetricsProvider // opcional
	MaxFormBytes int64
	// Limiter acota intentos por IP en /oauth/token y /oauth/check_token (nil = sin límite).
	Limiter    rate.Limiter
	TrustProxy bool
	// Tracing envuelve el router con otelhttp.
	Tracing bool
}

// NewRouter arma el chi.Router con la cadena de middlewares.
func NewRouter(d RouterDeps) http.Handler {
	if d.MaxFormBytes <= 0 {
		d.MaxFormBytes = DefaultMaxFormBytes
	}
	h := &handlers{tokens: d.Tokens, keys: d.Keys, health: d.Health, maxForm: d.MaxFormBytes}

	r := chi.NewRouter()
	r.Use(WithRequestID, WithLogging, WithRecover, WithSecurityHeaders)
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(WithRateLimit(d.Limiter, "token", d.TrustProxy))
		r.Post("/oauth/token", h.token)
		r.Post("/oauth/check_token", h.checkToken)
	})
	r.Get("/oauth/token_key", h.tokenKey)
	r.Get("/.well-known/jwks.json", h.jwks)
	r.Get("/healthz", h.healthz)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusNotFound, apiError{Error: "not_found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusMethodNotAllowed, apiError{Error: "method_not_allowed"})
	})

	if d.Tracing {
		return otelhttp.NewHandler(r, "authcore",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}))
	}
	return r
}
