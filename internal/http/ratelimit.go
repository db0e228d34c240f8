package http

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/dropDatabas3/authcore/internal/observability/logger"
	"github.com/dropDatabas3/authcore/internal/rate"
)

// WithRateLimit limita por IP de origen. Fail-open si el backend del limiter
// falla: un Redis caído no debe tumbar el token endpoint.
func WithRateLimit(lim rate.Limiter, scope string, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if lim == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r, trustProxy)
			res, err := lim.Allow(r.Context(), scope+":"+ip)
			if err != nil {
				logger.From(r.Context()).Warn("rate limiter unavailable", logger.ClientIP(ip), logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			if !res.Allowed {
				secs := max(int(res.RetryAfter.Seconds()), 1)
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				logger.From(r.Context()).Info("rate limited",
					logger.ClientIP(ip),
					zap.Int64("hits", res.CurrentHits),
				)
				WriteJSON(w, http.StatusTooManyRequests, apiError{
					Error:            "rate_limited",
					ErrorDescription: "too many requests",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP: X-Forwarded-For solo si hay un proxy de confianza delante.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
			first, _, _ := strings.Cut(xf, ",")
			return strings.TrimSpace(first)
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
