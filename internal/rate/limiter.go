// Package rate limita intentos de autenticación en el token endpoint con una
// ventana fija sobre cache.Client (memory o redis, el mismo backend que los
// authorization codes).
package rate

import (
	"context"
	"strings"
	"time"

	"github.com/dropDatabas3/authcore/internal/cache"
)

type Result struct {
	Allowed     bool
	Remaining   int64
	RetryAfter  time.Duration
	CurrentHits int64
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// WindowLimiter: fixed window sencillo (INCR + EXPIRE).
type WindowLimiter struct {
	cache  cache.Client
	prefix string
	max    int64
	window time.Duration
	now    func() time.Time
}

func NewWindowLimiter(c cache.Client, prefix string, max int, window time.Duration) *WindowLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	if window <= 0 {
		window = time.Minute
	}
	return &WindowLimiter{cache: c, prefix: prefix, max: int64(max), window: window, now: time.Now}
}

func (l *WindowLimiter) Allow(ctx context.Context, key string) (Result, error) {
	winStart := l.now().UTC().Truncate(l.window)
	k := l.prefix + strings.ReplaceAll(key, " ", "_") + ":" + winStart.Format("20060102T150405")

	hits, ttl, err := l.cache.Incr(ctx, k, l.window)
	if err != nil {
		return Result{}, err
	}
	res := Result{
		Allowed:     hits <= l.max,
		Remaining:   max(l.max-hits, 0),
		CurrentHits: hits,
	}
	if !res.Allowed {
		// resto de la ventana
		res.RetryAfter = ttl
		if res.RetryAfter <= 0 {
			res.RetryAfter = l.window
		}
	}
	return res, nil
}

// Noop deja pasar todo (rate limit deshabilitado).
type Noop struct{}

func (Noop) Allow(context.Context, string) (Result, error) { return Result{Allowed: true}, nil }
