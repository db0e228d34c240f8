// Package cache abstrae un key/value con TTL con dos backends:
//   - Memory (in-process, single instance y tests)
//   - Redis (distribuido, varias réplicas del servidor)
//
// GetDel es la operación central: lee y borra en un solo paso atómico, que es
// lo que necesitan los authorization codes de un solo uso.
package cache

import (
	"context"
	"errors"
	"time"
)

// Client define las operaciones de cache.
type Client interface {
	// Get obtiene un valor. Retorna ErrNotFound si no existe o expiró.
	Get(ctx context.Context, key string) (string, error)

	// Set guarda un valor. ttl 0 => no expira.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX guarda solo si la key no existe. Devuelve false si ya existía.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// GetDel lee y borra atómicamente: entre N llamadas concurrentes sobre la
	// misma key, exactamente una recibe el valor y el resto ErrNotFound.
	GetDel(ctx context.Context, key string) (string, error)

	// Incr suma 1 al contador de key. El primer hit fija ttl (ventana fija);
	// devuelve el valor nuevo y el TTL restante.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, time.Duration, error)

	// Delete elimina una key (idempotente).
	Delete(ctx context.Context, key string) error

	Ping(ctx context.Context) error
	Close() error
}

// Config configuración para crear un cliente de cache.
type Config struct {
	Driver   string // "memory" | "redis"
	Addr     string // host:port (redis)
	Password string
	DB       int
	Prefix   string // Prefijo para todas las keys
}

// ErrNotFound: key inexistente o expirada.
var ErrNotFound = errors.New("cache: key not found")

// IsNotFound verifica si el error es porque la key no existe.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// New crea un cliente de cache según la configuración.
func New(ctx context.Context, cfg Config) (Client, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedis(ctx, cfg)
	case "memory", "":
		return NewMemory(cfg.Prefix, time.Minute), nil
	default:
		return nil, errors.New("cache: unknown driver " + cfg.Driver)
	}
}

func prefixed(prefix, k string) string {
	if prefix == "" {
		return k
	}
	return prefix + ":" + k
}
