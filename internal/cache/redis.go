package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis implementa Client sobre go-redis. GetDel usa GETDEL (Redis >= 6.2),
// atómico en el servidor aunque haya varias réplicas consumiendo.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis conecta y verifica con PING.
func NewRedis(ctx context.Context, cfg Config) (*Redis, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cache: redis ping failed: %w", err)
	}
	return &Redis{client: rdb, prefix: cfg.Prefix}, nil
}

// NewRedisFromClient envuelve un cliente ya configurado.
func NewRedisFromClient(rdb *redis.Client, prefix string) *Redis {
	return &Redis{client: rdb, prefix: prefix}
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	return notFound(r.client.Get(ctx, prefixed(r.prefix, key)).Result())
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, prefixed(r.prefix, key), value, ttl).Err()
}

func (r *Redis) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, prefixed(r.prefix, key), value, ttl).Result()
}

func (r *Redis) GetDel(ctx context.Context, key string) (string, error) {
	return notFound(r.client.GetDel(ctx, prefixed(r.prefix, key)).Result())
}

// Incr: INCR + PTTL en un MULTI. El PEXPIRE va en el primer hit y también si la
// key quedó sin TTL (p.ej. un proceso murió entre INCR y PEXPIRE): una ventana
// nunca puede quedar abierta para siempre.
func (r *Redis) Incr(ctx context.Context, key string, ttl time.Duration) (int64, time.Duration, error) {
	k := prefixed(r.prefix, key)
	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	left := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}
	d := left.Val()
	if ttl > 0 && (incr.Val() == 1 || d < 0) {
		if err := r.client.PExpire(ctx, k, ttl).Err(); err != nil {
			return 0, 0, err
		}
		return incr.Val(), ttl, nil
	}
	if d < 0 {
		d = 0
	}
	return incr.Val(), d, nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, prefixed(r.prefix, key)).Err()
}

func (r *Redis) Ping(ctx context.Context) error { return r.client.Ping(ctx).Err() }

func (r *Redis) Close() error { return r.client.Close() }

func notFound(v string, err error) (string, error) {
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return v, nil
}
