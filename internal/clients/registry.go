// Package clients es el registro de clientes OAuth: alta/baja administrativa y
// autenticación de client_id + secret en el token path.
package clients

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/authcore/internal/domain"
	"github.com/dropDatabas3/authcore/internal/oautherr"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
	"github.com/dropDatabas3/authcore/internal/security/password"
	tokens "github.com/dropDatabas3/authcore/internal/security/token"
	"github.com/dropDatabas3/authcore/internal/validation"
)

// DefaultCacheTTL es cuánto vive un client en el cache de lectura.
const DefaultCacheTTL = 30 * time.Second

// NegativeCacheTTL es cuánto se recuerda un client_id inexistente (tope: el
// TTL del cache). Así un id desconocido y uno conocido resuelven igual de rápido.
const NegativeCacheTTL = 5 * time.Second

// noClient marca en el cache un client_id que el store no conoce.
type noClient struct{}

// SecretHasher es lo que el registry usa de security/password (*password.Hasher lo cumple).
type SecretHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, encoded string) bool
	NeedsRehash(encoded string) bool
}

// Options configura el registry. El zero value usa password.Default(), sin policy
// de secret y DefaultCacheTTL.
type Options struct {
	Hasher       SecretHasher
	SecretPolicy password.Policy
	CacheTTL     time.Duration // < 0 desactiva el cache
	// UpgradeHashes re-hashea con el algoritmo default los secrets viejos después
	// de una autenticación exitosa.
	UpgradeHashes bool
}

// Registry es seguro para uso concurrente. Lecturas sin lock; escrituras
// serializadas por client_id.
type Registry struct {
	store   domain.ClientStore
	hasher  SecretHasher
	policy  password.Policy
	upgrade bool
	now     func() time.Time

	// dummyHash se verifica cuando el client no existe, para que ambos caminos
	// hagan exactamente una verificación.
	dummyHash string

	cache *gocache.Cache // nil => sin cache
	ttl   time.Duration
	sf    singleflight.Group
	gen   atomic.Uint64 // se incrementa en cada escritura
	locks keyedMutex
}

func NewRegistry(store domain.ClientStore, opts Options) (*Registry, error) {
	if store == nil {
		return nil, errors.New("clients: store is required")
	}
	h := opts.Hasher
	if h == nil {
		h = password.Default()
	}
	seed, err := tokens.GenerateOpaqueToken(tokens.MinOpaqueBytes)
	if err != nil {
		return nil, fmt.Errorf("clients: dummy secret: %w", err)
	}
	dummy, err := h.Hash(seed)
	if err != nil {
		return nil, fmt.Errorf("clients: dummy hash: %w", err)
	}

	r := &Registry{
		store:     store,
		hasher:    h,
		policy:    opts.SecretPolicy,
		upgrade:   opts.UpgradeHashes,
		now:       time.Now,
		dummyHash: dummy,
		ttl:       opts.CacheTTL,
	}
	if r.ttl == 0 {
		r.ttl = DefaultCacheTTL
	}
	if r.ttl > 0 {
		r.cache = gocache.New(r.ttl, 2*r.ttl)
	}
	return r, nil
}

// Register crea un client nuevo. ErrDuplicateClient si el id ya existe.
func (r *Registry) Register(ctx context.Context, reg domain.ClientRegistration) (*domain.Client, error) {
	if err := validate(reg, true); err != nil {
		return nil, err
	}
	if err := r.policy.Check(reg.Secret); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRegistration, err)
	}
	hash, err := r.hasher.Hash(reg.Secret)
	if err != nil {
		return nil, fmt.Errorf("clients: hash secret: %w", err)
	}

	unlock := r.locks.Lock(reg.ClientID)
	defer unlock()

	now := r.now().UTC()
	c := fromRegistration(reg)
	c.SecretHash = hash
	c.CreatedAt, c.UpdatedAt = now, now

	if err := r.store.Put(ctx, c, false); err != nil {
		if domain.IsConflict(err) {
			return nil, ErrDuplicateClient
		}
		return nil, fmt.Errorf("clients: register: %w", err)
	}
	r.invalidate(reg.ClientID)

	logger.From(ctx).Info("client registered",
		logger.Layer("service"), logger.Op("clients.Register"), logger.ClientID(c.ClientID))
	return c.Clone(), nil
}

// Update reemplaza la configuración de un client existente. Secret vacío conserva
// el hash actual.
func (r *Registry) Update(ctx context.Context, reg domain.ClientRegistration) (*domain.Client, error) {
	if err := validate(reg, false); err != nil {
		return nil, err
	}
	var hash string
	if reg.Secret != "" {
		if err := r.policy.Check(reg.Secret); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRegistration, err)
		}
		h, err := r.hasher.Hash(reg.Secret)
		if err != nil {
			return nil, fmt.Errorf("clients: hash secret: %w", err)
		}
		hash = h
	}

	unlock := r.locks.Lock(reg.ClientID)
	defer unlock()

	cur, err := r.store.Get(ctx, reg.ClientID)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, ErrNoSuchClient
		}
		return nil, fmt.Errorf("clients: update: %w", err)
	}
	c := fromRegistration(reg)
	c.SecretHash = cur.SecretHash
	if hash != "" {
		c.SecretHash = hash
	}
	c.CreatedAt = cur.CreatedAt
	c.UpdatedAt = r.now().UTC()

	if err := r.store.Put(ctx, c, true); err != nil {
		if domain.IsNotFound(err) {
			return nil, ErrNoSuchClient
		}
		return nil, fmt.Errorf("clients: update: %w", err)
	}
	r.invalidate(reg.ClientID)

	logger.From(ctx).Info("client updated",
		logger.Layer("service"), logger.Op("clients.Update"), logger.ClientID(c.ClientID),
		logger.Bool("secret_rotated", hash != ""))
	return c.Clone(), nil
}

// Remove es idempotente.
func (r *Registry) Remove(ctx context.Context, clientID string) error {
	unlock := r.locks.Lock(clientID)
	defer unlock()

	if err := r.store.Delete(ctx, clientID); err != nil {
		return fmt.Errorf("clients: remove: %w", err)
	}
	r.invalidate(clientID)
	logger.From(ctx).Info("client removed",
		logger.Layer("service"), logger.Op("clients.Remove"), logger.ClientID(clientID))
	return nil
}

// Find devuelve una copia del client o ErrNoSuchClient.
func (r *Registry) Find(ctx context.Context, clientID string) (*domain.Client, error) {
	c, err := r.load(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return c.Clone(), nil
}

// List lee directo del store (uso administrativo).
func (r *Registry) List(ctx context.Context) ([]domain.Client, error) {
	cs, err := r.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("clients: list: %w", err)
	}
	return cs, nil
}

// Authenticate verifica client_id + secret. Cliente inexistente y secret
// incorrecto devuelven el mismo oautherr.ErrInvalidClient y hacen el mismo trabajo.
// Errores del store (timeout, conexión) se devuelven envueltos tal cual.
func (r *Registry) Authenticate(ctx context.Context, clientID, secret string) (*domain.Client, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("clients.Authenticate"), logger.ClientID(clientID))

	c, err := r.load(ctx, clientID)
	if err != nil && !errors.Is(err, ErrNoSuchClient) {
		return nil, err
	}

	hash := r.dummyHash
	if c != nil {
		hash = c.SecretHash
	}
	ok := r.hasher.Verify(secret, hash)
	if c == nil || !ok {
		log.Debug("client authentication failed")
		return nil, oautherr.ErrInvalidClient
	}

	if r.upgrade && r.hasher.NeedsRehash(c.SecretHash) {
		r.upgradeHash(ctx, log, c.ClientID, secret)
	}
	return c.Clone(), nil
}

// upgradeHash es best-effort: si falla, el hash viejo sigue siendo válido.
func (r *Registry) upgradeHash(ctx context.Context, log *zap.Logger, clientID, secret string) {
	hash, err := r.hasher.Hash(secret)
	if err != nil {
		log.Warn("secret rehash failed", logger.Err(err))
		return
	}
	unlock := r.locks.Lock(clientID)
	defer unlock()

	cur, err := r.store.Get(ctx, clientID)
	if err != nil || !r.hasher.NeedsRehash(cur.SecretHash) {
		return
	}
	cur.SecretHash = hash
	cur.UpdatedAt = r.now().UTC()
	if err := r.store.Put(ctx, cur, true); err != nil {
		log.Warn("secret rehash not persisted", logger.Err(err))
		return
	}
	r.invalidate(clientID)
	log.Info("client secret rehashed")
}

// load: cache -> singleflight -> store. Lo cacheado no sale nunca sin Clone.
func (r *Registry) load(ctx context.Context, clientID string) (*domain.Client, error) {
	if clientID == "" {
		return nil, ErrNoSuchClient
	}
	if r.cache != nil {
		if v, ok := r.cache.Get(clientID); ok {
			if _, missing := v.(noClient); missing {
				return nil, ErrNoSuchClient
			}
			return v.(*domain.Client), nil
		}
	}

	v, err, _ := r.sf.Do(clientID, func() (any, error) {
		gen := r.gen.Load()
		c, err := r.store.Get(ctx, clientID)
		if err != nil {
			if domain.IsNotFound(err) {
				if r.cache != nil && r.gen.Load() == gen {
					r.cache.Set(clientID, noClient{}, min(NegativeCacheTTL, r.ttl))
				}
				return nil, ErrNoSuchClient
			}
			return nil, fmt.Errorf("clients: lookup: %w", err)
		}
		// una escritura concurrente invalida lo leído: no cachear.
		if r.cache != nil && r.gen.Load() == gen {
			r.cache.Set(clientID, c, gocache.DefaultExpiration)
		}
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Client), nil
}

func (r *Registry) invalidate(clientID string) {
	r.gen.Add(1)
	r.sf.Forget(clientID)
	if r.cache != nil {
		r.cache.Delete(clientID)
	}
}

func fromRegistration(reg domain.ClientRegistration) *domain.Client {
	return &domain.Client{
		ClientID:        reg.ClientID,
		Name:            reg.Name,
		GrantTypes:      slices.Clone(reg.GrantTypes),
		Scopes:          slices.Clone(reg.Scopes),
		Authorities:     slices.Clone(reg.Authorities),
		RedirectURIs:    slices.Clone(reg.RedirectURIs),
		AccessTokenTTL:  reg.AccessTokenTTL,
		RefreshTokenTTL: reg.RefreshTokenTTL,
	}
}

func validate(reg domain.ClientRegistration, requireSecret bool) error {
	var problems []string
	if strings.TrimSpace(reg.ClientID) == "" || reg.ClientID != strings.TrimSpace(reg.ClientID) {
		problems = append(problems, "client_id must be non-empty without surrounding spaces")
	}
	if requireSecret && reg.Secret == "" {
		problems = append(problems, "secret is required")
	}
	if len(reg.GrantTypes) == 0 {
		problems = append(problems, "at least one grant type is required")
	}
	for _, g := range reg.GrantTypes {
		if _, ok := domain.ParseGrantType(string(g)); !ok || string(g) != strings.ToLower(string(g)) {
			problems = append(problems, fmt.Sprintf("unknown grant type %q", g))
		}
	}
	for _, s := range reg.Scopes {
		if !validation.ValidScopeName(s) {
			problems = append(problems, fmt.Sprintf("invalid scope %q", s))
		}
	}
	for _, u := range reg.RedirectURIs {
		if !validation.ValidRedirectURI(u) {
			problems = append(problems, fmt.Sprintf("invalid redirect uri %q", u))
		}
	}
	if reg.AccessTokenTTL <= 0 {
		problems = append(problems, "access token ttl must be positive")
	}
	if reg.RefreshTokenTTL < 0 {
		problems = append(problems, "refresh token ttl must not be negative")
	}
	if slices.Contains(reg.GrantTypes, domain.GrantRefreshToken) && reg.RefreshTokenTTL == 0 {
		problems = append(problems, "refresh_token grant requires a refresh token ttl")
	}
	needsRedirect := slices.Contains(reg.GrantTypes, domain.GrantAuthorizationCode) ||
		slices.Contains(reg.GrantTypes, domain.GrantImplicit)
	if needsRedirect && len(reg.RedirectURIs) == 0 {
		problems = append(problems, "authorization_code/implicit require a redirect uri")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRegistration, strings.Join(problems, "; "))
	}
	return nil
}
