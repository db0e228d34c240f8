// Command authcore sirve el token endpoint OAuth2.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/dropDatabas3/authcore/internal/authcode"
	"github.com/dropDatabas3/authcore/internal/cache"
	"github.com/dropDatabas3/authcore/internal/clients"
	"github.com/dropDatabas3/authcore/internal/config"
	"github.com/dropDatabas3/authcore/internal/domain"
	"github.com/dropDatabas3/authcore/internal/enhancer"
	"github.com/dropDatabas3/authcore/internal/grant"
	authhttp "github.com/dropDatabas3/authcore/internal/http"
	"github.com/dropDatabas3/authcore/internal/jwt"
	"github.com/dropDatabas3/authcore/internal/keys"
	"github.com/dropDatabas3/authcore/internal/metrics"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
	"github.com/dropDatabas3/authcore/internal/observability/tracing"
	"github.com/dropDatabas3/authcore/internal/owner"
	"github.com/dropDatabas3/authcore/internal/rate"
	"github.com/dropDatabas3/authcore/internal/security/password"
	"github.com/dropDatabas3/authcore/internal/store/pg"
	"github.com/dropDatabas3/authcore/internal/util"
)

// version se setea con -ldflags "-X main.version=..."
var version = "dev"

func main() {
	configPath := flag.String("config", os.Getenv("AUTHCORE_CONFIG"), "ruta a config.yaml (vacío = solo env)")
	envFile := flag.String("env-file", ".env", "ruta a .env (opcional)")
	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "env-file: %v\n", err)
			os.Exit(1)
		}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if cfg.App.Version == "" {
		cfg.App.Version = version
	}

	env := "dev"
	if cfg.IsProd() {
		env = "prod"
	}
	logger.Init(logger.Config{Env: env, Level: cfg.App.LogLevel, ServiceName: cfg.App.Name, Version: cfg.App.Version})
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.L().Error("authcore stopped", logger.Err(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.L().With(logger.Component("bootstrap"))

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		SampleRatio: cfg.Telemetry.SampleRatio,
		ServiceName: cfg.App.Name,
		Version:     cfg.App.Version,
	})
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("tracing shutdown", logger.Err(err))
		}
	}()

	// Sin clave de firma no hay servicio: el error sube a main, que sale con 1
	// después de los defers (tracing, logger).
	mat, err := loadSigningKey(cfg)
	if err != nil {
		return err
	}
	log.Info("signing key loaded", logger.Alias(mat.Alias()), zap.String("alg", mat.Algorithm()), zap.String("kid", mat.KeyID()))

	codec, err := jwt.NewCodec(mat, jwt.WithSkew(cfg.Token.Skew))
	if err != nil {
		return err
	}

	db, err := pg.Open(ctx, pg.Config{
		DSN:             cfg.Storage.DSN,
		MaxConns:        cfg.Storage.MaxConns,
		MinConns:        cfg.Storage.MinConns,
		ConnMaxLifetime: cfg.Storage.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("postgres %s: %w", util.MaskDSN(cfg.Storage.DSN), err)
	}
	defer db.Close()

	if cfg.Storage.Migrate {
		res, err := db.Migrate(ctx)
		if err != nil {
			return err
		}
		log.Info("migrations", zap.Ints("applied", res.Applied), logger.Count(len(res.Skipped)), logger.Duration(res.Duration))
	}

	cc, err := cache.New(ctx, cache.Config{
		Driver:   cfg.Cache.Driver,
		Addr:     cfg.Cache.Addr,
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
		Prefix:   cfg.Cache.Prefix,
	})
	if err != nil {
		return err
	}
	defer cc.Close()

	hasher := password.Default()
	registry, err := clients.NewRegistry(db.Clients(), clients.Options{
		Hasher:        hasher,
		CacheTTL:      cfg.Token.ClientCacheTTL,
		UpgradeHashes: cfg.Token.UpgradeHashes,
	})
	if err != nil {
		return err
	}

	lookup, err := ownerLookup(cfg, db)
	if err != nil {
		return err
	}
	owners, err := owner.New(lookup, hasher)
	if err != nil {
		return err
	}

	chain, err := enhancerChain(cfg)
	if err != nil {
		return err
	}

	m, err := metrics.New(true)
	if err != nil {
		return err
	}
	if err := m.Register(metrics.NewPoolCollector(func() *pgxpool.Pool { return db.Pool() })); err != nil {
		return err
	}

	engine, err := grant.NewEngine(grant.Config{
		Issuer:              cfg.Token.Issuer,
		StrictScopes:        cfg.Token.StrictScopes,
		RotateRefreshTokens: cfg.Token.RotateRefresh,
		CallTimeout:         cfg.Token.CallTimeout,
	}, grant.Deps{
		Clients:   registry,
		Owners:    owners,
		Codes:     authcode.NewStore(cc, cfg.Token.CodeTTL),
		Codec:     codec,
		Enhancers: chain,
		Observer:  m,
	})
	if err != nil {
		return err
	}

	deps := authhttp.RouterDeps{
		Tokens: engine,
		Keys:   mat,
		Health: []authhttp.HealthCheck{
			{Name: "postgres", Check: db.Ping},
			{Name: "cache", Check: cc.Ping},
		},
		MaxFormBytes: cfg.Server.MaxFormBytes,
		TrustProxy:   cfg.Server.RateLimit.TrustProxy,
		Tracing:      cfg.Telemetry.Enabled,
	}
	if rl := cfg.Server.RateLimit; rl.Max > 0 {
		deps.Limiter = rate.NewWindowLimiter(cc, "rl:", rl.Max, rl.Window)
	}
	if !cfg.Server.DisableMetrics {
		deps.Metrics = m
	}

	return authhttp.Serve(ctx, authhttp.ServerConfig{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, authhttp.NewRouter(deps))
}

func ownerLookup(cfg *config.Config, db *pg.Store) (domain.ResourceOwnerLookup, error) {
	if cfg.Owners.Source != "static" {
		return db.Owners(), nil
	}
	users := make([]owner.StaticUser, 0, len(cfg.Owners.Users))
	for _, username := range slices.Sorted(maps.Keys(cfg.Owners.Users)) {
		u := cfg.Owners.Users[username]
		id := u.ID
		if id == "" {
			id = username
		}
		users = append(users, owner.StaticUser{ID: id, Username: username, PasswordHash: u.PasswordHash, Disabled: u.Disabled})
	}
	return owner.NewStatic(users)
}

func enhancerChain(cfg *config.Config) (*enhancer.Chain, error) {
	var steps []enhancer.Enhancer
	if len(cfg.Enhancers.Static) > 0 {
		steps = append(steps, enhancer.Static("static", cfg.Enhancers.Static))
	}
	if len(cfg.Enhancers.PerClient) > 0 {
		steps = append(steps, enhancer.PerClient("per_client", cfg.Enhancers.PerClient))
	}
	return enhancer.NewChain(steps...)
}

func loadSigningKey(cfg *config.Config) (*keys.Material, error) {
	src, err := keys.FileSource(cfg.Keystore.Path, cfg.Keystore.StorePassword, cfg.Keystore.Alias, cfg.Keystore.KeyPassword)
	if err != nil {
		return nil, fmt.Errorf("keystore: %w", err)
	}
	mat, err := keys.Load(src)
	if err != nil {
		return nil, fmt.Errorf("keystore: %w", err)
	}
	return mat, nil
}
