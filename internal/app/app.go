// Package app assembles the authorization engine from configuration.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"authcore.io/internal/config"
	"authcore.io/internal/obs"
	"authcore.io/internal/permission"
	"authcore.io/internal/roles"
	"authcore.io/internal/session"
	"authcore.io/internal/store/cache"
	"authcore.io/internal/store/pg"
	"authcore.io/internal/token"
)

// Deps are the collaborators New does not create itself. A nil DB selects the
// in-memory repositories and leaves the subject directories unregistered.
type Deps struct {
	DB         *sql.DB
	Redis      redis.UniversalClient
	Logger     *zap.Logger
	Registerer prometheus.Registerer
	Clock      func() time.Time
}

// App holds every component. It is immutable after New returns.
type App struct {
	Config      config.Config
	Logger      *zap.Logger
	Metrics     *obs.Metrics
	Catalog     *roles.Catalog
	Roles       *roles.Store
	Codec       *token.Codec
	Invalid     *token.InvalidStore
	Sessions    *session.Service
	Permissions *permission.Resolver

	closers []func() error
}

// New builds the engine from cfg and deps.
func New(cfg config.Config, deps Deps) (*App, error) {
	logger := deps.Logger
	if logger == nil {
		var err error
		if logger, err = obs.NewLogger(cfg.Environment, cfg.LogLevel); err != nil {
			return nil, fmt.Errorf("app: logger: %w", err)
		}
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	metrics, err := obs.NewMetrics(deps.Registerer)
	if err != nil {
		return nil, fmt.Errorf("app: metrics: %w", err)
	}

	catalog := roles.DefaultCatalog()
	var grants roles.Repository = roles.NewMemoryRepository()
	if deps.DB != nil {
		grants = pg.NewGrantRepository(deps.DB)
	}
	roleStore, err := roles.NewStore(catalog, grants,
		roles.WithLogger(logger.Named("roles")),
		roles.WithMetrics(metrics),
		roles.WithClock(now),
	)
	if err != nil {
		return nil, err
	}

	invalidRepo, err := invalidRepository(cfg, deps, now)
	if err != nil {
		return nil, err
	}
	codec := token.NewCodec(now)
	invalid, err := token.NewInvalidStore(invalidRepo, codec, cfg.TokenSecret,
		token.WithGrace(cfg.InvalidTokenGrace),
		token.WithClock(now),
		token.WithLogger(logger.Named("token")),
		token.WithMetrics(metrics),
	)
	if err != nil {
		return nil, err
	}

	opts := []session.ServiceOption{
		session.WithSecret(cfg.TokenSecret),
		session.WithSessionTTL(cfg.SessionTTL),
		session.WithSeedTTL(cfg.SeedTTL),
		session.WithClock(now),
		session.WithLogger(logger.Named("session")),
		session.WithMetrics(metrics),
		session.WithRoles(catalog, roleStore),
		session.WithSeedRateLimit(cfg.SeedRatePerMinute, cfg.SeedBurst),
	}
	if deps.DB != nil {
		admins := catalog.TopNames(roles.GlobalScope(roles.KindUser), 2)
		opts = append(opts,
			session.WithDirectory(session.ScopeUser, pg.NewUserDirectory(deps.DB)),
			session.WithDirectory(session.ScopeAdmin, pg.NewAdminDirectory(deps.DB, admins)),
			session.WithDirectory(session.ScopeSystem, pg.NewServiceAccountDirectory(deps.DB)),
		)
	} else {
		logger.Warn("no database configured, using in-memory repositories")
	}
	sessions, err := session.NewService(codec, invalid, opts...)
	if err != nil {
		return nil, err
	}

	resolver, err := permission.NewResolver(permission.DefaultRegistry(),
		permission.Env{Catalog: catalog, Roles: roleStore},
		permission.WithLogger(logger.Named("permission")),
		permission.WithMetrics(metrics),
	)
	if err != nil {
		return nil, err
	}

	return &App{
		Config:      cfg,
		Logger:      logger,
		Metrics:     metrics,
		Catalog:     catalog,
		Roles:       roleStore,
		Codec:       codec,
		Invalid:     invalid,
		Sessions:    sessions,
		Permissions: resolver,
	}, nil
}

func invalidRepository(cfg config.Config, deps Deps, now func() time.Time) (token.Repository, error) {
	switch cfg.InvalidTokenBackend {
	case config.BackendRedis:
		if deps.Redis == nil {
			return nil, errors.New("app: redis backend selected without a redis client")
		}
		return cache.NewInvalidTokenRepository(deps.Redis).WithClock(now), nil
	case config.BackendPostgres, "":
		if deps.DB == nil {
			return token.NewMemoryRepository(), nil
		}
		return pg.NewInvalidTokenRepository(deps.DB), nil
	default:
		return nil, fmt.Errorf("app: unknown invalid-token backend %q", cfg.InvalidTokenBackend)
	}
}

// Open connects to PostgreSQL and, when selected, Redis, then builds the
// engine. The schema is applied before returning. Close releases both.
func Open(ctx context.Context, cfg config.Config, registerer prometheus.Registerer) (*App, error) {
	store, err := pg.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("app: open database: %w", err)
	}
	closers := []func() error{store.Close}
	fail := func(err error) (*App, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
		return nil, err
	}
	if err := store.Ping(ctx); err != nil {
		return fail(fmt.Errorf("app: ping database: %w", err))
	}
	if err := store.EnsureSchema(ctx); err != nil {
		return fail(fmt.Errorf("app: apply schema: %w", err))
	}

	deps := Deps{DB: store.DB(), Registerer: registerer}
	if cfg.InvalidTokenBackend == config.BackendRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		closers = append(closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return fail(fmt.Errorf("app: ping redis: %w", err))
		}
		deps.Redis = client
	}

	a, err := New(cfg, deps)
	if err != nil {
		return fail(err)
	}
	a.closers = closers
	return a, nil
}

// Close releases connections opened by Open and flushes the logger.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	_ = a.Logger.Sync()
	return errors.Join(errs...)
}
