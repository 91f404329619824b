// Package app assembles the pricing service from configuration: storage
// clients, the guarded catalog lookup, the engine and the HTTP router.
package app

import (
	"context"
	"errors"
	"fmt"

	validator "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"

	"github.com/noah-isme/backend-laundry/internal/catalog"
	"github.com/noah-isme/backend-laundry/internal/config"
	"github.com/noah-isme/backend-laundry/internal/draft"
	"github.com/noah-isme/backend-laundry/internal/obs"
	"github.com/noah-isme/backend-laundry/internal/pricing"
	"github.com/noah-isme/backend-laundry/internal/ratelimit"
	"github.com/noah-isme/backend-laundry/internal/resilience"
)

// Dependencies enumerates the collaborators shared by the HTTP handlers.
// DB and Redis are nil when not configured.
type Dependencies struct {
	Config    *config.Config
	Logger    zerolog.Logger
	DB        *pgxpool.Pool
	Redis     redis.UniversalClient
	Registry  *prometheus.Registry
	Breaker   *resilience.Breaker
	Lookup    catalog.Lookup
	Engine    *pricing.Engine
	Drafts    draft.Store
	Limiter   *limiter.Limiter
	Validator *validator.Validate

	closers []func()
}

// Build connects to the configured backends and wires the engine. Close must
// be called to release connections, including when Build fails halfway.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Dependencies, error) {
	d := &Dependencies{
		Config:    cfg,
		Logger:    logger,
		Registry:  prometheus.NewRegistry(),
		Validator: validator.New(),
	}
	d.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	obs.MustRegisterDomainMetrics("laundry", d.Registry)
	if err := resilience.RegisterMetrics(d.Registry); err != nil {
		return d, fmt.Errorf("register resilience metrics: %w", err)
	}

	if cfg.DatabaseURL != "" {
		if cfg.MigrateOnStart {
			if err := catalog.Migrate(cfg.DatabaseURL); err != nil {
				return d, fmt.Errorf("migrate: %w", err)
			}
			logger.Info().Msg("catalog migrations applied")
		}
		pool, err := OpenPostgres(ctx, cfg.DatabaseURL, cfg.Obs.ServiceName)
		if err != nil {
			return d, err
		}
		d.DB = pool
		d.closers = append(d.closers, pool.Close)
	}

	if cfg.RedisURL != "" {
		client, err := OpenRedis(ctx, cfg.RedisURL, cfg.Obs.MetricsEnabled)
		if err != nil {
			return d, err
		}
		d.Redis = client
		d.closers = append(d.closers, func() {
			if err := client.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		})
		d.Drafts = draft.NewRedisStore(client, cfg.DraftTTL)
	}

	lookup, breaker, err := BuildLookup(cfg, d.DB, d.Redis, logger)
	if err != nil {
		return d, err
	}
	d.Lookup = lookup
	d.Breaker = breaker

	d.Engine, err = pricing.NewEngine(pricing.Config{
		Lookup:               lookup,
		Workers:              cfg.Pricing.BatchWorkers,
		DefaultExecutionDays: cfg.Pricing.DefaultExecutionDays,
		Logger:               logger.With().Str("component", "pricing").Logger(),
	})
	if err != nil {
		return d, err
	}

	if cfg.RateLimit.Enabled {
		store := ratelimit.NewMemoryStore()
		if d.Redis != nil {
			if store, err = ratelimit.NewRedisStore(d.Redis); err != nil {
				return d, fmt.Errorf("rate limit store: %w", err)
			}
		}
		if d.Limiter, err = ratelimit.New(store, cfg.RateLimit.Rate); err != nil {
			return d, err
		}
	}
	return d, nil
}

// Close releases connections in reverse order of acquisition.
func (d *Dependencies) Close() {
	if d == nil {
		return
	}
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

// OpenPostgres connects a pool with query tracing enabled.
func OpenPostgres(ctx context.Context, url, appName string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = appName

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// OpenRedis connects a client with tracing and, optionally, metrics
// instrumentation.
func OpenRedis(ctx context.Context, url string, metrics bool) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("instrument redis tracing: %w", err)
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("instrument redis metrics: %w", err)
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// BuildLookup selects the catalog source and layers retries, the circuit
// breaker and the Redis cache on top. Cache hits never touch the breaker.
func BuildLookup(cfg *config.Config, db *pgxpool.Pool, client redis.UniversalClient, logger zerolog.Logger) (catalog.Lookup, *resilience.Breaker, error) {
	var source catalog.Lookup
	switch cfg.Catalog.Source {
	case config.CatalogSourcePostgres:
		if db == nil {
			return nil, nil, errors.New("catalog: postgres source requires DATABASE_URL")
		}
		source = catalog.NewPostgresStore(db)
	case config.CatalogSourceFile:
		snap, err := catalog.LoadSnapshotFile(cfg.Catalog.File)
		if err != nil {
			return nil, nil, fmt.Errorf("load catalog file: %w", err)
		}
		store, err := snap.Store()
		if err != nil {
			return nil, nil, fmt.Errorf("build catalog: %w", err)
		}
		source = store
	default:
		return nil, nil, fmt.Errorf("unknown catalog source %q", cfg.Catalog.Source)
	}

	breaker := resilience.NewBreaker(cfg.Catalog.BreakerMinRequests, cfg.Catalog.BreakerFailureRatio, cfg.Catalog.BreakerOpenFor).
		WithTarget("catalog").
		WithLogger(logger)
	lookup := catalog.Lookup(catalog.NewGuardedLookup(source, resilience.Guard{
		Breaker:     breaker,
		MaxAttempts: cfg.Catalog.RetryAttempts,
		BaseBackoff: cfg.Catalog.RetryBase,
		Jitter:      0.2,
		Target:      "catalog",
	}))
	if client != nil && cfg.Catalog.CacheTTL > 0 {
		lookup = catalog.NewCachedLookup(lookup, client, cfg.Catalog.CacheTTL, logger)
	}
	return lookup, breaker, nil
}
