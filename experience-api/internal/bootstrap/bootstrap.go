package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Checker-Finance/experiences/experience-api/pkg/config"
	"github.com/Checker-Finance/experiences/internal/aggregator"
	"github.com/Checker-Finance/experiences/internal/cache"
	"github.com/Checker-Finance/experiences/internal/catalog"
	"github.com/Checker-Finance/experiences/internal/events"
	"github.com/Checker-Finance/experiences/internal/providers/tours"
	"github.com/Checker-Finance/experiences/internal/rate"
	"github.com/Checker-Finance/experiences/internal/secrets"
	"github.com/Checker-Finance/experiences/internal/source"
	"github.com/Checker-Finance/experiences/pkg/model"
	pkgsecrets "github.com/Checker-Finance/experiences/pkg/secrets"
	"github.com/Checker-Finance/experiences/pkg/utils"
)

// HealthCheck is one dependency probed by the health endpoint.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// App holds the wired service graph.
type App struct {
	Aggregator *aggregator.Aggregator
	Registry   *source.Registry
	Bus        *events.Bus
	Checks     []HealthCheck

	logger  *zap.Logger
	stop    chan struct{}
	closers []func() error
}

// Options override infrastructure for tests and tools.
type Options struct {
	// Store replaces the configured catalog backend.
	Store catalog.Store
	// SecretsProvider replaces the configured secrets backend.
	SecretsProvider pkgsecrets.Provider
}

// Build wires every component from cfg. On error the partially built graph
// is closed.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*App, error) {
	app := &App{
		Bus:    events.NewBus(),
		logger: logger,
		stop:   make(chan struct{}),
	}
	if err := app.build(ctx, cfg, opts); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) build(ctx context.Context, cfg *config.Config, opts Options) error {
	caches, err := a.buildCaches(ctx, cfg)
	if err != nil {
		return err
	}

	store := opts.Store
	if store == nil {
		if store, err = a.buildStore(ctx, cfg); err != nil {
			return err
		}
	}
	local := catalog.NewAdapter(store, a.logger.Named("catalog"), cfg.LocalCurrency)
	a.Checks = append(a.Checks, HealthCheck{Name: "catalog", Check: local.Ping})

	creds, err := a.buildCredentials(ctx, cfg, opts.SecretsProvider)
	if err != nil {
		return err
	}

	providers, err := a.buildProviders(ctx, cfg, caches, creds)
	if err != nil {
		return err
	}

	if a.Registry, err = source.NewRegistry(local, providers...); err != nil {
		return err
	}

	if err := a.buildEvents(cfg); err != nil {
		return err
	}

	a.Aggregator = aggregator.New(a.Registry,
		newCache[[]model.Experience](caches, "aggregator.list_all"),
		aggregator.Config{
			ListCacheTTL:           cfg.ListCacheTTL,
			DefaultProviderTimeout: cfg.DefaultProviderTimeout,
			ListWindowDays:         cfg.ListWindowDays,
		},
		a.logger, a.Bus)

	a.logger.Info("bootstrap.ready",
		zap.Strings("sources", a.Registry.Names()),
		zap.String("catalog", cfg.CatalogBackend),
		zap.String("cache", cfg.CacheBackend),
		zap.String("events", cfg.EventsBackend))
	return nil
}

// Close stops background work and releases connections in reverse order.
func (a *App) Close() {
	select {
	case <-a.stop:
	default:
		close(a.stop)
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("bootstrap.close_failed", zap.Error(err))
		}
	}
	a.closers = nil
}

func (a *App) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// ─── Catalog ──────────────────────────────────────────────────────────────────

func (a *App) buildStore(ctx context.Context, cfg *config.Config) (catalog.Store, error) {
	switch cfg.CatalogBackend {
	case config.BackendPostgres:
		pool, err := catalog.NewPGPool(ctx, cfg.DatabaseURL, catalog.PGPoolConfig{
			MaxConns:          int32(cfg.PGMaxConns),
			MinConns:          int32(cfg.PGMinConns),
			MaxConnLifetime:   cfg.PGMaxConnLifetime,
			MaxConnIdleTime:   cfg.PGMaxConnIdleTime,
			HealthCheckPeriod: cfg.PGHealthCheckPeriod,
		})
		if err != nil {
			return nil, fmt.Errorf("catalog store (%s): %w", utils.MaskDSN(cfg.DatabaseURL), err)
		}
		st := catalog.NewPGStore(pool, a.logger.Named("catalog.pg"))
		a.onClose(func() error { st.Close(); return nil })
		a.logger.Info("bootstrap.catalog_postgres", zap.String("dsn", utils.MaskDSN(cfg.DatabaseURL)))
		return st, nil
	default:
		st := catalog.NewMemoryStore()
		if cfg.CatalogSeed {
			catalog.SeedDemo(st, model.DateOf(time.Now()), 30)
		}
		a.logger.Info("bootstrap.catalog_memory", zap.Bool("seeded", cfg.CatalogSeed))
		return st, nil
	}
}

// ─── Caches ───────────────────────────────────────────────────────────────────

// cacheFactory builds named caches on the configured backend.
type cacheFactory struct {
	redis   *redis.Client
	logger  *zap.Logger
	cleanup time.Duration
	stop    <-chan struct{}
}

func (a *App) buildCaches(ctx context.Context, cfg *config.Config) (*cacheFactory, error) {
	f := &cacheFactory{logger: a.logger.Named("cache"), cleanup: cfg.CleanupFreq, stop: a.stop}
	if cfg.CacheBackend != config.BackendRedis {
		return f, nil
	}
	rdb, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("cache backend: %w", err)
	}
	f.redis = rdb
	a.onClose(rdb.Close)
	a.Checks = append(a.Checks, HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}})
	return f, nil
}

func newCache[V any](f *cacheFactory, name string) cache.Cache[V] {
	if f.redis != nil {
		return cache.NewRedis[V](f.redis, name, f.logger)
	}
	m := cache.NewMemory[V](name)
	if f.cleanup > 0 {
		go m.StartCleaner(f.cleanup, f.stop)
	}
	return m
}

// ─── Secrets ──────────────────────────────────────────────────────────────────

type credentialResolver interface {
	SecretName(name string) string
	Resolve(ctx context.Context, name, secretName string, parse func(map[string]string) (secrets.ProviderCredentials, error)) (secrets.ProviderCredentials, error)
}

func (a *App) buildCredentials(ctx context.Context, cfg *config.Config, sp pkgsecrets.Provider) (credentialResolver, error) {
	if sp == nil {
		if cfg.SecretsBackend != config.BackendAWS {
			return nil, nil
		}
		var err error
		if sp, err = pkgsecrets.NewAWSProvider(ctx, cfg.AWSRegion); err != nil {
			return nil, fmt.Errorf("secrets backend: %w", err)
		}
	}
	// credentials stay in process memory even when other caches use redis
	r := secrets.NewResolver[secrets.ProviderCredentials](a.logger.Named("secrets"), cfg.Env, sp,
		cache.NewMemory[secrets.ProviderCredentials]("secrets.provider_config"), cfg.SecretsTTL)

	if names, err := r.DiscoverProviders(ctx); err != nil {
		a.logger.Warn("bootstrap.secrets_discovery_failed", zap.Error(err))
	} else {
		configured := make(map[string]bool, len(cfg.Providers))
		for _, p := range cfg.Providers {
			configured[p.Name] = true
		}
		for _, n := range names {
			if !configured[n] {
				a.logger.Info("bootstrap.provider_secret_unconfigured", zap.String("provider", n))
			}
		}
	}
	return r, nil
}

// ─── Providers ────────────────────────────────────────────────────────────────

func (a *App) buildProviders(ctx context.Context, cfg *config.Config, caches *cacheFactory, creds credentialResolver) ([]source.Adapter, error) {
	rateMgr := rate.NewManager(rate.Config{})
	out := make([]source.Adapter, 0, len(cfg.Providers))

	for _, pc := range cfg.Providers {
		apiKey, baseURL := pc.APIKey, pc.BaseURL
		if creds != nil {
			c, err := creds.Resolve(ctx, pc.Name, pc.SecretName, secrets.ParseProviderCredentials)
			switch {
			case err == nil:
				apiKey = c.APIKey
				if c.BaseURL != "" {
					baseURL = c.BaseURL
				}
			case errors.Is(err, pkgsecrets.ErrSecretNotFound):
				a.logger.Info("bootstrap.provider_secret_missing",
					zap.String("provider", pc.Name),
					zap.String("secret", creds.SecretName(pc.Name)))
			default:
				a.logger.Warn("bootstrap.provider_secret_unresolved",
					zap.String("provider", pc.Name),
					zap.Error(err))
			}
		}

		rateMgr.Configure(pc.Name, rate.Config{RequestsPerSecond: pc.RateRPS, Burst: pc.RateBurst})
		p, err := tours.New(tours.Config{
			Name:         pc.Name,
			DisplayName:  pc.DisplayName,
			BaseURL:      baseURL,
			APIKey:       apiKey,
			Timeout:      pc.Timeout,
			CacheTTL:     pc.CacheTTL,
			Enabled:      pc.Enabled,
			MockFallback: pc.MockFallback,
			HealthProbe:  pc.HealthProbe,
			HealthTTL:    pc.HealthTTL,
			RetryMax:     pc.RetryMax,
		}, a.logger.Named("providers"), rateMgr, tours.Caches{
			Listings:     newCache[[]model.Experience](caches, pc.Name+".listings"),
			Details:      newCache[model.ExperienceDetails](caches, pc.Name+".details"),
			Availability: newCache[model.Availability](caches, pc.Name+".availability"),
			NativeIDs:    newCache[string](caches, pc.Name+".native_ids"),
		})
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", pc.Name, err)
		}

		a.logger.Info("bootstrap.provider_registered",
			zap.String("provider", pc.Name),
			zap.String("base_url", utils.MaskURL(baseURL)),
			zap.String("api_key", utils.MaskSecret(apiKey)),
			zap.Bool("enabled", pc.Enabled),
			zap.Duration("timeout", p.Timeout()))
		out = append(out, p)
	}
	return out, nil
}

// ─── Events ───────────────────────────────────────────────────────────────────

func (a *App) buildEvents(cfg *config.Config) error {
	var sink events.Sink
	switch cfg.EventsBackend {
	case config.BackendNATS:
		nc, err := nats.Connect(cfg.NATSURL, nats.Name(cfg.ServiceName))
		if err != nil {
			return fmt.Errorf("events backend: nats connect: %w", err)
		}
		s, err := events.NewNATSSink(nc, cfg.NATSJetStream)
		if err != nil {
			nc.Close()
			return fmt.Errorf("events backend: %w", err)
		}
		a.Checks = append(a.Checks, HealthCheck{Name: "nats", Check: func(context.Context) error {
			if !nc.IsConnected() {
				return errors.New("disconnected")
			}
			return nc.FlushTimeout(time.Second)
		}})
		sink = s
	case config.BackendRabbitMQ:
		s, err := events.NewRabbitSink(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			return fmt.Errorf("events backend: %w", err)
		}
		sink = s
	default:
		return nil
	}

	events.Forward(a.Bus, sink, cfg.EventsSubjectPrefix, cfg.ServiceName, a.logger.Named("events"))
	a.onClose(func() error {
		a.Bus.Wait()
		return sink.Close()
	})
	a.logger.Info("bootstrap.events_sink", zap.String("backend", sink.Backend()))
	return nil
}
