// Package app wires the application's components from configuration.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/crypto-academy/academy/adapters"
	"github.com/ZanzyTHEbar/crypto-academy/academy/api"
	"github.com/ZanzyTHEbar/crypto-academy/academy/config"
	"github.com/ZanzyTHEbar/crypto-academy/academy/content"
	"github.com/ZanzyTHEbar/crypto-academy/academy/db"
	"github.com/ZanzyTHEbar/crypto-academy/academy/errs"
	"github.com/ZanzyTHEbar/crypto-academy/academy/market"
	"github.com/ZanzyTHEbar/crypto-academy/academy/metrics"
	"github.com/ZanzyTHEbar/crypto-academy/academy/ports"
	"github.com/ZanzyTHEbar/crypto-academy/academy/quiz"
	"github.com/ZanzyTHEbar/crypto-academy/academy/retry"
)

// Factory creates and wires components from configuration.
type Factory struct {
	cfg    *config.Config
	logger zerolog.Logger
}

// NewFactory creates a new factory.
func NewFactory(cfg *config.Config, logger zerolog.Logger) *Factory {
	return &Factory{cfg: cfg, logger: logger}
}

// App holds the wired components. Close releases the database and cache connections.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	DB      *sql.DB
	Store   ports.ProgressStore
	Cache   ports.Cache
	Limiter ports.RateLimiter
	Tracer  ports.Tracer
	Metrics *metrics.Collector
	Retry   *retry.Executor
	Market  *market.Client
	Bank    *content.Bank

	closers []func() error
}

// Build opens the database, loads the quiz bank and assembles the market client.
// Quiz files that fail validation are logged and skipped.
func (f *Factory) Build(ctx context.Context) (*App, error) {
	a := &App{Config: f.cfg, Logger: f.logger}

	conn, err := db.Connect(ctx, db.Config{
		Path:      f.cfg.Database.Path,
		URL:       f.cfg.Database.URL,
		AuthToken: f.cfg.Database.AuthToken,
	}, f.logger)
	if err != nil {
		return nil, err
	}
	a.DB = conn
	a.closers = append(a.closers, conn.Close)
	a.Store = adapters.NewLibSQLProgressStore(conn)

	a.Cache = f.createCache(ctx, a)
	a.Limiter = f.createRateLimiter()
	a.Metrics = metrics.NewCollector()
	a.Tracer = metrics.WrapTracer(f.createTracer(), a.Metrics)
	a.Retry = f.createExecutor()

	a.Market, err = market.NewClient(market.Options{
		BaseURL:      f.cfg.Market.BaseURL,
		APIKey:       f.cfg.Market.APIKey,
		APIKeyHeader: f.cfg.Market.APIKeyHeader,
		Timeout:      f.cfg.Market.Timeout,
		DefaultLimit: f.cfg.Market.DefaultLimit,
		Concurrency:  f.cfg.Market.Concurrency,
		Cache:        a.Cache,
		Limiter:      a.Limiter,
		Tracer:       a.Tracer,
		Executor:     a.Retry,
		Logger:       f.logger.With().Str("component", "market").Logger(),
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Bank = content.NewBank(f.cfg.Content.Dir,
		content.WithIgnoreFile(f.cfg.Content.IgnoreFile),
		content.WithLogger(f.logger.With().Str("component", "content").Logger()),
	)
	if err := a.Bank.Reload(); err != nil {
		var rejected *content.ReloadError
		if !errors.As(err, &rejected) {
			_ = a.Close()
			return nil, fmt.Errorf("failed to load content: %w", err)
		}
		f.logger.Warn().Err(err).Msg("Some quiz files were rejected")
	}

	policy := a.Retry.Policy()
	f.logger.Debug().
		Str("content_dir", a.Bank.Dir()).
		Int("quizzes", a.Bank.Len()).
		Str("cache", f.cfg.Cache.Backend).
		Int("retry_attempts", policy.MaxAttempts).
		Dur("retry_max_delay", policy.MaxDelay).
		Msg("Application components ready")

	return a, nil
}

// Server builds the HTTP API over the app's components.
func (a *App) Server() *api.Server {
	return api.NewServer(a.Config.Server, api.Deps{
		Market:  a.Market,
		Quizzes: a.Bank,
		Store:   a.Store,
		Tracer:  a.Tracer,
		Metrics: a.Metrics,
		Logger:  a.Logger,
	})
}

// NewSession starts a quiz session that records into the app's store.
func (a *App) NewSession(slug, userID string) (*quiz.Session, error) {
	q, err := a.Bank.Get(slug)
	if err != nil {
		return nil, err
	}
	return quiz.NewSession(q, userID, quiz.NewStoreRecorder(a.Store),
		quiz.WithTracer(a.Tracer),
		quiz.WithLogger(a.Logger),
	)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errList []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errList = append(errList, err)
		}
	}
	a.closers = nil
	return errors.Join(errList...)
}

// createCache builds the configured backend, namespaced when a namespace is set.
func (f *Factory) createCache(ctx context.Context, a *App) ports.Cache {
	var cache ports.Cache
	switch f.cfg.Cache.Backend {
	case "none":
		return adapters.NoopCache{}
	case "redis":
		rc := adapters.NewRedisCache(
			adapters.NewRedisClient(f.cfg.Cache.Redis.Addr, f.cfg.Cache.Redis.Password, f.cfg.Cache.Redis.DB),
			f.cfg.Cache.TTL,
			f.logger,
		)
		if err := rc.Ping(ctx); err != nil {
			f.logger.Warn().Err(err).Str("addr", f.cfg.Cache.Redis.Addr).Msg("Redis unreachable, responses will not be cached until it recovers")
		}
		a.closers = append(a.closers, rc.Close)
		cache = rc
	default:
		cache = adapters.NewTTLCache(f.cfg.Cache.TTL)
	}
	return adapters.NewNamespacedCache(cache, f.cfg.Cache.Namespace)
}

func (f *Factory) createRateLimiter() ports.RateLimiter {
	if !f.cfg.Market.RateLimitEnabled {
		return adapters.NoopRateLimiter{}
	}
	return adapters.NewTokenBucket(f.cfg.Market.RateLimitCapacity, f.cfg.Market.RateLimitRefill)
}

func (f *Factory) createTracer() ports.Tracer {
	if !f.cfg.Tracing.Enabled {
		return adapters.NoopTracer{}
	}
	return adapters.NewZerologTracer(f.logger)
}

// createExecutor retries only failures that may succeed on repetition.
func (f *Factory) createExecutor() *retry.Executor {
	return retry.New(retry.Policy{
		MaxAttempts:   f.cfg.Retry.MaxAttempts,
		InitialDelay:  f.cfg.Retry.InitialDelay,
		MaxDelay:      f.cfg.Retry.MaxDelay,
		BackoffFactor: f.cfg.Retry.BackoffFactor,
		ShouldRetry:   errs.IsRetryable,
	}, retry.WithLogger(f.logger.With().Str("component", "retry").Logger()))
}
