// Package app wires configuration into the sync services shared by the API,
// the worker and the one-shot sync command.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"plantshop/internal/config"
	"plantshop/internal/database"
	"plantshop/internal/events"
	"plantshop/internal/logger"
	"plantshop/internal/services/catalog"
	"plantshop/internal/services/lightspeed"
	"plantshop/internal/store"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// staleSyncAge is how long a sync log may sit in "started" before startup
// marks it failed.
const staleSyncAge = time.Hour

type App struct {
	Config     *config.Config
	DB         *database.Database
	Store      *store.Store
	Lightspeed *lightspeed.Client
	Syncer     *catalog.Syncer
	Dispatcher *catalog.Dispatcher
	// Publisher is nil unless webhook queueing is enabled.
	Publisher *events.Publisher

	redis  *redis.Client
	logger *logger.Logger
}

func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	db, err := database.New(cfg.DatabaseURL, cfg.LogLevel == "debug")
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, DB: db, logger: log}
	a.Store = store.New(db.DB, log, time.Now)

	if n, err := a.Store.FailStaleSyncLogs(ctx, staleSyncAge); err != nil {
		log.Warn("Failed to clean up stale sync logs: %v", err)
	} else if n > 0 {
		log.Warn("Marked %d interrupted sync runs as failed", n)
	}

	tokens, err := a.tokenProvider(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	ls := cfg.Lightspeed
	a.Lightspeed = lightspeed.NewClient(lightspeed.Options{
		BaseURL:   ls.APIURL,
		AccountID: ls.AccountID,
		PageSize:  ls.PageSize,
		Timeout:   ls.Timeout,
		Limiter:   rate.NewLimiter(rate.Limit(ls.RateLimit), 1),
		Retry:     retryPolicy(ls.MaxRetries),
	}, tokens, log)

	transformer := lightspeed.NewTransformer(cfg.PlaceholderImageURL, time.Now)
	a.Syncer = catalog.NewSyncer(a.Lightspeed, a.Store, transformer, cfg.SyncTimeout, log)
	a.Dispatcher = catalog.NewDispatcher(a.Lightspeed, a.Store, transformer, log)

	if brokers := cfg.Brokers(); cfg.WebhookQueue && len(brokers) > 0 {
		a.Publisher = events.NewPublisher(brokers, cfg.KafkaTopic, log)
	}

	return a, nil
}

func (a *App) tokenProvider(ctx context.Context) (*lightspeed.TokenProvider, error) {
	ls := a.Config.Lightspeed

	var tokenStore lightspeed.TokenStore = lightspeed.NewMemoryTokenStore()
	if a.Config.RedisURL != "" {
		opts, err := redis.ParseURL(a.Config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		a.redis = redis.NewClient(opts)
		tokenStore = lightspeed.NewRedisTokenStore(a.redis, ls.AccountID)
	}

	refresher := lightspeed.NewOAuthRefresher(ls.ClientID, ls.ClientSecret, ls.TokenURL, &http.Client{Timeout: ls.Timeout})
	provider := lightspeed.NewTokenProvider(tokenStore, refresher, ls.RefreshToken, time.Now).WithLogger(a.logger)
	if err := provider.Seed(ctx, ls.AccessToken); err != nil {
		return nil, fmt.Errorf("failed to seed access token: %w", err)
	}
	return provider, nil
}

func retryPolicy(maxRetries int) *lightspeed.RetryPolicy {
	p := lightspeed.DefaultRetryPolicy()
	if maxRetries >= 0 {
		p.MaxRetries = maxRetries
	}
	return &p
}

// Close releases connections. Safe to call on a partially built App.
func (a *App) Close() {
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			a.logger.Error("Failed to close event publisher: %v", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("Failed to close redis: %v", err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.logger.Error("Failed to close database: %v", err)
		}
	}
}
