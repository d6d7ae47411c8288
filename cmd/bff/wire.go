package main

import (
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"spashell/bff/internal/app"
	"spashell/bff/internal/assets"
	"spashell/bff/internal/cache"
	"spashell/bff/internal/config"
	"spashell/bff/internal/objectstore"
)

type application struct {
	aggregator *assets.Aggregator
	composer   *app.Composer
	checks     map[string]app.Pinger
	closers    []func() error
}

func wireApp(cfg config.Config, logger *zap.Logger) (*application, error) {
	a := &application{checks: make(map[string]app.Pinger)}

	var objects assets.ObjectStore
	if storeCfg := cfg.ObjectStoreOptions(); storeCfg.Enabled() {
		store, err := objectstore.New(storeCfg)
		if err != nil {
			return nil, fmt.Errorf("wire object store: %w", err)
		}
		objects = store
		a.checks["object_store"] = store
	}

	// Per-fetch deadlines come from the aggregator, not the client.
	var fetcher assets.ManifestFetcher = assets.NewFetcher(&http.Client{}, objects)

	if cfg.ManifestCache {
		var store assets.ManifestStore
		if strings.TrimSpace(cfg.RedisURL) != "" {
			logger.Info("using redis for manifest cache")
			redisStore, err := cache.NewRedisStore(cfg.RedisURL)
			if err != nil {
				return nil, fmt.Errorf("redis connection failed: %w", err)
			}
			a.closers = append(a.closers, redisStore.Close)
			a.checks["cache"] = redisStore
			store = redisStore
		} else {
			logger.Info("using in-process manifest cache")
			store = cache.NewMemoryStore()
		}
		fetcher = assets.NewCachingFetcher(fetcher, store, cfg.ManifestCacheTTL, logger)
	}

	a.aggregator = assets.NewAggregator(fetcher, cfg.Sources(), assets.AggregatorOptions{
		Parallel:     cfg.ParallelFetch,
		FetchTimeout: cfg.FetchTimeout,
		Logger:       logger,
	})
	a.composer = app.NewComposer(
		a.aggregator,
		assets.NewRootConfigResolver(cfg.FrontendDir),
		assets.NewVendorImportMap(),
		app.PageSecrets{
			GATagID:              cfg.GATagID,
			StripePublishableKey: cfg.StripePublishableKey,
		},
	)
	return a, nil
}

func (a *application) Close() {
	for _, closeFn := range a.closers {
		_ = closeFn()
	}
}
