// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pdiddy/litfinder/internal/cache"
	"github.com/pdiddy/litfinder/internal/metrics"
	"github.com/pdiddy/litfinder/internal/search"
	"github.com/pdiddy/litfinder/pkg/types"
)

// app bundles the wired pipeline for one CLI invocation.
type app struct {
	engine   *search.Engine
	cache    *cache.ResultCache
	backend  cache.Backend
	registry *prometheus.Registry
}

// newApp wires adapters, cache and metrics from c.
func newApp(ctx context.Context, c types.Config, log *zap.Logger) (*app, error) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		return nil, err
	}

	registry := newRegistry(c, log, m)
	if len(registry.Names()) == 0 {
		return nil, fmt.Errorf("no sources enabled; enable openalex or cyberleninka in the config")
	}

	backend, err := cache.Open(ctx, c.Cache)
	if err != nil {
		// Cache failures never block a search, including at startup.
		log.Warn("cache unavailable, continuing without it",
			zap.String("backend", string(c.Cache.Backend)), zap.Error(err))
		backend = nil
	}
	var rc *cache.ResultCache
	if backend != nil {
		rc = cache.NewResultCache(backend, cache.Options{
			SearchTTL:  c.Cache.SearchTTL,
			ArticleTTL: c.Cache.ArticleTTL,
			OpTimeout:  c.Cache.OpTimeout,
			Logger:     log,
			Metrics:    m,
		})
	}

	engine := search.NewEngine(registry, nil, rc,
		search.WithLogger(log),
		search.WithMetrics(m),
		search.WithSourceTimeout(c.SourceTimeout))

	return &app{
		engine:   engine,
		cache:    rc,
		backend:  backend,
		registry: reg,
	}, nil
}

// newRegistry registers the enabled sources. OpenAlex registers first, so
// it leads the merge order.
func newRegistry(c types.Config, log *zap.Logger, m *metrics.Metrics) *search.Registry {
	base := search.SourceOptions{
		HTTP:    c.HTTP,
		Retry:   c.Retry,
		Logger:  log,
		Metrics: m,
	}

	r := search.NewRegistry()
	if c.OpenAlex.Enabled {
		opts := base
		opts.RequestsPerSecond = c.OpenAlex.RequestsPerSecond
		r.Register(search.NewOpenAlex(c.OpenAlex, opts))
	}
	if c.OAI.Enabled {
		opts := base
		opts.RequestsPerSecond = c.OAI.RequestsPerSecond
		r.Register(search.NewCyberLeninka(c.OAI, opts))
	}
	return r
}

// writeMetrics dumps the collected metrics in the Prometheus text format.
func (a *app) writeMetrics(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, a.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}

func (a *app) Close() error {
	if a.backend == nil {
		return nil
	}
	return a.backend.Close()
}
