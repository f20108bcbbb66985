// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache fronts the search pipeline with a short-lived result cache.
// Backends are plain key-value stores with TTLs; ResultCache layers key
// derivation, serialization and fail-open error handling on top so that a
// broken or slow backend behaves like an absent cache.
package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/pdiddy/litfinder/internal/metrics"
	"github.com/pdiddy/litfinder/pkg/types"
)

// ErrMiss is returned by Backend.Get for absent or expired keys.
var ErrMiss = errors.New("cache miss")

// Backend is an external, independently synchronized key-value store.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, keys ...string) error
	// Clear removes every key with the given prefix and returns the count.
	Clear(ctx context.Context, prefix string) (int, error)
	Close() error
}

// Key namespaces.
const (
	searchPrefix  = "search:"
	articlePrefix = "article:"
)

// Defaults applied when Options leaves a field zero.
const (
	DefaultSearchTTL  = 30 * time.Minute
	DefaultArticleTTL = 24 * time.Hour
	DefaultOpTimeout  = 250 * time.Millisecond
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Options configures a ResultCache.
type Options struct {
	SearchTTL  time.Duration
	ArticleTTL time.Duration
	// OpTimeout bounds each backend call.
	OpTimeout time.Duration
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

// ResultCache is the fail-open cache used by the search engine. A nil
// *ResultCache, or one without a backend, is a valid disabled cache.
type ResultCache struct {
	backend    Backend
	searchTTL  time.Duration
	articleTTL time.Duration
	opTimeout  time.Duration
	log        *zap.Logger
	metrics    *metrics.Metrics
}

// NewResultCache wraps backend. A nil backend disables caching.
func NewResultCache(backend Backend, opts Options) *ResultCache {
	c := &ResultCache{
		backend:    backend,
		searchTTL:  opts.SearchTTL,
		articleTTL: opts.ArticleTTL,
		opTimeout:  opts.OpTimeout,
		log:        opts.Logger,
		metrics:    opts.Metrics,
	}
	if c.searchTTL <= 0 {
		c.searchTTL = DefaultSearchTTL
	}
	if c.articleTTL <= 0 {
		c.articleTTL = DefaultArticleTTL
	}
	if c.opTimeout <= 0 {
		c.opTimeout = DefaultOpTimeout
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	c.log = c.log.With(zap.String("component", "cache"))
	return c
}

// Enabled reports whether a backend is configured.
func (c *ResultCache) Enabled() bool {
	return c != nil && c.backend != nil
}

// keyMaterial is the stable serialization hashed into a search key. Field
// order is fixed. Set-like slices are sorted. Languages keeps caller order:
// the first entry is the preferred ranking language.
type keyMaterial struct {
	Limit           int      `json:"limit"`
	Offset          int      `json:"offset"`
	YearFrom        int      `json:"year_from"`
	YearTo          int      `json:"year_to"`
	Languages       []string `json:"language"`
	CitedByMin      *int     `json:"cited_by_count_min"`
	CitedByMax      *int     `json:"cited_by_count_max"`
	OpenAccess      *bool    `json:"is_oa"`
	PublicationType string   `json:"publication_type"`
	Sources         []string `json:"sources"`
	Concepts        []string `json:"concepts"`
	Categories      []string `json:"categories"`
}

// Key derives the search cache key: the lowercased, trimmed query text plus
// the filter serialization, hashed to 16 hex characters.
func Key(q types.SearchQuery) string {
	f := q.Filters
	m := keyMaterial{
		Limit:           q.Limit,
		Offset:          q.Offset,
		YearFrom:        f.YearFrom,
		YearTo:          f.YearTo,
		Languages:       f.Languages,
		CitedByMin:      f.CitedByMin,
		CitedByMax:      f.CitedByMax,
		OpenAccess:      f.OpenAccess,
		PublicationType: strings.ToLower(f.PublicationType),
		Sources:         sortedCopy(f.Sources),
		Concepts:        sortedCopy(f.Concepts),
		Categories:      sortedCopy(f.Categories),
	}
	filters, _ := json.Marshal(m)

	normalized := strings.ToLower(strings.TrimSpace(q.Query)) + ":" + string(filters)
	sum := md5.Sum([]byte(normalized))
	return searchPrefix + hex.EncodeToString(sum[:])[:16]
}

func sortedCopy(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}

// Load returns the cached result for q. Backend or decode failures are
// logged and reported as a miss. Cursor queries always miss.
func (c *ResultCache) Load(ctx context.Context, q types.SearchQuery) (types.SearchResult, bool) {
	if !c.Enabled() || q.UsesCursor() {
		return types.SearchResult{}, false
	}
	key := Key(q)

	var res types.SearchResult
	if !c.get(ctx, key, &res) {
		return types.SearchResult{}, false
	}
	res.FromCache = true
	return res, true
}

// Store caches res for q. Failures are logged and swallowed. Cursor queries
// are never stored.
func (c *ResultCache) Store(ctx context.Context, q types.SearchQuery, res types.SearchResult) {
	if !c.Enabled() || q.UsesCursor() {
		return
	}
	res.FromCache = false
	c.set(ctx, Key(q), res, c.searchTTL)
}

// Invalidate removes the cached result for q.
func (c *ResultCache) Invalidate(ctx context.Context, q types.SearchQuery) {
	if !c.Enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	if err := c.backend.Delete(ctx, Key(q)); err != nil {
		c.log.Warn("cache invalidate failed", zap.Error(err))
	}
}

// ClearSearches removes every cached search result and returns the count.
func (c *ResultCache) ClearSearches(ctx context.Context) (int, error) {
	if !c.Enabled() {
		return 0, nil
	}
	return c.backend.Clear(ctx, searchPrefix)
}

// LoadArticle returns a cached single article.
func (c *ResultCache) LoadArticle(ctx context.Context, id string) (types.Article, bool) {
	if !c.Enabled() {
		return types.Article{}, false
	}
	var a types.Article
	if !c.get(ctx, articlePrefix+id, &a) {
		return types.Article{}, false
	}
	return a, true
}

// StoreArticle caches a single article.
func (c *ResultCache) StoreArticle(ctx context.Context, id string, a types.Article) {
	if !c.Enabled() {
		return
	}
	c.set(ctx, articlePrefix+id, a, c.articleTTL)
}

func (c *ResultCache) get(ctx context.Context, key string, v interface{}) bool {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	data, err := c.backend.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrMiss) {
			c.metrics.CacheLookup(metrics.CacheMiss)
			return false
		}
		c.metrics.CacheLookup(metrics.CacheError)
		c.log.Warn("cache read failed, treating as miss", zap.String("key", key), zap.Error(err))
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		c.metrics.CacheLookup(metrics.CacheError)
		c.log.Warn("cache entry undecodable, treating as miss", zap.String("key", key), zap.Error(err))
		return false
	}
	c.metrics.CacheLookup(metrics.CacheHit)
	return true
}

func (c *ResultCache) set(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		c.log.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	if err := c.backend.Set(ctx, key, data, ttl); err != nil {
		c.metrics.CacheWriteFailed()
		c.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Open builds the backend selected by cfg. CacheNone yields a nil backend,
// which disables caching.
func Open(ctx context.Context, cfg types.CacheConfig) (Backend, error) {
	switch cfg.Backend {
	case types.CacheNone, "":
		return nil, nil
	case types.CacheMemory:
		return NewMemory(), nil
	case types.CacheRedis:
		if cfg.RedisURL == "" {
			return nil, errors.New("redis cache selected but no redis url configured")
		}
		r, err := NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return r, nil
	case types.CacheSQLite:
		s, err := NewSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
