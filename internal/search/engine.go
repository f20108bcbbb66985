// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/litfinder/internal/cache"
	"github.com/pdiddy/litfinder/internal/metrics"
	"github.com/pdiddy/litfinder/internal/ranking"
	"github.com/pdiddy/litfinder/pkg/types"
)

const tracerName = "github.com/pdiddy/litfinder/internal/search"

// maxArticleFetches bounds concurrent lookups in Articles.
const maxArticleFetches = 8

// ErrAdapterPanic marks an adapter call that panicked and was recovered.
var ErrAdapterPanic = errors.New("source adapter panicked")

// Engine is the search orchestrator: cache check, concurrent fan-out to
// the registered adapters, merge, rank, cache store.
type Engine struct {
	registry *Registry
	ranker   *ranking.Ranker
	cache    *cache.ResultCache
	log      *zap.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	now      func() time.Time

	sourceTimeout time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithTracerProvider sets the provider spans are created from.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracer = tp.Tracer(tracerName) }
}

// WithSourceTimeout bounds each adapter call, retries included. Zero
// disables the bound.
func WithSourceTimeout(d time.Duration) Option {
	return func(e *Engine) { e.sourceTimeout = d }
}

// WithClock replaces the clock used for execution timing.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine wires the orchestrator. A nil ranker uses the default weights;
// a nil cache disables caching.
func NewEngine(registry *Registry, ranker *ranking.Ranker, rc *cache.ResultCache, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		ranker:   ranker,
		cache:    rc,
		log:      zap.NewNop(),
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	if e.ranker == nil {
		e.ranker = ranking.Default()
	}
	e.log = e.log.With(zap.String("component", "search"))
	return e
}

// Search serves one query. Only validation failures (wrapping
// types.ErrInvalidQuery) are returned; source and cache failures degrade
// the result instead.
func (e *Engine) Search(ctx context.Context, q types.SearchQuery) (types.SearchResult, error) {
	start := e.now()
	q = q.Normalize()
	if err := q.Validate(e.registry.Names()); err != nil {
		return types.SearchResult{}, err
	}

	log := e.log.With(zap.String("request_id", uuid.NewString()))
	ctx, span := e.tracer.Start(ctx, "search.Search", trace.WithAttributes(
		attribute.String("search.query", q.Query),
		attribute.Int("search.limit", q.Limit),
		attribute.Int("search.offset", q.Offset),
		attribute.Bool("search.cursor", q.UsesCursor()),
	))
	defer span.End()

	mode := metrics.ModeOffset
	if q.UsesCursor() {
		mode = metrics.ModeCursor
	} else if res, ok := e.cache.Load(ctx, q); ok {
		res.ExecutionTimeMS = e.since(start).Milliseconds()
		span.SetAttributes(attribute.Bool("search.cache_hit", true))
		e.metrics.Search(metrics.ModeCached, e.since(start).Seconds())
		log.Debug("served from cache", zap.String("query", q.Query))
		return res, nil
	}

	partials := e.fanOut(ctx, log, RequestFor(q))

	var (
		merged []types.Article
		total  int
	)
	res := types.SearchResult{}
	for _, p := range partials {
		merged = append(merged, p.Items...)
		total += p.Total
		if res.NextCursor == "" && p.NextCursor != "" && q.UsesCursor() {
			res.NextCursor = p.NextCursor
		}
	}

	ranked := e.ranker.Rank(merged, q.Query, ranking.Options{
		PreferredLanguage: q.Filters.PreferredLanguage(),
	})
	if len(ranked) > q.Limit {
		ranked = ranked[:q.Limit]
	}
	res.Total = total
	res.Results = ranked
	res.ExecutionTimeMS = e.since(start).Milliseconds()

	if !q.UsesCursor() && len(ranked) > 0 {
		e.cache.Store(ctx, q, res)
	}

	span.SetAttributes(
		attribute.Int("search.total", res.Total),
		attribute.Int("search.returned", len(res.Results)),
	)
	e.metrics.Search(mode, e.since(start).Seconds())
	log.Info("search complete",
		zap.String("query", q.Query),
		zap.Int("sources", len(partials)),
		zap.Int("merged", len(merged)),
		zap.Int("returned", len(res.Results)),
		zap.Int("total", res.Total),
		zap.Int64("execution_time_ms", res.ExecutionTimeMS))
	return res, nil
}

// fanOut calls every selected adapter concurrently and returns their
// results in registry order. No adapter failure cancels its siblings.
func (e *Engine) fanOut(ctx context.Context, log *zap.Logger, req Request) []types.PartialResult {
	adapters := e.registry.Select(req.Filters.Sources)
	partials := make([]types.PartialResult, len(adapters))

	var g errgroup.Group
	for i, a := range adapters {
		g.Go(func() error {
			partials[i] = e.callAdapter(ctx, log, a, req)
			return nil
		})
	}
	_ = g.Wait()
	return partials
}

// callAdapter runs one adapter with panic isolation, tracing and metrics.
func (e *Engine) callAdapter(ctx context.Context, log *zap.Logger, a Adapter, req Request) (res types.PartialResult) {
	name := a.Name()
	ctx, span := e.tracer.Start(ctx, "search.source", trace.WithAttributes(
		attribute.String("source.name", name),
	))
	start := time.Now()

	defer func() {
		outcome := metrics.OutcomeSuccess
		if r := recover(); r != nil {
			outcome = metrics.OutcomePanic
			res = types.PartialResult{Source: name, Err: fmt.Errorf("%w: %v", ErrAdapterPanic, r)}
			log.Error("source panicked",
				zap.String("source", name),
				zap.Any("panic", r),
				zap.Stack("stack"))
		} else if res.Err != nil {
			outcome = metrics.OutcomeFailure
			log.Warn("source degraded",
				zap.String("source", name),
				zap.Int("items", len(res.Items)),
				zap.Error(res.Err))
		}

		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
		}
		span.SetAttributes(
			attribute.Int("source.items", len(res.Items)),
			attribute.Int("source.total", res.Total),
		)
		span.End()
		e.metrics.SourceCall(name, outcome, time.Since(start).Seconds())
	}()

	if e.sourceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.sourceTimeout)
		defer cancel()
	}

	res = a.Search(ctx, req)
	res.Source = name
	return res
}

// Article returns one record by id. Accepted forms are "<source>_<id>" and
// bare OpenAlex work ids ("W2741809807"). The article cache is consulted
// first.
func (e *Engine) Article(ctx context.Context, id string) (types.Article, error) {
	source, externalID, err := e.splitArticleID(id)
	if err != nil {
		return types.Article{}, err
	}
	key := source + "_" + externalID

	ctx, span := e.tracer.Start(ctx, "search.Article", trace.WithAttributes(
		attribute.String("article.id", key),
	))
	defer span.End()

	if a, ok := e.cache.LoadArticle(ctx, key); ok {
		span.SetAttributes(attribute.Bool("article.cache_hit", true))
		return a, nil
	}

	adapter, _ := e.registry.Lookup(source)
	fetcher, ok := adapter.(ArticleFetcher)
	if !ok {
		return types.Article{}, fmt.Errorf("source %s does not support article lookup: %w", source, ErrArticleNotFound)
	}

	a, err := fetcher.Fetch(ctx, externalID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return types.Article{}, err
	}
	e.cache.StoreArticle(ctx, key, a)
	return a, nil
}

// Articles looks up many records concurrently, each through Article and
// so through the article cache. The map is keyed by the ids as given and
// holds only the records found; lookups that fail are logged and left
// out. Ids naming the same record are fetched once. Every id is checked
// before any lookup starts.
func (e *Engine) Articles(ctx context.Context, ids []string) (map[string]types.Article, error) {
	aliases := make(map[string][]string, len(ids))
	var keys []string
	for _, id := range ids {
		source, externalID, err := e.splitArticleID(id)
		if err != nil {
			return nil, err
		}
		key := source + "_" + externalID
		if _, ok := aliases[key]; !ok {
			keys = append(keys, key)
		}
		aliases[key] = append(aliases[key], id)
	}

	var (
		mu    sync.Mutex
		found = make(map[string]types.Article, len(ids))
	)
	var g errgroup.Group
	g.SetLimit(maxArticleFetches)
	for _, key := range keys {
		g.Go(func() error {
			a, err := e.Article(ctx, key)
			if err != nil {
				e.log.Warn("article lookup failed", zap.String("id", key), zap.Error(err))
				return nil
			}
			mu.Lock()
			for _, id := range aliases[key] {
				found[id] = a
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return found, nil
}

// Concepts searches the topic vocabulary of the first enabled source that
// has one.
func (e *Engine) Concepts(ctx context.Context, query string, limit int) ([]types.Concept, error) {
	for _, name := range e.registry.Names() {
		a, _ := e.registry.Lookup(name)
		if cs, ok := a.(ConceptSearcher); ok {
			return cs.SearchConcepts(ctx, query, limit)
		}
	}
	return nil, fmt.Errorf("concept search: %w", ErrUnsupported)
}

// Sets lists the harvestable sets of every enabled source that has them,
// keyed by source name.
func (e *Engine) Sets(ctx context.Context) (map[string][]types.Category, error) {
	out := make(map[string][]types.Category)
	for _, name := range e.registry.Names() {
		a, _ := e.registry.Lookup(name)
		sl, ok := a.(SetLister)
		if !ok {
			continue
		}
		sets, err := sl.ListSets(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out[name] = sets
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("set listing: %w", ErrUnsupported)
	}
	return out, nil
}

func (e *Engine) splitArticleID(id string) (source, externalID string, err error) {
	id = strings.TrimSpace(id)
	for _, name := range e.registry.Names() {
		if rest, ok := strings.CutPrefix(id, name+"_"); ok && rest != "" {
			return name, rest, nil
		}
	}
	if _, ok := e.registry.Lookup(OpenAlexSource); ok && strings.HasPrefix(id, "W") {
		return OpenAlexSource, id, nil
	}
	return "", "", fmt.Errorf("%w: unrecognized article id %q", types.ErrInvalidQuery, id)
}

func (e *Engine) since(start time.Time) time.Duration {
	return e.now().Sub(start)
}
