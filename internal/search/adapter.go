// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pdiddy/litfinder/internal/httputil"
	"github.com/pdiddy/litfinder/internal/metrics"
	"github.com/pdiddy/litfinder/pkg/types"
)

// Adapter searches one external catalog, such as OpenAlex or CyberLeninka.
//
// Search never returns an error: failures degrade to an empty
// PartialResult whose Err records the cause. Malformed individual records
// are skipped.
type Adapter interface {
	Name() string
	Search(ctx context.Context, req Request) types.PartialResult
}

// ArticleFetcher is implemented by adapters that can look up a single
// record by its external id.
type ArticleFetcher interface {
	Fetch(ctx context.Context, externalID string) (types.Article, error)
}

// ConceptSearcher is implemented by adapters with a searchable topic
// vocabulary whose ids feed Filters.Concepts.
type ConceptSearcher interface {
	SearchConcepts(ctx context.Context, query string, limit int) ([]types.Concept, error)
}

// SetLister is implemented by adapters whose catalog is partitioned into
// sets whose specs feed Filters.Categories.
type SetLister interface {
	ListSets(ctx context.Context) ([]types.Category, error)
}

// Request is the per-adapter view of a SearchQuery.
type Request struct {
	Query   string
	Filters types.Filters
	Limit   int
	Offset  int
	// Cursor is honored only by cursor-capable adapters; others ignore it.
	Cursor string
}

// RequestFor builds the adapter request for a normalized query.
func RequestFor(q types.SearchQuery) Request {
	return Request{
		Query:   q.Query,
		Filters: q.Filters,
		Limit:   q.Limit,
		Offset:  q.Offset,
		Cursor:  q.Cursor,
	}
}

var (
	// ErrRecordParse marks an individual record that could not be
	// normalized and was skipped.
	ErrRecordParse = errors.New("record parse failed")

	// ErrArticleNotFound is returned by Fetch when the source has no such record.
	ErrArticleNotFound = errors.New("article not found")

	// ErrUnsupported is returned when no enabled source offers a lookup.
	ErrUnsupported = errors.New("no enabled source supports this lookup")
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 32 << 20

// SourceOptions carries the transport settings shared by HTTP adapters.
type SourceOptions struct {
	// Client performs requests. Nil means a client with HTTP.Timeout.
	Client *http.Client
	HTTP   types.HTTPConfig
	Retry  types.RetryConfig
	// RequestsPerSecond throttles outbound calls; zero disables throttling.
	RequestsPerSecond float64
	Logger            *zap.Logger
	Metrics           *metrics.Metrics
}

// httpSource is the transport every HTTP adapter embeds: a rate limiter,
// the shared retry policy and a circuit breaker in front of one client.
type httpSource struct {
	name      string
	accept    string
	userAgent string
	client    *http.Client
	policy    httputil.RetryPolicy
	breaker   *gobreaker.CircuitBreaker
	log       *zap.Logger
}

func newHTTPSource(name, accept string, opts SourceOptions) *httpSource {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("source", name))

	client := opts.Client
	if client == nil {
		client = &http.Client{
			Timeout:   opts.HTTP.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	policy := httputil.RetryPolicy{
		MaxAttempts:   opts.Retry.MaxAttempts,
		MaxRetryAfter: opts.Retry.MaxRetryAfter,
		OnRetry: func(attempt int, delay time.Duration, cause error) {
			log.Info("retrying request",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(cause))
			opts.Metrics.SourceRetry(name)
		},
	}
	if opts.Retry.BaseDelay > 0 {
		policy.NewBackOff = httputil.ExponentialBackOff(opts.Retry.BaseDelay)
	}
	if opts.RequestsPerSecond > 0 {
		policy.Limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	userAgent := opts.HTTP.UserAgent
	if userAgent == "" {
		userAgent = types.DefaultConfig().HTTP.UserAgent
	}

	return &httpSource{
		name:      name,
		accept:    accept,
		userAgent: userAgent,
		client:    client,
		policy:    policy,
		breaker:   httputil.NewBreaker(name),
		log:       log,
	}
}

// get fetches rawURL through the breaker and retry policy and returns the
// response body.
func (s *httpSource) get(ctx context.Context, rawURL string) ([]byte, error) {
	out, err := s.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("User-Agent", s.userAgent)
		req.Header.Set("Accept", s.accept)

		resp, err := s.policy.Do(ctx, s.client, req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, fmt.Errorf("%w: reading response: %v", httputil.ErrSourceUnavailable, err)
		}
		return body, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%s: %w: %v", s.name, httputil.ErrSourceUnavailable, err)
		}
		return nil, err
	}
	return out.([]byte), nil
}

// Registry is the static table of adapters keyed by source name. Iteration
// order is registration order, which is also merge order.
type Registry struct {
	adapters map[string]Adapter
	order    []string
}

// NewRegistry returns a registry holding adapters in the given order.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds a. Registering a name twice replaces the adapter but keeps
// its original position.
func (r *Registry) Register(a Adapter) {
	name := a.Name()
	if _, ok := r.adapters[name]; !ok {
		r.order = append(r.order, name)
	}
	r.adapters[name] = a
}

// Lookup returns the adapter registered under name.
func (r *Registry) Lookup(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

// Names returns the registered source names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Select returns the adapters named in sources, in registration order. An
// empty selection means every adapter.
func (r *Registry) Select(sources []string) []Adapter {
	want := make(map[string]bool, len(sources))
	for _, s := range sources {
		want[s] = true
	}
	var out []Adapter
	for _, name := range r.order {
		if len(want) == 0 || want[name] {
			out = append(out, r.adapters[name])
		}
	}
	return out
}
