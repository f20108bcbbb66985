// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/litfinder/internal/metrics"
	"github.com/pdiddy/litfinder/pkg/types"
)

// failingBackend fails every call and counts them.
type failingBackend struct {
	calls int32
	err   error
}

func (f *failingBackend) Get(context.Context, string) ([]byte, error) {
	atomic.AddInt32(&f.calls, 1)
	return nil, f.err
}

func (f *failingBackend) Set(context.Context, string, []byte, time.Duration) error {
	atomic.AddInt32(&f.calls, 1)
	return f.err
}

func (f *failingBackend) Exists(context.Context, string) (bool, error) {
	atomic.AddInt32(&f.calls, 1)
	return false, f.err
}

func (f *failingBackend) Delete(context.Context, ...string) error {
	atomic.AddInt32(&f.calls, 1)
	return f.err
}

func (f *failingBackend) Clear(context.Context, string) (int, error) {
	atomic.AddInt32(&f.calls, 1)
	return 0, f.err
}

func (f *failingBackend) Close() error { return nil }

// slowBackend blocks every call until the context ends.
type slowBackend struct{ failingBackend }

func (s *slowBackend) Get(ctx context.Context, _ string) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *slowBackend) Set(ctx context.Context, _ string, _ []byte, _ time.Duration) error {
	<-ctx.Done()
	return ctx.Err()
}

func intPtr(v int) *int { return &v }

func sampleQuery() types.SearchQuery {
	return types.SearchQuery{
		Query: "Machine Learning",
		Limit: 20,
		Filters: types.Filters{
			YearFrom:   2020,
			Languages:  []string{"ru", "en"},
			Sources:    []string{"openalex", "cyberleninka"},
			CitedByMin: intPtr(10),
		},
	}
}

func sampleResult() types.SearchResult {
	return types.SearchResult{
		Total: 2,
		Results: []types.Article{
			{Source: "openalex", ExternalID: "W1", Title: "One", RelevanceScore: 0.9,
				Signals: map[types.Signal]float64{types.SignalKeyword: 1}},
			{Source: "cyberleninka", ExternalID: "c1", Title: "Два", RelevanceScore: 0.5},
		},
		ExecutionTimeMS: 120,
	}
}

func TestKey(t *testing.T) {
	base := sampleQuery()
	key := Key(base)
	assert.True(t, strings.HasPrefix(key, "search:"))
	assert.Len(t, key, len("search:")+16)

	tests := []struct {
		name   string
		mutate func(q *types.SearchQuery)
		same   bool
	}{
		{"case and whitespace", func(q *types.SearchQuery) { q.Query = "  machine learning " }, true},
		{"source order", func(q *types.SearchQuery) {
			q.Filters.Sources = []string{"cyberleninka", "openalex"}
		}, true},
		{"preferred language changes", func(q *types.SearchQuery) {
			q.Filters.Languages = []string{"en", "ru"}
		}, false},
		{"different query", func(q *types.SearchQuery) { q.Query = "deep learning" }, false},
		{"different limit", func(q *types.SearchQuery) { q.Limit = 10 }, false},
		{"different offset", func(q *types.SearchQuery) { q.Offset = 20 }, false},
		{"different year", func(q *types.SearchQuery) { q.Filters.YearFrom = 2021 }, false},
		{"different citations", func(q *types.SearchQuery) { q.Filters.CitedByMin = intPtr(11) }, false},
		{"open access set", func(q *types.SearchQuery) { b := false; q.Filters.OpenAccess = &b }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := sampleQuery()
			tt.mutate(&q)
			if tt.same {
				assert.Equal(t, key, Key(q))
			} else {
				assert.NotEqual(t, key, Key(q))
			}
		})
	}
}

func TestKey_DoesNotMutateFilters(t *testing.T) {
	q := sampleQuery()
	Key(q)
	assert.Equal(t, []string{"ru", "en"}, q.Filters.Languages)
}

func TestResultCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewResultCache(NewMemory(), Options{})

	_, ok := c.Load(ctx, sampleQuery())
	assert.False(t, ok)

	c.Store(ctx, sampleQuery(), sampleResult())
	got, ok := c.Load(ctx, sampleQuery())
	require.True(t, ok)

	want := sampleResult()
	want.FromCache = true
	assert.Equal(t, want, got)
}

func TestResultCache_CursorQueriesBypassBackend(t *testing.T) {
	ctx := context.Background()
	fb := &failingBackend{err: errors.New("should not be called")}
	c := NewResultCache(fb, Options{})

	q := sampleQuery()
	q.Cursor = types.CursorStart
	c.Store(ctx, q, sampleResult())
	_, ok := c.Load(ctx, q)

	assert.False(t, ok)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fb.calls))
}

func TestResultCache_FailOpen(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	fb := &failingBackend{err: errors.New("connection refused")}
	c := NewResultCache(fb, Options{Metrics: m})

	assert.NotPanics(t, func() { c.Store(ctx, sampleQuery(), sampleResult()) })
	_, ok := c.Load(ctx, sampleQuery())
	assert.False(t, ok)

	n, err := c.ClearSearches(ctx)
	assert.Error(t, err)
	assert.Zero(t, n)

	count, err := testutil.GatherAndCount(reg, metrics.MetricCacheLookupsTotal, metrics.MetricCacheWriteErrors)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestResultCache_UndecodableEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	c := NewResultCache(mem, Options{})
	require.NoError(t, mem.Set(ctx, Key(sampleQuery()), []byte("{not json"), time.Minute))

	_, ok := c.Load(ctx, sampleQuery())
	assert.False(t, ok)
}

func TestResultCache_SlowBackendBounded(t *testing.T) {
	ctx := context.Background()
	c := NewResultCache(&slowBackend{}, Options{OpTimeout: 20 * time.Millisecond})

	start := time.Now()
	_, ok := c.Load(ctx, sampleQuery())
	c.Store(ctx, sampleQuery(), sampleResult())
	assert.False(t, ok)
	assert.Less(t, time.Since(start), time.Second)
}

func TestResultCache_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mem := NewMemory().WithClock(func() time.Time { return now })
	c := NewResultCache(mem, Options{})

	c.Store(ctx, sampleQuery(), sampleResult())
	now = now.Add(29 * time.Minute)
	_, ok := c.Load(ctx, sampleQuery())
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = c.Load(ctx, sampleQuery())
	assert.False(t, ok)
}

func TestResultCache_InvalidateAndClear(t *testing.T) {
	ctx := context.Background()
	c := NewResultCache(NewMemory(), Options{})

	q1 := sampleQuery()
	q2 := sampleQuery()
	q2.Query = "quantum chemistry"
	c.Store(ctx, q1, sampleResult())
	c.Store(ctx, q2, sampleResult())
	c.StoreArticle(ctx, "openalex_W1", sampleResult().Results[0])

	c.Invalidate(ctx, q1)
	_, ok := c.Load(ctx, q1)
	assert.False(t, ok)

	n, err := c.ClearSearches(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	a, ok := c.LoadArticle(ctx, "openalex_W1")
	require.True(t, ok)
	assert.Equal(t, "One", a.Title)
}

func TestResultCache_Disabled(t *testing.T) {
	ctx := context.Background()
	for name, c := range map[string]*ResultCache{
		"nil":        nil,
		"no backend": NewResultCache(nil, Options{}),
	} {
		t.Run(name, func(t *testing.T) {
			assert.False(t, c.Enabled())
			c.Store(ctx, sampleQuery(), sampleResult())
			_, ok := c.Load(ctx, sampleQuery())
			assert.False(t, ok)
			n, err := c.ClearSearches(ctx)
			assert.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	b, err := Open(ctx, types.CacheConfig{Backend: types.CacheNone})
	require.NoError(t, err)
	assert.Nil(t, b)

	b, err = Open(ctx, types.CacheConfig{Backend: types.CacheMemory})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, b)

	b, err = Open(ctx, types.CacheConfig{Backend: types.CacheSQLite, SQLitePath: t.TempDir() + "/c.db"})
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, b)
	b.Close()

	_, err = Open(ctx, types.CacheConfig{Backend: types.CacheRedis})
	assert.Error(t, err)

	_, err = Open(ctx, types.CacheConfig{Backend: "etcd"})
	assert.Error(t, err)
}
