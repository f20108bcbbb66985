// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.SourceCall("openalex", OutcomeSuccess, 0.2)
	m.SourceRetry("openalex")
	m.CacheLookup(CacheHit)
	m.CacheWriteFailed()
	m.Search(ModeOffset, 0.3)

	families, err := reg.Gather()
	require.NoError(t, err)

	found := map[string]bool{}
	for _, f := range families {
		found[f.GetName()] = true
	}
	for _, name := range []string{
		MetricSourceRequestsTotal,
		MetricSourceDuration,
		MetricSourceRetriesTotal,
		MetricCacheLookupsTotal,
		MetricCacheWriteErrors,
		MetricSearchesTotal,
		MetricSearchDuration,
	} {
		assert.True(t, found[name], name)
	}
}

func TestNew_DuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}

func TestCounters(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)

	m.SourceCall("openalex", OutcomeFailure, 1)
	m.SourceCall("openalex", OutcomeFailure, 1)
	m.SourceCall("cyberleninka", OutcomeSuccess, 1)
	m.CacheLookup(CacheMiss)
	m.CacheLookup(CacheMiss)
	m.CacheLookup(CacheError)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.sourceRequests.WithLabelValues("openalex", OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sourceRequests.WithLabelValues("cyberleninka", OutcomeSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues(CacheMiss)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues(CacheError)))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SourceCall("openalex", OutcomeSuccess, 1)
		m.SourceRetry("openalex")
		m.CacheLookup(CacheHit)
		m.CacheWriteFailed()
		m.Search(ModeCursor, 1)
	})
}
