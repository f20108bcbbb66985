// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func init() {
	// Use a tiny base delay so tests finish quickly.
	RetryBaseDelay = 1 * time.Millisecond
}

func newRequest(t *testing.T, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	return req
}

func TestDo_ImmediateSuccess(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	resp, err := RetryPolicy{}.Do(context.Background(), ts.Client(), newRequest(t, ts.URL))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDo_ServerErrorThenSuccess(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	resp, err := RetryPolicy{}.Do(context.Background(), ts.Client(), newRequest(t, ts.URL))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDo_ServerErrorExhaustsAttempts(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	var delays []time.Duration
	p := RetryPolicy{OnRetry: func(_ int, d time.Duration, _ error) { delays = append(delays, d) }}
	_, err := p.Do(context.Background(), ts.Client(), newRequest(t, ts.URL))

	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, delays)
}

func TestDo_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	_, err := RetryPolicy{}.Do(context.Background(), ts.Client(), newRequest(t, ts.URL))

	var ce *ClientError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, http.StatusBadRequest, ce.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDo_RateLimitHonorsRetryAfter(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	var delays []time.Duration
	p := RetryPolicy{OnRetry: func(_ int, d time.Duration, cause error) {
		assert.ErrorIs(t, cause, ErrRateLimited)
		delays = append(delays, d)
	}}
	resp, err := p.Do(context.Background(), ts.Client(), newRequest(t, ts.URL))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{0}, delays)
}

func TestDo_RateLimitExhausted(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	_, err := RetryPolicy{MaxAttempts: 2}.Do(context.Background(), ts.Client(), newRequest(t, ts.URL))
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestDo_TimeoutRetried(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := ts.Client()
	client.Timeout = 5 * time.Millisecond

	_, err := RetryPolicy{}.Do(context.Background(), client, newRequest(t, ts.URL))
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDo_ContextCancelled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	p := RetryPolicy{NewBackOff: ExponentialBackOff(500 * time.Millisecond)}
	_, err := p.Do(ctx, ts.Client(), newRequest(t, ts.URL))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDo_LimiterApplied(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	p := RetryPolicy{Limiter: rate.NewLimiter(rate.Every(20*time.Millisecond), 1)}
	start := time.Now()
	for i := 0; i < 3; i++ {
		resp, err := p.Do(context.Background(), ts.Client(), newRequest(t, ts.URL))
		require.NoError(t, err)
		resp.Body.Close()
	}
	assert.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)
}

func TestParseRetryAfter(t *testing.T) {
	def, max := 5*time.Second, 60*time.Second
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"missing", "", def},
		{"seconds", "7", 7 * time.Second},
		{"zero", "0", 0},
		{"negative", "-3", def},
		{"garbage", "soon", def},
		{"overlarge", "86400", max},
		{"huge", "99999999999999999", max},
		{"overflow", "999999999999999999999", def},
		{"past date", "Mon, 02 Jan 2006 15:04:05 GMT", def},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRetryAfter(tt.value, def, max))
		})
	}
}

func TestParseRetryAfter_FutureDateClamped(t *testing.T) {
	value := time.Now().Add(2 * time.Hour).UTC().Format(http.TimeFormat)
	assert.Equal(t, time.Minute, ParseRetryAfter(value, time.Second, time.Minute))
}

func TestNewBreaker_IgnoresClientErrors(t *testing.T) {
	cb := NewBreaker("test")
	for i := 0; i < 10; i++ {
		_, _ = cb.Execute(func() (interface{}, error) { return nil, &ClientError{Status: 404} })
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())

	for i := 0; i < 6; i++ {
		_, _ = cb.Execute(func() (interface{}, error) { return nil, ErrSourceUnavailable })
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())
}
