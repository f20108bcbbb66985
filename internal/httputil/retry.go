// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the HTTP retry policy shared by source adapters.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// RetryBaseDelay is the first backoff delay after a timeout or 5xx response.
// Tests override this to avoid real sleeps.
var RetryBaseDelay = 1 * time.Second

// Retry-After bounds. Missing, unparsable or negative hints use
// DefaultRetryAfter; larger hints are clamped to MaxRetryAfter.
var (
	DefaultRetryAfter = 5 * time.Second
	MaxRetryAfter     = 60 * time.Second
)

const defaultMaxAttempts = 3

var (
	// ErrSourceUnavailable reports timeouts, transport failures or 5xx
	// responses that persisted through every attempt.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrRateLimited reports a 429 response on the final attempt.
	ErrRateLimited = errors.New("rate limited")
)

// ClientError is a 4xx response other than 429. It is never retried.
type ClientError struct {
	Status int
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("client error: HTTP %d", e.Status)
}

// RetryPolicy bounds how a source adapter retries one logical request.
type RetryPolicy struct {
	// MaxAttempts caps attempts including the first. Zero means 3.
	MaxAttempts int

	// NewBackOff builds the delay schedule for timeouts and 5xx responses.
	// Nil means exponential from RetryBaseDelay, doubling, without jitter.
	NewBackOff func() backoff.BackOff

	// DefaultRetryAfter and MaxRetryAfter bound 429 waits. Zero values fall
	// back to the package defaults.
	DefaultRetryAfter time.Duration
	MaxRetryAfter     time.Duration

	// Limiter throttles every attempt when set.
	Limiter *rate.Limiter

	// OnRetry is called before each wait with the attempt that failed.
	OnRetry func(attempt int, delay time.Duration, cause error)
}

// ExponentialBackOff returns a schedule of base, 2*base, 4*base, ... with
// no randomization and no elapsed-time cutoff.
func ExponentialBackOff(base time.Duration) func() backoff.BackOff {
	return func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = base
		b.Multiplier = 2
		b.RandomizationFactor = 0
		b.MaxInterval = 64 * base
		b.MaxElapsedTime = 0
		b.Reset()
		return b
	}
}

func (p RetryPolicy) maxAttempts() int {
	if p.MaxAttempts <= 0 {
		return defaultMaxAttempts
	}
	return p.MaxAttempts
}

func (p RetryPolicy) backOff() backoff.BackOff {
	if p.NewBackOff != nil {
		return p.NewBackOff()
	}
	return ExponentialBackOff(RetryBaseDelay)()
}

// Do executes req and returns the first 2xx/3xx response. Client errors
// return a *ClientError immediately. 429 responses wait for the
// provider's Retry-After hint; timeouts, transport errors and 5xx responses
// wait on the backoff schedule. After MaxAttempts the last failure is
// returned wrapped in ErrSourceUnavailable or ErrRateLimited. If ctx is
// cancelled the function returns ctx.Err().
func (p RetryPolicy) Do(ctx context.Context, client *http.Client, req *http.Request) (*http.Response, error) {
	bo := p.backOff()
	maxAttempts := p.maxAttempts()

	for attempt := 1; ; attempt++ {
		if p.Limiter != nil {
			if err := p.Limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		var (
			delay time.Duration
			cause error
		)

		resp, err := client.Do(req.Clone(ctx))
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			cause = fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
			delay = bo.NextBackOff()
		case resp.StatusCode == http.StatusTooManyRequests:
			drain(resp)
			cause = fmt.Errorf("%w: HTTP 429", ErrRateLimited)
			delay = ParseRetryAfter(resp.Header.Get("Retry-After"), p.defaultRetryAfter(), p.maxRetryAfter())
		case resp.StatusCode >= 500:
			drain(resp)
			cause = fmt.Errorf("%w: HTTP %d", ErrSourceUnavailable, resp.StatusCode)
			delay = bo.NextBackOff()
		case resp.StatusCode >= 400:
			drain(resp)
			return nil, &ClientError{Status: resp.StatusCode}
		default:
			return resp, nil
		}

		if attempt >= maxAttempts || delay == backoff.Stop {
			return nil, cause
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, cause)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (p RetryPolicy) defaultRetryAfter() time.Duration {
	if p.DefaultRetryAfter > 0 {
		return p.DefaultRetryAfter
	}
	return DefaultRetryAfter
}

func (p RetryPolicy) maxRetryAfter() time.Duration {
	if p.MaxRetryAfter > 0 {
		return p.MaxRetryAfter
	}
	return MaxRetryAfter
}

// ParseRetryAfter interprets a Retry-After header given in seconds or as an
// HTTP date. Empty, invalid or negative values yield def; values above max
// are clamped to max.
func ParseRetryAfter(value string, def, max time.Duration) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return def
	}

	var d time.Duration
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		if secs < 0 {
			return def
		}
		if secs > int64(max/time.Second) {
			return max
		}
		d = time.Duration(secs) * time.Second
	} else if t, err := http.ParseTime(value); err == nil {
		d = time.Until(t)
		if d < 0 {
			return def
		}
	} else {
		return def
	}

	if d > max {
		return max
	}
	return d
}

// drain discards and closes the body so the connection can be reused.
func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
