// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerTimeout is how long an open breaker rejects calls before probing.
var BreakerTimeout = 30 * time.Second

// breakerTripAfter is the number of consecutive failures that opens a breaker.
const breakerTripAfter = 5

// NewBreaker returns a circuit breaker for one source. It opens after more
// than five consecutive source failures. Client errors and cancellations are
// the caller's fault and do not count.
func NewBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > breakerTripAfter
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var ce *ClientError
			return errors.As(err, &ce) || errors.Is(err, context.Canceled)
		},
	})
}
