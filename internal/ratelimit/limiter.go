package ratelimit

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter paces requests against a request-weight budget per period.
// It never retries; it only delays a call until its weight fits.
type RateLimiter struct {
	limiter *rate.Limiter
	weight  int
	metrics *Metrics
}

// Metrics tracks statistics about rate limiter usage.
type Metrics struct {
	totalRequests   atomic.Int64
	allowedRequests atomic.Int64
	deniedRequests  atomic.Int64
	consumedWeight  atomic.Int64
}

// New creates a RateLimiter allowing weight units per period, with a burst of the full budget.
func New(weight int, period time.Duration) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(float64(weight)/period.Seconds()), weight),
		weight:  weight,
		metrics: &Metrics{},
	}
}

// Wait blocks until weight units are available or the context is done.
// A weight above the whole budget fails immediately.
func (r *RateLimiter) Wait(ctx context.Context, weight int) error {
	r.metrics.totalRequests.Add(1)
	if weight > r.weight {
		r.metrics.deniedRequests.Add(1)
		return fmt.Errorf("request weight %d exceeds budget %d", weight, r.weight)
	}
	if err := r.limiter.WaitN(ctx, weight); err != nil {
		r.metrics.deniedRequests.Add(1)
		return err
	}
	r.metrics.allowedRequests.Add(1)
	r.metrics.consumedWeight.Add(int64(weight))
	return nil
}

// Metrics returns a snapshot of the current rate limiter statistics.
func (r *RateLimiter) Metrics() MetricsSnapshot {
	return MetricsSnapshot{
		TotalRequests:   r.metrics.totalRequests.Load(),
		AllowedRequests: r.metrics.allowedRequests.Load(),
		DeniedRequests:  r.metrics.deniedRequests.Load(),
		ConsumedWeight:  r.metrics.consumedWeight.Load(),
	}
}

// MetricsSnapshot is a point-in-time capture of rate limiter statistics.
type MetricsSnapshot struct {
	TotalRequests   int64
	AllowedRequests int64
	DeniedRequests  int64
	ConsumedWeight  int64
}
