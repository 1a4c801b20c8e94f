// Package ratelimit provides the single process-wide token bucket that
// gates all upstream price-API calls (§5: "a single process-wide token
// bucket sized at B calls/minute; the collector is the sole consumer").
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Bucket wraps golang.org/x/time/rate.Limiter refilled at budget calls per
// minute with a capacity (burst) of budget tokens, so after an idle spell
// up to a full minute's budget can be spent at once.
type Bucket struct {
	limiter *rate.Limiter
}

// New builds a bucket allowing budget calls per minute.
func New(budget int) *Bucket {
	if budget <= 0 {
		budget = 1
	}
	perSecond := rate.Limit(float64(budget) / 60.0)
	return &Bucket{limiter: rate.NewLimiter(perSecond, budget)}
}

// Wait blocks (honoring ctx) until a call token is available.
func (b *Bucket) Wait(ctx context.Context) error {
	return b.limiter.Wait(ctx)
}

// Allow reports whether a token is immediately available, consuming one
// if so. Used where a caller prefers to skip rather than block.
func (b *Bucket) Allow() bool {
	return b.limiter.Allow()
}

// Budget returns the configured calls-per-minute limit.
func (b *Bucket) Budget() int {
	return int(float64(b.limiter.Limit()) * 60.0)
}
