// ratelimit.go implements token-bucket rate limiting for the venue REST API.
//
// The venue enforces an order-rate cap per minute and a shared request-weight
// budget. This file provides a smooth token-bucket implementation that
// refills continuously (rather than in window-sized bursts) to stay clear of
// the hard limits.
//
// Four buckets are maintained:
//   - Order:     placing orders (order-rate cap)
//   - Cancel:    cancels share the order-rate cap but get their own bucket so
//     a quoting burst cannot starve the stale-order sweep
//   - Depth:     book snapshots (weight-heavy, fetched only on bootstrap)
//   - ListenKey: user-data session create/keepalive (rare)
package exchange

import (
	"context"
	"sync"
	"time"
)

// TokenBucket implements a token-bucket rate limiter with continuous refill.
// Callers block in Wait() until a token is available or the context is cancelled.
type TokenBucket struct {
	mu       sync.Mutex
	tokens   float64   // current available tokens (fractional allowed)
	capacity float64   // maximum burst size
	rate     float64   // tokens refilled per second
	lastTime time.Time // last time tokens were calculated
}

// NewTokenBucket creates a rate limiter with the given capacity and refill rate.
func NewTokenBucket(capacity, ratePerSecond float64) *TokenBucket {
	return &TokenBucket{
		tokens:   capacity,
		capacity: capacity,
		rate:     ratePerSecond,
		lastTime: time.Now(),
	}
}

// Wait blocks until a token is available or ctx is cancelled.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		tb.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(tb.lastTime).Seconds()
		tb.tokens += elapsed * tb.rate
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastTime = now

		if tb.tokens >= 1 {
			tb.tokens--
			tb.mu.Unlock()
			return nil
		}

		// Calculate wait time for next token
		wait := time.Duration((1 - tb.tokens) / tb.rate * float64(time.Second))
		tb.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
			// retry
		}
	}
}

// RateLimiter groups token buckets by REST endpoint category. Each request
// method calls the appropriate bucket's Wait() before touching the wire.
type RateLimiter struct {
	Order     *TokenBucket // POST /fapi/v1/order
	Cancel    *TokenBucket // DELETE /fapi/v1/order
	Depth     *TokenBucket // GET /fapi/v1/depth
	ListenKey *TokenBucket // POST/PUT /fapi/v1/listenKey
}

// NewRateLimiter creates rate limiters tuned well below the venue's published
// limits; this bot quotes on a 10-second cadence and never gets near them.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		Order:     NewTokenBucket(100, 20), // order-rate cap is 1200/min
		Cancel:    NewTokenBucket(100, 20),
		Depth:     NewTokenBucket(10, 2), // bootstrap only; weight 20 at limit 1000
		ListenKey: NewTokenBucket(5, 1),
	}
}
