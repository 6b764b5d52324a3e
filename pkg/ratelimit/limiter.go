package ratelimit

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow checks if a request is allowed right now, consuming a token if so
	Allow() bool
	// Wait blocks until the rate limit allows another request or ctx ends
	Wait(ctx context.Context) error
	// Reset restores the limiter to a full bucket
	Reset()
}

// TokenBucket is a Limiter backed by golang.org/x/time/rate
type TokenBucket struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	limit   rate.Limit
	burst   int
}

// NewTokenBucket allows requestsPerMinute sustained with bursts of up to burst.
// A non-positive rate disables limiting.
func NewTokenBucket(requestsPerMinute, burst int) *TokenBucket {
	limit := rate.Inf
	if requestsPerMinute > 0 {
		limit = rate.Limit(float64(requestsPerMinute) / 60.0)
	}
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucket{
		limiter: rate.NewLimiter(limit, burst),
		limit:   limit,
		burst:   burst,
	}
}

func (tb *TokenBucket) current() *rate.Limiter {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.limiter
}

// Allow checks if a request can proceed
func (tb *TokenBucket) Allow() bool {
	return tb.current().Allow()
}

// Wait blocks until a token is available
func (tb *TokenBucket) Wait(ctx context.Context) error {
	if err := tb.current().Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// Reset refills the bucket to full capacity
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.limiter = rate.NewLimiter(tb.limit, tb.burst)
}

// Pacer inserts a uniformly random pause in [Min, Max] between steps.
// It mimics a human browsing cadence between result pages and between queries.
type Pacer struct {
	min time.Duration
	max time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewPacer creates a pacer. If max < min the range collapses to min.
func NewPacer(min, max time.Duration) *Pacer {
	if max < min {
		max = min
	}
	return &Pacer{
		min: min,
		max: max,
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next draws the next pause duration
func (p *Pacer) Next() time.Duration {
	if p.max <= p.min {
		return p.min
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.min + time.Duration(p.rnd.Int63n(int64(p.max-p.min)+1))
}

// Pause sleeps for Next() or until ctx is done
func (p *Pacer) Pause(ctx context.Context) error {
	delay := p.Next()
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
