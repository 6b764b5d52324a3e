// Package ratelimit keeps the crawler polite toward the provider.
//
// TokenBucket caps the sustained request rate against the search API using
// golang.org/x/time/rate. Pacer adds a randomized pause between result pages
// and between queries so traffic does not arrive in a fixed rhythm.
//
//	limiter := ratelimit.NewTokenBucket(120, 5)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
//
//	pacer := ratelimit.NewPacer(3*time.Second, 8*time.Second)
//	if err := pacer.Pause(ctx); err != nil {
//	    return err // interrupted
//	}
package ratelimit
