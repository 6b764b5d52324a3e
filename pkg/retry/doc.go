// Package retry provides bounded retry with exponential backoff for
// transient provider failures.
//
// MaxAttempts counts every attempt, so the default of 3 means one call plus
// two retries. Only errors accepted by RetryIf are retried; by default that is
// a transport failure or a 429/500/502/503/504 status. When the classified
// error carries a Retry-After hint the wait honors it, capped at MaxRetryAfter.
//
//	page, err := retry.DoWithResult(ctx, func(ctx context.Context) (*Page, error) {
//		return fetchOnce(ctx, req)
//	}, retry.FromConfig(cfg.Retry, log))
package retry
