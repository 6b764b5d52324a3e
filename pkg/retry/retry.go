package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"xcscraper/pkg/config"
	errs "xcscraper/pkg/errors"
	"xcscraper/pkg/logger"
)

// Operation is a function that performs an operation that might need retrying
type Operation func(ctx context.Context) error

// OperationWithResult is a function that returns a result and might need retrying
type OperationWithResult[T any] func(ctx context.Context) (T, error)

// Config holds retry configuration
type Config struct {
	// MaxAttempts is the total number of attempts, including the first
	MaxAttempts int
	Backoff     BackoffStrategy
	// RetryIf determines if an error should be retried
	RetryIf func(error) bool
	// OnRetry is called before each retry wait
	OnRetry func(attempt int, err error, delay time.Duration)
	// MaxRetryAfter caps a server supplied Retry-After; zero ignores the hint
	MaxRetryAfter time.Duration
	Logger        logger.Logger
}

// DefaultConfig returns a retry configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts:   3,
		Backoff:       DefaultExponentialBackoff(),
		RetryIf:       DefaultRetryIf,
		MaxRetryAfter: 60 * time.Second,
		Logger:        logger.NewNopLogger(),
	}
}

// FromConfig builds a retry policy from the application retry settings
func FromConfig(rc config.RetryConfig, log logger.Logger) *Config {
	cfg := DefaultConfig()
	cfg.MaxAttempts = rc.MaxAttempts
	cfg.Backoff = &ExponentialBackoff{
		BaseDelay:    rc.BaseDelay,
		MaxDelay:     rc.MaxDelay,
		Multiplier:   rc.Multiplier,
		JitterFactor: rc.JitterFactor,
	}
	cfg.MaxRetryAfter = rc.MaxDelay
	if log != nil {
		cfg.Logger = log
	}
	return cfg
}

// DefaultRetryIf retries transport failures and 429/500/502/503/504 responses.
// An http.Client timeout is a transport failure even though it wraps
// context.DeadlineExceeded; cancellation of the caller's context is not.
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}
	if errs.KindOf(err) == errs.KindTransport {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errs.IsRetryable(err)
}

// Do executes an operation with retry logic
func Do(ctx context.Context, op Operation, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				log.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}

		if ctx.Err() != nil || !retryIf(err) {
			return err
		}

		if attempt >= maxAttempts {
			log.WarnWithFields("max retry attempts exceeded", map[string]interface{}{
				"attempts":   attempt,
				"last_error": err.Error(),
			})
			return fmt.Errorf("max retry attempts (%d) exceeded: %w", maxAttempts, err)
		}

		delay := cfg.delayFor(attempt, err)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}

		log.WarnWithFields("retrying operation", map[string]interface{}{
			"attempt":      attempt,
			"error":        err.Error(),
			"delay_ms":     delay.Milliseconds(),
			"max_attempts": maxAttempts,
		})

		if werr := Wait(ctx, delay); werr != nil {
			return fmt.Errorf("retry cancelled: %w", werr)
		}
	}
}

// delayFor prefers a capped Retry-After over the computed backoff
func (c *Config) delayFor(attempt int, err error) time.Duration {
	var delay time.Duration
	if c.Backoff != nil {
		delay = c.Backoff.NextDelay(attempt)
	}

	var classified *errs.Error
	if c.MaxRetryAfter > 0 && errors.As(err, &classified) && classified.RetryAfter > 0 {
		hint := classified.RetryAfter
		if hint > c.MaxRetryAfter {
			hint = c.MaxRetryAfter
		}
		if hint > delay {
			delay = hint
		}
	}
	return delay
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](ctx context.Context, op OperationWithResult[T], cfg *Config) (T, error) {
	var result T

	err := Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	}, cfg)

	return result, err
}
