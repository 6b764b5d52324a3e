package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"xcscraper/pkg/config"
	errs "xcscraper/pkg/errors"
	"xcscraper/pkg/logger"
)

func fastConfig(maxAttempts int) *Config {
	return &Config{
		MaxAttempts: maxAttempts,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     DefaultRetryIf,
		Logger:      logger.NewNopLogger(),
	}
}

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   1 * time.Second,
		Multiplier: 2.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second},
		{9, 1 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt %d", tt.attempt), func(t *testing.T) {
			assert.Equal(t, tt.expected, backoff.NextDelay(tt.attempt))
		})
	}
}

func TestExponentialBackoffJitterStaysInBand(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}

	for i := 0; i < 50; i++ {
		delay := backoff.NextDelay(2)
		assert.GreaterOrEqual(t, delay, 140*time.Millisecond)
		assert.LessOrEqual(t, delay, 260*time.Millisecond)
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	var retried []int

	cfg := fastConfig(3)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		retried = append(retried, attempt)
	}

	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errs.Status(http.StatusServiceUnavailable)
		}
		return nil
	}, cfg)

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDoStopsAtMaxAttempts(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errs.Status(http.StatusServiceUnavailable)
	}, fastConfig(3))

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, errs.KindStatus, errs.KindOf(err))
	assert.Contains(t, err.Error(), "max retry attempts (3) exceeded")
}

func TestDoRetriesTransportErrors(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errs.Transport(errors.New("connection reset by peer"))
	}, fastConfig(2))

	require.Error(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, errs.KindTransport, errs.KindOf(err))
}

func TestDoDoesNotRetryPermanentErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"not found", errs.Status(http.StatusNotFound)},
		{"forbidden", errs.Status(http.StatusForbidden)},
		{"parse", errs.Parse(errors.New("invalid character"))},
		{"unclassified", errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			err := Do(context.Background(), func(ctx context.Context) error {
				attempts++
				return tt.err
			}, fastConfig(3))

			assert.Equal(t, 1, attempts)
			assert.Same(t, tt.err, err)
		})
	}
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastConfig(5)
	cfg.Backoff = &ConstantBackoff{Delay: time.Hour}

	attempts := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := Do(ctx, func(ctx context.Context) error {
		attempts++
		return errs.Status(http.StatusTooManyRequests)
	}, cfg)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRetryAfterHintIsCapped(t *testing.T) {
	cfg := fastConfig(3)
	cfg.MaxRetryAfter = 50 * time.Millisecond

	hinted := errs.Status(http.StatusTooManyRequests)
	hinted.RetryAfter = 10 * time.Second
	assert.Equal(t, 50*time.Millisecond, cfg.delayFor(1, hinted))

	hinted.RetryAfter = 20 * time.Millisecond
	assert.Equal(t, 20*time.Millisecond, cfg.delayFor(1, hinted))

	cfg.MaxRetryAfter = 0
	assert.Equal(t, time.Millisecond, cfg.delayFor(1, hinted))
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	result, err := DoWithResult(context.Background(), func(ctx context.Context) (string, error) {
		attempts++
		if attempts == 1 {
			return "", errs.Transport(errors.New("timeout"))
		}
		return "page", nil
	}, fastConfig(3))

	require.NoError(t, err)
	assert.Equal(t, "page", result)
	assert.Equal(t, 2, attempts)
}

func TestFromConfig(t *testing.T) {
	rc := config.DefaultConfig().Retry
	cfg := FromConfig(rc, nil)

	assert.Equal(t, rc.MaxAttempts, cfg.MaxAttempts)
	assert.NotNil(t, cfg.Logger)
	backoff, ok := cfg.Backoff.(*ExponentialBackoff)
	require.True(t, ok)
	assert.Equal(t, rc.BaseDelay, backoff.BaseDelay)
	assert.Equal(t, rc.MaxDelay, cfg.MaxRetryAfter)
}

func TestDoRetriesClientTimeouts(t *testing.T) {
	timeout := fmt.Errorf("Get \"http://x\": %w (Client.Timeout exceeded while awaiting headers)", context.DeadlineExceeded)

	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errs.Transport(timeout)
	}, fastConfig(3))

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.False(t, DefaultRetryIf(timeout))
}

func TestDoStopsWhenCallerContextIsDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := Do(ctx, func(ctx context.Context) error {
		attempts++
		cancel()
		return errs.Transport(errors.New("connection reset by peer"))
	}, fastConfig(3))

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}
