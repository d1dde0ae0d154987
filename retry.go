package lingoflow

import (
	"context"
	"errors"
	"time"
)

// RetryConfig holds configuration for retry behavior.
type RetryConfig struct {
	MaxRetries     int           // Maximum number of retry attempts
	BaseDelay      time.Duration // Delay before the first retry, doubled per attempt
	MaxDelay       time.Duration // Maximum delay between retries (0 = uncapped)
	AttemptTimeout time.Duration // Deadline for a single remote call (0 = none)
}

// DefaultRetryConfig returns 3 retries with 1s, 2s and 4s backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		BaseDelay:      1 * time.Second,
		MaxDelay:       30 * time.Second,
		AttemptTimeout: 30 * time.Second,
	}
}

// Backoff returns the delay before retry number attempt (0-based).
func (c RetryConfig) Backoff(attempt int) time.Duration {
	delay := c.BaseDelay * time.Duration(1<<attempt)
	if c.MaxDelay > 0 && delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	return delay
}

// RetryFunc is a function that can be retried.
type RetryFunc[T any] func() (T, error)

// WithRetry executes a function with exponential backoff retry.
func WithRetry[T any](ctx context.Context, cfg RetryConfig, fn RetryFunc[T]) (T, error) {
	return retryWithClock(ctx, cfg, SystemClock(), fn)
}

func retryWithClock[T any](ctx context.Context, cfg RetryConfig, clock Clock, fn RetryFunc[T]) (T, error) {
	var lastErr error
	var zero T

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		// Check context before each attempt
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}

		lastErr = err

		if !IsRetryable(err) {
			return zero, err
		}

		// Don't sleep after the last attempt
		if attempt < cfg.MaxRetries {
			if err := clock.Sleep(ctx, cfg.Backoff(attempt)); err != nil {
				return zero, err
			}
		}
	}

	return zero, lastErr
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Retryable
	}

	// Context errors are not retryable
	return false
}

// RetryingClient wraps one remote translate call with rate limiting, a
// per-attempt deadline and exponential backoff on transient failures.
// Every attempt, including retries, waits for the rate limiter and is
// recorded against it afterwards.
type RetryingClient struct {
	provider AIProvider
	limiter  *RateLimiter
	config   RetryConfig
	clock    Clock
	observer Observer
}

// ClientOption configures a RetryingClient.
type ClientOption func(*RetryingClient)

// WithClientClock sets the clock used for backoff sleeps.
func WithClientClock(clock Clock) ClientOption {
	return func(c *RetryingClient) {
		c.clock = clock
	}
}

// WithClientObserver sets the observer notified of attempts and waits.
func WithClientObserver(o Observer) ClientOption {
	return func(c *RetryingClient) {
		c.observer = o
	}
}

// NewRetryingClient creates a client. A nil limiter gets default limits.
func NewRetryingClient(provider AIProvider, limiter *RateLimiter, cfg RetryConfig, opts ...ClientOption) *RetryingClient {
	c := &RetryingClient{
		provider: provider,
		limiter:  limiter,
		config:   cfg,
		clock:    SystemClock(),
		observer: noopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.limiter == nil {
		c.limiter = NewRateLimiterWithClock(DefaultRateLimitConfig(), c.clock)
	}
	return c
}

// Translate implements AIProvider with rate limiting and retry logic.
func (c *RetryingClient) Translate(ctx context.Context, req TranslateRequest) (string, error) {
	return retryWithClock(ctx, c.config, c.clock, func() (string, error) {
		return c.attempt(ctx, req)
	})
}

func (c *RetryingClient) attempt(ctx context.Context, req TranslateRequest) (string, error) {
	waited, err := c.limiter.Wait(ctx)
	if waited > 0 {
		c.observer.RateLimited(waited)
	}
	if err != nil {
		return "", err
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.config.AttemptTimeout
	}
	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := c.provider.Translate(callCtx, req)
	c.limiter.Record()

	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		err = &ProviderError{Message: "request timed out", Cause: err, Retryable: true}
	}
	c.observer.AttemptFinished(err, time.Since(start))

	if err != nil && ctx.Err() != nil {
		return "", ctx.Err()
	}
	return result, err
}

// Limiter returns the underlying rate limiter for inspection.
func (c *RetryingClient) Limiter() *RateLimiter {
	return c.limiter
}
