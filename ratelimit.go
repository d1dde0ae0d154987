package lingoflow

import (
	"context"
	"sync"
	"time"
)

// Clock abstracts time so rate limiting and backoff can be driven by tests.
type Clock interface {
	Now() time.Time
	// Sleep pauses for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

// SystemClock returns the wall clock.
func SystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RateLimitConfig configures the rate limiter.
type RateLimitConfig struct {
	RequestsPerMinute int // Maximum requests per minute (default: 15)
	RequestsPerDay    int // Maximum requests per local calendar day (default: 1500)
}

// DefaultRateLimitConfig returns the free-tier quota of the Gemini API.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 15,
		RequestsPerDay:    1500,
	}
}

// minMinuteWait is the shortest wait reported for a saturated minute window.
const minMinuteWait = time.Second

// RateLimitStatus is the result of a rate limit check.
type RateLimitStatus struct {
	CanProceed bool
	TimeToWait time.Duration
}

// RateLimitUsage reports the current counters.
type RateLimitUsage struct {
	RequestsInLastMinute int
	RequestsToday        int
}

// RateLimiter enforces per-minute and per-day request ceilings for one job.
//
// The minute window is approximated from the time of the last request rather
// than a true sliding window: the minute counter resets once a full minute has
// passed since the last recorded request. The day counter resets at local
// midnight. Counters are never decremented otherwise.
type RateLimiter struct {
	mu    sync.Mutex
	clock Clock

	maxPerMinute int
	maxPerDay    int

	requestsInLastMinute int
	requestsToday        int
	lastRequestTime      time.Time
	dayStart             time.Time
}

// NewRateLimiter creates a rate limiter using the wall clock.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	return NewRateLimiterWithClock(cfg, SystemClock())
}

// NewRateLimiterWithClock creates a rate limiter driven by clock.
func NewRateLimiterWithClock(cfg RateLimitConfig, clock Clock) *RateLimiter {
	defaults := DefaultRateLimitConfig()
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = defaults.RequestsPerMinute
	}
	if cfg.RequestsPerDay <= 0 {
		cfg.RequestsPerDay = defaults.RequestsPerDay
	}
	if clock == nil {
		clock = SystemClock()
	}

	return &RateLimiter{
		clock:        clock,
		maxPerMinute: cfg.RequestsPerMinute,
		maxPerDay:    cfg.RequestsPerDay,
		dayStart:     startOfDay(clock.Now()),
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// resetIfNeeded must be called with the lock held.
func (r *RateLimiter) resetIfNeeded(now time.Time) {
	if today := startOfDay(now); r.dayStart.Before(today) {
		r.requestsToday = 0
		r.dayStart = today
	}

	if !r.lastRequestTime.IsZero() && now.Sub(r.lastRequestTime) >= time.Minute {
		r.requestsInLastMinute = 0
	}
}

// Check reports whether a request may be issued now and, if not, how long
// to wait before checking again.
func (r *RateLimiter) Check() RateLimitStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	r.resetIfNeeded(now)

	if r.requestsInLastMinute >= r.maxPerMinute {
		wait := time.Minute - now.Sub(r.lastRequestTime)
		if wait < minMinuteWait {
			wait = minMinuteWait
		}
		return RateLimitStatus{CanProceed: false, TimeToWait: wait}
	}

	if r.requestsToday >= r.maxPerDay {
		tomorrow := startOfDay(now).AddDate(0, 0, 1)
		return RateLimitStatus{CanProceed: false, TimeToWait: tomorrow.Sub(now)}
	}

	return RateLimitStatus{CanProceed: true}
}

// Record counts one issued request against both windows.
func (r *RateLimiter) Record() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	r.resetIfNeeded(now)
	r.requestsInLastMinute++
	r.requestsToday++
	r.lastRequestTime = now
}

// Wait blocks until a request is permitted or ctx is cancelled. It returns
// the total time spent waiting.
func (r *RateLimiter) Wait(ctx context.Context) (time.Duration, error) {
	var waited time.Duration
	for {
		if err := ctx.Err(); err != nil {
			return waited, err
		}

		status := r.Check()
		if status.CanProceed {
			return waited, nil
		}

		if err := r.clock.Sleep(ctx, status.TimeToWait); err != nil {
			return waited, err
		}
		waited += status.TimeToWait
	}
}

// Usage returns the current counters after applying window resets.
func (r *RateLimiter) Usage() RateLimitUsage {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.resetIfNeeded(r.clock.Now())
	return RateLimitUsage{
		RequestsInLastMinute: r.requestsInLastMinute,
		RequestsToday:        r.requestsToday,
	}
}

// Limits returns the configured ceilings.
func (r *RateLimiter) Limits() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: r.maxPerMinute,
		RequestsPerDay:    r.maxPerDay,
	}
}
