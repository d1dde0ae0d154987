package lingoflow

import (
	"context"
	"testing"
	"time"
)

var noon = time.Date(2026, 3, 14, 12, 0, 0, 0, time.Local)

func TestRateLimiter_Defaults(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{})

	limits := limiter.Limits()
	if limits.RequestsPerMinute != 15 || limits.RequestsPerDay != 1500 {
		t.Errorf("Expected 15/1500 defaults, got %+v", limits)
	}

	if !limiter.Check().CanProceed {
		t.Error("Fresh limiter should allow a request")
	}
}

func TestRateLimiter_MinuteSaturation(t *testing.T) {
	clock := newFakeClock(noon)
	limiter := NewRateLimiterWithClock(RateLimitConfig{RequestsPerMinute: 15, RequestsPerDay: 1500}, clock)

	for i := 0; i < 15; i++ {
		if !limiter.Check().CanProceed {
			t.Fatalf("Request %d should be allowed", i)
		}
		limiter.Record()
		clock.Advance(50 * time.Millisecond)
	}

	status := limiter.Check()
	if status.CanProceed {
		t.Fatal("Expected limiter to be saturated")
	}
	if status.TimeToWait <= 0 {
		t.Errorf("Expected positive wait, got %v", status.TimeToWait)
	}
	// 50ms elapsed since the last request
	if status.TimeToWait != time.Minute-50*time.Millisecond {
		t.Errorf("Expected wait of 59.95s, got %v", status.TimeToWait)
	}

	clock.Advance(60 * time.Second)

	if !limiter.Check().CanProceed {
		t.Error("Expected limiter to allow requests after a minute")
	}
	if usage := limiter.Usage(); usage.RequestsInLastMinute != 0 || usage.RequestsToday != 15 {
		t.Errorf("Expected minute counter reset and day counter kept, got %+v", usage)
	}
}

func TestRateLimiter_MinimumWait(t *testing.T) {
	clock := newFakeClock(noon)
	limiter := NewRateLimiterWithClock(RateLimitConfig{RequestsPerMinute: 1, RequestsPerDay: 100}, clock)

	limiter.Record()
	clock.Advance(59*time.Second + 500*time.Millisecond)

	status := limiter.Check()
	if status.CanProceed {
		t.Fatal("Expected limiter to be saturated")
	}
	if status.TimeToWait != time.Second {
		t.Errorf("Expected wait clamped to 1s, got %v", status.TimeToWait)
	}
}

func TestRateLimiter_DaySaturation(t *testing.T) {
	clock := newFakeClock(noon)
	limiter := NewRateLimiterWithClock(RateLimitConfig{RequestsPerMinute: 100, RequestsPerDay: 3}, clock)

	for i := 0; i < 3; i++ {
		limiter.Record()
	}

	status := limiter.Check()
	if status.CanProceed {
		t.Fatal("Expected day limit to block")
	}
	if status.TimeToWait != 12*time.Hour {
		t.Errorf("Expected wait until midnight (12h), got %v", status.TimeToWait)
	}

	clock.Advance(12 * time.Hour)

	if !limiter.Check().CanProceed {
		t.Error("Expected day counter to reset at midnight")
	}
	if usage := limiter.Usage(); usage.RequestsToday != 0 {
		t.Errorf("Expected day counter reset, got %d", usage.RequestsToday)
	}
}

func TestRateLimiter_Wait(t *testing.T) {
	clock := newFakeClock(noon)
	limiter := NewRateLimiterWithClock(RateLimitConfig{RequestsPerMinute: 2, RequestsPerDay: 100}, clock)

	limiter.Record()
	limiter.Record()

	waited, err := limiter.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if waited != time.Minute {
		t.Errorf("Expected to wait one minute, got %v", waited)
	}
	if !limiter.Check().CanProceed {
		t.Error("Expected limiter to be open after Wait")
	}
}

func TestRateLimiter_WaitCancelled(t *testing.T) {
	clock := newFakeClock(noon)
	limiter := NewRateLimiterWithClock(RateLimitConfig{RequestsPerMinute: 1, RequestsPerDay: 100}, clock)
	limiter.Record()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := limiter.Wait(ctx); err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestRateLimiter_WaitRealClockCancelled(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{RequestsPerMinute: 1, RequestsPerDay: 100})
	limiter.Record()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := limiter.Wait(ctx)
	if err != context.DeadlineExceeded {
		t.Errorf("Expected context.DeadlineExceeded, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Wait should return promptly on cancellation")
	}
}

func TestRateLimiter_IndependentInstances(t *testing.T) {
	clock := newFakeClock(noon)
	a := NewRateLimiterWithClock(RateLimitConfig{RequestsPerMinute: 2, RequestsPerDay: 100}, clock)
	b := NewRateLimiterWithClock(RateLimitConfig{RequestsPerMinute: 2, RequestsPerDay: 100}, clock)

	a.Record()
	a.Record()

	if a.Check().CanProceed {
		t.Error("Expected limiter a to be saturated")
	}
	if !b.Check().CanProceed {
		t.Error("Limiter b must not be throttled by limiter a")
	}
}
