package lingoflow

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func testRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		BaseDelay:      time.Second,
		MaxDelay:       30 * time.Second,
		AttemptTimeout: time.Second,
	}
}

func TestRetryConfig_Backoff(t *testing.T) {
	cfg := RetryConfig{BaseDelay: time.Second, MaxDelay: 5 * time.Second}

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second}
	for attempt, expected := range want {
		if got := cfg.Backoff(attempt); got != expected {
			t.Errorf("Backoff(%d) = %v, want %v", attempt, got, expected)
		}
	}
}

func TestWithRetry_Success(t *testing.T) {
	callCount := 0
	result, err := retryWithClock(context.Background(), testRetryConfig(), newFakeClock(time.Now()), func() (string, error) {
		callCount++
		return "success", nil
	})

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result != "success" {
		t.Errorf("Expected 'success', got %q", result)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}
}

func TestWithRetry_NonRetryableError(t *testing.T) {
	clock := newFakeClock(time.Now())
	callCount := 0
	_, err := retryWithClock(context.Background(), testRetryConfig(), clock, func() (string, error) {
		callCount++
		return "", NewStatusError(400, "bad request", nil)
	})

	if err == nil {
		t.Fatal("Expected error")
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call for non-retryable error, got %d", callCount)
	}
	if len(clock.Sleeps()) != 0 {
		t.Errorf("Expected no backoff, got %v", clock.Sleeps())
	}
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	callCount := 0
	_, err := retryWithClock(ctx, testRetryConfig(), newFakeClock(time.Now()), func() (string, error) {
		callCount++
		return "", nil
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if callCount != 0 {
		t.Errorf("Expected no calls, got %d", callCount)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"429", NewStatusError(429, "quota", nil), true},
		{"503", NewStatusError(503, "unavailable", nil), true},
		{"400", NewStatusError(400, "bad", nil), false},
		{"403", NewStatusError(403, "forbidden", nil), false},
		{"retryable flag", &ProviderError{Message: "timeout", Retryable: true}, true},
		{"wrapped", errors.Join(errors.New("ctx"), NewStatusError(500, "boom", nil)), true},
		{"plain", errors.New("plain"), false},
		{"context", context.Canceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.expected {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestRetryingClient_BacksOffOnQuota(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local))
	p := newScriptedProvider(map[string]string{"Hello": "Hola"})
	p.failures["Hello"] = []error{NewStatusError(429, "quota", nil), NewStatusError(429, "quota", nil)}

	limiter := NewRateLimiterWithClock(DefaultRateLimitConfig(), clock)
	client := NewRetryingClient(p, limiter, testRetryConfig(), WithClientClock(clock))

	out, err := client.Translate(context.Background(), TranslateRequest{Text: "Hello", SourceLang: "en", TargetLang: "es"})
	if err != nil {
		t.Fatalf("Expected success after retries, got: %v", err)
	}
	if out != "Hola" {
		t.Errorf("Expected 'Hola', got %q", out)
	}
	if p.CallCount() != 3 {
		t.Errorf("Expected 3 calls, got %d", p.CallCount())
	}

	want := []time.Duration{time.Second, 2 * time.Second}
	if got := clock.Sleeps(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected backoff %v, got %v", want, got)
	}
}

func TestRetryingClient_GivesUpAfterMaxRetries(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local))
	p := newScriptedProvider(nil)
	p.always["Hello"] = NewStatusError(429, "quota", nil)

	limiter := NewRateLimiterWithClock(DefaultRateLimitConfig(), clock)
	client := NewRetryingClient(p, limiter, testRetryConfig(), WithClientClock(clock))

	_, err := client.Translate(context.Background(), TranslateRequest{Text: "Hello"})

	var providerErr *ProviderError
	if !errors.As(err, &providerErr) || providerErr.StatusCode != 429 {
		t.Fatalf("Expected 429 ProviderError, got %v", err)
	}
	if p.CallCount() != 4 {
		t.Errorf("Expected 4 attempts, got %d", p.CallCount())
	}
	if usage := limiter.Usage(); usage.RequestsToday != 4 {
		t.Errorf("Expected every attempt recorded against the limiter, got %d", usage.RequestsToday)
	}

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if got := clock.Sleeps(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected backoff %v, got %v", want, got)
	}
}

func TestRetryingClient_FatalStatusNotRetried(t *testing.T) {
	clock := newFakeClock(time.Now())
	p := newScriptedProvider(nil)
	p.always["Hello"] = NewStatusError(400, "invalid argument", nil)

	client := NewRetryingClient(p, NewRateLimiterWithClock(DefaultRateLimitConfig(), clock), testRetryConfig(), WithClientClock(clock))

	if _, err := client.Translate(context.Background(), TranslateRequest{Text: "Hello"}); err == nil {
		t.Fatal("Expected error")
	}
	if p.CallCount() != 1 {
		t.Errorf("Expected 1 attempt, got %d", p.CallCount())
	}
}

func TestRetryingClient_TimeoutIsRetried(t *testing.T) {
	clock := newFakeClock(time.Now())
	p := newScriptedProvider(nil)
	p.blockOn = "slow"

	cfg := testRetryConfig()
	cfg.MaxRetries = 1
	client := NewRetryingClient(p, NewRateLimiterWithClock(DefaultRateLimitConfig(), clock), cfg, WithClientClock(clock))

	_, err := client.Translate(context.Background(), TranslateRequest{Text: "slow", Timeout: 10 * time.Millisecond})

	var providerErr *ProviderError
	if !errors.As(err, &providerErr) || !providerErr.Retryable {
		t.Fatalf("Expected retryable timeout error, got %v", err)
	}
	if p.CallCount() != 2 {
		t.Errorf("Expected 2 attempts, got %d", p.CallCount())
	}
}

func TestRetryingClient_WaitsForRateLimiter(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local))
	p := newScriptedProvider(nil)
	obs := newRecordingObserver()

	limiter := NewRateLimiterWithClock(RateLimitConfig{RequestsPerMinute: 2, RequestsPerDay: 100}, clock)
	client := NewRetryingClient(p, limiter, testRetryConfig(), WithClientClock(clock), WithClientObserver(obs))

	for _, text := range []string{"a", "b", "c"} {
		if _, err := client.Translate(context.Background(), TranslateRequest{Text: text}); err != nil {
			t.Fatalf("Translate(%q) failed: %v", text, err)
		}
	}

	if got := clock.Sleeps(); len(got) != 1 || got[0] != time.Minute {
		t.Errorf("Expected one 1m rate limit wait, got %v", got)
	}
	if obs.rateLimited != 1 {
		t.Errorf("Expected 1 rate limit notification, got %d", obs.rateLimited)
	}
	if obs.attempts != 3 {
		t.Errorf("Expected 3 attempts observed, got %d", obs.attempts)
	}
}

func TestRetryingClient_CancelledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := newScriptedProvider(nil)
	p.onCall = func(TranslateRequest) { cancel() }
	p.always["x"] = NewStatusError(503, "unavailable", nil)

	clock := newFakeClock(time.Now())
	client := NewRetryingClient(p, NewRateLimiterWithClock(DefaultRateLimitConfig(), clock), testRetryConfig(), WithClientClock(clock))

	_, err := client.Translate(ctx, TranslateRequest{Text: "x"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if p.CallCount() != 1 {
		t.Errorf("Expected 1 attempt, got %d", p.CallCount())
	}
}
