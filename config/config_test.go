package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ZaguanLabs/lingoflow"
)

func lookupFrom(env map[string]string) lookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.RateLimits.PerMinute != 15 || cfg.RateLimits.PerDay != 1500 {
		t.Errorf("Expected 15/1500, got %d/%d", cfg.RateLimits.PerMinute, cfg.RateLimits.PerDay)
	}
	if cfg.Retry.MaxRetries != 3 || cfg.Retry.BaseDelay != time.Second {
		t.Errorf("Expected 3 retries from 1s, got %d from %v", cfg.Retry.MaxRetries, cfg.Retry.BaseDelay)
	}
	if cfg.Job.ErrorBudget != 3 || cfg.Job.ChunkSize != 5 || cfg.Job.ChunkDelay != 0 {
		t.Errorf("Unexpected job defaults %+v", cfg.Job)
	}
	if cfg.Job.ImproveThreshold != 120 {
		t.Errorf("Expected improve threshold 120, got %d", cfg.Job.ImproveThreshold)
	}
	if cfg.Checkpoint.Interval != 10 {
		t.Errorf("Expected checkpoint interval 10, got %d", cfg.Checkpoint.Interval)
	}
	if cfg.Timeouts.Short != 10*time.Second || cfg.Timeouts.Long != 30*time.Second || cfg.Timeouts.Max != 60*time.Second {
		t.Errorf("Unexpected timeouts %+v", cfg.Timeouts)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(lookupFrom(map[string]string{
		"PORT":                          "9090",
		"GEMINI_API_KEY":                "g-key",
		"LINGOFLOW_RATE_PER_MINUTE":     "30",
		"LINGOFLOW_RETRY_BASE_DELAY":    "250ms",
		"LINGOFLOW_CHUNK_DELAY":         "1500",
		"LINGOFLOW_CHECKPOINT_URL":      "file:///tmp/ckpt",
		"REDIS_URL":                     "redis://localhost:6379/0",
		"LINGOFLOW_ARTIFACT_USE_SSL":    "true",
		"LINGOFLOW_LOG_LEVEL":           "debug",
		"LINGOFLOW_CHECKPOINT_INTERVAL": "  ",
	}))
	if err != nil {
		t.Fatalf("applyEnv failed: %v", err)
	}

	if cfg.Server.Port != ":9090" {
		t.Errorf("Expected :9090, got %q", cfg.Server.Port)
	}
	if cfg.Provider.APIKey != "g-key" {
		t.Errorf("Expected Gemini key, got %q", cfg.Provider.APIKey)
	}
	if cfg.RateLimits.PerMinute != 30 {
		t.Errorf("Expected 30 rpm, got %d", cfg.RateLimits.PerMinute)
	}
	if cfg.Retry.BaseDelay != 250*time.Millisecond {
		t.Errorf("Expected 250ms, got %v", cfg.Retry.BaseDelay)
	}
	if cfg.Job.ChunkDelay != 1500*time.Millisecond {
		t.Errorf("Expected bare integers as milliseconds, got %v", cfg.Job.ChunkDelay)
	}
	if cfg.Cache.URL != "redis://localhost:6379/0" {
		t.Errorf("Expected REDIS_URL as cache, got %q", cfg.Cache.URL)
	}
	if !cfg.Artifacts.UseSSL || cfg.Log.Level != "debug" {
		t.Errorf("Unexpected artifacts/log %+v %+v", cfg.Artifacts, cfg.Log)
	}
	if cfg.Checkpoint.Interval != 10 {
		t.Errorf("Blank values must not override, got %d", cfg.Checkpoint.Interval)
	}
}

func TestApplyEnv_OpenAIKey(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(lookupFrom(map[string]string{
		"LINGOFLOW_PROVIDER": "openai",
		"GEMINI_API_KEY":     "g-key",
		"OPENAI_API_KEY":     "o-key",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.APIKey != "o-key" {
		t.Errorf("Expected OpenAI key for openai provider, got %q", cfg.Provider.APIKey)
	}
}

func TestApplyEnv_Invalid(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(lookupFrom(map[string]string{
		"LINGOFLOW_RATE_PER_DAY": "lots",
		"LINGOFLOW_CHUNK_DELAY":  "soon",
		"LINGOFLOW_METRICS":      "maybe",
	}))
	if err == nil {
		t.Fatal("Expected errors for invalid values")
	}
	if cfg.RateLimits.PerDay != 1500 {
		t.Errorf("Invalid values must not be applied, got %d", cfg.RateLimits.PerDay)
	}
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lingoflow.yaml")
	yamlDoc := `
provider:
  name: mock
rate_limits:
  per_minute: 60
job:
  chunk_delay: 2s
  error_budget: 5
cache:
  url: memory
  ttl: 1h
`
	if err := os.WriteFile(path, []byte(yamlDoc), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Provider.Name != "mock" {
		t.Errorf("Expected mock provider, got %q", cfg.Provider.Name)
	}
	if cfg.RateLimits.PerMinute != 60 || cfg.RateLimits.PerDay != 1500 {
		t.Errorf("Expected YAML over defaults, got %+v", cfg.RateLimits)
	}
	if cfg.Job.ChunkDelay != 2*time.Second || cfg.Job.ErrorBudget != 5 {
		t.Errorf("Unexpected job config %+v", cfg.Job)
	}
	if cfg.Cache.URL != "memory" || cfg.Cache.TTL != time.Hour {
		t.Errorf("Unexpected cache config %+v", cfg.Cache)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Mock provider needs no key, got %v", err)
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lingoflow.yaml")
	if err := os.WriteFile(path, []byte("rate_limits:\n  per_minute: 60\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LINGOFLOW_RATE_PER_MINUTE", "5")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.RateLimits.PerMinute != 5 {
		t.Errorf("Expected environment to win, got %d", cfg.RateLimits.PerMinute)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("rate_limits: [1, 2"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected error for invalid YAML")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Provider.APIKey = ""

	err := cfg.Validate()
	var validationErr *lingoflow.ValidationError
	if !errors.As(err, &validationErr) || validationErr.Field != "provider.api_key" {
		t.Errorf("Expected missing key error, got %v", err)
	}

	cfg.Server.AllowRequestKeys = true
	if err := cfg.Validate(); err != nil {
		t.Errorf("Request keys allowed, expected no error, got %v", err)
	}

	cfg.Provider.Name = "bard"
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for unknown provider")
	}
}

func TestConversions(t *testing.T) {
	cfg := Default()
	cfg.Retry.MaxRetries = 1
	cfg.Timeouts.Short = 5 * time.Second

	if rc := cfg.RetryConfig(); rc.MaxRetries != 1 || rc.BaseDelay != time.Second {
		t.Errorf("Unexpected retry config %+v", rc)
	}
	if rl := cfg.RateLimitConfig(); rl.RequestsPerMinute != 15 || rl.RequestsPerDay != 1500 {
		t.Errorf("Unexpected rate limits %+v", rl)
	}
	if to := cfg.ChunkTimeouts(); to.Short != 5*time.Second || to.Long != 30*time.Second {
		t.Errorf("Unexpected timeouts %+v", to)
	}
}
