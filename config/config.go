// Package config loads service and CLI settings from an optional YAML file,
// a .env file and the environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ZaguanLabs/lingoflow"
	"github.com/ZaguanLabs/lingoflow/chunker"
)

// EnvPrefix prefixes every lingoflow-specific environment variable.
const EnvPrefix = "LINGOFLOW_"

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Provider   ProviderConfig   `yaml:"provider"`
	RateLimits RateLimitConfig  `yaml:"rate_limits"`
	Retry      RetryConfig      `yaml:"retry"`
	Job        JobConfig        `yaml:"job"`
	Timeouts   TimeoutConfig    `yaml:"timeouts"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Cache      CacheConfig      `yaml:"cache"`
	Artifacts  ArtifactConfig   `yaml:"artifacts"`
	Dispatch   DispatchConfig   `yaml:"dispatch"`
	Log        LogConfig        `yaml:"log"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Metrics         bool          `yaml:"metrics"`
	// AllowRequestKeys lets requests carry their own provider API key.
	AllowRequestKeys bool `yaml:"allow_request_keys"`
}

type ProviderConfig struct {
	Name    string `yaml:"name"` // gemini | openai | mock
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute"`
	PerDay    int `yaml:"per_day"`
}

type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
	MaxDelay   time.Duration `yaml:"max_delay"`
}

type JobConfig struct {
	ErrorBudget      int           `yaml:"error_budget"`
	ChunkSize        int           `yaml:"chunk_size"`
	ChunkDelay       time.Duration `yaml:"chunk_delay"`
	ImproveThreshold int           `yaml:"improve_threshold"`
}

type TimeoutConfig struct {
	Short time.Duration `yaml:"short"`
	Long  time.Duration `yaml:"long"`
	Max   time.Duration `yaml:"max"`
}

type CheckpointConfig struct {
	URL      string `yaml:"url"` // file://, mem://, s3://, gs://, redis://, or empty
	Interval int    `yaml:"interval"`
}

type CacheConfig struct {
	URL  string        `yaml:"url"` // empty disables the cache; "memory" or redis://
	Size int           `yaml:"size"`
	TTL  time.Duration `yaml:"ttl"`
}

// ArtifactConfig selects where finished documents are written. URL opens a
// gocloud bucket; Endpoint selects a MinIO/S3 endpoint instead.
type ArtifactConfig struct {
	URL       string `yaml:"url"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type DispatchConfig struct {
	WorkerFunction string `yaml:"worker_function"`
}

type LogConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// Default returns the built-in settings.
func Default() *Config {
	retry := lingoflow.DefaultRetryConfig()
	limits := lingoflow.DefaultRateLimitConfig()
	timeouts := chunker.DefaultTimeouts()

	return &Config{
		Server: ServerConfig{
			Port:            ":8080",
			ShutdownTimeout: 15 * time.Second,
			Metrics:         true,
		},
		Provider: ProviderConfig{Name: "gemini"},
		RateLimits: RateLimitConfig{
			PerMinute: limits.RequestsPerMinute,
			PerDay:    limits.RequestsPerDay,
		},
		Retry: RetryConfig{
			MaxRetries: retry.MaxRetries,
			BaseDelay:  retry.BaseDelay,
			MaxDelay:   retry.MaxDelay,
		},
		Job: JobConfig{
			ErrorBudget:      lingoflow.DefaultErrorBudget,
			ChunkSize:        chunker.DefaultChunkSize,
			ImproveThreshold: lingoflow.DefaultImproveThreshold,
		},
		Timeouts: TimeoutConfig{
			Short: timeouts.Short,
			Long:  timeouts.Long,
			Max:   timeouts.Max,
		},
		Checkpoint: CheckpointConfig{Interval: lingoflow.DefaultSaveInterval},
		Artifacts:  ArtifactConfig{Region: "us-east-1"},
		Log:        LogConfig{Format: "text", Level: "info"},
	}
}

// Load builds the configuration. path names an optional YAML file; a
// missing .env file is ignored.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 - operator-supplied config path
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	_ = godotenv.Load()

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	get := func(keys ...string) (string, bool) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v), true
			}
		}
		return "", false
	}

	var errs []error
	setString := func(dst *string, keys ...string) {
		if v, ok := get(keys...); ok {
			*dst = v
		}
	}
	setInt := func(dst *int, keys ...string) {
		if v, ok := get(keys...); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %q is not an integer", keys[0], v))
				return
			}
			*dst = n
		}
	}
	setDuration := func(dst *time.Duration, keys ...string) {
		if v, ok := get(keys...); ok {
			d, err := parseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", keys[0], err))
				return
			}
			*dst = d
		}
	}
	setBool := func(dst *bool, keys ...string) {
		if v, ok := get(keys...); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %q is not a boolean", keys[0], v))
				return
			}
			*dst = b
		}
	}

	if v, ok := get("PORT", EnvPrefix+"PORT"); ok {
		if !strings.HasPrefix(v, ":") && !strings.Contains(v, ":") {
			v = ":" + v
		}
		c.Server.Port = v
	}
	setBool(&c.Server.Metrics, EnvPrefix+"METRICS")
	setBool(&c.Server.AllowRequestKeys, EnvPrefix+"ALLOW_REQUEST_KEYS")

	setString(&c.Provider.Name, EnvPrefix+"PROVIDER")
	setString(&c.Provider.Model, EnvPrefix+"MODEL")
	setString(&c.Provider.BaseURL, EnvPrefix+"BASE_URL", "OPENAI_BASE_URL")
	switch strings.ToLower(c.Provider.Name) {
	case "openai":
		setString(&c.Provider.APIKey, EnvPrefix+"API_KEY", "OPENAI_API_KEY")
	default:
		setString(&c.Provider.APIKey, EnvPrefix+"API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY")
	}

	setInt(&c.RateLimits.PerMinute, EnvPrefix+"RATE_PER_MINUTE")
	setInt(&c.RateLimits.PerDay, EnvPrefix+"RATE_PER_DAY")

	setInt(&c.Retry.MaxRetries, EnvPrefix+"MAX_RETRIES")
	setDuration(&c.Retry.BaseDelay, EnvPrefix+"RETRY_BASE_DELAY")
	setDuration(&c.Retry.MaxDelay, EnvPrefix+"RETRY_MAX_DELAY")

	setInt(&c.Job.ErrorBudget, EnvPrefix+"ERROR_BUDGET")
	setInt(&c.Job.ChunkSize, EnvPrefix+"CHUNK_SIZE")
	setDuration(&c.Job.ChunkDelay, EnvPrefix+"CHUNK_DELAY")
	setInt(&c.Job.ImproveThreshold, EnvPrefix+"IMPROVE_THRESHOLD")

	setDuration(&c.Timeouts.Short, EnvPrefix+"TIMEOUT_SHORT")
	setDuration(&c.Timeouts.Long, EnvPrefix+"TIMEOUT_LONG")
	setDuration(&c.Timeouts.Max, EnvPrefix+"TIMEOUT_MAX")

	setString(&c.Checkpoint.URL, EnvPrefix+"CHECKPOINT_URL")
	setInt(&c.Checkpoint.Interval, EnvPrefix+"CHECKPOINT_INTERVAL")

	setString(&c.Cache.URL, EnvPrefix+"CACHE_URL", "REDIS_URL")
	setInt(&c.Cache.Size, EnvPrefix+"CACHE_SIZE")
	setDuration(&c.Cache.TTL, EnvPrefix+"CACHE_TTL")

	setString(&c.Artifacts.URL, EnvPrefix+"ARTIFACT_URL")
	setString(&c.Artifacts.Endpoint, EnvPrefix+"ARTIFACT_ENDPOINT")
	setString(&c.Artifacts.Region, EnvPrefix+"ARTIFACT_REGION")
	setString(&c.Artifacts.AccessKey, EnvPrefix+"ARTIFACT_ACCESS_KEY", "MINIO_ROOT_USER")
	setString(&c.Artifacts.SecretKey, EnvPrefix+"ARTIFACT_SECRET_KEY", "MINIO_ROOT_PASSWORD")
	setString(&c.Artifacts.Bucket, EnvPrefix+"ARTIFACT_BUCKET")
	setBool(&c.Artifacts.UseSSL, EnvPrefix+"ARTIFACT_USE_SSL")

	setString(&c.Dispatch.WorkerFunction, EnvPrefix+"WORKER_FUNCTION")

	setString(&c.Log.Format, EnvPrefix+"LOG_FORMAT")
	setString(&c.Log.Level, EnvPrefix+"LOG_LEVEL")

	return errors.Join(errs...)
}

// parseDuration accepts Go durations and bare integers as milliseconds.
func parseDuration(v string) (time.Duration, error) {
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%q is not a duration", v)
	}
	return d, nil
}

// Validate reports settings that make the service unusable.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Provider.Name) {
	case "", "gemini", "openai":
		if c.Provider.APIKey == "" && !c.Server.AllowRequestKeys {
			errs = append(errs, &lingoflow.ValidationError{Field: "provider.api_key", Message: "is required (set GEMINI_API_KEY or OPENAI_API_KEY)"})
		}
	case "mock":
	default:
		errs = append(errs, &lingoflow.ValidationError{Field: "provider.name", Message: fmt.Sprintf("unknown provider %q", c.Provider.Name)})
	}
	if c.RateLimits.PerMinute < 0 || c.RateLimits.PerDay < 0 {
		errs = append(errs, &lingoflow.ValidationError{Field: "rate_limits", Message: "must not be negative"})
	}
	if c.Retry.MaxRetries < 0 {
		errs = append(errs, &lingoflow.ValidationError{Field: "retry.max_retries", Message: "must not be negative"})
	}
	if c.Job.ChunkDelay < 0 {
		errs = append(errs, &lingoflow.ValidationError{Field: "job.chunk_delay", Message: "must not be negative"})
	}
	return errors.Join(errs...)
}

// RateLimitConfig converts the limits for lingoflow.
func (c *Config) RateLimitConfig() lingoflow.RateLimitConfig {
	return lingoflow.RateLimitConfig{
		RequestsPerMinute: c.RateLimits.PerMinute,
		RequestsPerDay:    c.RateLimits.PerDay,
	}
}

// RetryConfig converts the retry policy for lingoflow.
func (c *Config) RetryConfig() lingoflow.RetryConfig {
	cfg := lingoflow.DefaultRetryConfig()
	cfg.MaxRetries = c.Retry.MaxRetries
	if c.Retry.BaseDelay > 0 {
		cfg.BaseDelay = c.Retry.BaseDelay
	}
	cfg.MaxDelay = c.Retry.MaxDelay
	return cfg
}

// ChunkTimeouts converts the timeouts for the chunker.
func (c *Config) ChunkTimeouts() chunker.Timeouts {
	t := chunker.DefaultTimeouts()
	if c.Timeouts.Short > 0 {
		t.Short = c.Timeouts.Short
	}
	if c.Timeouts.Long > 0 {
		t.Long = c.Timeouts.Long
	}
	if c.Timeouts.Max > 0 {
		t.Max = c.Timeouts.Max
	}
	return t
}
