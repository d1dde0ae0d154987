package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gocloud.dev/blob/fileblob"

	"github.com/ZaguanLabs/lingoflow"
	"github.com/ZaguanLabs/lingoflow/cache"
	"github.com/ZaguanLabs/lingoflow/checkpoint"
	"github.com/ZaguanLabs/lingoflow/config"
	"github.com/ZaguanLabs/lingoflow/document"
	"github.com/ZaguanLabs/lingoflow/logging"
	"github.com/ZaguanLabs/lingoflow/processor"
	"github.com/ZaguanLabs/lingoflow/provider"
)

// load reads the configuration and sets up the default logger.
func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	logging.Setup(logging.Config{Format: cfg.Log.Format, Level: cfg.Log.Level, Output: o.stderr})
	return cfg, nil
}

// services are the collaborators built from configuration.
type services struct {
	provider    lingoflow.AIProvider // nil when only request keys are accepted
	cache       cache.Enumerable     // nil when disabled
	checkpoints checkpoint.Store     // nil until configured
	options     []lingoflow.OrchestratorOption
	closers     []io.Closer
	logger      *slog.Logger
}

// buildServices validates cfg and opens the provider, cache and checkpoint
// store it names. obs may be nil.
func buildServices(ctx context.Context, cfg *config.Config, obs lingoflow.Observer) (*services, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &services{logger: logging.Component("cli")}

	if cfg.Provider.APIKey != "" || strings.EqualFold(cfg.Provider.Name, "mock") {
		p, err := provider.New(ctx, provider.Config{
			Name:    cfg.Provider.Name,
			APIKey:  cfg.Provider.APIKey,
			Model:   cfg.Provider.Model,
			BaseURL: cfg.Provider.BaseURL,
		})
		if err != nil {
			return nil, err
		}
		s.provider = p
	}

	s.options = []lingoflow.OrchestratorOption{
		lingoflow.WithRateLimits(cfg.RateLimitConfig()),
		lingoflow.WithRetryConfig(cfg.RetryConfig()),
		lingoflow.WithTimeouts(cfg.ChunkTimeouts()),
		lingoflow.WithErrorBudget(cfg.Job.ErrorBudget),
		lingoflow.WithChunking(cfg.Job.ChunkSize, cfg.Job.ChunkDelay),
		lingoflow.WithProcessor(processor.NewHTMLProcessor()),
		lingoflow.WithLogger(logging.Component("orchestrator")),
	}
	if obs != nil {
		s.options = append(s.options, lingoflow.WithObserver(obs))
	}

	if cfg.Cache.URL != "" {
		c, err := cache.Open(ctx, cache.Config{
			URL:       cfg.Cache.URL,
			Size:      cfg.Cache.Size,
			TTL:       cfg.Cache.TTL,
			KeyPrefix: lingoflow.Name + ":",
		})
		if err != nil {
			s.Close()
			return nil, err
		}
		s.cache = c
		s.addCloser(c)
		s.options = append(s.options, lingoflow.WithCache(c))
	}

	if cfg.Checkpoint.URL != "" {
		store, err := checkpoint.Open(ctx, cfg.Checkpoint.URL)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.useCheckpoints(store, cfg.Checkpoint.Interval)
	}
	return s, nil
}

// useCheckpoints sets the checkpoint store.
func (s *services) useCheckpoints(store checkpoint.Store, interval int) {
	s.checkpoints = store
	s.addCloser(store)
	s.options = append(s.options, lingoflow.WithCheckpoints(store, interval))
}

func (s *services) addCloser(v any) {
	if c, ok := v.(io.Closer); ok {
		s.closers = append(s.closers, c)
	}
}

// orchestrator builds an orchestrator on the configured provider.
func (s *services) orchestrator() (*lingoflow.Orchestrator, error) {
	if s.provider == nil {
		return nil, &lingoflow.ValidationError{Field: "provider.api_key", Message: "is required (set GEMINI_API_KEY or OPENAI_API_KEY)"}
	}
	return lingoflow.NewOrchestrator(s.provider, s.options...), nil
}

// Close releases every opened backend.
func (s *services) Close() {
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			s.logger.Warn("close failed", "error", err)
		}
	}
	s.closers = nil
}

// openDirCheckpoints keeps checkpoints as files under dir.
func openDirCheckpoints(dir string) (checkpoint.Store, error) {
	bucket, err := fileblob.OpenBucket(dir, &fileblob.Options{CreateDir: true})
	if err != nil {
		return nil, fmt.Errorf("open checkpoint directory %s: %w", dir, err)
	}
	return checkpoint.NewBlobStore(bucket), nil
}

// readDocument reads and parses a JSON document file.
func readDocument(path string) ([]byte, any, error) {
	data, err := os.ReadFile(path) // #nosec G304 - CLI tool reads user-specified files
	if err != nil {
		return nil, nil, fmt.Errorf("reading file: %w", err)
	}
	doc, err := document.Parse(data)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return data, doc, nil
}

// splitList splits a comma-separated flag value.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// readPrompt returns the prompt template from a file, or "".
func readPrompt(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path) // #nosec G304 - CLI tool reads user-specified files
	if err != nil {
		return "", fmt.Errorf("reading prompt: %w", err)
	}
	return string(data), nil
}
