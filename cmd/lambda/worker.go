package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ZaguanLabs/lingoflow"
	"github.com/ZaguanLabs/lingoflow/artifact"
	"github.com/ZaguanLabs/lingoflow/cache"
	"github.com/ZaguanLabs/lingoflow/checkpoint"
	"github.com/ZaguanLabs/lingoflow/config"
	"github.com/ZaguanLabs/lingoflow/dispatch"
	"github.com/ZaguanLabs/lingoflow/logging"
	"github.com/ZaguanLabs/lingoflow/processor"
	"github.com/ZaguanLabs/lingoflow/provider"
)

// worker handles batch requests with backends opened once per execution
// environment.
type worker struct {
	runner     *dispatch.BatchRunner
	dispatcher *dispatch.Dispatcher
	closers    []io.Closer
	logger     *slog.Logger
}

// newWorker opens the provider, cache, checkpoint store and artifact store
// named by cfg. With a nil invoker every language runs in this invocation.
func newWorker(ctx context.Context, cfg *config.Config, invoker dispatch.Invoker) (*worker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Provider.APIKey == "" && !strings.EqualFold(cfg.Provider.Name, "mock") {
		return nil, &lingoflow.ValidationError{Field: "provider.api_key", Message: "is required for batch workers"}
	}

	w := &worker{logger: logging.Component("worker")}

	p, err := provider.New(ctx, provider.Config{
		Name:    cfg.Provider.Name,
		APIKey:  cfg.Provider.APIKey,
		Model:   cfg.Provider.Model,
		BaseURL: cfg.Provider.BaseURL,
	})
	if err != nil {
		return nil, err
	}

	opts := []lingoflow.OrchestratorOption{
		lingoflow.WithRateLimits(cfg.RateLimitConfig()),
		lingoflow.WithRetryConfig(cfg.RetryConfig()),
		lingoflow.WithTimeouts(cfg.ChunkTimeouts()),
		lingoflow.WithErrorBudget(cfg.Job.ErrorBudget),
		lingoflow.WithChunking(cfg.Job.ChunkSize, cfg.Job.ChunkDelay),
		lingoflow.WithProcessor(processor.NewHTMLProcessor()),
		lingoflow.WithLogger(logging.Component("orchestrator")),
	}

	if cfg.Cache.URL != "" {
		c, err := cache.Open(ctx, cache.Config{
			URL:       cfg.Cache.URL,
			Size:      cfg.Cache.Size,
			TTL:       cfg.Cache.TTL,
			KeyPrefix: lingoflow.Name + ":",
		})
		if err != nil {
			return nil, err
		}
		w.track(c)
		opts = append(opts, lingoflow.WithCache(c))
	}

	store, err := checkpoint.Open(ctx, cfg.Checkpoint.URL)
	if err != nil {
		w.Close()
		return nil, err
	}
	w.track(store)
	opts = append(opts, lingoflow.WithCheckpoints(store, cfg.Checkpoint.Interval))

	artifacts, err := artifact.Open(ctx, artifact.Config{
		URL:       cfg.Artifacts.URL,
		Endpoint:  cfg.Artifacts.Endpoint,
		Region:    cfg.Artifacts.Region,
		AccessKey: cfg.Artifacts.AccessKey,
		SecretKey: cfg.Artifacts.SecretKey,
		Bucket:    cfg.Artifacts.Bucket,
		UseSSL:    cfg.Artifacts.UseSSL,
	})
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("open artifact store: %w", err)
	}
	w.track(artifacts)

	w.runner = &dispatch.BatchRunner{
		Orchestrator: lingoflow.NewOrchestrator(p, opts...),
		Artifacts:    artifacts,
		Logger:       logging.Component("batch"),
	}
	w.dispatcher = dispatch.New(invoker, cfg.Dispatch.WorkerFunction, w.runner)
	return w, nil
}

func (w *worker) track(v any) {
	if c, ok := v.(io.Closer); ok {
		w.closers = append(w.closers, c)
	}
}

// Handle runs a single-language invocation here and fans any other
// request out through the dispatcher. A failed language is returned as an
// error so the asynchronous invocation is retried from its checkpoint.
func (w *worker) Handle(ctx context.Context, req dispatch.Request) (*dispatch.Response, error) {
	if req.TargetLanguage != "" && len(req.TargetLanguages) == 0 {
		if err := req.Validate(); err != nil {
			return nil, err
		}
		res := w.runner.RunLanguage(ctx, req, req.TargetLanguage)
		resp := &dispatch.Response{Results: []dispatch.LanguageResult{res}}
		if res.Error != "" {
			return resp, fmt.Errorf("translate %s into %s: %s", req.InputName, res.Language, res.Error)
		}
		return resp, nil
	}

	resp, err := w.dispatcher.Dispatch(ctx, req)
	if err != nil {
		return resp, err
	}
	w.logger.Info("batch handled",
		"input", req.InputName,
		"languages", len(resp.Results),
		"remote", w.dispatcher.Remote(),
		"failed", resp.Failed(),
	)
	return resp, nil
}

// Close releases every opened backend.
func (w *worker) Close() {
	for _, c := range w.closers {
		if err := c.Close(); err != nil {
			w.logger.Warn("close failed", "error", err)
		}
	}
	w.closers = nil
}
