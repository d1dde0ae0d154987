package lingoflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ZaguanLabs/lingoflow/checkpoint"
	"github.com/ZaguanLabs/lingoflow/chunker"
	"github.com/ZaguanLabs/lingoflow/document"
	"github.com/ZaguanLabs/lingoflow/logging"
)

// DefaultErrorBudget is the number of consecutive failed units that aborts a job.
const DefaultErrorBudget = 3

// DefaultSaveInterval is the number of units between checkpoint saves.
const DefaultSaveInterval = 10

// Orchestrator drives translation jobs. It holds no per-job state and is
// safe to share: every Run builds its own rate limiter and client.
type Orchestrator struct {
	provider     AIProvider
	retry        RetryConfig
	rateLimits   RateLimitConfig
	timeouts     chunker.Timeouts
	clock        Clock
	errorBudget  int
	checkpoints  checkpoint.Store
	saveInterval int
	chunkSize    int
	chunkDelay   time.Duration
	cache        TranslationCache
	processors   map[string]ContentProcessor
	observer     Observer
	logger       *slog.Logger
}

// OrchestratorOption is a functional option for configuring the Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithRetryConfig sets the retry policy.
func WithRetryConfig(cfg RetryConfig) OrchestratorOption {
	return func(o *Orchestrator) {
		o.retry = cfg
	}
}

// WithRateLimits sets the default per-job rate limits.
func WithRateLimits(cfg RateLimitConfig) OrchestratorOption {
	return func(o *Orchestrator) {
		o.rateLimits = cfg
	}
}

// WithTimeouts sets the per-call timeout policy.
func WithTimeouts(t chunker.Timeouts) OrchestratorOption {
	return func(o *Orchestrator) {
		o.timeouts = t
	}
}

// WithClock sets the clock for rate limiting, backoff and chunk delays.
func WithClock(clock Clock) OrchestratorOption {
	return func(o *Orchestrator) {
		o.clock = clock
	}
}

// WithErrorBudget sets how many consecutive failed units abort a job.
func WithErrorBudget(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		o.errorBudget = n
	}
}

// WithCheckpoints enables resumable jobs. interval is the number of
// completed units between saves.
func WithCheckpoints(store checkpoint.Store, interval int) OrchestratorOption {
	return func(o *Orchestrator) {
		o.checkpoints = store
		o.saveInterval = interval
	}
}

// WithChunking sets the base chunk size and the pause between chunks.
func WithChunking(size int, delay time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.chunkSize = size
		o.chunkDelay = delay
	}
}

// WithCache enables exact-match reuse of earlier translations.
func WithCache(cache TranslationCache) OrchestratorOption {
	return func(o *Orchestrator) {
		o.cache = cache
	}
}

// WithProcessor registers a content processor for RunText.
func WithProcessor(p ContentProcessor) OrchestratorOption {
	return func(o *Orchestrator) {
		o.processors[p.ContentType()] = p
	}
}

// WithObserver sets the metrics observer.
func WithObserver(obs Observer) OrchestratorOption {
	return func(o *Orchestrator) {
		o.observer = obs
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// NewOrchestrator creates an Orchestrator for provider.
func NewOrchestrator(provider AIProvider, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		provider:     provider,
		retry:        DefaultRetryConfig(),
		rateLimits:   DefaultRateLimitConfig(),
		timeouts:     chunker.DefaultTimeouts(),
		clock:        SystemClock(),
		errorBudget:  DefaultErrorBudget,
		checkpoints:  checkpoint.Noop(),
		saveInterval: DefaultSaveInterval,
		chunkSize:    chunker.DefaultChunkSize,
		processors:   make(map[string]ContentProcessor),
		observer:     noopObserver{},
		logger:       slog.Default().With("component", "orchestrator"),
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.errorBudget <= 0 {
		o.errorBudget = DefaultErrorBudget
	}
	if o.saveInterval <= 0 {
		o.saveInterval = DefaultSaveInterval
	}
	if o.checkpoints == nil {
		o.checkpoints = checkpoint.Noop()
	}
	return o
}

// Job describes one document translation.
type Job struct {
	ID         string
	Document   any // normalized document, see package document
	SourceLang string
	TargetLang string
	// Prompt is a template rendered with RenderPrompt for each unit.
	// Empty uses DefaultTranslatePrompt.
	Prompt string
	// RateLimits overrides the orchestrator limits for this job.
	RateLimits *RateLimitConfig
	// Checkpoint names the checkpoint of a resumable job. Empty disables
	// checkpointing for this job.
	Checkpoint string
}

func (j Job) validate() error {
	if j.Document == nil {
		return &ValidationError{Field: "document", Message: "is required"}
	}
	if strings.TrimSpace(j.TargetLang) == "" {
		return &ValidationError{Field: "targetLanguage", Message: "is required"}
	}
	if strings.TrimSpace(j.SourceLang) == "" {
		return &ValidationError{Field: "sourceLanguage", Message: "is required"}
	}
	if j.RateLimits != nil && (j.RateLimits.RequestsPerMinute < 0 || j.RateLimits.RequestsPerDay < 0) {
		return &ValidationError{Field: "rateLimits", Message: "must not be negative"}
	}
	return nil
}

// unitFunc produces the final value of one unit.
type unitFunc func(ctx context.Context, client *RetryingClient, key, source string) (string, UnitOutcome, error)

// plan is the input of the shared job loop.
type plan struct {
	kind     string // document, article or improve
	job      Job
	flat     *document.FlatMapping // units to process, in order
	template any                   // structure the results are merged into
	unit     unitFunc
	// finalize, when set, turns the rebuilt document into the one
	// carried by the complete event.
	finalize func(doc any) (any, error)
}

// Run translates every string leaf of job.Document.
//
// Events are delivered to emit in order: one init, one progress per unit
// and a terminal complete or error. A cancelled job emits nothing further
// and returns an error matching ErrCancelled. Validation errors are
// returned before any event is emitted.
func (o *Orchestrator) Run(ctx context.Context, job Job, emit EventFunc) (*Result, error) {
	if err := job.validate(); err != nil {
		return &Result{State: StateIdle}, err
	}
	if _, ok := job.Document.(string); ok {
		return &Result{State: StateIdle}, &ValidationError{Field: "document", Message: "must be a JSON object or array"}
	}

	template := job.Prompt
	if template == "" {
		template = DefaultTranslatePrompt
	}

	return o.execute(ctx, plan{
		kind:     "document",
		job:      job,
		flat:     document.Flatten(job.Document),
		template: job.Document,
		unit:     o.translateUnit(job, template, 0),
	}, emit)
}

// translateUnit translates one string. minTimeout raises the per-call
// timeout for long-form text.
func (o *Orchestrator) translateUnit(job Job, template string, minTimeout time.Duration) unitFunc {
	return func(ctx context.Context, client *RetryingClient, key, source string) (string, UnitOutcome, error) {
		if strings.TrimSpace(source) == "" {
			return source, UnitSkipped, nil
		}

		cacheKey := CacheKey(HashText(source), job.SourceLang, job.TargetLang)
		if o.cache != nil {
			if cached, ok := o.cache.Get(cacheKey); ok {
				return cached, UnitCached, nil
			}
		}

		timeout := o.timeouts.For(source)
		if timeout < minTimeout {
			timeout = minTimeout
		}

		out, err := client.Translate(ctx, TranslateRequest{
			Text:       source,
			SourceLang: job.SourceLang,
			TargetLang: job.TargetLang,
			Prompt: RenderPrompt(template, PromptVars{
				Text:           source,
				SourceLanguage: job.SourceLang,
				TargetLanguage: job.TargetLang,
			}),
			Timeout: timeout,
		})
		if err != nil {
			return source, UnitFallback, err
		}
		if strings.TrimSpace(out) == "" {
			return source, UnitFallback, &ProviderError{Message: "empty translation received"}
		}

		if o.cache != nil {
			if err := o.cache.Set(cacheKey, out); err != nil {
				o.logger.Debug("cache set failed", "key", key, "error", err)
			}
		}
		return out, UnitTranslated, nil
	}
}

// run is the mutable state of one execution.
type run struct {
	plan     plan
	emit     EventFunc
	logger   *slog.Logger
	progress *checkpoint.Progress
	result   *Result
	started  time.Time
}

func (o *Orchestrator) execute(ctx context.Context, p plan, emit EventFunc) (*Result, error) {
	if emit == nil {
		emit = func(Event) {}
	}

	limits := o.rateLimits
	if p.job.RateLimits != nil {
		if p.job.RateLimits.RequestsPerMinute > 0 {
			limits.RequestsPerMinute = p.job.RateLimits.RequestsPerMinute
		}
		if p.job.RateLimits.RequestsPerDay > 0 {
			limits.RequestsPerDay = p.job.RateLimits.RequestsPerDay
		}
	}
	limiter := NewRateLimiterWithClock(limits, o.clock)
	limits = limiter.Limits()
	client := NewRetryingClient(o.provider, limiter, o.retry,
		WithClientClock(o.clock),
		WithClientObserver(o.observer),
	)

	keys := p.flat.Keys()
	r := &run{
		plan:    p,
		emit:    emit,
		started: o.clock.Now(),
		logger:  logging.Job(o.logger, p.job.ID, p.job.SourceLang, p.job.TargetLang),
		result: &Result{
			State:     StateRunning,
			TotalKeys: len(keys),
			Flat:      document.NewFlatMapping(),
		},
	}

	o.observer.JobStarted(p.kind)
	emit(InitEvent(len(keys)))

	if err := ctx.Err(); err != nil {
		return o.cancel(ctx, r, err)
	}

	if err := o.restore(ctx, r, keys); err != nil {
		return o.fail(ctx, r, err, false)
	}

	completed := r.progress.Completed()
	remaining := make([]string, 0, len(keys))
	for _, k := range keys {
		if !completed[k] {
			remaining = append(remaining, k)
		}
	}

	chunkSize := chunker.OptimalChunkSize(o.chunkSize, limits.RequestsPerMinute, limits.RequestsPerDay, len(remaining))
	consecutiveErrors := 0
	sinceSave := 0

	for i, chunkNum := 0, 0; i < len(remaining); chunkNum++ {
		// Recalculate periodically against what is left
		if chunkNum > 0 && chunkNum%5 == 0 {
			chunkSize = chunker.OptimalChunkSize(o.chunkSize, limits.RequestsPerMinute, limits.RequestsPerDay, len(remaining)-i)
		}
		end := i + chunkSize
		if end > len(remaining) {
			end = len(remaining)
		}

		r.logger.Info("processing chunk",
			"chunk", chunkNum+1,
			"keys", end-i,
			"completed", len(r.progress.CompletedKeys),
			"total", len(keys),
			"eta", estimateRemaining(r.started, o.clock.Now(), len(r.progress.CompletedKeys)-r.result.Resumed, len(remaining)-i),
		)

		for _, key := range remaining[i:end] {
			if err := ctx.Err(); err != nil {
				return o.cancel(ctx, r, err)
			}

			source, _ := p.flat.Get(key)
			value, outcome, err := p.unit(ctx, client, key, source)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return o.cancel(ctx, r, ctxErr)
			}

			o.count(r.result, outcome)
			o.observer.UnitFinished(outcome)

			switch {
			case err != nil:
				consecutiveErrors++
				r.logger.Warn("unit failed, keeping fallback text",
					"key", key,
					"consecutive_errors", consecutiveErrors,
					"error", err,
				)
			case outcome == UnitTranslated || outcome == UnitCached:
				consecutiveErrors = 0
			}

			r.progress.Record(key, value)
			r.result.Flat.Set(key, value)
			emit(ProgressEvent(key, value, len(r.progress.CompletedKeys), len(keys)))

			sinceSave++
			if sinceSave >= o.saveInterval {
				o.save(ctx, r)
				sinceSave = 0
			}

			if consecutiveErrors >= o.errorBudget {
				return o.fail(ctx, r, &JobError{
					Reason:  ReasonBudgetExhausted,
					Message: fmt.Sprintf("%d consecutive units failed", consecutiveErrors),
					Cause:   err,
				}, true)
			}
		}

		i = end
		if i < len(remaining) && o.chunkDelay > 0 {
			if err := o.clock.Sleep(ctx, o.chunkDelay); err != nil {
				return o.cancel(ctx, r, err)
			}
		}
	}

	translated := document.NewFlatMapping()
	for _, k := range keys {
		v, _ := r.progress.TranslatedFlatJSON.Get(k)
		translated.Set(k, v)
	}
	doc, err := document.Unflatten(translated, p.template)
	if err != nil {
		return o.fail(ctx, r, &JobError{Reason: ReasonInvalidDocument, Message: "rebuild document", Cause: err}, true)
	}
	if p.finalize != nil {
		if doc, err = p.finalize(doc); err != nil {
			return o.fail(ctx, r, &JobError{Reason: ReasonInvalidDocument, Message: "reassemble document", Cause: err}, true)
		}
	}

	r.result.State = StateCompleted
	r.result.Document = doc
	r.result.Flat = translated
	emit(CompleteEvent(doc))

	if p.job.Checkpoint != "" {
		if err := o.checkpoints.Delete(ctx, p.job.Checkpoint); err != nil {
			r.logger.Warn("failed to delete checkpoint", "checkpoint", p.job.Checkpoint, "error", err)
		}
	}

	o.finish(r)
	return r.result, nil
}

// restore loads a checkpoint for the job and replays its completed keys.
// An unreadable checkpoint store is job-fatal; a corrupt checkpoint is
// discarded and the job starts fresh.
func (o *Orchestrator) restore(ctx context.Context, r *run, keys []string) error {
	r.progress = checkpoint.NewProgress(len(keys), r.started)

	name := r.plan.job.Checkpoint
	if name == "" {
		return nil
	}

	saved, err := o.checkpoints.Load(ctx, name)
	switch {
	case errors.Is(err, checkpoint.ErrNoCheckpoint):
		return nil
	case errors.Is(err, checkpoint.ErrCorrupt):
		r.logger.Warn("could not load checkpoint, starting fresh", "checkpoint", name, "error", err)
		return nil
	case err != nil:
		return &JobError{
			Reason:  ReasonCheckpoint,
			Message: "load checkpoint",
			Cause:   &CheckpointError{Op: "load", Name: name, Cause: err},
		}
	}

	if saved.TotalKeys != len(keys) {
		r.logger.Warn("checkpoint key count differs from document",
			"checkpoint", name,
			"checkpoint_keys", saved.TotalKeys,
			"document_keys", len(keys),
		)
	}

	r.progress.StartTime = saved.StartTime
	done := saved.Completed()
	for _, k := range keys {
		if !done[k] {
			continue
		}
		v, _ := saved.TranslatedFlatJSON.Get(k)
		r.progress.Record(k, v)
		r.result.Flat.Set(k, v)
		r.result.Resumed++
		r.emit(ProgressEvent(k, v, len(r.progress.CompletedKeys), len(keys)))
	}

	r.logger.Info("resuming from checkpoint",
		"checkpoint", name,
		"completed", r.result.Resumed,
		"total", len(keys),
	)
	r.started = o.clock.Now()
	return nil
}

func (o *Orchestrator) save(ctx context.Context, r *run) {
	name := r.plan.job.Checkpoint
	if name == "" {
		return
	}
	err := o.checkpoints.Save(ctx, name, r.progress)
	o.observer.CheckpointSaved(err)
	if err != nil {
		r.logger.Error("failed to save checkpoint", "checkpoint", name, "error", err)
		return
	}
	r.logger.Debug("checkpoint saved",
		"checkpoint", name,
		"completed", len(r.progress.CompletedKeys),
		"total", r.progress.TotalKeys,
	)
}

func (o *Orchestrator) cancel(ctx context.Context, r *run, cause error) (*Result, error) {
	o.save(context.WithoutCancel(ctx), r)
	r.result.State = StateCancelled
	r.logger.Info("job cancelled", "completed", len(r.progress.CompletedKeys), "total", r.result.TotalKeys)
	o.finish(r)
	return r.result, fmt.Errorf("%w: %w", ErrCancelled, cause)
}

func (o *Orchestrator) fail(ctx context.Context, r *run, err error, persist bool) (*Result, error) {
	if persist {
		o.save(context.WithoutCancel(ctx), r)
	}
	r.result.State = StateFailed
	r.emit(ErrorEvent(err))
	r.logger.Error("job failed", "error", err)
	o.finish(r)
	return r.result, err
}

func (o *Orchestrator) finish(r *run) {
	o.observer.JobFinished(r.result.State, o.clock.Now().Sub(r.started))
}

func (o *Orchestrator) count(res *Result, outcome UnitOutcome) {
	switch outcome {
	case UnitTranslated:
		res.Translated++
	case UnitCached:
		res.Cached++
	case UnitSkipped, UnitKept:
		res.Skipped++
	case UnitFallback:
		res.Fallbacks++
	}
}

// estimateRemaining extrapolates the time per completed unit. It returns 0
// until a unit has completed in this run.
func estimateRemaining(start, now time.Time, completed, remaining int) time.Duration {
	if completed <= 0 {
		return 0
	}
	perUnit := now.Sub(start) / time.Duration(completed)
	return (perUnit * time.Duration(remaining)).Round(time.Second)
}
