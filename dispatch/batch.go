package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ZaguanLabs/lingoflow"
	"github.com/ZaguanLabs/lingoflow/artifact"
	"github.com/ZaguanLabs/lingoflow/checkpoint"
	"github.com/ZaguanLabs/lingoflow/document"
	"github.com/ZaguanLabs/lingoflow/logging"
)

// BatchRunner translates a batch request into one language in process,
// checkpointing under "<input>-<lang>-progress.json" and writing the
// result to the artifact store.
type BatchRunner struct {
	Orchestrator *lingoflow.Orchestrator
	Artifacts    artifact.Store
	// Events, when set, returns the event sink for one language.
	Events func(lang string) lingoflow.EventFunc
	Now    func() time.Time
	Logger *slog.Logger
}

// RunLanguage implements LanguageRunner.
func (b *BatchRunner) RunLanguage(ctx context.Context, req Request, lang string) LanguageResult {
	logger := b.Logger
	if logger == nil {
		logger = logging.Component("batch")
	}
	now := b.Now
	if now == nil {
		now = time.Now
	}

	result := LanguageResult{Language: lang}

	doc, err := document.Parse(req.Document)
	if err != nil {
		result.State = lingoflow.StateFailed.String()
		result.Error = fmt.Sprintf("invalid document: %v", err)
		return result
	}

	job := lingoflow.Job{
		ID:         uuid.NewString(),
		Document:   doc,
		SourceLang: req.SourceLanguage,
		TargetLang: lang,
		Prompt:     req.Prompt,
		Checkpoint: checkpoint.Name(req.InputName, lang),
	}
	if req.RateLimits != nil {
		job.RateLimits = &lingoflow.RateLimitConfig{
			RequestsPerMinute: req.RateLimits.PerMinute,
			RequestsPerDay:    req.RateLimits.PerDay,
		}
	}

	var emit lingoflow.EventFunc
	if b.Events != nil {
		emit = b.Events(lang)
	}

	res, err := b.Orchestrator.Run(ctx, job, emit)
	if res != nil {
		result.State = res.State.String()
		result.Translated = res.Translated + res.Cached
		result.Fallbacks = res.Fallbacks
		result.Resumed = res.Resumed
	}
	if err != nil {
		result.Error = err.Error()
		return result
	}

	if b.Artifacts != nil {
		name, err := artifact.WriteDocument(ctx, b.Artifacts, req.InputName, lang, res.Document, now())
		if err != nil {
			result.Error = err.Error()
			return result
		}
		result.Artifact = name
		logger.Info("wrote translation", "job_id", job.ID, "language", lang, "artifact", name)
	}
	return result
}

var _ LanguageRunner = (*BatchRunner)(nil)
