package lingoflow

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ZaguanLabs/lingoflow/document"
)

// DefaultImproveThreshold is the length ratio, in percent of the source
// length, above which a translation is shortened.
const DefaultImproveThreshold = 120

// ImproveTimeout is the per-call timeout for improve requests.
const ImproveTimeout = 10 * time.Second

// ImproveJob describes a pass over an existing translation.
type ImproveJob struct {
	ID          string
	Source      any // source document
	Translation any // current translation of Source
	SourceLang  string
	TargetLang  string
	// Threshold is the ratio above which a unit is re-prompted.
	// Zero uses DefaultImproveThreshold.
	Threshold int
	Prompt    string // empty uses DefaultImprovePrompt
	// RateLimits overrides the orchestrator limits for this job.
	RateLimits *RateLimitConfig
}

// LengthRatio returns len(translation)/len(source)*100 in runes, or 0 for
// an empty source.
func LengthRatio(source, translation string) float64 {
	n := utf8.RuneCountInString(source)
	if n == 0 {
		return 0
	}
	return float64(utf8.RuneCountInString(translation)) / float64(n) * 100
}

// Improve shortens overlong translations. Units are the source paths whose
// translation is also a string; every other part of the translation is
// returned unchanged. Events and failure handling match Run.
func (o *Orchestrator) Improve(ctx context.Context, job ImproveJob, emit EventFunc) (*Result, error) {
	if job.Source == nil {
		return &Result{State: StateIdle}, &ValidationError{Field: "source", Message: "is required"}
	}
	if job.Translation == nil {
		return &Result{State: StateIdle}, &ValidationError{Field: "translation", Message: "is required"}
	}
	if strings.TrimSpace(job.TargetLang) == "" {
		return &Result{State: StateIdle}, &ValidationError{Field: "targetLanguage", Message: "is required"}
	}

	threshold := job.Threshold
	if threshold <= 0 {
		threshold = DefaultImproveThreshold
	}
	template := job.Prompt
	if template == "" {
		template = DefaultImprovePrompt
	}

	sources := document.Flatten(job.Source)
	current := document.Flatten(job.Translation)
	units := document.NewFlatMapping()
	for _, k := range sources.Keys() {
		if v, ok := current.Get(k); ok {
			units.Set(k, v)
		}
	}

	base := Job{
		ID:         job.ID,
		Document:   job.Translation,
		SourceLang: job.SourceLang,
		TargetLang: job.TargetLang,
		RateLimits: job.RateLimits,
	}
	if base.SourceLang == "" {
		base.SourceLang = "auto"
	}

	unit := func(ctx context.Context, client *RetryingClient, key, translation string) (string, UnitOutcome, error) {
		source, _ := sources.Get(key)
		if strings.TrimSpace(source) == "" || LengthRatio(source, translation) <= float64(threshold) {
			return translation, UnitKept, nil
		}

		out, err := o.improveOne(ctx, client, template, source, translation, base.SourceLang, base.TargetLang)
		if err != nil {
			return translation, UnitFallback, err
		}
		return out, UnitTranslated, nil
	}

	return o.execute(ctx, plan{
		kind:     "improve",
		job:      base,
		flat:     units,
		template: job.Translation,
		unit:     unit,
	}, emit)
}

// ImproveText shortens a single translation regardless of its length.
func (o *Orchestrator) ImproveText(ctx context.Context, sourceText, translatedText, sourceLang, targetLang, prompt string) (string, error) {
	if strings.TrimSpace(sourceText) == "" {
		return "", &ValidationError{Field: "sourceText", Message: "is required"}
	}
	if strings.TrimSpace(translatedText) == "" {
		return "", &ValidationError{Field: "translatedText", Message: "is required"}
	}
	if strings.TrimSpace(targetLang) == "" {
		return "", &ValidationError{Field: "targetLanguage", Message: "is required"}
	}
	if sourceLang == "" {
		sourceLang = "auto"
	}
	if prompt == "" {
		prompt = DefaultImprovePrompt
	}

	client := NewRetryingClient(o.provider, NewRateLimiterWithClock(o.rateLimits, o.clock), o.retry,
		WithClientClock(o.clock),
		WithClientObserver(o.observer),
	)
	return o.improveOne(ctx, client, prompt, sourceText, translatedText, sourceLang, targetLang)
}

// TranslateText translates a single string through a fresh client.
func (o *Orchestrator) TranslateText(ctx context.Context, text, sourceLang, targetLang, prompt string) (string, error) {
	job := Job{Document: text, SourceLang: sourceLang, TargetLang: targetLang}
	if err := job.validate(); err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", &ValidationError{Field: "text", Message: "is required"}
	}
	if prompt == "" {
		prompt = DefaultTranslatePrompt
	}

	client := NewRetryingClient(o.provider, NewRateLimiterWithClock(o.rateLimits, o.clock), o.retry,
		WithClientClock(o.clock),
		WithClientObserver(o.observer),
	)
	out, _, err := o.translateUnit(job, prompt, 0)(ctx, client, "", text)
	if err != nil {
		return "", err
	}
	return out, nil
}

func (o *Orchestrator) improveOne(ctx context.Context, client *RetryingClient, template, source, translation, sourceLang, targetLang string) (string, error) {
	out, err := client.Translate(ctx, TranslateRequest{
		Text:       translation,
		SourceLang: sourceLang,
		TargetLang: targetLang,
		Prompt: RenderPrompt(template, PromptVars{
			Text:           source,
			SourceLanguage: sourceLang,
			TargetLanguage: targetLang,
			Translation:    translation,
		}),
		Timeout: ImproveTimeout,
	})
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", &ProviderError{Message: "empty improvement received"}
	}
	return out, nil
}
