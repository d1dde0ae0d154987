// Package lingoflow translates structured JSON documents and long-form
// articles one text unit at a time, through a rate-limited and retrying
// remote client, streaming progress events as each unit completes.
//
// Basic usage:
//
//	p, err := provider.NewGeminiProvider(ctx, provider.GeminiConfig{
//	    APIKey: os.Getenv("GEMINI_API_KEY"),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	doc, _ := document.Parse([]byte(`{"greeting":"Hello"}`))
//	orch := lingoflow.NewOrchestrator(p)
//	result, err := orch.Run(ctx, lingoflow.Job{
//	    Document:   doc,
//	    SourceLang: "en",
//	    TargetLang: "es",
//	}, func(ev lingoflow.Event) {
//	    fmt.Println(ev.Type, ev.Completed, ev.Total)
//	})
package lingoflow

import (
	"context"
	"time"
)

// AIProvider is the interface for remote translation backends.
type AIProvider interface {
	Translate(ctx context.Context, req TranslateRequest) (string, error)
}

// TranslateRequest contains the parameters for translating one unit of text.
type TranslateRequest struct {
	Text       string
	SourceLang string
	TargetLang string
	// Prompt is the fully rendered prompt. When empty, providers render
	// DefaultTranslatePrompt.
	Prompt string
	// Timeout bounds a single attempt. Zero uses the client default.
	Timeout time.Duration
}

// PromptText returns the prompt to send for this request.
func (r TranslateRequest) PromptText() string {
	if r.Prompt != "" {
		return r.Prompt
	}
	return RenderPrompt(DefaultTranslatePrompt, PromptVars{
		Text:           r.Text,
		SourceLanguage: r.SourceLang,
		TargetLanguage: r.TargetLang,
	})
}

// TranslationCache is the interface for exact-match translation reuse.
type TranslationCache interface {
	Get(key string) (string, bool)
	Set(key string, value string) error
}

// Observer receives notifications about attempts, units and jobs.
// Implementations must be safe for concurrent use.
type Observer interface {
	JobStarted(kind string)
	AttemptFinished(err error, duration time.Duration)
	RateLimited(wait time.Duration)
	UnitFinished(outcome UnitOutcome)
	JobFinished(state JobState, duration time.Duration)
	CheckpointSaved(err error)
}

type noopObserver struct{}

func (noopObserver) JobStarted(string)                    {}
func (noopObserver) AttemptFinished(error, time.Duration) {}
func (noopObserver) RateLimited(time.Duration)            {}
func (noopObserver) UnitFinished(UnitOutcome)             {}
func (noopObserver) JobFinished(JobState, time.Duration)  {}
func (noopObserver) CheckpointSaved(error)                {}
