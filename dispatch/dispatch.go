// Package dispatch runs one batch document against several target
// languages, either by invoking a worker Lambda per language or in process.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	lambdasdk "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/ZaguanLabs/lingoflow"
	"github.com/ZaguanLabs/lingoflow/logging"
)

// RateLimits mirrors the submission field of the same name.
type RateLimits struct {
	PerMinute int `json:"perMinute"`
	PerDay    int `json:"perDay"`
}

// Request is a batch translation of one document.
type Request struct {
	// InputName names checkpoints and artifacts, e.g. "en.json".
	InputName       string          `json:"inputName"`
	Document        json.RawMessage `json:"document"`
	SourceLanguage  string          `json:"sourceLanguage"`
	TargetLanguages []string        `json:"targetLanguages,omitempty"`
	// TargetLanguage is set on per-language worker invocations.
	TargetLanguage string      `json:"targetLanguage,omitempty"`
	Prompt         string      `json:"prompt,omitempty"`
	RateLimits     *RateLimits `json:"rateLimits,omitempty"`
}

// Languages returns the target languages, in request order, without
// duplicates or blanks.
func (r Request) Languages() []string {
	all := append([]string{r.TargetLanguage}, r.TargetLanguages...)
	seen := make(map[string]bool, len(all))
	langs := make([]string, 0, len(all))
	for _, l := range all {
		l = strings.TrimSpace(l)
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		langs = append(langs, l)
	}
	return langs
}

// Validate rejects a request before anything is dispatched.
func (r Request) Validate() error {
	if len(r.Document) == 0 || string(r.Document) == "null" {
		return &lingoflow.ValidationError{Field: "document", Message: "is required"}
	}
	if strings.TrimSpace(r.SourceLanguage) == "" {
		return &lingoflow.ValidationError{Field: "sourceLanguage", Message: "is required"}
	}
	if len(r.Languages()) == 0 {
		return &lingoflow.ValidationError{Field: "targetLanguages", Message: "at least one language is required"}
	}
	if strings.TrimSpace(r.InputName) == "" {
		return &lingoflow.ValidationError{Field: "inputName", Message: "is required"}
	}
	return nil
}

// LanguageResult reports one language of a batch.
type LanguageResult struct {
	Language   string `json:"language"`
	Dispatched bool   `json:"dispatched,omitempty"` // handed to a worker, result not awaited
	State      string `json:"state,omitempty"`
	Artifact   string `json:"artifact,omitempty"`
	Translated int    `json:"translated,omitempty"`
	Fallbacks  int    `json:"fallbacks,omitempty"`
	Resumed    int    `json:"resumed,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Response is the outcome of a batch.
type Response struct {
	Results []LanguageResult `json:"results"`
}

// Failed reports whether any language failed.
func (r *Response) Failed() bool {
	for _, res := range r.Results {
		if res.Error != "" {
			return true
		}
	}
	return false
}

// Invoker is the part of the Lambda client the dispatcher uses.
type Invoker interface {
	Invoke(ctx context.Context, params *lambdasdk.InvokeInput, optFns ...func(*lambdasdk.Options)) (*lambdasdk.InvokeOutput, error)
}

// LanguageRunner translates req into one language in process.
type LanguageRunner interface {
	RunLanguage(ctx context.Context, req Request, lang string) LanguageResult
}

// Dispatcher fans a batch out by language.
type Dispatcher struct {
	invoker  Invoker
	function string
	runner   LanguageRunner
	logger   *slog.Logger
}

// New creates a dispatcher. With a nil invoker or an empty function name
// every language runs in process, one after another.
func New(invoker Invoker, function string, runner LanguageRunner) *Dispatcher {
	return &Dispatcher{
		invoker:  invoker,
		function: function,
		runner:   runner,
		logger:   logging.Component("dispatch"),
	}
}

// NewLambda creates a dispatcher that invokes function through the default
// AWS configuration chain.
func NewLambda(ctx context.Context, function string, runner LanguageRunner) (*Dispatcher, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return New(lambdasdk.NewFromConfig(cfg), function, runner), nil
}

// Remote reports whether languages are handed to worker invocations.
func (d *Dispatcher) Remote() bool {
	return d.invoker != nil && d.function != ""
}

// Dispatch validates req and processes each of its languages.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	langs := req.Languages()
	resp := &Response{Results: make([]LanguageResult, len(langs))}

	if !d.Remote() {
		if d.runner == nil {
			return nil, errors.New("dispatch: no worker function and no local runner")
		}
		for i, lang := range langs {
			if err := ctx.Err(); err != nil {
				return resp, err
			}
			resp.Results[i] = d.runner.RunLanguage(ctx, req, lang)
		}
		return resp, nil
	}

	var wg sync.WaitGroup
	for i, lang := range langs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp.Results[i] = d.invoke(ctx, req, lang)
		}()
	}
	wg.Wait()
	return resp, nil
}

// invoke starts one asynchronous worker for lang.
func (d *Dispatcher) invoke(ctx context.Context, req Request, lang string) LanguageResult {
	single := req
	single.TargetLanguage = lang
	single.TargetLanguages = nil

	payload, err := json.Marshal(single)
	if err != nil {
		return LanguageResult{Language: lang, Error: err.Error()}
	}

	_, err = d.invoker.Invoke(ctx, &lambdasdk.InvokeInput{
		FunctionName:   aws.String(d.function),
		InvocationType: types.InvocationTypeEvent,
		Payload:        payload,
	})
	if err != nil {
		d.logger.Error("worker invocation failed", "language", lang, "function", d.function, "error", err)
		return LanguageResult{Language: lang, Error: fmt.Sprintf("invoke %s: %v", d.function, err)}
	}

	d.logger.Info("dispatched language", "language", lang, "function", d.function)
	return LanguageResult{Language: lang, Dispatched: true}
}
