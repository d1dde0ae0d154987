package lingoflow

import (
	"context"
	"strings"
	"time"

	"github.com/ZaguanLabs/lingoflow/document"
)

// ArticleKey is the single unit key of a plain-text article.
const ArticleKey = "text"

// ArticleTimeout is the minimum per-call timeout for article units.
const ArticleTimeout = 30 * time.Second

// ContentProcessor segments a rich text format into units and reassembles
// translated units into the original markup.
type ContentProcessor interface {
	// Extract parses content. The returned units are keyed by opaque
	// names; parsed is handed back to Apply unchanged.
	Extract(content string) (parsed any, units *document.FlatMapping, err error)
	// Apply writes translated units into parsed and serializes it.
	Apply(parsed any, translated *document.FlatMapping, targetLang string) (string, error)
	// ContentType returns the format name, such as "html".
	ContentType() string
}

// TextJob describes one long-form translation.
type TextJob struct {
	ID         string
	Text       string
	Format     string // "" or "text" for plain text, otherwise a registered ContentProcessor
	SourceLang string
	TargetLang string
	Prompt     string // empty uses DefaultArticlePrompt
	RateLimits *RateLimitConfig
}

// RunText translates an article. Plain text is one unit; formats with a
// registered processor are split into one unit per text segment. The
// complete event carries {"text": <translated article>}.
func (o *Orchestrator) RunText(ctx context.Context, job TextJob, emit EventFunc) (string, *Result, error) {
	if strings.TrimSpace(job.Text) == "" {
		return "", &Result{State: StateIdle}, &ValidationError{Field: "article", Message: "is required"}
	}

	base := Job{
		ID:         job.ID,
		Document:   job.Text,
		SourceLang: job.SourceLang,
		TargetLang: job.TargetLang,
		Prompt:     job.Prompt,
		RateLimits: job.RateLimits,
	}
	if err := base.validate(); err != nil {
		return "", &Result{State: StateIdle}, err
	}

	template := job.Prompt
	if template == "" {
		template = DefaultArticlePrompt
	}

	p := plan{
		kind: "article",
		job:  base,
		unit: o.translateUnit(base, template, ArticleTimeout),
	}

	switch format := strings.ToLower(job.Format); format {
	case "", "text", "plain", "markdown":
		p.flat = document.NewFlatMapping()
		p.flat.Set(ArticleKey, job.Text)
		p.template = articleDocument(job.Text)
	default:
		proc, ok := o.processors[format]
		if !ok {
			return "", &Result{State: StateIdle}, &ValidationError{Field: "format", Message: "unsupported format " + job.Format}
		}
		parsed, units, err := proc.Extract(job.Text)
		if err != nil {
			return "", &Result{State: StateIdle}, &ValidationError{Field: "article", Message: err.Error()}
		}
		p.flat = units
		p.template = document.NewMap()
		p.finalize = func(doc any) (any, error) {
			out, err := proc.Apply(parsed, document.Flatten(doc), job.TargetLang)
			if err != nil {
				return nil, err
			}
			return articleDocument(out), nil
		}
	}

	res, err := o.execute(ctx, p, emit)
	if err != nil {
		return "", res, err
	}
	return ArticleText(res.Document), res, nil
}

func articleDocument(text string) any {
	m := document.NewMap()
	m.Set(ArticleKey, text)
	return m
}

// ArticleText extracts the article from a document built by RunText.
func ArticleText(doc any) string {
	root, ok := doc.(interface{ Get(string) (any, bool) })
	if !ok {
		return ""
	}
	v, _ := root.Get(ArticleKey)
	s, _ := v.(string)
	return s
}
