package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/ZaguanLabs/lingoflow"
	genai "google.golang.org/genai"
)

// DefaultGeminiModel is used when GeminiConfig.Model is empty.
const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiConfig holds configuration for the Gemini provider.
type GeminiConfig struct {
	APIKey string // uses GEMINI_API_KEY / GOOGLE_API_KEY from the environment if empty
	Model  string
}

// generateFunc sends one prompt and returns the model text.
type generateFunc func(ctx context.Context, model, prompt string) (string, error)

// GeminiProvider implements AIProvider using the Gemini API.
type GeminiProvider struct {
	model    string
	generate generateFunc
}

// NewGeminiProvider creates a new Gemini provider.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &lingoflow.ValidationError{Field: "apiKey", Message: err.Error()}
	}

	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}

	return &GeminiProvider{
		model: model,
		generate: func(ctx context.Context, model, prompt string) (string, error) {
			resp, err := cli.Models.GenerateContent(ctx, model,
				[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
				nil,
			)
			if err != nil {
				return "", err
			}
			if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
				return "", nil
			}
			var sb strings.Builder
			for _, part := range resp.Candidates[0].Content.Parts {
				sb.WriteString(part.Text)
			}
			return sb.String(), nil
		},
	}, nil
}

// Model returns the configured model name.
func (p *GeminiProvider) Model() string {
	return p.model
}

// Translate sends the rendered prompt for req and returns the model text.
func (p *GeminiProvider) Translate(ctx context.Context, req TranslateRequest) (string, error) {
	text, err := p.generate(ctx, p.model, req.PromptText())
	if err != nil {
		return "", classifyGeminiError(ctx, err)
	}

	out := cleanResponse(text, req.Text)
	if out == "" {
		return "", &lingoflow.ProviderError{Message: "empty response from Gemini"}
	}
	return out, nil
}

// classifyGeminiError maps API errors to ProviderError so that 429 and 5xx
// are retried and other statuses are not. Errors without a status are
// transport failures.
func classifyGeminiError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return err
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return lingoflow.NewStatusError(apiErr.Code, "Gemini API call failed", err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return lingoflow.NewStatusError(apiErrPtr.Code, "Gemini API call failed", err)
	}

	return transportError("Gemini API call failed", err)
}

var _ AIProvider = (*GeminiProvider)(nil)
