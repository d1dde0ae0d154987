package provider

import (
	"context"
	"errors"

	"github.com/ZaguanLabs/lingoflow"
	"github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements AIProvider using an OpenAI-compatible chat API.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	temperature float32
}

// OpenAIConfig holds configuration for the OpenAI provider.
type OpenAIConfig struct {
	APIKey      string  // OpenAI API key
	Model       string  // Model to use (default: "gpt-4o-mini")
	Temperature float32 // Temperature for generation (default: 0.3)
	BaseURL     string  // Custom base URL (optional)
}

const openAISystemPrompt = "You are a professional translator. Follow the user's instructions exactly and reply with the requested text only."

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.3
	}

	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(config),
		model:       model,
		temperature: temperature,
	}
}

// Translate sends the rendered prompt for req as a chat completion.
func (p *OpenAIProvider) Translate(ctx context.Context, req TranslateRequest) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: openAISystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.PromptText()},
		},
		Temperature: p.temperature,
	})
	if err != nil {
		return "", classifyOpenAIError(ctx, err)
	}

	if len(resp.Choices) == 0 {
		return "", &lingoflow.ProviderError{
			Message:   "no response from OpenAI",
			Retryable: true,
		}
	}

	out := cleanResponse(resp.Choices[0].Message.Content, req.Text)
	if out == "" {
		return "", &lingoflow.ProviderError{Message: "empty response from OpenAI"}
	}
	return out, nil
}

func classifyOpenAIError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return lingoflow.NewStatusError(apiErr.HTTPStatusCode, "OpenAI API call failed", err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return lingoflow.NewStatusError(reqErr.HTTPStatusCode, "OpenAI API call failed", err)
	}

	return transportError("OpenAI API call failed", err)
}

var _ AIProvider = (*OpenAIProvider)(nil)
