// Package provider adapts remote generative-language APIs to the
// lingoflow.AIProvider interface.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/ZaguanLabs/lingoflow"
)

// AIProvider is an alias to the main package interface for convenience.
type AIProvider = lingoflow.AIProvider

// TranslateRequest is an alias to the main package type.
type TranslateRequest = lingoflow.TranslateRequest

// Config selects and configures a provider.
type Config struct {
	Name    string // "gemini" (default), "openai" or "mock"
	APIKey  string
	Model   string
	BaseURL string // OpenAI-compatible endpoints only
}

// New builds the provider named by cfg.Name.
func New(ctx context.Context, cfg Config) (AIProvider, error) {
	switch strings.ToLower(cfg.Name) {
	case "", "gemini":
		return NewGeminiProvider(ctx, GeminiConfig{APIKey: cfg.APIKey, Model: cfg.Model})
	case "openai":
		return NewOpenAIProvider(OpenAIConfig{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL}), nil
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, &lingoflow.ValidationError{Field: "provider", Message: fmt.Sprintf("unknown provider %q", cfg.Name)}
	}
}

// cleanResponse trims whitespace and a surrounding pair of quotes some
// models add around single phrases.
func cleanResponse(text, source string) string {
	out := strings.TrimSpace(text)
	if len(out) >= 2 && out[0] == '"' && out[len(out)-1] == '"' && !strings.HasPrefix(strings.TrimSpace(source), `"`) {
		out = strings.TrimSpace(out[1 : len(out)-1])
	}
	return out
}

// transportError wraps a failure that produced no HTTP response. Only a
// network timeout is retried; refused connections and DNS failures are not.
func transportError(message string, err error) error {
	var netErr net.Error
	retryable := errors.As(err, &netErr) && netErr.Timeout()
	return &lingoflow.ProviderError{Message: message, Cause: err, Retryable: retryable}
}
