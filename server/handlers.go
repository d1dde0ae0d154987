package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ZaguanLabs/lingoflow"
)

// credentials are the optional per-request provider fields.
type credentials struct {
	Provider string `json:"provider,omitempty"`
	APIKey   string `json:"apiKey,omitempty"`
}

type translateRequest struct {
	credentials
	Text           string `json:"text"`
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
	Prompt         string `json:"prompt,omitempty"`
}

type articleRequest struct {
	credentials
	Article string `json:"article"`
	// Text is accepted as an alias of Article.
	Text           string `json:"text,omitempty"`
	Format         string `json:"format,omitempty"`
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
	Prompt         string `json:"prompt,omitempty"`
}

type improveRequest struct {
	credentials
	SourceText     string `json:"sourceText"`
	TranslatedText string `json:"translatedText"`
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
	Prompt         string `json:"prompt,omitempty"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" && req.Text != "" {
		writeJSON(w, http.StatusOK, map[string]string{"translation": req.Text})
		return
	}

	orch, err := s.orchestrator(r.Context(), req.Provider, req.APIKey)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := orch.TranslateText(r.Context(), req.Text, sourceOrDefault(req.SourceLanguage), req.TargetLanguage, req.Prompt)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"translation": out})
}

func (s *Server) handleTranslateArticle(w http.ResponseWriter, r *http.Request) {
	var req articleRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Article == "" {
		req.Article = req.Text
	}

	orch, err := s.orchestrator(r.Context(), req.Provider, req.APIKey)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, _, err := orch.RunText(r.Context(), lingoflow.TextJob{
		ID:         newJobID(w),
		Text:       req.Article,
		Format:     req.Format,
		SourceLang: sourceOrDefault(req.SourceLanguage),
		TargetLang: req.TargetLanguage,
		Prompt:     req.Prompt,
	}, nil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"translation": out})
}

func (s *Server) handleImprove(w http.ResponseWriter, r *http.Request) {
	var req improveRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	orch, err := s.orchestrator(r.Context(), req.Provider, req.APIKey)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := orch.ImproveText(r.Context(), req.SourceText, req.TranslatedText, sourceOrDefault(req.SourceLanguage), req.TargetLanguage, req.Prompt)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"improvedTranslation": out})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"name":    lingoflow.Name,
		"version": lingoflow.FullVersion(),
	})
}

func sourceOrDefault(lang string) string {
	if strings.TrimSpace(lang) == "" {
		return "en"
	}
	return lang
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return &lingoflow.ValidationError{Field: "body", Message: "is required"}
		}
		return &lingoflow.ValidationError{Field: "body", Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an operation error to an HTTP status.
func statusFor(err error) int {
	var validationErr *lingoflow.ValidationError
	var providerErr *lingoflow.ProviderError
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.Is(err, lingoflow.ErrCancelled), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &providerErr):
		if providerErr.StatusCode == http.StatusTooManyRequests {
			return http.StatusTooManyRequests
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.logger.Error("request failed", "path", r.URL.Path, "status", status, "error", err)
	} else {
		s.logger.Warn("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Reason: lingoflow.FailureReason(err)})
}
