package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ZaguanLabs/lingoflow"
	"github.com/ZaguanLabs/lingoflow/document"
	"github.com/ZaguanLabs/lingoflow/stream"
)

type rateLimits struct {
	PerMinute int `json:"perMinute"`
	PerDay    int `json:"perDay"`
}

func (l *rateLimits) config() *lingoflow.RateLimitConfig {
	if l == nil {
		return nil
	}
	return &lingoflow.RateLimitConfig{RequestsPerMinute: l.PerMinute, RequestsPerDay: l.PerDay}
}

// jobRequest is a document submission, on POST /api/jobs or as the first
// websocket message.
type jobRequest struct {
	credentials
	Document       json.RawMessage `json:"document"`
	SourceLanguage string          `json:"sourceLanguage"`
	TargetLanguage string          `json:"targetLanguage"`
	Prompt         string          `json:"prompt,omitempty"`
	RateLimits     *rateLimits     `json:"rateLimits,omitempty"`
}

type improveJSONRequest struct {
	credentials
	Source         json.RawMessage `json:"source"`
	Translation    json.RawMessage `json:"translation"`
	SourceLanguage string          `json:"sourceLanguage"`
	TargetLanguage string          `json:"targetLanguage"`
	Threshold      int             `json:"threshold,omitempty"`
	Prompt         string          `json:"prompt,omitempty"`
	RateLimits     *rateLimits     `json:"rateLimits,omitempty"`
}

// jobRunner runs a validated job, delivering its events to emit.
type jobRunner func(ctx context.Context, emit lingoflow.EventFunc) error

func newJobID(w http.ResponseWriter) string {
	id := uuid.NewString()
	w.Header().Set("X-Job-ID", id)
	return id
}

// parseDocument decodes a structured document field. Scalars are rejected.
func parseDocument(field string, raw json.RawMessage) (any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, &lingoflow.ValidationError{Field: field, Message: "is required"}
	}
	doc, err := document.Parse(raw)
	if err != nil {
		return nil, &lingoflow.ValidationError{Field: field, Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	switch doc.(type) {
	case string, float64, bool:
		return nil, &lingoflow.ValidationError{Field: field, Message: "must be a JSON object or array"}
	}
	return doc, nil
}

func requireTarget(lang string) error {
	if strings.TrimSpace(lang) == "" {
		return &lingoflow.ValidationError{Field: "targetLanguage", Message: "is required"}
	}
	return nil
}

func (s *Server) prepareTranslation(ctx context.Context, id string, req jobRequest) (jobRunner, error) {
	doc, err := parseDocument("document", req.Document)
	if err != nil {
		return nil, err
	}
	if err := requireTarget(req.TargetLanguage); err != nil {
		return nil, err
	}
	orch, err := s.orchestrator(ctx, req.Provider, req.APIKey)
	if err != nil {
		return nil, err
	}

	job := lingoflow.Job{
		ID:         id,
		Document:   doc,
		SourceLang: sourceOrDefault(req.SourceLanguage),
		TargetLang: req.TargetLanguage,
		Prompt:     req.Prompt,
		RateLimits: req.RateLimits.config(),
	}
	return func(ctx context.Context, emit lingoflow.EventFunc) error {
		_, err := orch.Run(ctx, job, emit)
		return err
	}, nil
}

func (s *Server) prepareImprove(ctx context.Context, id string, req improveJSONRequest) (jobRunner, error) {
	source, err := parseDocument("source", req.Source)
	if err != nil {
		return nil, err
	}
	translation, err := parseDocument("translation", req.Translation)
	if err != nil {
		return nil, err
	}
	if err := requireTarget(req.TargetLanguage); err != nil {
		return nil, err
	}
	orch, err := s.orchestrator(ctx, req.Provider, req.APIKey)
	if err != nil {
		return nil, err
	}

	threshold := req.Threshold
	if threshold <= 0 {
		threshold = s.cfg.ImproveThreshold
	}
	job := lingoflow.ImproveJob{
		ID:          id,
		Source:      source,
		Translation: translation,
		SourceLang:  sourceOrDefault(req.SourceLanguage),
		TargetLang:  req.TargetLanguage,
		Threshold:   threshold,
		Prompt:      req.Prompt,
		RateLimits:  req.RateLimits.config(),
	}
	return func(ctx context.Context, emit lingoflow.EventFunc) error {
		_, err := orch.Improve(ctx, job, emit)
		return err
	}, nil
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	var req jobRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	id := newJobID(w)
	run, err := s.prepareTranslation(r.Context(), id, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.streamJob(w, r, id, run)
}

func (s *Server) handleImproveJSON(w http.ResponseWriter, r *http.Request) {
	var req improveJSONRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	id := newJobID(w)
	run, err := s.prepareImprove(r.Context(), id, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.streamJob(w, r, id, run)
}

// streamJob answers with NDJSON or server-sent events, as negotiated.
func (s *Server) streamJob(w http.ResponseWriter, r *http.Request, id string, run jobRunner) {
	format := stream.NegotiateFormat(r)
	fw, err := stream.PrepareResponse(w, format)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("job accepted", "job_id", id, "path", r.URL.Path, "format", format)
	s.runJob(r.Context(), id, fw, run, nil)
}

// runJob runs a job in its own goroutine and pumps its events to out until
// a terminal event has been written. The job is cancelled when ctx is done
// or watch cancels it. A cancelled job ends with a cancelled event.
func (s *Server) runJob(ctx context.Context, id string, out stream.EventWriter, run jobRunner, watch func(context.Context, context.CancelFunc)) {
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if watch != nil {
		go watch(jobCtx, cancel)
	}

	q := stream.NewQueue()
	done := make(chan struct{})
	go func() {
		defer close(done)
		err := run(jobCtx, q.Emit())
		switch {
		case errors.Is(err, lingoflow.ErrCancelled):
			q.Push(lingoflow.CancelledEvent())
		case err != nil:
			// Dropped if the job already ended with its own error event.
			q.Push(lingoflow.ErrorEvent(err))
		}
		q.Close()
	}()

	if err := stream.Pump(ctx, q, out); err != nil {
		s.logger.Info("event consumer gone, cancelling job", "job_id", id, "error", err)
		cancel()
	}
	<-done
}

func (s *Server) handleJobSocket(w http.ResponseWriter, r *http.Request) {
	sock, err := stream.Upgrade(w, r)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer sock.Close()

	in, err := sock.ReadMessage()
	if err != nil {
		s.logger.Debug("websocket closed before submit", "error", err)
		return
	}
	if in.Type != "submit" {
		_ = sock.WriteEvent(lingoflow.ErrorEvent(&lingoflow.ValidationError{
			Field:   "type",
			Message: fmt.Sprintf("expected submit, got %q", in.Type),
		}))
		return
	}

	var req jobRequest
	if err := json.Unmarshal(in.Payload, &req); err != nil {
		_ = sock.WriteEvent(lingoflow.ErrorEvent(&lingoflow.ValidationError{Field: "body", Message: err.Error()}))
		return
	}
	id := uuid.NewString()
	run, err := s.prepareTranslation(r.Context(), id, req)
	if err != nil {
		_ = sock.WriteEvent(lingoflow.ErrorEvent(err))
		return
	}

	s.logger.Info("job accepted", "job_id", id, "path", r.URL.Path, "format", "websocket")
	s.runJob(r.Context(), id, sock, run, sock.WatchCancel)
}
